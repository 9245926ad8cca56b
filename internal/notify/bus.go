package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/psds-microservice/voice-support/internal/metrics"
	"go.uber.org/zap"
)

// Listener обрабатывает событие. Ошибка логируется и не мешает остальным подписчикам.
type Listener func(ctx context.Context, e Event) error

var ErrTooManyListeners = errors.New("notify: listener limit reached")

const (
	DefaultQueueSize    = 256
	DefaultMaxListeners = 16
)

// Bus доставляет события в порядке публикации одной горутиной-диспетчером (Run).
// Publish не блокирует: при полной очереди событие отбрасывается.
type Bus struct {
	mu           sync.RWMutex
	listeners    []named
	maxListeners int

	queue   chan Event
	log     *zap.Logger
	metrics *metrics.Metrics
}

type named struct {
	name string
	fn   Listener
}

func NewBus(queueSize, maxListeners int, log *zap.Logger, m *metrics.Metrics) *Bus {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if maxListeners <= 0 {
		maxListeners = DefaultMaxListeners
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		maxListeners: maxListeners,
		queue:        make(chan Event, queueSize),
		log:          log,
		metrics:      m,
	}
}

func (b *Bus) Subscribe(name string, l Listener) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.listeners) >= b.maxListeners {
		return ErrTooManyListeners
	}
	b.listeners = append(b.listeners, named{name: name, fn: l})
	return nil
}

func (b *Bus) Publish(e Event) bool {
	select {
	case b.queue <- e:
		return true
	default:
		b.log.Warn("notify: queue full, event dropped", zap.String("type", string(e.Type)))
		b.metrics.RecordDropped()
		return false
	}
}

// Run разбирает очередь до отмены ctx.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-b.queue:
			b.dispatch(ctx, e)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, e Event) {
	b.mu.RLock()
	ls := make([]named, len(b.listeners))
	copy(ls, b.listeners)
	b.mu.RUnlock()

	for _, l := range ls {
		if err := b.safeInvoke(ctx, l, e); err != nil {
			b.log.Warn("notify: listener failed",
				zap.String("listener", l.name), zap.String("type", string(e.Type)), zap.Error(err))
		}
	}
}

func (b *Bus) safeInvoke(ctx context.Context, l named, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("notify: listener panicked", zap.String("listener", l.name), zap.Any("panic", r))
			err = nil
		}
	}()
	return l.fn(ctx, e)
}
