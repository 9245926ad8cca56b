package notify

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/psds-microservice/voice-support/internal/metrics"
	"go.uber.org/zap"
)

const DefaultOutboxSize = 32

// Session описывает одно подключение админа со своим логом, переключателем звука и outbox.
type Session struct {
	ID  string
	Log *Log

	mu     sync.Mutex
	sound  bool
	closed bool
	out    chan Notification
}

func newSession(logSize, outboxSize int) *Session {
	return &Session{
		ID:    uuid.NewString(),
		Log:   NewLog(logSize),
		sound: true,
		out:   make(chan Notification, outboxSize),
	}
}

// Out: уведомления для отправки клиенту. Закрывается при Hub.Close.
func (s *Session) Out() <-chan Notification { return s.out }

func (s *Session) SoundEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sound
}

// ToggleSound возвращает новое значение.
func (s *Session) ToggleSound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sound = !s.sound
	return s.sound
}

// deliver пишет в лог и пытается отправить в outbox без ожидания.
func (s *Session) deliver(n Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if !s.sound {
		n.Alerts = withoutSound(n.Alerts)
	}
	s.Log.Add(n)
	select {
	case s.out <- n:
		return true
	default:
		return false
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.out)
}

func withoutSound(in []Alert) []Alert {
	out := make([]Alert, 0, len(in))
	for _, a := range in {
		if a != AlertSound {
			out = append(out, a)
		}
	}
	return out
}

// Hub: подписчик Bus, раздающий уведомления открытым сессиям.
// Отключённая сессия пропускает события, повторной доставки нет.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	policy     Policy
	logSize    int
	outboxSize int
	log        *zap.Logger
	metrics    *metrics.Metrics
}

func NewHub(policy Policy, logSize int, log *zap.Logger, m *metrics.Metrics) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		sessions:   make(map[string]*Session),
		policy:     policy,
		logSize:    logSize,
		outboxSize: DefaultOutboxSize,
		log:        log,
		metrics:    m,
	}
}

func (h *Hub) Open() *Session {
	s := newSession(h.logSize, h.outboxSize)
	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()
	h.log.Debug("notify: session opened", zap.String("session", s.ID))
	return s
}

func (h *Hub) Close(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s.ID)
	h.mu.Unlock()
	s.close()
	h.log.Debug("notify: session closed", zap.String("session", s.ID))
}

func (h *Hub) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Handle: Listener для Bus.
func (h *Hub) Handle(_ context.Context, e Event) error {
	n, ok := h.policy.Classify(e)
	if !ok {
		return nil
	}
	h.metrics.RecordNotification(string(n.Type))

	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		if !s.deliver(n) {
			h.log.Debug("notify: session outbox full, push dropped",
				zap.String("session", s.ID), zap.String("notification", n.ID))
		}
	}
	return nil
}
