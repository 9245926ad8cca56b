package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/psds-microservice/voice-support/internal/notify"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	EventTicketCreated  = "ticket.created"
	EventTicketUpdated  = "ticket.updated"
	EventMessageCreated = "message.created"
)

// messageWriter: подмножество *kafka.Writer (для подмены в тестах).
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer пишет события тикетов в топик Kafka (best-effort, не блокирует API).
// Подключается к notify.Bus как подписчик.
type Producer struct {
	writer  messageWriter
	timeout time.Duration
	log     *zap.Logger
}

// NewProducer создаёт продюсер. Если brokers пустой или topic пустой, методы no-op.
func NewProducer(brokers []string, topic string, log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	if len(brokers) == 0 || topic == "" {
		return &Producer{log: log}
	}
	return &Producer{
		log:     log,
		timeout: 5 * time.Second,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *Producer) Enabled() bool { return p.writer != nil }

type ticketPayload struct {
	Event     string    `json:"event"`
	TicketID  uint64    `json:"ticket_id"`
	UserID    string    `json:"user_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	OldStatus string    `json:"old_status,omitempty"`
	Summary   string    `json:"issue_summary,omitempty"`
	MessageID uint64    `json:"message_id,omitempty"`
	Sender    string    `json:"sender,omitempty"`
	Content   string    `json:"content,omitempty"`
	At        time.Time `json:"at"`
}

// payload строит тело сообщения для события шины. При ok=false событие в Kafka не уходит.
func payload(e notify.Event) (ticketPayload, bool) {
	switch e.Type {
	case notify.EventTicketInserted:
		if e.Ticket == nil {
			return ticketPayload{}, false
		}
		return ticketPayload{
			Event: EventTicketCreated, TicketID: e.Ticket.ID, UserID: e.Ticket.UserID,
			Status: string(e.Ticket.Status), Summary: e.Ticket.IssueSummary, At: e.At,
		}, true
	case notify.EventTicketUpdated:
		if e.Ticket == nil {
			return ticketPayload{}, false
		}
		return ticketPayload{
			Event: EventTicketUpdated, TicketID: e.Ticket.ID, UserID: e.Ticket.UserID,
			Status: string(e.Ticket.Status), OldStatus: string(e.OldStatus), At: e.At,
		}, true
	case notify.EventMessageInserted:
		if e.Message == nil {
			return ticketPayload{}, false
		}
		return ticketPayload{
			Event: EventMessageCreated, TicketID: e.Message.TicketID, MessageID: e.Message.ID,
			Sender: string(e.Message.Sender), Content: e.Message.Content, At: e.At,
		}, true
	}
	return ticketPayload{}, false
}

// Handle: notify.Listener. Ключ сообщения, id тикета, так события одного тикета
// попадают в одну партицию.
func (p *Producer) Handle(ctx context.Context, e notify.Event) error {
	if p.writer == nil {
		return nil
	}
	msg, ok := payload(e)
	if !ok {
		return nil
	}
	body, err := json.Marshal(msg)
	if err != nil {
		p.log.Warn("kafka: marshal ticket event", zap.Error(err))
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(msg.TicketID, 10)),
		Value: body,
	})
	if err != nil {
		p.log.Warn("kafka: write ticket event", zap.String("event", msg.Event), zap.Uint64("ticket_id", msg.TicketID), zap.Error(err))
	}
	return nil
}

// Close закрывает writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
