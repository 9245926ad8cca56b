// Package notify разносит события изменения тикетов подключённым админам.
package notify

import (
	"time"

	"github.com/psds-microservice/voice-support/internal/model"
)

type EventType string

const (
	EventTicketInserted  EventType = "ticket_inserted"
	EventTicketUpdated   EventType = "ticket_updated"
	EventMessageInserted EventType = "message_inserted"
)

// Event публикуется после коммита записи. Для ticket_updated OldStatus, статус до
// изменения; при правке только заметок он совпадает с Ticket.Status.
type Event struct {
	Type      EventType
	Ticket    *model.Ticket
	OldStatus model.TicketStatus
	Message   *model.Message
	At        time.Time
}

func TicketInserted(t *model.Ticket) Event {
	return Event{Type: EventTicketInserted, Ticket: t, At: time.Now().UTC()}
}

func TicketUpdated(t *model.Ticket, old model.TicketStatus) Event {
	return Event{Type: EventTicketUpdated, Ticket: t, OldStatus: old, At: time.Now().UTC()}
}

func MessageInserted(m *model.Message) Event {
	return Event{Type: EventMessageInserted, Message: m, At: time.Now().UTC()}
}

// Publisher: то, что нужно слою записи; реализуется Bus.
type Publisher interface {
	Publish(e Event) bool
}

// Discard: Publisher без подписчиков.
type Discard struct{}

func (Discard) Publish(Event) bool { return true }
