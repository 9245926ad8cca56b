package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/psds-microservice/voice-support/internal/model"
)

type NotificationType string

const (
	TypeNewTicket    NotificationType = "new_ticket"
	TypeTicketUpdate NotificationType = "ticket_update"
	TypeNewMessage   NotificationType = "new_message"
)

// Alert: подсказка клиенту, как показать уведомление. Отрисовка на стороне клиента.
type Alert string

const (
	AlertToast   Alert = "toast"
	AlertSound   Alert = "sound"
	AlertBrowser Alert = "browser"
)

type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	TicketID  uint64           `json:"ticket_id"`
	Link      string           `json:"link"`
	Alerts    []Alert          `json:"alerts,omitempty"`
	Read      bool             `json:"read"`
	Timestamp time.Time        `json:"timestamp"`
}

const DefaultPreviewLen = 100

type Policy struct {
	PreviewLen int
}

// Classify превращает событие в уведомление. ok=false: уведомлять не нужно
// (обновление без смены статуса, собственные сообщения админа и ассистента).
func (p Policy) Classify(e Event) (Notification, bool) {
	switch e.Type {
	case EventTicketInserted:
		if e.Ticket == nil {
			return Notification{}, false
		}
		return p.build(TypeNewTicket, "New Support Ticket", p.preview(e.Ticket.IssueSummary),
			e.Ticket.ID, e.At, AlertToast, AlertSound, AlertBrowser), true

	case EventTicketUpdated:
		if e.Ticket == nil || e.OldStatus == e.Ticket.Status {
			return Notification{}, false
		}
		body := "Ticket status changed to " + strings.ReplaceAll(string(e.Ticket.Status), "_", " ")
		return p.build(TypeTicketUpdate, "Ticket Updated", body, e.Ticket.ID, e.At), true

	case EventMessageInserted:
		if e.Message == nil || e.Message.Sender != model.SenderUser {
			return Notification{}, false
		}
		return p.build(TypeNewMessage, "New Customer Message", p.preview(e.Message.Content),
			e.Message.TicketID, e.At, AlertToast, AlertSound, AlertBrowser), true
	}
	return Notification{}, false
}

func (p Policy) build(typ NotificationType, title, body string, ticketID uint64, at time.Time, alerts ...Alert) Notification {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return Notification{
		ID:        uuid.NewString(),
		Type:      typ,
		Title:     title,
		Message:   body,
		TicketID:  ticketID,
		Link:      fmt.Sprintf("/admin/tickets/%d", ticketID),
		Alerts:    alerts,
		Timestamp: at,
	}
}

func (p Policy) preview(s string) string {
	n := p.PreviewLen
	if n <= 0 {
		n = DefaultPreviewLen
	}
	return Truncate(s, n)
}

// Truncate обрезает строку до n рун.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
