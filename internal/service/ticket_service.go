package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/psds-microservice/voice-support/internal/errs"
	"github.com/psds-microservice/voice-support/internal/model"
	"github.com/psds-microservice/voice-support/internal/notify"
	"github.com/psds-microservice/voice-support/internal/repository"
	"go.uber.org/zap"
)

// TicketServicer: интерфейс для хендлеров (Dependency Inversion).
type TicketServicer interface {
	Create(ctx context.Context, userID, summary string) (*model.Ticket, error)
	Get(ctx context.Context, id uint64) (*model.Ticket, error)
	List(ctx context.Context, f repository.TicketFilter, limit, offset int) ([]model.Ticket, int64, error)
	Messages(ctx context.Context, ticketID uint64) ([]model.Message, error)
	PostMessage(ctx context.Context, p model.Principal, ticketID uint64, sender model.Sender, body string) (*model.Message, error)
	Update(ctx context.Context, p model.Principal, id uint64, u TicketUpdate) (*model.Ticket, error)
	Resolve(ctx context.Context, p model.Principal, id uint64) (*model.Ticket, error)
}

// TicketUpdate: правка админом. nil-поля не меняются.
type TicketUpdate struct {
	Status *model.TicketStatus
	Notes  *string
}

// maxUpdateAttempts: сколько раз перечитать тикет, если статус сменился между чтением и записью.
const maxUpdateAttempts = 3

type TicketService struct {
	tickets       TicketStore
	messages      MessageStore
	events        notify.Publisher
	summaryMaxLen int
	log           *zap.Logger
}

func NewTicketService(tickets TicketStore, messages MessageStore, events notify.Publisher, summaryMaxLen int, log *zap.Logger) *TicketService {
	if events == nil {
		events = notify.Discard{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if summaryMaxLen <= 0 {
		summaryMaxLen = DefaultSummaryMaxLen
	}
	return &TicketService{tickets: tickets, messages: messages, events: events, summaryMaxLen: summaryMaxLen, log: log}
}

// Create: прямое создание тикета без голосового запроса.
func (s *TicketService) Create(ctx context.Context, userID, summary string) (*model.Ticket, error) {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil, errs.ErrEmptySummary
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = model.AnonymousUser
	}
	t := &model.Ticket{
		UserID:       userID,
		IssueSummary: truncateRunes(summary, s.summaryMaxLen),
		Status:       model.TicketStatusOpen,
	}
	if err := s.tickets.CreateWithMessage(ctx, t, nil); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	s.events.Publish(notify.TicketInserted(t))
	return t, nil
}

func (s *TicketService) Get(ctx context.Context, id uint64) (*model.Ticket, error) {
	return s.tickets.Get(ctx, id)
}

func (s *TicketService) List(ctx context.Context, f repository.TicketFilter, limit, offset int) ([]model.Ticket, int64, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, errs.ErrInvalidStatus
	}
	return s.tickets.List(ctx, f, limit, offset)
}

func (s *TicketService) Messages(ctx context.Context, ticketID uint64) ([]model.Message, error) {
	if _, err := s.tickets.Get(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.messages.ListByTicket(ctx, ticketID)
}

// PostMessage добавляет сообщение. Первый ответ админа на open-тикет переводит его
// в in_progress; из конкурирующих ответов переход выполняет ровно один.
func (s *TicketService) PostMessage(ctx context.Context, p model.Principal, ticketID uint64, sender model.Sender, body string) (*model.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, errs.ErrEmptyMessage
	}
	if sender != model.SenderUser && sender != model.SenderAdmin {
		return nil, errs.ErrInvalidSender
	}
	if sender == model.SenderAdmin && !p.Admin {
		return nil, errs.ErrUnauthorized
	}

	m := &model.Message{TicketID: ticketID, Sender: sender, Content: body}
	t, promoted, err := s.tickets.AppendMessage(ctx, m, sender == model.SenderAdmin)
	if err != nil {
		if errors.Is(err, errs.ErrTicketNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("append message: %w", err)
	}

	s.events.Publish(notify.MessageInserted(m))
	if promoted {
		s.log.Info("ticket: taken in progress", zap.Uint64("ticket_id", t.ID), zap.String("admin", p.Email))
		s.events.Publish(notify.TicketUpdated(t, model.TicketStatusOpen))
	}
	return m, nil
}

// Update меняет статус (только вперёд) и/или заметки. Тот же статус, no-op.
func (s *TicketService) Update(ctx context.Context, p model.Principal, id uint64, u TicketUpdate) (*model.Ticket, error) {
	if !p.Admin {
		return nil, errs.ErrUnauthorized
	}
	if u.Status == nil && u.Notes == nil {
		return nil, errs.ErrNoChanges
	}
	if u.Status != nil && !u.Status.Valid() {
		return nil, errs.ErrInvalidStatus
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		cur, err := s.tickets.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		changes := map[string]interface{}{}
		if u.Notes != nil {
			changes["admin_notes"] = *u.Notes
		}
		if u.Status != nil && *u.Status != cur.Status {
			if !cur.Status.CanMoveTo(*u.Status) {
				return nil, fmt.Errorf("%w: %s → %s", errs.ErrInvalidTransition, cur.Status, *u.Status)
			}
			changes["status"] = *u.Status
		}
		if len(changes) == 0 {
			return cur, nil
		}

		// запись условна по прочитанному статусу и для правки одних заметок:
		// иначе событие несло бы устаревший OldStatus
		t, applied, err := s.tickets.UpdateIf(ctx, id, []model.TicketStatus{cur.Status}, changes)
		if err != nil {
			return nil, fmt.Errorf("update ticket: %w", err)
		}
		if !applied {
			continue
		}
		s.events.Publish(notify.TicketUpdated(t, cur.Status))
		return t, nil
	}
	return nil, fmt.Errorf("%w: ticket %d changed concurrently", errs.ErrInvalidTransition, id)
}

// Resolve: терминальный переход. Уже resolved возвращается без изменений.
func (s *TicketService) Resolve(ctx context.Context, p model.Principal, id uint64) (*model.Ticket, error) {
	if !p.Admin {
		return nil, errs.ErrUnauthorized
	}
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		cur, err := s.tickets.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if cur.Status == model.TicketStatusResolved {
			return cur, nil
		}
		t, applied, err := s.tickets.UpdateIf(ctx, id,
			[]model.TicketStatus{cur.Status},
			map[string]interface{}{"status": model.TicketStatusResolved})
		if err != nil {
			return nil, fmt.Errorf("resolve ticket: %w", err)
		}
		if !applied {
			continue
		}
		s.log.Info("ticket: resolved", zap.Uint64("ticket_id", id), zap.String("admin", p.Email))
		s.events.Publish(notify.TicketUpdated(t, cur.Status))
		return t, nil
	}
	return nil, fmt.Errorf("%w: ticket %d changed concurrently", errs.ErrInvalidTransition, id)
}
