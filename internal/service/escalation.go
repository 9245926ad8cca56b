package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/psds-microservice/voice-support/internal/errs"
	"github.com/psds-microservice/voice-support/internal/idempotency"
	"github.com/psds-microservice/voice-support/internal/matcher"
	"github.com/psds-microservice/voice-support/internal/metrics"
	"github.com/psds-microservice/voice-support/internal/model"
	"github.com/psds-microservice/voice-support/internal/notify"
	"go.uber.org/zap"
)

// EscalatedReply: ответ пользователю, когда создан тикет.
const EscalatedReply = "Thank you for your question. A support ticket has been created and our team " +
	"will get back to you shortly. You can track your ticket status using the link provided."

const (
	DefaultSummaryMaxLen  = 200
	DefaultCandidateLimit = 10
)

type AskRequest struct {
	Text           string
	UserID         string
	ConversationID string
	IdempotencyKey string
}

// Decision содержит итог одного запроса: либо ответ FAQ, либо созданный тикет.
type Decision struct {
	Matched bool
	Answer  string
	Score   float64
	FAQID   uint64

	TicketCreated bool
	Ticket        *model.Ticket
	TicketURL     string
	// Replayed: тикет создан ранее запросом с тем же Idempotency-Key.
	Replayed bool

	// Message: текст, который видит пользователь.
	Message string
}

type EscalationConfig struct {
	Threshold      float64
	SummaryMaxLen  int
	CandidateLimit int
}

type EscalationDeps struct {
	Embedder      Embedder
	FAQ           FAQStore
	Tickets       TicketStore
	Conversations ConversationStore
	Matcher       *matcher.Engine
	// Idempotency может быть nil: ключи не проверяются.
	Idempotency idempotency.Store
	Events      notify.Publisher
	Log         *zap.Logger
	Metrics     *metrics.Metrics
}

type EscalationService struct {
	d   EscalationDeps
	cfg EscalationConfig
	log *zap.Logger
}

func NewEscalationService(d EscalationDeps, cfg EscalationConfig) *EscalationService {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Events == nil {
		d.Events = notify.Discard{}
	}
	if d.Matcher == nil {
		d.Matcher = matcher.New(d.Log, d.Metrics)
	}
	if cfg.SummaryMaxLen <= 0 {
		cfg.SummaryMaxLen = DefaultSummaryMaxLen
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = DefaultCandidateLimit
	}
	return &EscalationService{d: d, cfg: cfg, log: d.Log}
}

// Ask отвечает из FAQ при score ≥ Threshold, иначе создаёт тикет. Сбой эмбеддинга
// или загрузки FAQ ведёт к эскалации, а не к ошибке.
func (s *EscalationService) Ask(ctx context.Context, req AskRequest) (*Decision, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, errs.ErrEmptyText
	}

	query := s.d.Embedder.Embed(ctx, text)
	candidates, err := s.d.FAQ.Candidates(ctx, s.cfg.CandidateLimit)
	if err != nil {
		s.log.Warn("escalation: load faq candidates", zap.Error(err))
		candidates = nil
	}

	if best, ok := s.d.Matcher.BestMatch(query, candidates); ok {
		s.d.Metrics.ObserveMatchScore(best.Score)
		if best.Score >= s.cfg.Threshold {
			d := &Decision{
				Matched: true,
				Answer:  best.Entry.Answer,
				Score:   best.Score,
				FAQID:   best.Entry.ID,
				Message: best.Entry.Answer,
			}
			s.d.Metrics.RecordDecision(metrics.OutcomeAnswered)
			s.remember(ctx, req.ConversationID, text, d.Message)
			return d, nil
		}
	}

	d, err := s.escalate(ctx, req, text)
	if err != nil {
		if !errors.Is(err, errs.ErrIdempotencyInFlight) && !errors.Is(err, errs.ErrIdempotencyKeyReused) {
			s.d.Metrics.RecordDecision(metrics.OutcomeFailed)
		}
		return nil, err
	}
	if d.Replayed {
		s.d.Metrics.RecordDecision(metrics.OutcomeReplayed)
	} else {
		s.d.Metrics.RecordDecision(metrics.OutcomeEscalated)
		s.remember(ctx, req.ConversationID, text, d.Message)
	}
	return d, nil
}

func (s *EscalationService) escalate(ctx context.Context, req AskRequest, text string) (*Decision, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = model.AnonymousUser
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	fp := idempotency.Fingerprint(userID, text)
	claimed := false
	if key != "" && s.d.Idempotency != nil {
		c, err := s.d.Idempotency.Claim(ctx, key, fp)
		switch {
		case errors.Is(err, errs.ErrIdempotencyInFlight), errors.Is(err, errs.ErrIdempotencyKeyReused):
			return nil, err
		case err != nil:
			// Redis недоступен: продолжаем без защиты от повторов
			s.log.Warn("escalation: idempotency claim failed", zap.String("key", key), zap.Error(err))
		case c.Claimed:
			claimed = true
		default:
			t, err := s.d.Tickets.Get(ctx, c.TicketID)
			if err != nil {
				return nil, fmt.Errorf("%w: replay ticket %d: %v", errs.ErrEscalationFailed, c.TicketID, err)
			}
			return escalated(t, true), nil
		}
	}

	t := &model.Ticket{
		UserID:       userID,
		IssueSummary: truncateRunes(text, s.cfg.SummaryMaxLen),
		Status:       model.TicketStatusOpen,
	}
	first := &model.Message{Sender: model.SenderUser, Content: text}
	if err := s.d.Tickets.CreateWithMessage(ctx, t, first); err != nil {
		s.log.Error("escalation: create ticket", zap.Error(err))
		if claimed {
			s.release(ctx, key)
		}
		return nil, fmt.Errorf("%w: %v", errs.ErrEscalationFailed, err)
	}
	if claimed {
		if err := s.d.Idempotency.Complete(ctx, key, fp, t.ID); err != nil {
			// без снятия захвата повторы получали бы 409 до истечения TTL
			s.log.Warn("escalation: complete idempotency key", zap.String("key", key), zap.Error(err))
			s.release(ctx, key)
		}
	}

	s.log.Info("escalation: ticket created", zap.Uint64("ticket_id", t.ID), zap.String("user_id", t.UserID))
	s.d.Events.Publish(notify.TicketInserted(t))
	s.d.Events.Publish(notify.MessageInserted(first))
	return escalated(t, false), nil
}

func (s *EscalationService) release(ctx context.Context, key string) {
	if err := s.d.Idempotency.Release(ctx, key); err != nil {
		s.log.Warn("escalation: release idempotency key", zap.String("key", key), zap.Error(err))
	}
}

func escalated(t *model.Ticket, replayed bool) *Decision {
	return &Decision{
		TicketCreated: true,
		Ticket:        t,
		TicketURL:     fmt.Sprintf("/ticket/%d", t.ID),
		Replayed:      replayed,
		Message:       EscalatedReply,
	}
}

// remember пишет обмен в канал разговора. Ошибки не влияют на решение.
func (s *EscalationService) remember(ctx context.Context, conversationID, text, reply string) {
	if conversationID == "" || s.d.Conversations == nil {
		return
	}
	err := s.d.Conversations.Append(ctx,
		&model.ConversationMessage{ConversationID: conversationID, Sender: model.SenderUser, Content: text},
		&model.ConversationMessage{ConversationID: conversationID, Sender: model.SenderAI, Content: reply},
	)
	if err != nil {
		s.log.Warn("escalation: store conversation", zap.String("conversation_id", conversationID), zap.Error(err))
	}
}
