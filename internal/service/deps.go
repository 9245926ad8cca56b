package service

import (
	"context"

	"github.com/psds-microservice/voice-support/internal/model"
	"github.com/psds-microservice/voice-support/internal/repository"
)

// TicketStore хранит тикеты и треды (реализует repository.TicketRepository).
type TicketStore interface {
	CreateWithMessage(ctx context.Context, t *model.Ticket, first *model.Message) error
	Get(ctx context.Context, id uint64) (*model.Ticket, error)
	List(ctx context.Context, f repository.TicketFilter, limit, offset int) ([]model.Ticket, int64, error)
	UpdateIf(ctx context.Context, id uint64, from []model.TicketStatus, changes map[string]interface{}) (*model.Ticket, bool, error)
	AppendMessage(ctx context.Context, m *model.Message, promote bool) (*model.Ticket, bool, error)
}

type MessageStore interface {
	ListByTicket(ctx context.Context, ticketID uint64) ([]model.Message, error)
}

type ConversationStore interface {
	Append(ctx context.Context, msgs ...*model.ConversationMessage) error
}

type FAQStore interface {
	Candidates(ctx context.Context, limit int) ([]model.FAQEntry, error)
	List(ctx context.Context) ([]model.FAQEntry, error)
	Get(ctx context.Context, id uint64) (*model.FAQEntry, error)
	Create(ctx context.Context, e *model.FAQEntry) error
	UpdateEmbedding(ctx context.Context, id uint64, embedding string) error
}

// Embedder — адаптер эмбеддингов (реализует embedding.Fallback).
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
	Strict(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// truncateRunes режет по рунам, чтобы не порвать UTF-8.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
