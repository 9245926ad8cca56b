package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/psds-microservice/voice-support/internal/errs"
	"github.com/psds-microservice/voice-support/internal/matcher"
	"github.com/psds-microservice/voice-support/internal/model"
	"github.com/psds-microservice/voice-support/internal/vector"
	"go.uber.org/zap"
)

const DefaultSearchLimit = 5

// SearchHit: запись FAQ с близостью к запросу.
type SearchHit struct {
	model.FAQEntry
	Similarity float64 `json:"similarity"`
}

type FAQService struct {
	store          FAQStore
	embedder       Embedder
	matcher        *matcher.Engine
	candidateLimit int
	log            *zap.Logger
}

// NewFAQService: candidateLimit тот же, что у EscalationService, чтобы поиск
// и голосовой запрос ранжировали одних и тех же кандидатов.
func NewFAQService(store FAQStore, embedder Embedder, m *matcher.Engine, candidateLimit int, log *zap.Logger) *FAQService {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = matcher.New(log, nil)
	}
	if candidateLimit <= 0 {
		candidateLimit = DefaultCandidateLimit
	}
	return &FAQService{store: store, embedder: embedder, matcher: m, candidateLimit: candidateLimit, log: log}
}

// Create сохраняет запись вместе с эмбеддингом вопроса. Без провайдера —
// errs.ErrEmbeddingUnavailable: запись с нулевым вектором никогда бы не совпала.
func (s *FAQService) Create(ctx context.Context, question, answer string) (*model.FAQEntry, error) {
	question, answer = strings.TrimSpace(question), strings.TrimSpace(answer)
	if question == "" || answer == "" {
		return nil, errs.ErrEmptyQuestion
	}
	v, err := s.embedder.Strict(ctx, question)
	if err != nil {
		return nil, err
	}
	raw, err := vector.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("encode embedding: %w", err)
	}
	e := &model.FAQEntry{Question: question, Answer: answer, Embedding: raw}
	if err := s.store.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create faq: %w", err)
	}
	s.log.Info("faq: created", zap.Uint64("faq_id", e.ID))
	return e, nil
}

func (s *FAQService) List(ctx context.Context) ([]model.FAQEntry, error) {
	return s.store.List(ctx)
}

// Search ранжирует кандидатов (те же, что у голосового запроса) по близости к запросу.
// Пустой запрос возвращает все записи.
func (s *FAQService) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		all, err := s.store.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list faq: %w", err)
		}
		hits := make([]SearchHit, len(all))
		for i, e := range all {
			hits[i] = SearchHit{FAQEntry: e}
		}
		return hits, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	candidates, err := s.store.Candidates(ctx, s.candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("load faq candidates: %w", err)
	}
	ranked := s.matcher.Rank(s.embedder.Embed(ctx, query), candidates, limit)
	hits := make([]SearchHit, len(ranked))
	for i, r := range ranked {
		hits[i] = SearchHit{FAQEntry: r.Entry, Similarity: r.Score}
	}
	return hits, nil
}

// SeedEntry: строка файла начального наполнения.
type SeedEntry struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
}

// Seed создаёт записи по очереди и останавливается на первой ошибке.
func (s *FAQService) Seed(ctx context.Context, entries []SeedEntry) (int, error) {
	n := 0
	for _, e := range entries {
		if _, err := s.Create(ctx, e.Question, e.Answer); err != nil {
			return n, fmt.Errorf("seed %q: %w", e.Question, err)
		}
		n++
	}
	return n, nil
}

// Reembed пересчитывает эмбеддинги записей, чей вектор не читается, нулевой или не той размерности.
// При force пересчитываются все.
func (s *FAQService) Reembed(ctx context.Context, force bool) (int, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list faq: %w", err)
	}
	dim := s.embedder.Dimensions()
	n := 0
	for _, e := range all {
		if !force {
			if v, err := vector.Parse(e.Embedding); err == nil && len(v) == dim && !vector.IsZero(v) {
				continue
			}
		}
		v, err := s.embedder.Strict(ctx, e.Question)
		if err != nil {
			return n, fmt.Errorf("reembed faq %d: %w", e.ID, err)
		}
		raw, err := vector.Encode(v)
		if err != nil {
			return n, fmt.Errorf("encode embedding: %w", err)
		}
		if err := s.store.UpdateEmbedding(ctx, e.ID, raw); err != nil {
			return n, fmt.Errorf("update faq %d: %w", e.ID, err)
		}
		s.log.Info("faq: reembedded", zap.Uint64("faq_id", e.ID))
		n++
	}
	return n, nil
}
