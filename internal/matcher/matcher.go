// Package matcher подбирает ответ FAQ для вектора запроса полным перебором кандидатов.
package matcher

import (
	"sort"

	"github.com/psds-microservice/voice-support/internal/metrics"
	"github.com/psds-microservice/voice-support/internal/model"
	"github.com/psds-microservice/voice-support/internal/vector"
	"go.uber.org/zap"
)

// MatchResult живёт только до принятия решения.
type MatchResult struct {
	Entry model.FAQEntry
	Score float64
}

type Engine struct {
	log     *zap.Logger
	metrics *metrics.Metrics
}

func New(log *zap.Logger, m *metrics.Metrics) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{log: log, metrics: m}
}

// BestMatch возвращает кандидата с максимальной близостью. При равенстве выигрывает
// первый встреченный. Битые, нулевые векторы и векторы другой размерности пропускаются.
// ok=false, если запрос нулевой, кандидатов нет или все непригодны.
func (e *Engine) BestMatch(query []float32, candidates []model.FAQEntry) (MatchResult, bool) {
	var best MatchResult
	if vector.IsZero(query) {
		return best, false
	}
	found := false
	for _, c := range candidates {
		score, ok := e.score(query, c)
		if !ok {
			continue
		}
		if !found || score > best.Score {
			best = MatchResult{Entry: c, Score: score}
			found = true
		}
	}
	return best, found
}

// Rank сортирует пригодных кандидатов по убыванию близости (стабильно) и обрезает до limit.
// Нулевой запрос не похож ни на что: результат пустой.
func (e *Engine) Rank(query []float32, candidates []model.FAQEntry, limit int) []MatchResult {
	out := make([]MatchResult, 0, len(candidates))
	if vector.IsZero(query) {
		return out
	}
	for _, c := range candidates {
		if score, ok := e.score(query, c); ok {
			out = append(out, MatchResult{Entry: c, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (e *Engine) score(query []float32, c model.FAQEntry) (float64, bool) {
	v, err := vector.Parse(c.Embedding)
	if err != nil {
		e.skip(c, err)
		return 0, false
	}
	if len(v) != len(query) {
		e.skip(c, nil, zap.Int("dim", len(v)), zap.Int("query_dim", len(query)))
		return 0, false
	}
	if vector.IsZero(v) {
		e.skip(c, nil, zap.String("reason", "zero vector"))
		return 0, false
	}
	return vector.CosineSimilarity(query, v), true
}

func (e *Engine) skip(c model.FAQEntry, err error, fields ...zap.Field) {
	fields = append(fields, zap.Uint64("faq_id", c.ID))
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	e.log.Warn("matcher: skipping malformed faq vector", fields...)
	e.metrics.RecordMalformedCandidate()
}
