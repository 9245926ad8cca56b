package embedding

import (
	"context"
	"fmt"

	"github.com/psds-microservice/voice-support/internal/errs"
	"github.com/psds-microservice/voice-support/internal/metrics"
	"github.com/psds-microservice/voice-support/internal/vector"
	"go.uber.org/zap"
)

// Fallback никогда не возвращает ошибку: любой сбой провайдера превращается
// в нулевой вектор размерности корпуса FAQ, и такой запрос уходит в эскалацию.
type Fallback struct {
	provider Provider
	dim      int
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewFallback: provider может быть nil (ключ не задан).
func NewFallback(provider Provider, dim int, log *zap.Logger, m *metrics.Metrics) *Fallback {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fallback{provider: provider, dim: dim, log: log, metrics: m}
}

func (f *Fallback) Dimensions() int { return f.dim }

// Available сообщает, настроен ли реальный провайдер.
func (f *Fallback) Available() bool { return f.provider != nil }

func (f *Fallback) Embed(ctx context.Context, text string) []float32 {
	if f.provider == nil {
		f.log.Warn("embedding provider not configured, using neutral vector")
		f.metrics.RecordEmbeddingFallback()
		return vector.Zero(f.dim)
	}
	v, err := f.provider.Embed(ctx, text)
	if err == nil && len(v) != f.dim {
		err = fmt.Errorf("embedding dimension %d, corpus dimension %d", len(v), f.dim)
	}
	if err != nil {
		f.log.Warn("embedding unavailable, using neutral vector",
			zap.Error(err),
			zap.NamedError("kind", errs.ErrEmbeddingUnavailable))
		f.metrics.RecordEmbeddingFallback()
		return vector.Zero(f.dim)
	}
	return v
}

// Strict: вариант для админских операций (создание FAQ), где нулевой вектор
// сделал бы запись несопоставимой навсегда.
func (f *Fallback) Strict(ctx context.Context, text string) ([]float32, error) {
	if f.provider == nil {
		return nil, errs.ErrEmbeddingUnavailable
	}
	v, err := f.provider.Embed(ctx, text)
	if err != nil {
		f.log.Warn("embedding failed", zap.Error(err))
		return nil, errs.ErrEmbeddingUnavailable
	}
	if len(v) != f.dim || vector.IsZero(v) {
		return nil, errs.ErrEmbeddingUnavailable
	}
	return v, nil
}
