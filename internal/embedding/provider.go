package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/psds-microservice/voice-support/internal/errs"
)

// Provider: внешний сервис эмбеддингов. Ошибки возвращаются как есть;
// деградацию до нулевого вектора делает Fallback.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// embeddingsAPI: подмножество openai.EmbeddingService (для подмены в тестах).
type embeddingsAPI interface {
	New(ctx context.Context, body openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error)
}

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

// OpenAIProvider вызывает /v1/embeddings через openai-go.
type OpenAIProvider struct {
	api        embeddingsAPI
	model      string
	dimensions int
}

// NewOpenAIProvider возвращает nil, если APIKey пустой: без ключа эмбеддингов нет,
// Fallback в этом случае всегда отдаёт нулевой вектор.
func NewOpenAIProvider(cfg OpenAIConfig, extra ...option.RequestOption) *OpenAIProvider {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, extra...)
	client := openai.NewClient(opts...)
	return &OpenAIProvider{
		api:        &client.Embeddings,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

func (p *OpenAIProvider) Dimensions() int { return p.dimensions }

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("embed: %w", errs.ErrEmptyText)
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(trimmed)},
		Model: openai.EmbeddingModel(p.model),
	}
	// dimensions поддерживают только модели text-embedding-3-*
	if strings.HasPrefix(p.model, "text-embedding-3") && p.dimensions > 0 {
		params.Dimensions = openai.Int(int64(p.dimensions))
	}

	resp, err := p.api.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if resp == nil || len(resp.Data) == 0 {
		return nil, fmt.Errorf("embed: empty response")
	}
	raw := resp.Data[0].Embedding
	if p.dimensions > 0 && len(raw) != p.dimensions {
		return nil, fmt.Errorf("embed: dimension mismatch: got %d, want %d", len(raw), p.dimensions)
	}
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(v)
	}
	return out, nil
}
