package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/psds-microservice/voice-support/internal/errs"
	"github.com/psds-microservice/voice-support/internal/metrics"
	"github.com/psds-microservice/voice-support/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	vec []float32
	err error
}

func (s stubProvider) Embed(context.Context, string) ([]float32, error) { return s.vec, s.err }
func (s stubProvider) Dimensions() int                                  { return len(s.vec) }

func embeddingServer(t *testing.T, status int, vec []float64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  body["model"],
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": vec},
			},
			"usage": map[string]any{"prompt_tokens": 3, "total_tokens": 3},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewOpenAIProviderWithoutKey(t *testing.T) {
	assert.Nil(t, NewOpenAIProvider(OpenAIConfig{Model: "text-embedding-3-small", Dimensions: 3}))
}

func TestOpenAIProviderEmbed(t *testing.T) {
	srv := embeddingServer(t, http.StatusOK, []float64{0.1, 0.2, 0.3})
	p := NewOpenAIProvider(OpenAIConfig{
		APIKey:     "test",
		BaseURL:    srv.URL + "/",
		Model:      "text-embedding-3-small",
		Dimensions: 3,
	}, option.WithMaxRetries(0))
	require.NotNil(t, p)

	v, err := p.Embed(context.Background(), "refund policy")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.1, 0.2, 0.3}, v, 1e-6)
	assert.Equal(t, 3, p.Dimensions())
}

func TestOpenAIProviderDimensionMismatch(t *testing.T) {
	srv := embeddingServer(t, http.StatusOK, []float64{0.1, 0.2})
	p := NewOpenAIProvider(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/", Model: "text-embedding-3-small", Dimensions: 3},
		option.WithMaxRetries(0))

	_, err := p.Embed(context.Background(), "hello")
	require.Error(t, err)
}

func TestOpenAIProviderServerError(t *testing.T) {
	srv := embeddingServer(t, http.StatusInternalServerError, nil)
	p := NewOpenAIProvider(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/", Model: "text-embedding-3-small", Dimensions: 3},
		option.WithMaxRetries(0))

	_, err := p.Embed(context.Background(), "hello")
	require.Error(t, err)
}

func TestOpenAIProviderEmptyText(t *testing.T) {
	p := NewOpenAIProvider(OpenAIConfig{APIKey: "test", Model: "text-embedding-3-small", Dimensions: 3})
	_, err := p.Embed(context.Background(), "   ")
	assert.ErrorIs(t, err, errs.ErrEmptyText)
}

func TestFallbackPassesVectorThrough(t *testing.T) {
	f := NewFallback(stubProvider{vec: []float32{1, 2, 3}}, 3, nil, nil)
	assert.Equal(t, []float32{1, 2, 3}, f.Embed(context.Background(), "q"))
	assert.True(t, f.Available())
}

func TestFallbackOnFailure(t *testing.T) {
	m := metrics.New()
	cases := map[string]Provider{
		"error":           stubProvider{err: errors.New("network down")},
		"wrong dimension": stubProvider{vec: []float32{1, 2}},
		"not configured":  nil,
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			f := NewFallback(p, 3, nil, m)
			v := f.Embed(context.Background(), "q")
			assert.Len(t, v, 3)
			assert.True(t, vector.IsZero(v))
		})
	}
}

func TestFallbackStrict(t *testing.T) {
	ctx := context.Background()

	v, err := NewFallback(stubProvider{vec: []float32{1, 0, 0}}, 3, nil, nil).Strict(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, v)

	_, err = NewFallback(nil, 3, nil, nil).Strict(ctx, "q")
	assert.ErrorIs(t, err, errs.ErrEmbeddingUnavailable)

	_, err = NewFallback(stubProvider{err: errors.New("x")}, 3, nil, nil).Strict(ctx, "q")
	assert.ErrorIs(t, err, errs.ErrEmbeddingUnavailable)

	_, err = NewFallback(stubProvider{vec: []float32{0, 0, 0}}, 3, nil, nil).Strict(ctx, "q")
	assert.ErrorIs(t, err, errs.ErrEmbeddingUnavailable)
}
