// Package vector содержит операции над эмбеддингами фиксированной размерности.
package vector

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/psds-microservice/voice-support/internal/errs"
)

// CosineSimilarity считает косинусную близость в float64.
// Нулевая норма, пустые векторы или разная длина дают 0, а не ошибку.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(score) {
		return 0
	}
	if score > 1 {
		score = 1
	} else if score < -1 {
		score = -1
	}
	return score
}

// Zero возвращает нейтральный вектор заданной размерности.
func Zero(dim int) []float32 {
	if dim < 0 {
		dim = 0
	}
	return make([]float32, dim)
}

func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Parse разбирает сохранённый вектор (JSON-массив чисел).
// Все ошибки оборачивают errs.ErrMalformedCandidate.
func Parse(raw string) ([]float32, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty value", errs.ErrMalformedCandidate)
	}
	var values []float64
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformedCandidate, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: empty vector", errs.ErrMalformedCandidate)
	}
	out := make([]float32, len(values))
	for i, v := range values {
		f := float32(v)
		if math.IsNaN(v) || math.IsInf(float64(f), 0) {
			return nil, fmt.Errorf("%w: invalid value at index %d", errs.ErrMalformedCandidate, i)
		}
		out[i] = f
	}
	return out, nil
}

// Encode: обратная к Parse операция для записи в БД.
func Encode(v []float32) (string, error) {
	if len(v) == 0 {
		return "", fmt.Errorf("encode vector: empty vector")
	}
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return "", fmt.Errorf("encode vector: invalid value at index %d", i)
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode vector: %w", err)
	}
	return string(b), nil
}
