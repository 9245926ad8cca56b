// Package idempotency хранит ключи Idempotency-Key для эскалации в Redis.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/psds-microservice/voice-support/internal/errs"
	"github.com/redis/go-redis/v9"
)

const pending = "pending"

// Claim описывает результат захвата ключа. Claimed=false и TicketID!=0 значит, что запрос уже выполнен.
type Claim struct {
	Claimed  bool
	TicketID uint64
}

// Store привязывает ключ к отпечатку запроса: тот же ключ с другим отпечатком
// даёт errs.ErrIdempotencyKeyReused.
type Store interface {
	Claim(ctx context.Context, key, fingerprint string) (Claim, error)
	Complete(ctx context.Context, key, fingerprint string, ticketID uint64) error
	Release(ctx context.Context, key string) error
}

// Fingerprint: sha256 от частей запроса.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

type Option func(*RedisStore)

func WithTTL(ttl time.Duration) Option {
	return func(s *RedisStore) { s.ttl = ttl }
}

func WithPrefix(prefix string) Option {
	return func(s *RedisStore) { s.prefix = prefix }
}

func NewRedisStore(client *redis.Client, opts ...Option) *RedisStore {
	s := &RedisStore{client: client, ttl: 10 * time.Minute, prefix: "voice-support"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(k string) string {
	return s.prefix + ":idempotency:" + k
}

// Claim ставит "pending:<fingerprint>" через SET NX. Ключ в процессе ⇒ errs.ErrIdempotencyInFlight.
func (s *RedisStore) Claim(ctx context.Context, key, fingerprint string) (Claim, error) {
	ok, err := s.client.SetNX(ctx, s.key(key), pending+":"+fingerprint, s.ttl).Result()
	if err != nil {
		return Claim{}, fmt.Errorf("redis setnx: %w", err)
	}
	if ok {
		return Claim{Claimed: true}, nil
	}
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// истёк между SETNX и GET, пробуем ещё раз
			return s.Claim(ctx, key, fingerprint)
		}
		return Claim{}, fmt.Errorf("redis get: %w", err)
	}
	state, stored, found := strings.Cut(val, ":")
	if !found {
		return Claim{}, fmt.Errorf("idempotency value %q: missing fingerprint", val)
	}
	if stored != fingerprint {
		return Claim{}, errs.ErrIdempotencyKeyReused
	}
	if state == pending {
		return Claim{}, errs.ErrIdempotencyInFlight
	}
	id, err := strconv.ParseUint(state, 10, 64)
	if err != nil {
		return Claim{}, fmt.Errorf("idempotency value %q: %w", val, err)
	}
	return Claim{TicketID: id}, nil
}

// Complete запоминает созданный тикет на тот же TTL.
func (s *RedisStore) Complete(ctx context.Context, key, fingerprint string, ticketID uint64) error {
	val := strconv.FormatUint(ticketID, 10) + ":" + fingerprint
	if err := s.client.Set(ctx, s.key(key), val, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Release снимает захват после неудачной записи, чтобы повтор мог пройти.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
