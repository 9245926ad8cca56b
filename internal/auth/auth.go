// Package auth: вход админа по учётным данным из конфигурации и подписанная сессия в cookie.
package auth

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/psds-microservice/voice-support/internal/errs"
	"github.com/psds-microservice/voice-support/internal/model"
)

const CookieName = "admin_session"

const roleAdmin = "admin"

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret   []byte
	ttl      time.Duration
	email    string
	password string
	now      func() time.Time
}

func NewManager(secret []byte, ttl time.Duration, email, password string) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{secret: secret, ttl: ttl, email: email, password: password, now: time.Now}
}

func (m *Manager) TTL() time.Duration { return m.ttl }

// Login сверяет учётные данные и выпускает токен сессии.
func (m *Manager) Login(email, password string) (string, time.Time, error) {
	okEmail := subtle.ConstantTimeCompare([]byte(email), []byte(m.email)) == 1
	okPass := subtle.ConstantTimeCompare([]byte(password), []byte(m.password)) == 1
	if !okEmail || !okPass || m.password == "" {
		return "", time.Time{}, errs.ErrUnauthorized
	}
	return m.Issue(email)
}

func (m *Manager) Issue(email string) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: roleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, exp, nil
}

// Verify проверяет подпись и срок. Любая ошибка ⇒ errs.ErrUnauthorized.
func (m *Manager) Verify(raw string) (model.Principal, time.Time, error) {
	if raw == "" {
		return model.Principal{}, time.Time{}, errs.ErrUnauthorized
	}
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		return model.Principal{}, time.Time{}, fmt.Errorf("%w: %v", errs.ErrUnauthorized, err)
	}
	if c.Role != roleAdmin {
		return model.Principal{}, time.Time{}, fmt.Errorf("%w: role %q", errs.ErrUnauthorized, c.Role)
	}
	var exp time.Time
	if c.ExpiresAt != nil {
		exp = c.ExpiresAt.Time
	}
	return model.Principal{Admin: true, Email: c.Subject}, exp, nil
}
