package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/voice-support/internal/model"
)

const principalKey = "principal"

// Session кладёт Principal в контекст gin. Без валидной сессии запрос идёт дальше
// как анонимный.
func (m *Manager) Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(CookieName)
		if err != nil || raw == "" {
			if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
				raw = strings.TrimPrefix(h, "Bearer ")
			}
		}
		if p, _, err := m.Verify(raw); err == nil {
			c.Set(principalKey, p)
		}
		c.Next()
	}
}

// RequireAdmin: после Session.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !FromContext(c).Admin {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin session required"})
			return
		}
		c.Next()
	}
}

func FromContext(c *gin.Context) model.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(model.Principal); ok {
			return p
		}
	}
	return model.Principal{}
}
