package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/voice-support/internal/auth"
	"github.com/psds-microservice/voice-support/internal/errs"
)

type AuthHandler struct {
	mgr    *auth.Manager
	secure bool
}

// NewAuthHandler: secure выставляет флаг Secure у cookie (production).
func NewAuthHandler(mgr *auth.Manager, secure bool) *AuthHandler {
	return &AuthHandler{mgr: mgr, secure: secure}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	token, _, err := h.mgr.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		writeError(c, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, token, int(h.mgr.TTL().Seconds()), "/", "", h.secure, true)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Login successful"})
}

func (h *AuthHandler) Check(c *gin.Context) {
	raw, _ := c.Cookie(auth.CookieName)
	p, exp, err := h.mgr.Verify(raw)
	if err != nil {
		if raw != "" {
			c.SetCookie(auth.CookieName, "", -1, "/", "", h.secure, true)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"email":         p.Email,
		"role":          "admin",
		"expires_at":    exp,
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetCookie(auth.CookieName, "", -1, "/", "", h.secure, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
