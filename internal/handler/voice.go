package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/voice-support/internal/service"
)

// Asker: точка входа решения FAQ/эскалация.
type Asker interface {
	Ask(ctx context.Context, req service.AskRequest) (*service.Decision, error)
}

type VoiceHandler struct {
	svc Asker
}

func NewVoiceHandler(svc Asker) *VoiceHandler {
	return &VoiceHandler{svc: svc}
}

type voiceRequest struct {
	Text           string `json:"text"`
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
}

type voiceResponse struct {
	Success       bool    `json:"success"`
	Message       string  `json:"message"`
	FAQMatched    bool    `json:"faq_matched,omitempty"`
	FAQID         uint64  `json:"faq_id,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
	TicketCreated bool    `json:"ticket_created,omitempty"`
	TicketID      uint64  `json:"ticket_id,omitempty"`
	TicketURL     string  `json:"ticket_url,omitempty"`
	Replayed      bool    `json:"replayed,omitempty"`
}

// Ask: POST /api/v1/voice. Заголовок Idempotency-Key необязателен.
func (h *VoiceHandler) Ask(c *gin.Context) {
	var req voiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	d, err := h.svc.Ask(c.Request.Context(), service.AskRequest{
		Text:           req.Text,
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	resp := voiceResponse{Success: true, Message: d.Message}
	if d.Matched {
		resp.FAQMatched = true
		resp.FAQID = d.FAQID
		resp.Confidence = d.Score
	}
	if d.TicketCreated && d.Ticket != nil {
		resp.TicketCreated = true
		resp.TicketID = d.Ticket.ID
		resp.TicketURL = d.TicketURL
		resp.Replayed = d.Replayed
	}
	c.JSON(http.StatusOK, resp)
}
