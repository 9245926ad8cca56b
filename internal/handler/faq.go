package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/voice-support/internal/service"
)

type FAQHandler struct {
	svc *service.FAQService
}

func NewFAQHandler(svc *service.FAQService) *FAQHandler {
	return &FAQHandler{svc: svc}
}

// Search: GET /api/v1/faq?q=. Без q возвращает все записи.
func (h *FAQHandler) Search(c *gin.Context) {
	hits, err := h.svc.Search(c.Request.Context(), c.Query("q"), service.DefaultSearchLimit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, hits)
}

type createFAQRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func (h *FAQHandler) Create(c *gin.Context) {
	var req createFAQRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	e, err := h.svc.Create(c.Request.Context(), req.Question, req.Answer)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}
