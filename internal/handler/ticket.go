package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/voice-support/internal/auth"
	"github.com/psds-microservice/voice-support/internal/model"
	"github.com/psds-microservice/voice-support/internal/repository"
	"github.com/psds-microservice/voice-support/internal/service"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type TicketHandler struct {
	svc service.TicketServicer
}

func NewTicketHandler(svc service.TicketServicer) *TicketHandler {
	return &TicketHandler{svc: svc}
}

type createTicketRequest struct {
	UserID       string `json:"user_id"`
	IssueSummary string `json:"issue_summary"`
}

func (h *TicketHandler) Create(c *gin.Context) {
	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	t, err := h.svc.Create(c.Request.Context(), req.UserID, req.IssueSummary)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *TicketHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	t, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// List: админ видит все тикеты, остальные, только свои по user_id.
func (h *TicketHandler) List(c *gin.Context) {
	f := repository.TicketFilter{
		Status: model.TicketStatus(c.Query("status")),
		UserID: c.Query("user_id"),
	}
	if !auth.FromContext(c).Admin && f.UserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "admin session or user_id required"})
		return
	}

	limit := defaultListLimit
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = min(parsed, maxListLimit)
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	items, total, err := h.svc.List(c.Request.Context(), f, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tickets": items,
		"total":   total,
	})
}

type updateTicketRequest struct {
	Status     *string `json:"status,omitempty"`
	AdminNotes *string `json:"admin_notes,omitempty"`
}

func (h *TicketHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req updateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	var u service.TicketUpdate
	if req.Status != nil && *req.Status != "" {
		s := model.TicketStatus(*req.Status)
		u.Status = &s
	}
	u.Notes = req.AdminNotes
	t, err := h.svc.Update(c.Request.Context(), auth.FromContext(c), id, u)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TicketHandler) Resolve(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	t, err := h.svc.Resolve(c.Request.Context(), auth.FromContext(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TicketHandler) Messages(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	items, err := h.svc.Messages(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if items == nil {
		items = []model.Message{}
	}
	c.JSON(http.StatusOK, items)
}

type postMessageRequest struct {
	Content string `json:"content"`
	Sender  string `json:"sender"`
}

// PostMessage: без sender админская сессия пишет как admin, остальные как user.
func (h *TicketHandler) PostMessage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	p := auth.FromContext(c)
	sender := model.Sender(req.Sender)
	if sender == "" {
		sender = model.SenderUser
		if p.Admin {
			sender = model.SenderAdmin
		}
	}
	m, err := h.svc.PostMessage(c.Request.Context(), p, id, sender, req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}
