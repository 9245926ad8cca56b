package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/voice-support/internal/errs"
)

// statusFor сопоставляет ошибку сервиса HTTP-коду.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrEmptyText),
		errors.Is(err, errs.ErrEmptyMessage),
		errors.Is(err, errs.ErrEmptySummary),
		errors.Is(err, errs.ErrEmptyQuestion),
		errors.Is(err, errs.ErrInvalidSender),
		errors.Is(err, errs.ErrInvalidStatus),
		errors.Is(err, errs.ErrNoChanges):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrTicketNotFound), errors.Is(err, errs.ErrFAQNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrInvalidTransition), errors.Is(err, errs.ErrIdempotencyInFlight):
		return http.StatusConflict
	case errors.Is(err, errs.ErrIdempotencyKeyReused):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrEscalationFailed), errors.Is(err, errs.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError отдаёт {"error": ...}. Для 5xx текст без внутренних подробностей.
func writeError(c *gin.Context, err error) {
	code := statusFor(err)
	msg := err.Error()
	switch code {
	case http.StatusServiceUnavailable:
		msg = "service temporarily unavailable, please try again"
		if errors.Is(err, errs.ErrEmbeddingUnavailable) {
			msg = errs.ErrEmbeddingUnavailable.Error()
		}
	case http.StatusInternalServerError:
		msg = "internal server error"
	}
	if code >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(code, gin.H{"error": msg})
}

func parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
