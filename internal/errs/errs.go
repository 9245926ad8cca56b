package errs

import "errors"

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrFAQNotFound    = errors.New("faq entry not found")

	ErrEmptyText     = errors.New("text is required")
	ErrEmptyMessage  = errors.New("message content is required")
	ErrEmptySummary  = errors.New("issue summary is required")
	ErrEmptyQuestion = errors.New("question and answer are required")
	ErrInvalidSender = errors.New("invalid sender: must be 'user' or 'admin'")
	ErrInvalidStatus = errors.New("invalid status: must be 'open', 'in_progress', or 'resolved'")
	ErrNoChanges     = errors.New("no changes provided")

	// ErrUnauthorized — не-админ пытается выполнить админскую запись.
	ErrUnauthorized = errors.New("admin session required")
	// ErrInvalidTransition — попытка перевести тикет назад по цепочке статусов.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrEmbeddingUnavailable поглощается адаптером (нулевой вектор); наружу
	// уходит только из админских операций, которым нужен настоящий эмбеддинг.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	// ErrMalformedCandidate — сохранённый вектор FAQ непригоден; кандидат пропускается.
	ErrMalformedCandidate = errors.New("malformed faq vector")
	// ErrEscalationFailed — не удалось записать тикет или первое сообщение. Повторяемо.
	ErrEscalationFailed = errors.New("could not escalate")

	ErrIdempotencyInFlight = errors.New("request with this idempotency key is still in progress")
	// ErrIdempotencyKeyReused: ключ уже использован запросом с другим текстом.
	ErrIdempotencyKeyReused = errors.New("idempotency key was used with a different request")
)
