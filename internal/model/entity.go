package model

import "time"

type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
)

// Valid сообщает, входит ли статус в допустимый набор.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved:
		return true
	}
	return false
}

// rank — позиция статуса в цепочке open → in_progress → resolved.
func (s TicketStatus) rank() int {
	switch s {
	case TicketStatusOpen:
		return 0
	case TicketStatusInProgress:
		return 1
	case TicketStatusResolved:
		return 2
	}
	return -1
}

// CanMoveTo: статус тикета двигается только вперёд, resolved терминален.
func (s TicketStatus) CanMoveTo(next TicketStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return next.rank() > s.rank()
}

// AnonymousUser — владелец тикета, если вызывающий не передал user_id.
const AnonymousUser = "anonymous"

type Ticket struct {
	ID           uint64       `gorm:"primaryKey" json:"id"`
	UserID       string       `gorm:"type:varchar(255);index;not null" json:"user_id"`
	IssueSummary string       `gorm:"type:text;not null" json:"issue_summary"`
	Status       TicketStatus `gorm:"type:varchar(32);index;not null" json:"status"`
	AdminNotes   string       `gorm:"type:text" json:"admin_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Sender string

const (
	SenderUser  Sender = "user"
	SenderAdmin Sender = "admin"
	// SenderAI используется только в канале conversation_messages.
	SenderAI Sender = "ai"
)

// Message — сообщение в треде тикета. Не изменяется после создания.
type Message struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	TicketID  uint64    `gorm:"index;not null" json:"ticket_id"`
	Sender    Sender    `gorm:"type:varchar(16);not null" json:"sender"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// ConversationMessage — обмен пользователь/ассистент до эскалации, без привязки к тикету.
type ConversationMessage struct {
	ID             uint64    `gorm:"primaryKey" json:"id"`
	ConversationID string    `gorm:"type:varchar(255);index;not null" json:"conversation_id"`
	Sender         Sender    `gorm:"type:varchar(16);not null" json:"sender"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// FAQEntry хранит эмбеддинг вопроса как JSON-массив чисел. Разбор — в internal/vector,
// битые значения отбрасываются при матчинге.
type FAQEntry struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	Question  string    `gorm:"type:text;not null" json:"question"`
	Answer    string    `gorm:"type:text;not null" json:"answer"`
	Embedding string    `gorm:"type:text" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (FAQEntry) TableName() string { return "faq" }

// Principal — кто выполняет запись. Нулевое значение — анонимный пользователь.
type Principal struct {
	Admin bool   `json:"admin"`
	Email string `json:"email,omitempty"`
}
