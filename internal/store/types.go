package store

import "time"

// Interface identifies which surface a conversation happens on.
type Interface string

const (
	InterfaceWeb      Interface = "web"
	InterfaceTelegram Interface = "telegram"
	InterfaceCLI      Interface = "cli"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// User is a person the assistant talks to. A user is identified by exactly
// one external handle: a Telegram id or a web session id.
type User struct {
	ID                string    `json:"id"`
	TelegramID        int64     `json:"telegram_id,omitempty"`
	SessionID         string    `json:"session_id,omitempty"`
	Name              string    `json:"name,omitempty"`
	PreferredLanguage string    `json:"preferred_language"`
	CreatedAt         time.Time `json:"created_at"`
	LastActiveAt      time.Time `json:"last_active_at"`
}

// Conversation groups the messages of one session.
type Conversation struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Interface Interface  `json:"interface"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Message is one turn in a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Language       string    `json:"language"`
	CreatedAt      time.Time `json:"created_at"`
}
