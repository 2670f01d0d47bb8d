package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/anirudhms/vani/internal/db"
)

// Store manages persistence of users, conversations and messages.
type Store struct {
	db *db.DB
}

// NewStore creates a new conversation store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// CreateUser inserts a new user. It assigns an id and timestamps if unset.
func (s *Store) CreateUser(ctx context.Context, u User) (*User, error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.LastActiveAt = now
	if u.PreferredLanguage == "" {
		u.PreferredLanguage = "en"
	}

	var telegramID any
	if u.TelegramID != 0 {
		telegramID = u.TelegramID
	}
	var sessionID any
	if u.SessionID != "" {
		sessionID = u.SessionID
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, telegram_id, session_id, name, preferred_language, created_at, last_active_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, telegramID, sessionID, u.Name, u.PreferredLanguage, formatTime(u.CreatedAt), formatTime(u.LastActiveAt),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	return &u, nil
}

// GetUser retrieves a user by id. Returns nil when not found.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	return s.getUser(ctx, "id = ?", id)
}

// GetUserByTelegramID retrieves a user by Telegram id. Returns nil when not
// found.
func (s *Store) GetUserByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	return s.getUser(ctx, "telegram_id = ?", telegramID)
}

// GetUserBySessionID retrieves a user by web session id. Returns nil when
// not found.
func (s *Store) GetUserBySessionID(ctx context.Context, sessionID string) (*User, error) {
	return s.getUser(ctx, "session_id = ?", sessionID)
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (*User, error) {
	var u User
	var telegramID sql.NullInt64
	var sessionID sql.NullString
	var createdAt, lastActiveAt string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, telegram_id, session_id, name, preferred_language, created_at, last_active_at
		 FROM users WHERE `+where, arg,
	).Scan(&u.ID, &telegramID, &sessionID, &u.Name, &u.PreferredLanguage, &createdAt, &lastActiveAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	u.TelegramID = telegramID.Int64
	u.SessionID = sessionID.String
	u.CreatedAt = parseTime(createdAt)
	u.LastActiveAt = parseTime(lastActiveAt)
	return &u, nil
}

// TouchUser bumps the user's last-active timestamp.
func (s *Store) TouchUser(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_active_at = ? WHERE id = ?`,
		formatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("touching user: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// SetPreferredLanguage records the language the user prefers replies in.
func (s *Store) SetPreferredLanguage(ctx context.Context, id, language string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET preferred_language = ? WHERE id = ?`, language, id,
	)
	if err != nil {
		return fmt.Errorf("updating preferred language: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// CreateConversation starts a new conversation for the user.
func (s *Store) CreateConversation(ctx context.Context, userID string, iface Interface) (*Conversation, error) {
	c := Conversation{
		ID:        uuid.New().String(),
		UserID:    userID,
		Interface: iface,
		StartedAt: time.Now().UTC(),
	}
	if c.Interface == "" {
		c.Interface = InterfaceWeb
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, interface, started_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.UserID, c.Interface, formatTime(c.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting conversation: %w", err)
	}
	return &c, nil
}

// GetConversation retrieves a conversation by id. Returns nil when not
// found.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var c Conversation
	var startedAt string
	var endedAt sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, interface, started_at, ended_at FROM conversations WHERE id = ?`, id,
	).Scan(&c.ID, &c.UserID, &c.Interface, &startedAt, &endedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting conversation: %w", err)
	}
	c.StartedAt = parseTime(startedAt)
	if endedAt.Valid {
		t := parseTime(endedAt.String)
		c.EndedAt = &t
	}
	return &c, nil
}

// EndConversation marks a conversation as finished.
func (s *Store) EndConversation(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET ended_at = ? WHERE id = ? AND ended_at IS NULL`,
		formatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("ending conversation: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("conversation not found or already ended: %s", id)
	}
	return nil
}

// UserConversations lists the user's conversations, most recent first.
func (s *Store) UserConversations(ctx context.Context, userID string, limit int) ([]Conversation, error) {
	query := `SELECT id, user_id, interface, started_at, ended_at
		 FROM conversations WHERE user_id = ? ORDER BY started_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		var c Conversation
		var startedAt string
		var endedAt sql.NullString
		if err := rows.Scan(&c.ID, &c.UserID, &c.Interface, &startedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		c.StartedAt = parseTime(startedAt)
		if endedAt.Valid {
			t := parseTime(endedAt.String)
			c.EndedAt = &t
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

// AppendMessage records one turn of a conversation.
func (s *Store) AppendMessage(ctx context.Context, m Message) (*Message, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.CreatedAt = time.Now().UTC()
	if m.Language == "" {
		m.Language = "en"
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, language, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Role, m.Content, m.Language, formatTime(m.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}
	return &m, nil
}

// GetMessages returns the last limit messages of a conversation in
// chronological order. A limit of 0 returns all of them.
func (s *Store) GetMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	query := `SELECT id, conversation_id, role, content, language, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY created_at DESC, id`
	args := []any{conversationID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Language, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.CreatedAt = parseTime(createdAt)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Flip the DESC window back into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// timeLayout keeps a fixed-width fraction so TEXT comparison in ORDER BY
// matches chronological order. RFC3339Nano trims trailing zeros and does
// not sort correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
