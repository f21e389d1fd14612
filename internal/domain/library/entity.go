package library

import (
	"time"

	"github.com/bryanwahyu/pyq-analyzer/internal/domain/questions"
)

// SavedNote link catatan yang disimpan user
type SavedNote struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	URL     string    `json:"url"`
	Subject string    `json:"subject,omitempty"`
	SavedAt time.Time `json:"savedAt"`
}

// ChatMessage one turn of a chat session
type ChatMessage struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// ChatSession riwayat chat
type ChatSession struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Messages  []ChatMessage `json:"messages"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// User account. PasswordHash is a bcrypt hash and never leaves the server.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AnalysisSession is a result saved under a user.
type AnalysisSession struct {
	ID        string                   `json:"id"`
	UserID    string                   `json:"userId"`
	Name      string                   `json:"name"`
	Result    questions.AnalysisResult `json:"result"`
	CreatedAt time.Time                `json:"createdAt"`
}
