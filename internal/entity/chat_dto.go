package entity

import "time"

type ExportFormat string

const (
	FormatMarkdown ExportFormat = "markdown"
	FormatDOCX     ExportFormat = "docx"
	FormatPDF      ExportFormat = "pdf"
)

func (f ExportFormat) IsValid() bool {
	switch f {
	case FormatMarkdown, FormatDOCX, FormatPDF:
		return true
	default:
		return false
	}
}

type PostMessageRequest struct {
	Message  string `json:"message"`
	Category string `json:"category,omitempty"`
}

// TurnResult is what one processed chat turn yields.
type TurnResult struct {
	SessionID        string       `json:"session_id"`
	UserMessageID    string       `json:"user_message_id"`
	MessageID        string       `json:"message_id"`
	ResponseText     string       `json:"response"`
	UsedChunkIDs     []string     `json:"used_chunk_ids"`
	Phase            Phase        `json:"phase"`
	IntentConfidence *float64     `json:"intent_confidence,omitempty"`
	Refused          bool         `json:"refused,omitempty"`
	Application      *Application `json:"application,omitempty"`
}

type CreateSessionResponse struct {
	SessionID      string    `json:"session_id"`
	Phase          Phase     `json:"phase"`
	WelcomeMessage string    `json:"welcome_message"`
	CreatedAt      time.Time `json:"created_at"`
}

type SessionDTO struct {
	ID           string    `json:"session_id"`
	Phase        Phase     `json:"phase"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type MessagesDTO struct {
	SessionID string         `json:"session_id"`
	Messages  []*ChatMessage `json:"messages"`
}
