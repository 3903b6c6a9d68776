package entity

import (
	"fmt"
	"time"
)

type Phase string

// Phase is the intent phase of a chat session
const (
	PhaseNormal                Phase = "NORMAL"                 // Plain question answering
	PhaseCollectingApplication Phase = "COLLECTING_APPLICATION" // Turns feed field extraction
	PhaseComplete              Phase = "COMPLETE"               // Application finalized on this turn
)

func (p Phase) Validate() error {
	switch p {
	case PhaseNormal, PhaseCollectingApplication, PhaseComplete:
		return nil
	default:
		return fmt.Errorf("unknown phase: %s", p)
	}
}

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

type ApplicationStatus string

const (
	ApplicationStatusCollecting ApplicationStatus = "collecting"
	ApplicationStatusComplete   ApplicationStatus = "complete"
	ApplicationStatusCancelled  ApplicationStatus = "cancelled"
)

type ReviewStatus string

// Review status of a completed application. Only pending is assigned here,
// the rest belong to the admissions office.
const (
	ReviewStatusPending             ReviewStatus = "pending"
	ReviewStatusUnderReview         ReviewStatus = "under_review"
	ReviewStatusAccepted            ReviewStatus = "accepted"
	ReviewStatusRejected            ReviewStatus = "rejected"
	ReviewStatusWaitingForDocuments ReviewStatus = "waiting_for_documents"
)

type ApplicationField string

const (
	FieldName    ApplicationField = "name"
	FieldEmail   ApplicationField = "email"
	FieldPhone   ApplicationField = "phone"
	FieldProgram ApplicationField = "program"
)

func (f ApplicationField) Validate() error {
	switch f {
	case FieldName, FieldEmail, FieldPhone, FieldProgram:
		return nil
	default:
		return fmt.Errorf("unknown application field: %s", f)
	}
}

type ChatSession struct {
	ID            string     `json:"session_id"`
	Phase         Phase      `json:"phase"`
	HistoryWindow int        `json:"history_window"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

type ChatMessage struct {
	ID               string           `json:"id"`
	SessionID        string           `json:"session_id"`
	Role             MessageRole      `json:"role"`
	Text             string           `json:"text"`
	Retrieval        *RetrievalResult `json:"retrieval,omitempty"`
	IntentConfidence *float64         `json:"intent_confidence,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

type Application struct {
	ID           string                      `json:"id"`
	SessionID    string                      `json:"session_id"`
	Fields       map[ApplicationField]string `json:"fields"`
	Status       ApplicationStatus           `json:"status"`
	ReviewStatus *ReviewStatus               `json:"review_status,omitempty"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
	CompletedAt  *time.Time                  `json:"completed_at,omitempty"`
}

// Missing returns the required fields that have no value yet, in the order given.
func (a *Application) Missing(required []ApplicationField) []ApplicationField {
	var missing []ApplicationField
	for _, f := range required {
		if a.Fields[f] == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

type Document struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Category   string    `json:"category"`
	Filename   string    `json:"filename,omitempty"`
	ByteLength int64     `json:"byte_length"`
	ChunkIDs   []string  `json:"chunk_ids"`
	IngestedAt time.Time `json:"ingested_at"`
}
