// Package formatter renders chat transcripts as downloadable files.
package formatter

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/futig/admissions-assistant/internal/entity"
)

const defaultTitle = "Admissions chat transcript"

type Formatter interface {
	Format(t *Transcript) ([]byte, error)
	ContentType() string
	FileExtension() string
}

// Transcript is a session's history plus the application it produced, if any.
type Transcript struct {
	Title       string
	SessionID   string
	ExportedAt  time.Time
	Messages    []*entity.ChatMessage
	Application *entity.Application
}

type Factory struct {
	docx bool
}

type FactoryOption func(*Factory)

// WithDOCX enables DOCX output. unioffice must be activated first.
func WithDOCX() FactoryOption {
	return func(f *Factory) { f.docx = true }
}

func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Factory) Create(format entity.ExportFormat) (Formatter, error) {
	switch format {
	case entity.FormatMarkdown:
		return NewMarkdownFormatter(), nil
	case entity.FormatDOCX:
		if !f.docx {
			return nil, fmt.Errorf("%w: docx export is not enabled", entity.ErrInvalidParameter)
		}
		return NewDOCXFormatter(), nil
	case entity.FormatPDF:
		return NewPDFFormatter(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported format: %s", entity.ErrInvalidParameter, format)
	}
}

// Filename builds the download name for a transcript in the given format.
func Filename(sessionID string, f Formatter) string {
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	return "transcript_" + short + f.FileExtension()
}

func (t *Transcript) title() string {
	if t.Title != "" {
		return t.Title
	}
	return defaultTitle
}

func (t *Transcript) subtitle() string {
	return fmt.Sprintf("Session %s, exported %s", t.SessionID, t.ExportedAt.UTC().Format(time.RFC1123))
}

func speaker(m *entity.ChatMessage) string {
	if m.Role == entity.RoleAssistant {
		return "Assistant"
	}
	return "User"
}

func messageHeading(m *entity.ChatMessage) string {
	return fmt.Sprintf("%s, %s", speaker(m), m.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
}

func sources(m *entity.ChatMessage) string {
	if m.Retrieval.Empty() {
		return ""
	}
	return "Sources: " + strings.Join(m.Retrieval.ChunkIDs(), ", ")
}

// applicationLines lists the collected fields in a stable order.
func applicationLines(app *entity.Application) []string {
	if app == nil {
		return nil
	}
	lines := []string{fmt.Sprintf("Status: %s", app.Status)}
	if app.ReviewStatus != nil {
		lines = append(lines, fmt.Sprintf("Review status: %s", *app.ReviewStatus))
	}

	keys := make([]string, 0, len(app.Fields))
	for f := range app.Fields {
		keys = append(keys, string(f))
	}
	slices.Sort(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %s", k, app.Fields[entity.ApplicationField(k)]))
	}
	return lines
}
