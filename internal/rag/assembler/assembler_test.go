package assembler

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func retrieval(chunks ...entity.RetrievedChunk) *entity.RetrievalResult {
	return &entity.RetrievalResult{Chunks: chunks}
}

func chunk(id string, score float64, text string) entity.RetrievedChunk {
	return entity.RetrievedChunk{ChunkID: id, DocumentID: "doc", Score: score, Text: text}
}

func history(n int) []entity.ChatMessage {
	msgs := make([]entity.ChatMessage, 0, n)
	for i := range n {
		role := entity.RoleUser
		if i%2 == 1 {
			role = entity.RoleAssistant
		}
		msgs = append(msgs, entity.ChatMessage{
			ID:        fmt.Sprintf("m%d", i),
			Role:      role,
			Text:      fmt.Sprintf("message number %d", i),
			CreatedAt: time.Unix(int64(i), 0),
		})
	}
	return msgs
}

func TestAssemble_FitsEverything(t *testing.T) {
	a := New(Config{Budget: 10_000, MaxHistory: 10, SystemPrompt: "system"})

	p := a.Assemble(retrieval(chunk("c1", 0.9, "Tuition is 5000."), chunk("c2", 0.8, "Deadline is May.")), history(2), "How much is tuition?")

	require.Len(t, p.Context, 2)
	require.Len(t, p.History, 2)
	assert.Equal(t, "How much is tuition?", p.Question)
	assert.Contains(t, p.Text, "[Document 1]\nTuition is 5000.")
	assert.Contains(t, p.Text, "User: message number 0")
	assert.Contains(t, p.Text, "Assistant: message number 1")
	assert.True(t, strings.HasSuffix(p.Text, "Current Question: How much is tuition?\n\nResponse:"))
	assert.Less(t, strings.Index(p.Text, "Relevant University Information"), strings.Index(p.Text, "Previous conversation"))
	assert.LessOrEqual(t, Size(p), 10_000)
}

func TestAssemble_TightBudgetKeepsQuestion(t *testing.T) {
	a := New(Config{Budget: 10, MaxHistory: 10, SystemPrompt: "You are an assistant."})
	question := "What programs are offered at the main campus this year?"

	p := a.Assemble(retrieval(chunk("c1", 0.9, strings.Repeat("x", 500))), history(4), question)

	assert.Empty(t, p.Context)
	assert.Empty(t, p.History)
	assert.Contains(t, p.Text, question)
}

func TestAssemble_DropsLowestScoringChunksFirst(t *testing.T) {
	text := strings.Repeat("a", 300)
	base := New(Config{Budget: 100_000, MaxHistory: 0})
	full := base.Assemble(retrieval(chunk("hi", 0.9, text)), nil, "q")

	// room for exactly one full chunk and too little for a useful second one
	a := New(Config{Budget: Size(full) + 50, MaxHistory: 0, MinChunkChars: 100})
	p := a.Assemble(retrieval(chunk("low", 0.2, text), chunk("hi", 0.9, text), chunk("mid", 0.5, text)), nil, "q")

	require.Len(t, p.Context, 1)
	assert.Equal(t, "hi", p.Context[0].ChunkID)
}

func TestAssemble_TruncatesLowestIncludedChunk(t *testing.T) {
	text := strings.Repeat("b", 1000)
	a := New(Config{Budget: 1500, MaxHistory: 0, MinChunkChars: 100})

	p := a.Assemble(retrieval(chunk("c1", 0.9, text), chunk("c2", 0.8, text)), nil, "q")

	require.Len(t, p.Context, 2)
	assert.Equal(t, text, p.Context[0].Text)
	assert.Less(t, len([]rune(p.Context[1].Text)), 1000)
	assert.True(t, strings.HasSuffix(p.Context[1].Text, "…"))
	assert.LessOrEqual(t, Size(p), 1500)
}

func TestAssemble_DeduplicatesByChunkID(t *testing.T) {
	a := New(Config{Budget: 10_000, MaxHistory: 0})

	p := a.Assemble(retrieval(chunk("c1", 0.6, "same"), chunk("c2", 0.7, "other"), chunk("c1", 0.9, "same")), nil, "q")

	require.Len(t, p.Context, 2)
	assert.Equal(t, "c1", p.Context[0].ChunkID)
	assert.InDelta(t, 0.9, p.Context[0].Score, 1e-9)
	assert.Equal(t, 1, strings.Count(p.Text, "same"))
}

func TestAssemble_HistoryWindowAndOldestDroppedFirst(t *testing.T) {
	a := New(Config{Budget: 10_000, MaxHistory: 4})
	p := a.Assemble(nil, history(12), "q")

	require.Len(t, p.History, 4)
	assert.Equal(t, "m8", p.History[0].ID)
	assert.Equal(t, "m11", p.History[3].ID)
	assert.NotContains(t, p.Text, "message number 7")

	baseline := New(Config{Budget: 10_000, MaxHistory: 10}).Assemble(nil, nil, "q")
	tight := New(Config{Budget: Size(baseline) + 70, MaxHistory: 10}).Assemble(nil, history(10), "q")

	require.NotEmpty(t, tight.History)
	assert.Less(t, len(tight.History), 10)
	assert.Equal(t, "m9", tight.History[len(tight.History)-1].ID)
	assert.LessOrEqual(t, Size(tight), Size(baseline)+70)
}

func TestAssemble_EvidenceBeforeHistory(t *testing.T) {
	text := strings.Repeat("c", 400)
	baseline := New(Config{Budget: 100_000, MaxHistory: 10}).Assemble(retrieval(chunk("c1", 0.9, text)), nil, "q")

	a := New(Config{Budget: Size(baseline) + 5, MaxHistory: 10})
	p := a.Assemble(retrieval(chunk("c1", 0.9, text)), history(6), "q")

	require.Len(t, p.Context, 1)
	assert.Empty(t, p.History)
}
