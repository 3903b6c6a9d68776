// Package assembler builds the bounded prompt for one chat turn.
package assembler

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/futig/admissions-assistant/internal/entity"
)

const (
	contextHeader  = "Relevant University Information:\n"
	historyHeader  = "Previous conversation:\n"
	questionPrefix = "Current Question: "
	responseTag    = "\n\nResponse:"
	truncationMark = "…"
)

// DefaultMinChunkChars is the smallest truncated chunk worth sending.
const DefaultMinChunkChars = 200

type Config struct {
	Budget        int // characters, system prompt included
	MaxHistory    int // messages
	MinChunkChars int
	SystemPrompt  string
}

type Assembler struct {
	cfg Config
}

func New(cfg Config) *Assembler {
	if cfg.MinChunkChars <= 0 {
		cfg.MinChunkChars = DefaultMinChunkChars
	}
	return &Assembler{cfg: cfg}
}

// DefaultSystemPrompt returns the instruction block for the given university name.
func DefaultSystemPrompt(university string) string {
	return fmt.Sprintf(`You are a helpful admissions assistant for %s.
Answer questions about programs, admission requirements, deadlines, fees and campus life.
Use only the university information provided below. If it does not contain the answer, say so and suggest contacting the admissions office.
Keep answers short, friendly and specific. If the user wants to apply, tell them you can start the application here in the chat.`, university)
}

// Assemble fits the question, the evidence and the history into the budget.
// The question is always kept. Evidence goes in best score first and the
// lowest scoring chunk is the one truncated or dropped. History fills what is
// left, newest first, so the oldest turns fall out.
func (a *Assembler) Assemble(result *entity.RetrievalResult, history []entity.ChatMessage, question string) *entity.Prompt {
	question = strings.TrimSpace(question)
	prompt := &entity.Prompt{
		System:   a.cfg.SystemPrompt,
		Question: question,
		Context:  []entity.RetrievedChunk{},
		History:  []entity.ChatMessage{},
	}

	remaining := a.cfg.Budget - runes(a.cfg.SystemPrompt) - runes(questionPrefix+question+responseTag)

	chunks := dedupe(result)
	var contextBlocks []string
	for i, c := range chunks {
		overhead := runes(blockHeader(i, c)) + runes("\n\n")
		if i == 0 {
			overhead += runes(contextHeader)
		}

		need := overhead + runes(c.Text)
		if need <= remaining {
			contextBlocks = append(contextBlocks, blockHeader(i, c)+c.Text)
			prompt.Context = append(prompt.Context, c)
			remaining -= need
			continue
		}

		room := remaining - overhead - runes(truncationMark)
		if room >= a.cfg.MinChunkChars {
			c.Text = string([]rune(c.Text)[:room]) + truncationMark
			contextBlocks = append(contextBlocks, blockHeader(i, c)+c.Text)
			prompt.Context = append(prompt.Context, c)
			remaining -= overhead + runes(c.Text)
		}
		break
	}

	window := history
	if a.cfg.MaxHistory >= 0 && len(window) > a.cfg.MaxHistory {
		window = window[len(window)-a.cfg.MaxHistory:]
	}

	var historyLines []string
	for i := len(window) - 1; i >= 0; i-- {
		line := historyLine(window[i])
		need := runes(line) + 1
		if len(historyLines) == 0 {
			need += runes(historyHeader) + runes("\n")
		}
		if need > remaining {
			break
		}
		historyLines = append(historyLines, line)
		prompt.History = append(prompt.History, window[i])
		remaining -= need
	}
	slices.Reverse(historyLines)
	slices.Reverse(prompt.History)

	var b strings.Builder
	if len(contextBlocks) > 0 {
		b.WriteString(contextHeader)
		for _, block := range contextBlocks {
			b.WriteString(block)
			b.WriteString("\n\n")
		}
	}
	if len(historyLines) > 0 {
		b.WriteString(historyHeader)
		for _, line := range historyLines {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(questionPrefix)
	b.WriteString(question)
	b.WriteString(responseTag)
	prompt.Text = b.String()

	return prompt
}

// Size is the number of characters the prompt occupies against the budget.
func Size(p *entity.Prompt) int {
	return runes(p.System) + runes(p.Text)
}

func dedupe(result *entity.RetrievalResult) []entity.RetrievedChunk {
	if result.Empty() {
		return nil
	}

	best := make(map[string]int, len(result.Chunks))
	chunks := make([]entity.RetrievedChunk, 0, len(result.Chunks))
	for _, c := range result.Chunks {
		if i, ok := best[c.ChunkID]; ok {
			if c.Score > chunks[i].Score {
				chunks[i] = c
			}
			continue
		}
		best[c.ChunkID] = len(chunks)
		chunks = append(chunks, c)
	}

	slices.SortStableFunc(chunks, func(a, b entity.RetrievedChunk) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return chunks
}

func blockHeader(i int, c entity.RetrievedChunk) string {
	if c.Title == "" {
		return fmt.Sprintf("[Document %d]\n", i+1)
	}
	return fmt.Sprintf("[Document %d] %s\n", i+1, c.Title)
}

func historyLine(m entity.ChatMessage) string {
	role := "User"
	if m.Role == entity.RoleAssistant {
		role = "Assistant"
	}
	return role + ": " + strings.TrimSpace(m.Text)
}

func runes(s string) int {
	return utf8.RuneCountInString(s)
}
