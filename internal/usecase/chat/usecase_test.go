package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/futig/admissions-assistant/internal/config"
	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/futig/admissions-assistant/internal/integration/embedding"
	"github.com/futig/admissions-assistant/internal/intent"
	"github.com/futig/admissions-assistant/internal/pkg/validator"
	"github.com/futig/admissions-assistant/internal/rag/assembler"
	"github.com/futig/admissions-assistant/internal/rag/chunker"
	"github.com/futig/admissions-assistant/internal/rag/retriever"
	"github.com/futig/admissions-assistant/internal/repository/memory"
	vectormemory "github.com/futig/admissions-assistant/internal/vectorstore/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const dims = 256

type fakeGenerator struct {
	mu      sync.Mutex
	calls   int
	prompts []*entity.Prompt
	err     error
	block   bool
	started chan struct{}
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt *entity.Prompt, _ int) (string, error) {
	g.mu.Lock()
	g.calls++
	g.prompts = append(g.prompts, prompt)
	err, block, started := g.err, g.block, g.started
	g.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return "answer to: " + prompt.Question, nil
}

func (g *fakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *fakeGenerator) LastPrompt() *entity.Prompt {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prompts[len(g.prompts)-1]
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("%w: connection refused", entity.ErrEmbeddingUnavailable)
}

type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, string, entity.Phase) (intent.Result, error) {
	return intent.Result{}, errors.New("classifier down")
}

type harness struct {
	uc       *ChatUsecase
	gen      *fakeGenerator
	index    *vectormemory.Index
	embedder retriever.Embedder
	messages *memory.MessageStore
	apps     *memory.ApplicationStore
}

type option func(*harnessOptions)

type harnessOptions struct {
	embedder   retriever.Embedder
	classifier Classifier
	cfg        func(*Config)
}

func withEmbedder(e retriever.Embedder) option {
	return func(o *harnessOptions) { o.embedder = e }
}

func withClassifier(c Classifier) option {
	return func(o *harnessOptions) { o.classifier = c }
}

func withConfig(fn func(*Config)) option {
	return func(o *harnessOptions) { o.cfg = fn }
}

func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()

	profile := config.DefaultIntentProfile()
	embedder := embedding.NewMockConnector(dims, zap.NewNop())
	o := harnessOptions{
		embedder:   embedder,
		classifier: intent.NewKeywordClassifier(*profile),
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := Config{
		HistoryWindow:     10,
		TopK:              5,
		IntentThreshold:   0.7,
		GenerationTimeout: time.Second,
		MaxTokens:         256,
		UniversityName:    "Sample University",
		WelcomeMessage:    "Hello!",
		RefusalMessage:    "Sorry, I can't help with that.",
		RequiredFields:    profile.RequiredFields,
		FieldPrompts:      profile.FieldPrompts,
	}
	if o.cfg != nil {
		o.cfg(&cfg)
	}

	index := vectormemory.New(dims)
	h := &harness{
		gen:      &fakeGenerator{},
		index:    index,
		embedder: embedder,
		messages: memory.NewMessageStore(),
		apps:     memory.NewApplicationStore(),
	}

	h.uc = NewUsecase(
		memory.NewSessionStore(),
		h.messages,
		h.apps,
		validator.New(config.FileUploadConfig{MaxFileSize: 1 << 20, AllowedExtensions: []string{".txt"}}, 4000, []string{"admission", "general"}),
		retriever.New(o.embedder, index, retriever.Config{TopK: 5, MinSimilarity: 0.2, EmbeddingTimeout: time.Second, SearchTimeout: time.Second}),
		assembler.New(assembler.Config{Budget: 6000, MaxHistory: cfg.HistoryWindow, SystemPrompt: "system"}),
		h.gen,
		o.classifier,
		intent.NewExtractor(*profile),
		cfg,
		zap.NewNop(),
	)
	return h
}

func (h *harness) ingest(t *testing.T, docID, text string) {
	t.Helper()
	ctx := context.Background()

	c, err := chunker.New(1000, 200)
	require.NoError(t, err)

	chunks := c.Chunks(docID, text, entity.ChunkMeta{Title: docID, Category: "general"})
	for i := range chunks {
		chunks[i].Vector, err = h.embedder.Embed(ctx, chunks[i].Text)
		require.NoError(t, err)
	}
	require.NoError(t, h.index.Insert(ctx, chunks))
}

func (h *harness) session(t *testing.T) string {
	t.Helper()
	resp, err := h.uc.CreateSession(context.Background())
	require.NoError(t, err)
	require.Equal(t, entity.PhaseNormal, resp.Phase)
	return resp.SessionID
}

func (h *harness) say(t *testing.T, sessionID, text string) *entity.TurnResult {
	t.Helper()
	res, err := h.uc.PostMessage(context.Background(), sessionID, &entity.PostMessageRequest{Message: text})
	require.NoError(t, err)
	return res
}

func TestPostMessage_EndToEnd(t *testing.T) {
	h := newHarness(t)
	id := h.session(t)
	h.ingest(t, "doc1", "Sample University offers Computer Science and Business programs.")

	res := h.say(t, id, "What programs are offered?")

	assert.Contains(t, res.UsedChunkIDs, "doc1_chunk_0")
	assert.Equal(t, entity.PhaseNormal, res.Phase)
	assert.Equal(t, "answer to: What programs are offered?", res.ResponseText)
	require.NotNil(t, res.IntentConfidence)
	assert.Less(t, *res.IntentConfidence, 0.7)

	history, err := h.uc.GetHistory(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)

	user, assistant := history.Messages[0], history.Messages[1]
	assert.Equal(t, entity.RoleUser, user.Role)
	assert.NotNil(t, user.IntentConfidence)
	assert.Nil(t, user.Retrieval)
	assert.Equal(t, entity.RoleAssistant, assistant.Role)
	assert.Nil(t, assistant.IntentConfidence)
	require.NotNil(t, assistant.Retrieval)
	assert.Equal(t, []string{"doc1_chunk_0"}, assistant.Retrieval.ChunkIDs())

	assert.Contains(t, h.gen.LastPrompt().Text, "Sample University offers Computer Science")
}

func TestPostMessage_EmptyIndexStillAnswers(t *testing.T) {
	h := newHarness(t)
	id := h.session(t)

	res := h.say(t, id, "Is there a campus library?")
	assert.Empty(t, res.UsedChunkIDs)
	assert.NotNil(t, res.UsedChunkIDs)
	assert.Equal(t, 1, h.gen.Calls())
}

func TestPostMessage_InformationalQuestionsStayNormal(t *testing.T) {
	h := newHarness(t)
	id := h.session(t)

	for _, q := range []string{
		"How do I apply?",
		"What are the admission requirements?",
		"When is the application deadline?",
		"Can I apply now?",
		"Is there an application fee?",
		"What documents do I need for enrollment?",
	} {
		res := h.say(t, id, q)
		assert.Equal(t, entity.PhaseNormal, res.Phase, q)
		assert.Nil(t, res.Application, q)
	}

	session, err := h.uc.GetSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entity.PhaseNormal, session.Phase)
	assert.Equal(t, 12, session.MessageCount)
	assert.Equal(t, 6, h.gen.Calls())
}

func TestPostMessage_IntentThresholdIsConfigurable(t *testing.T) {
	strict := newHarness(t)
	id := strict.session(t)
	res := strict.say(t, id, "I'd like to join")
	assert.Equal(t, entity.PhaseNormal, res.Phase)

	lenient := newHarness(t, withConfig(func(c *Config) { c.IntentThreshold = 0.3 }))
	id = lenient.session(t)

	res = lenient.say(t, id, "How do I apply?")
	assert.Equal(t, entity.PhaseNormal, res.Phase)

	res = lenient.say(t, id, "I'd like to join")
	assert.Equal(t, entity.PhaseCollectingApplication, res.Phase)
	require.NotNil(t, res.IntentConfidence)
	assert.InDelta(t, 0.3, *res.IntentConfidence, 1e-9)
}

func TestPostMessage_ApplicationFlow(t *testing.T) {
	h := newHarness(t)
	id := h.session(t)

	res := h.say(t, id, "I want to apply")
	assert.Equal(t, entity.PhaseCollectingApplication, res.Phase)
	assert.Contains(t, res.ResponseText, "full name")
	require.NotNil(t, res.IntentConfidence)
	assert.GreaterOrEqual(t, *res.IntentConfidence, 0.7)
	assert.Empty(t, res.UsedChunkIDs)

	res = h.say(t, id, "Maria Lopez")
	assert.Equal(t, entity.PhaseCollectingApplication, res.Phase)
	assert.Contains(t, res.ResponseText, "email")
	assert.Nil(t, res.IntentConfidence)

	res = h.say(t, id, "maria@example.com")
	assert.Contains(t, res.ResponseText, "phone")

	res = h.say(t, id, "+1 555 123 4567")
	assert.Contains(t, res.ResponseText, "program")

	res = h.say(t, id, "Computer Science")
	assert.Equal(t, entity.PhaseComplete, res.Phase)
	require.NotNil(t, res.Application)
	assert.Equal(t, entity.ApplicationStatusComplete, res.Application.Status)
	require.NotNil(t, res.Application.ReviewStatus)
	assert.Equal(t, entity.ReviewStatusPending, *res.Application.ReviewStatus)
	assert.NotNil(t, res.Application.CompletedAt)
	assert.Equal(t, map[entity.ApplicationField]string{
		entity.FieldName:    "Maria Lopez",
		entity.FieldEmail:   "maria@example.com",
		entity.FieldPhone:   "+1 555 123 4567",
		entity.FieldProgram: "Computer Science",
	}, res.Application.Fields)

	// collection turns skip retrieval and generation
	assert.Zero(t, h.gen.Calls())

	res = h.say(t, id, "What programs are offered?")
	assert.Equal(t, entity.PhaseNormal, res.Phase)
	assert.Equal(t, 1, h.gen.Calls())

	app, err := h.uc.GetApplication(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entity.ApplicationStatusComplete, app.Status)
}

func TestPostMessage_ApplicationCapturesFieldsFromOpeningMessage(t *testing.T) {
	h := newHarness(t)
	id := h.session(t)

	res := h.say(t, id, "I'd like to apply to Business Administration")
	assert.Equal(t, entity.PhaseCollectingApplication, res.Phase)
	require.NotNil(t, res.Application)
	assert.Equal(t, "Business Administration", res.Application.Fields[entity.FieldProgram])
	assert.Contains(t, res.ResponseText, "I've noted your program")
}

func TestPostMessage_ProgramGivenInsteadOfName(t *testing.T) {
	h := newHarness(t)
	id := h.session(t)

	h.say(t, id, "I want to apply")
	res := h.say(t, id, "Computer Science")

	assert.Equal(t, entity.PhaseCollectingApplication, res.Phase)
	require.NotNil(t, res.Application)
	assert.Equal(t, map[entity.ApplicationField]string{entity.FieldProgram: "Computer Science"}, res.Application.Fields)
	assert.Contains(t, res.ResponseText, "I've noted your program.")
	assert.Contains(t, res.ResponseText, "full name")

	res = h.say(t, id, "Maria Lopez")
	assert.Equal(t, "Maria Lopez", res.Application.Fields[entity.FieldName])
	assert.Contains(t, res.ResponseText, "email")
}

func TestPostMessage_InvalidFieldIsAskedAgain(t *testing.T) {
	h := newHarness(t)
	id := h.session(t)

	h.say(t, id, "I want to apply")
	h.say(t, id, "Ann Lee")

	res := h.say(t, id, "not sure, maybe later")
	assert.Equal(t, entity.PhaseCollectingApplication, res.Phase)
	assert.Contains(t, res.ResponseText, "valid email")
	assert.NotContains(t, res.Application.Fields, entity.FieldEmail)
}

func TestPostMessage_CancelApplication(t *testing.T) {
	h := newHarness(t)
	id := h.session(t)

	h.say(t, id, "I want to apply")
	res := h.say(t, id, "never mind")

	assert.Equal(t, entity.PhaseNormal, res.Phase)
	require.NotNil(t, res.Application)
	assert.Equal(t, entity.ApplicationStatusCancelled, res.Application.Status)

	res = h.say(t, id, "What programs are offered?")
	assert.Equal(t, entity.PhaseNormal, res.Phase)
	assert.Equal(t, 1, h.gen.Calls())
}

func TestResetSession_CancelsDraft(t *testing.T) {
	h := newHarness(t)
	id := h.session(t)
	h.say(t, id, "I want to apply")

	session, err := h.uc.ResetSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entity.PhaseNormal, session.Phase)
	assert.Equal(t, 2, session.MessageCount)

	app, err := h.uc.GetApplication(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entity.ApplicationStatusCancelled, app.Status)
}

func TestPostMessage_Refusal(t *testing.T) {
	h := newHarness(t)
	h.gen.err = fmt.Errorf("%w: flagged", entity.ErrGenerationRefused)
	id := h.session(t)

	res := h.say(t, id, "Tell me something inappropriate")
	assert.True(t, res.Refused)
	assert.Equal(t, "Sorry, I can't help with that.", res.ResponseText)
	assert.Equal(t, entity.PhaseNormal, res.Phase)

	history, err := h.uc.GetHistory(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, history.Messages, 2)
}

func TestPostMessage_TransientFailuresKeepHistory(t *testing.T) {
	tests := []struct {
		name    string
		opts    []option
		genErr  error
		block   bool
		wantErr error
	}{
		{
			name:    "generation unavailable",
			genErr:  fmt.Errorf("%w: 502", entity.ErrGenerationUnavailable),
			wantErr: entity.ErrGenerationUnavailable,
		},
		{
			name:    "unclassified generation error",
			genErr:  errors.New("socket hang up"),
			wantErr: entity.ErrGenerationUnavailable,
		},
		{
			name: "generation timeout",
			opts: []option{withConfig(func(c *Config) {
				c.GenerationTimeout = 20 * time.Millisecond
			})},
			block:   true,
			wantErr: entity.ErrGenerationUnavailable,
		},
		{
			name:    "embedding unavailable",
			opts:    []option{withEmbedder(failingEmbedder{})},
			wantErr: entity.ErrEmbeddingUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.opts...)
			h.gen.err = tt.genErr
			h.gen.block = tt.block
			id := h.session(t)

			_, err := h.uc.PostMessage(context.Background(), id, &entity.PostMessageRequest{Message: "What programs are offered?"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, entity.IsRetryable(err))

			history, err := h.uc.GetHistory(context.Background(), id)
			require.NoError(t, err)
			require.Len(t, history.Messages, 1)
			assert.Equal(t, entity.RoleUser, history.Messages[0].Role)
		})
	}
}

func TestPostMessage_ClassifierFailureMeansNoIntent(t *testing.T) {
	h := newHarness(t, withClassifier(failingClassifier{}))
	id := h.session(t)

	res := h.say(t, id, "I want to apply")
	assert.Equal(t, entity.PhaseNormal, res.Phase)
	assert.Equal(t, 1, h.gen.Calls())
}

func TestDeleteSession_CancelsInFlightTurn(t *testing.T) {
	h := newHarness(t)
	h.gen.block = true
	h.gen.started = make(chan struct{}, 1)
	id := h.session(t)

	errCh := make(chan error, 1)
	go func() {
		_, err := h.uc.PostMessage(context.Background(), id, &entity.PostMessageRequest{Message: "What programs are offered?"})
		errCh <- err
	}()

	<-h.gen.started
	require.NoError(t, h.uc.DeleteSession(context.Background(), id))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, entity.ErrTurnCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("turn was not cancelled")
	}

	// the user message stays for audit, no answer is appended
	stored, err := h.messages.List(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, entity.RoleUser, stored[0].Role)

	_, err = h.uc.GetSession(context.Background(), id)
	assert.ErrorIs(t, err, entity.ErrSessionNotFound)

	_, err = h.uc.PostMessage(context.Background(), id, &entity.PostMessageRequest{Message: "hello"})
	assert.ErrorIs(t, err, entity.ErrSessionNotFound)
}

func TestPostMessage_SameSessionTurnsAreSerialized(t *testing.T) {
	h := newHarness(t)
	id := h.session(t)

	const n = 8
	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.uc.PostMessage(context.Background(), id, &entity.PostMessageRequest{Message: fmt.Sprintf("question %d", i)})
			if err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Zero(t, failures.Load())

	history, err := h.uc.GetHistory(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, history.Messages, 2*n)

	for i := 0; i < len(history.Messages); i += 2 {
		user, assistant := history.Messages[i], history.Messages[i+1]
		assert.Equal(t, entity.RoleUser, user.Role)
		assert.Equal(t, entity.RoleAssistant, assistant.Role)
		assert.Equal(t, "answer to: "+user.Text, assistant.Text)
	}
}

func TestPostMessage_HistoryWindow(t *testing.T) {
	h := newHarness(t, withConfig(func(c *Config) { c.HistoryWindow = 4 }))
	id := h.session(t)

	for i := range 5 {
		h.say(t, id, fmt.Sprintf("question number %d about campus", i))
	}

	prompt := h.gen.LastPrompt()
	require.Len(t, prompt.History, 4)
	assert.Equal(t, "question number 2 about campus", prompt.History[0].Text)
	assert.Equal(t, "answer to: question number 3 about campus", prompt.History[3].Text)
	assert.Equal(t, "question number 4 about campus", prompt.Question)
}

func TestPostMessage_Validation(t *testing.T) {
	h := newHarness(t)
	id := h.session(t)

	_, err := h.uc.PostMessage(context.Background(), id, &entity.PostMessageRequest{Message: "  "})
	assert.ErrorIs(t, err, entity.ErrMissingField)

	_, err = h.uc.PostMessage(context.Background(), id, &entity.PostMessageRequest{Message: "hi", Category: "sports"})
	assert.ErrorIs(t, err, entity.ErrInvalidParameter)

	_, err = h.uc.PostMessage(context.Background(), "00000000-0000-0000-0000-000000000000", &entity.PostMessageRequest{Message: "hi"})
	assert.ErrorIs(t, err, entity.ErrSessionNotFound)
}

func TestGetApplication_NoneStarted(t *testing.T) {
	h := newHarness(t)
	id := h.session(t)

	_, err := h.uc.GetApplication(context.Background(), id)
	assert.ErrorIs(t, err, entity.ErrApplicationNotFound)
}
