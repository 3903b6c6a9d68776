package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

var tokenPattern = regexp.MustCompile(`\p{L}+|\p{N}+`)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {}, "can": {},
	"do": {}, "does": {}, "for": {}, "from": {}, "how": {}, "i": {}, "in": {}, "is": {}, "it": {},
	"me": {}, "my": {}, "of": {}, "on": {}, "or": {}, "the": {}, "to": {}, "we": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "who": {}, "with": {}, "you": {}, "your": {},
}

// MockConnector is a deterministic feature-hashing embedder. Texts sharing
// words get similar vectors, which is enough for local runs and tests.
type MockConnector struct {
	dimensions int
	logger     *zap.Logger
}

func NewMockConnector(dimensions int, logger *zap.Logger) *MockConnector {
	return &MockConnector{
		dimensions: dimensions,
		logger:     logger,
	}
}

func (m *MockConnector) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctxzap.Debug(ctx, "[MOCK] embedding text", zap.Int("chars", len(text)))

	vector := make([]float32, m.dimensions)
	for _, token := range Tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(token)) //nolint:errcheck
		vector[h.Sum32()%uint32(m.dimensions)]++
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vector {
			vector[i] *= scale
		}
	}
	return vector, nil
}

func (m *MockConnector) Dimensions() int {
	return m.dimensions
}

// Tokenize lowercases text, drops stopwords and strips common English suffixes.
func Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if _, stop := stopwords[t]; stop {
			continue
		}
		tokens = append(tokens, stem(t))
	}
	return tokens
}

func stem(word string) string {
	for _, suffix := range []string{"ing", "ed", "s"} {
		if strings.HasSuffix(word, suffix) && len(word)-len(suffix) >= 3 {
			if suffix == "s" && strings.HasSuffix(word, "ss") {
				return word
			}
			return strings.TrimSuffix(word, suffix)
		}
	}
	return word
}
