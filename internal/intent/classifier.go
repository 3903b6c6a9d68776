// Package intent detects when a user starts an application and pulls
// applicant fields out of their replies.
package intent

import (
	"context"
	"regexp"
	"strings"

	"github.com/futig/admissions-assistant/internal/config"
	"github.com/futig/admissions-assistant/internal/entity"
)

var (
	spaces        = regexp.MustCompile(`\s+`)
	interrogative = regexp.MustCompile(`^(what|how|when|where|which|who|whom|why|is|are|do|does|did|can|could|should|will|would|may|tell me|explain|describe|list)\b`)
	infoCues      = []string{"requirement", "deadline", "information", "info", "fee", "cost", "tuition", "process", "procedure", "document", "about"}
	negations     = []string{"don't want", "do not want", "not want", "not ready", "not interested", "no longer", "won't", "will not", "not going to"}
)

// Result flags an application signal. Confidence is compared with the
// configured threshold by the caller.
type Result struct {
	IsApplicationIntent bool
	Confidence          float64
	Reasoning           string
}

type Classifier interface {
	Classify(ctx context.Context, text string, phase entity.Phase) (Result, error)
}

// KeywordClassifier scores a message by explicit application phrases and
// weaker admission keywords. Informational questions and negations scale the
// score down.
type KeywordClassifier struct {
	strong   []string
	keywords []*regexp.Regexp
	scoring  config.IntentScoring
}

func NewKeywordClassifier(profile config.IntentProfile) *KeywordClassifier {
	c := &KeywordClassifier{scoring: profile.Scoring}
	for _, p := range profile.StrongPhrases {
		c.strong = append(c.strong, Normalize(p))
	}
	for _, k := range profile.Keywords {
		c.keywords = append(c.keywords, regexp.MustCompile(`\b`+regexp.QuoteMeta(Normalize(k))+`\b`))
	}
	return c
}

func (c *KeywordClassifier) Classify(_ context.Context, text string, phase entity.Phase) (Result, error) {
	if phase != entity.PhaseNormal {
		return Result{Reasoning: "not classified outside NORMAL phase"}, nil
	}

	sc := c.scoring
	norm := Normalize(text)
	if norm == "" {
		return Result{Reasoning: "empty message"}, nil
	}

	negated := containsAny(norm, negations)

	if !negated {
		for _, phrase := range c.strong {
			if !containsPhrase(norm, phrase) {
				continue
			}
			if interrogative.MatchString(norm) {
				return Result{
					IsApplicationIntent: true,
					Confidence:          sc.StrongConfidence * sc.QuestionDamping,
					Reasoning:           "explicit phrase inside a question: " + phrase,
				}, nil
			}
			return Result{
				IsApplicationIntent: true,
				Confidence:          sc.StrongConfidence,
				Reasoning:           "explicit request: " + phrase,
			}, nil
		}
	}

	matches := 0
	for _, k := range c.keywords {
		matches += len(k.FindAllStringIndex(norm, -1))
	}
	if matches == 0 {
		return Result{Reasoning: "no application keywords"}, nil
	}

	confidence := min(sc.KeywordCap, sc.KeywordWeight*float64(matches))
	reasoning := "application keywords"
	if isQuestion(norm) || containsAny(norm, infoCues) {
		confidence *= sc.QuestionDamping
		reasoning = "application keywords in an informational question"
	}
	if negated {
		confidence *= sc.NegationDamping
		reasoning = "negated application keywords"
	}

	return Result{
		IsApplicationIntent: !negated,
		Confidence:          confidence,
		Reasoning:           reasoning,
	}, nil
}

// Normalize lowercases, unifies apostrophes and collapses whitespace.
func Normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = strings.NewReplacer("’", "'", "‘", "'").Replace(text)
	return spaces.ReplaceAllString(text, " ")
}

func isQuestion(norm string) bool {
	return strings.HasSuffix(norm, "?") || interrogative.MatchString(norm)
}

func containsAny(norm string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(norm, cue) {
			return true
		}
	}
	return false
}

// containsPhrase matches phrase on word boundaries.
func containsPhrase(norm, phrase string) bool {
	for start := 0; ; {
		i := strings.Index(norm[start:], phrase)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(phrase)
		if (i == 0 || !isWordByte(norm[i-1])) && (end == len(norm) || !isWordByte(norm[end])) {
			return true
		}
		start = i + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || b == '\'' || ('a' <= b && b <= 'z') || ('0' <= b && b <= '9')
}
