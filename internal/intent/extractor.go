package intent

import (
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/futig/admissions-assistant/internal/config"
	"github.com/futig/admissions-assistant/internal/entity"
)

// shortReply is the longest reply, in words, taken whole as the requested field.
const shortReply = 6

var (
	emailPattern   = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern   = regexp.MustCompile(`\+?\d[\d\s\-().]{5,}\d`)
	namePattern    = regexp.MustCompile(`(?i:my name is|my name's|i am|i'm|name\s*:|call me)\s+(\p{Lu}[\p{L}'\-]*(?:\s+\p{Lu}[\p{L}'\-]*){0,3})`)
	programPattern = regexp.MustCompile(`(?i)(?:program(?:me)?\s*:|major\s*:)\s*([\p{L}][\p{L} &\-]{1,60})`)
	phoneCues      = []string{"phone", "number", "mobile", "cell", "call", "tel", "whatsapp"}
)

// Extractor pulls applicant fields from free text.
type Extractor struct {
	programs []string
	cancel   []string
}

func NewExtractor(profile config.IntentProfile) *Extractor {
	programs := slices.Clone(profile.Programs)
	// longest first so "Business Administration" wins over "Business"
	slices.SortStableFunc(programs, func(a, b string) int { return len(b) - len(a) })

	cancel := make([]string, 0, len(profile.CancelPhrases))
	for _, c := range profile.CancelPhrases {
		cancel = append(cancel, Normalize(c))
	}
	return &Extractor{programs: programs, cancel: cancel}
}

// IsCancel reports whether a reply during collection asks to abandon the application.
func (e *Extractor) IsCancel(text string) bool {
	norm := strings.TrimRight(Normalize(text), ".!")
	if norm == "" {
		return false
	}
	short := len(strings.Fields(norm)) <= shortReply
	for _, phrase := range e.cancel {
		if norm == phrase {
			return true
		}
		if short && containsPhrase(norm, phrase) {
			return true
		}
	}
	return false
}

// Extract returns every field it can find. expecting names the field the
// assistant asked for last; a short reply matching no field at all is taken
// as that field's value when the field has no format of its own.
func (e *Extractor) Extract(text string, expecting entity.ApplicationField) map[entity.ApplicationField]string {
	fields := make(map[entity.ApplicationField]string)
	text = strings.TrimSpace(text)
	if text == "" {
		return fields
	}

	if email := emailPattern.FindString(text); email != "" {
		fields[entity.FieldEmail] = strings.ToLower(email)
	}

	withoutEmail := emailPattern.ReplaceAllString(text, " ")
	if expecting == entity.FieldPhone || containsAny(Normalize(text), phoneCues) || strings.HasPrefix(text, "+") {
		for _, candidate := range phonePattern.FindAllString(withoutEmail, -1) {
			if digits := countDigits(candidate); digits >= 7 && digits <= 15 {
				fields[entity.FieldPhone] = strings.TrimSpace(candidate)
				break
			}
		}
	}

	if m := namePattern.FindStringSubmatch(text); m != nil {
		fields[entity.FieldName] = strings.TrimSpace(m[1])
	}

	if program := e.matchProgram(text); program != "" {
		fields[entity.FieldProgram] = program
	}

	// a reply that already matched another field is not also the requested one
	if len(fields) == 0 && isBareReply(text) {
		switch expecting {
		case entity.FieldName:
			fields[entity.FieldName] = trimReply(text)
		case entity.FieldProgram:
			fields[entity.FieldProgram] = trimReply(text)
		}
	}

	return fields
}

func (e *Extractor) matchProgram(text string) string {
	norm := Normalize(text)
	for _, p := range e.programs {
		if containsPhrase(norm, Normalize(p)) {
			return p
		}
	}
	if m := programPattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func isBareReply(text string) bool {
	return len(strings.Fields(text)) <= shortReply &&
		!strings.ContainsAny(text, "?@") &&
		countDigits(text) == 0
}

func trimReply(text string) string {
	return strings.TrimFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
