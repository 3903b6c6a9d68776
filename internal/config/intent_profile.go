package config

import (
	"fmt"
	"os"

	"github.com/futig/admissions-assistant/internal/entity"
	"gopkg.in/yaml.v3"
)

// IntentProfile is the vocabulary used by intent detection and field collection.
type IntentProfile struct {
	StrongPhrases  []string                           `yaml:"strong_phrases"`
	Keywords       []string                           `yaml:"keywords"`
	CancelPhrases  []string                           `yaml:"cancel_phrases"`
	Programs       []string                           `yaml:"programs"`
	RequiredFields []entity.ApplicationField          `yaml:"required_fields"`
	FieldPrompts   map[entity.ApplicationField]string `yaml:"field_prompts"`
	Scoring        IntentScoring                      `yaml:"scoring"`
}

// IntentScoring weights the keyword classifier. Every value is in (0, 1].
type IntentScoring struct {
	StrongConfidence float64 `yaml:"strong_confidence"`
	KeywordWeight    float64 `yaml:"keyword_weight"`
	KeywordCap       float64 `yaml:"keyword_cap"`
	QuestionDamping  float64 `yaml:"question_damping"`
	NegationDamping  float64 `yaml:"negation_damping"`
}

func DefaultIntentScoring() IntentScoring {
	return IntentScoring{
		StrongConfidence: 0.9,
		KeywordWeight:    0.3,
		KeywordCap:       0.8,
		QuestionDamping:  0.5,
		NegationDamping:  0.2,
	}
}

// merge overrides the receiver with every value set in loaded.
func (s *IntentScoring) merge(loaded IntentScoring) error {
	for _, v := range []struct {
		name string
		src  float64
		dst  *float64
	}{
		{"strong_confidence", loaded.StrongConfidence, &s.StrongConfidence},
		{"keyword_weight", loaded.KeywordWeight, &s.KeywordWeight},
		{"keyword_cap", loaded.KeywordCap, &s.KeywordCap},
		{"question_damping", loaded.QuestionDamping, &s.QuestionDamping},
		{"negation_damping", loaded.NegationDamping, &s.NegationDamping},
	} {
		if v.src == 0 {
			continue
		}
		if v.src < 0 || v.src > 1 {
			return fmt.Errorf("%w: scoring.%s must be in (0, 1], got %g", entity.ErrConfiguration, v.name, v.src)
		}
		*v.dst = v.src
	}
	return nil
}

func DefaultIntentProfile() *IntentProfile {
	return &IntentProfile{
		StrongPhrases: []string{
			"i want to apply", "i would like to apply", "i'd like to apply", "i wish to apply",
			"i want to enroll", "i would like to enroll", "i'd like to enroll",
			"i want to register", "i'd like to register",
			"start my application", "start an application", "begin my application",
			"submit an application", "submit my application", "sign me up", "apply now",
			"i am ready to apply", "i'm ready to apply", "ready to enroll",
		},
		Keywords: []string{
			"apply", "application", "enroll", "enrollment", "admission",
			"register", "registration", "join", "enter", "study at",
		},
		CancelPhrases: []string{
			"cancel", "stop", "never mind", "nevermind", "quit", "not now", "forget it",
		},
		Programs: []string{
			"Computer Science", "Business", "Business Administration", "Engineering",
			"Mathematics", "Medicine", "Law", "Psychology",
		},
		RequiredFields: []entity.ApplicationField{
			entity.FieldName, entity.FieldEmail, entity.FieldPhone, entity.FieldProgram,
		},
		FieldPrompts: map[entity.ApplicationField]string{
			entity.FieldName:    "Could you tell me your full name?",
			entity.FieldEmail:   "What email address should the admissions office use to reach you?",
			entity.FieldPhone:   "What phone number can we contact you on?",
			entity.FieldProgram: "Which program would you like to apply to?",
		},
		Scoring: DefaultIntentScoring(),
	}
}

// LoadIntentProfile reads a YAML profile; missing keys fall back to the defaults.
func LoadIntentProfile(path string) (*IntentProfile, error) {
	profile := DefaultIntentProfile()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		fmt.Printf("Warning: intent profile not found at %s, using default profile\n", path)
		return profile, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read intent profile: %w", err)
	}

	var loaded IntentProfile
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse intent profile YAML: %w", err)
	}

	if len(loaded.StrongPhrases) > 0 {
		profile.StrongPhrases = loaded.StrongPhrases
	}
	if len(loaded.Keywords) > 0 {
		profile.Keywords = loaded.Keywords
	}
	if len(loaded.CancelPhrases) > 0 {
		profile.CancelPhrases = loaded.CancelPhrases
	}
	if len(loaded.Programs) > 0 {
		profile.Programs = loaded.Programs
	}
	if len(loaded.RequiredFields) > 0 {
		for _, f := range loaded.RequiredFields {
			if err := f.Validate(); err != nil {
				return nil, fmt.Errorf("%w: %w", entity.ErrConfiguration, err)
			}
		}
		profile.RequiredFields = loaded.RequiredFields
	}
	for field, prompt := range loaded.FieldPrompts {
		profile.FieldPrompts[field] = prompt
	}
	if err := profile.Scoring.merge(loaded.Scoring); err != nil {
		return nil, err
	}

	return profile, nil
}
