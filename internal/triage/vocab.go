package triage

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed vocab.yaml
var vocabYAML []byte

// CategoryRule maps a category to its routing team and detection keywords.
type CategoryRule struct {
	Name     string   `yaml:"name"`
	Team     string   `yaml:"team"`
	Keywords []string `yaml:"keywords"`
}

// ScoringWeights are the constants of the priority score formula.
type ScoringWeights struct {
	KeywordWeight            int     `yaml:"keyword_weight"`
	NegativeBonus            int     `yaml:"negative_bonus"`
	PositivePenalty          int     `yaml:"positive_penalty"`
	LowSatisfactionThreshold float64 `yaml:"low_satisfaction_threshold"`
	LowSatisfactionBonus     int     `yaml:"low_satisfaction_bonus"`
	MaxScore                 int     `yaml:"max_score"`
}

// LadderStep assigns Priority to scores at or above MinScore.
type LadderStep struct {
	Priority Priority `yaml:"priority"`
	MinScore int      `yaml:"min_score"`
}

// Vocabulary is the static lookup data behind analysis, scoring and decisions.
type Vocabulary struct {
	NegativeWords             []string           `yaml:"negative_words"`
	PositiveWords             []string           `yaml:"positive_words"`
	UrgencyKeywords           []string           `yaml:"urgency_keywords"`
	Categories                []CategoryRule     `yaml:"categories"`
	DefaultCategory           string             `yaml:"default_category"`
	DefaultTeam               string             `yaml:"default_team"`
	FallbackConfidence        float64            `yaml:"fallback_confidence"`
	Plans                     map[string]float64 `yaml:"plans"`
	DefaultPlan               string             `yaml:"default_plan"`
	DefaultSatisfaction       float64            `yaml:"default_satisfaction"`
	Scoring                   ScoringWeights     `yaml:"scoring"`
	PriorityLadder            []LadderStep       `yaml:"priority_ladder"`
	ReviewConfidenceThreshold float64            `yaml:"review_confidence_threshold"`
}

var defaultVocabulary = sync.OnceValue(func() *Vocabulary {
	v, err := ParseVocabulary(vocabYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded vocab.yaml: %v", err))
	}
	return v
})

// DefaultVocabulary returns the embedded vocabulary. Callers must not mutate it.
func DefaultVocabulary() *Vocabulary {
	return defaultVocabulary()
}

// LoadVocabulary reads and validates a vocabulary override file.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	v, err := ParseVocabulary(data)
	if err != nil {
		return nil, fmt.Errorf("vocabulary %s: %w", path, err)
	}
	return v, nil
}

// ParseVocabulary decodes and validates vocabulary YAML.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return &v, nil
}

// Validate checks the vocabulary for internal consistency.
func (v *Vocabulary) Validate() error {
	var errs []error

	if len(v.UrgencyKeywords) == 0 {
		errs = append(errs, errors.New("urgency_keywords is empty"))
	}
	if len(v.NegativeWords) == 0 || len(v.PositiveWords) == 0 {
		errs = append(errs, errors.New("negative_words and positive_words must be non-empty"))
	}
	if len(v.Categories) == 0 {
		errs = append(errs, errors.New("categories is empty"))
	}
	for i, c := range v.Categories {
		if c.Name == "" || c.Team == "" {
			errs = append(errs, fmt.Errorf("categories[%d]: name and team are required", i))
		}
	}
	if v.DefaultCategory == "" || v.DefaultTeam == "" {
		errs = append(errs, errors.New("default_category and default_team are required"))
	}
	// a zero threshold is what a missing key decodes to
	if v.FallbackConfidence <= 0 || v.FallbackConfidence > 1 {
		errs = append(errs, fmt.Errorf("fallback_confidence %v out of range (0,1]", v.FallbackConfidence))
	}
	for plan, m := range v.Plans {
		if m <= 0 {
			errs = append(errs, fmt.Errorf("plan %q multiplier %v must be positive", plan, m))
		}
	}
	if _, ok := v.Plans[v.DefaultPlan]; !ok {
		errs = append(errs, fmt.Errorf("default_plan %q has no multiplier", v.DefaultPlan))
	}
	if v.Scoring.MaxScore <= 0 {
		errs = append(errs, errors.New("scoring.max_score must be positive"))
	}
	if len(v.PriorityLadder) == 0 {
		errs = append(errs, errors.New("priority_ladder is empty"))
	}
	seen := make(map[Priority]bool, len(v.PriorityLadder))
	for i, step := range v.PriorityLadder {
		if !knownPriorities[step.Priority] {
			errs = append(errs, fmt.Errorf("priority_ladder[%d]: unknown priority %q", i, step.Priority))
		}
		if seen[step.Priority] {
			errs = append(errs, fmt.Errorf("priority_ladder[%d]: duplicate priority %q", i, step.Priority))
		}
		seen[step.Priority] = true
	}
	for i := 1; i < len(v.PriorityLadder); i++ {
		if v.PriorityLadder[i].MinScore >= v.PriorityLadder[i-1].MinScore {
			errs = append(errs, fmt.Errorf("priority_ladder[%d]: min_score must be strictly descending", i))
		}
	}
	if v.ReviewConfidenceThreshold <= 0 || v.ReviewConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("review_confidence_threshold %v out of range (0,1]", v.ReviewConfidenceThreshold))
	}

	return errors.Join(errs...)
}

var knownPriorities = map[Priority]bool{
	PriorityLow:      true,
	PriorityMedium:   true,
	PriorityHigh:     true,
	PriorityCritical: true,
}

// PlanMultiplier returns the multiplier for plan, falling back to the default plan.
func (v *Vocabulary) PlanMultiplier(plan string) float64 {
	if m, ok := v.Plans[plan]; ok {
		return m
	}
	return v.Plans[v.DefaultPlan]
}

// TeamFor returns the routing team for category.
func (v *Vocabulary) TeamFor(category string) string {
	for _, c := range v.Categories {
		if c.Name == category {
			return c.Team
		}
	}
	return v.DefaultTeam
}
