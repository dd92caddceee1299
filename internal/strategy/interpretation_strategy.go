package strategy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/anime-shed/capture-inspector-go/internal/inference"
	"github.com/anime-shed/capture-inspector-go/pkg/models"
)

// Interpretation is what a scene makes of a model output
type Interpretation struct {
	Risk            models.RiskAssessment
	Recommendations []string
	ManualReview    bool
}

// InterpretationStrategy defines the interface for per-scene interpretation
type InterpretationStrategy interface {
	Interpret(out inference.Output, session models.Session) Interpretation
	GetStrategyName() string
}

// FieldRule raises the risk when a session field matches
type FieldRule struct {
	Field   string
	Matches func(value string) bool
	Factor  string
	Level   models.RiskLevel
}

// Rules configures a RuleStrategy
type Rules struct {
	// ConcernLabels raise the risk one level each when scored at or above LabelThreshold
	ConcernLabels []string
	// UrgentLabels at or above LabelThreshold make the risk urgent
	UrgentLabels   []string
	LabelThreshold float64
	// Results below MinConfidence go to manual review
	MinConfidence float64
	AlwaysReview  bool
	// RequireScale flags images that were analyzed without a scale reference
	RequireScale    bool
	FieldRules      []FieldRule
	Recommendations map[models.RiskLevel][]string
}

// Findings returns every label the rules look at
func (r Rules) Findings() []string {
	out := make([]string, 0, len(r.ConcernLabels)+len(r.UrgentLabels))
	out = append(out, r.ConcernLabels...)
	return append(out, r.UrgentLabels...)
}

// RuleStrategy interprets model output with a fixed rule table
type RuleStrategy struct {
	name  string
	rules Rules
}

// NewRuleStrategy creates a rule-driven interpretation strategy
func NewRuleStrategy(name string, rules Rules) *RuleStrategy {
	return &RuleStrategy{name: name, rules: rules}
}

// GetStrategyName returns the strategy name
func (s *RuleStrategy) GetStrategyName() string {
	return s.name
}

// Rules returns the rule table
func (s *RuleStrategy) Rules() Rules {
	return s.rules
}

// Interpret grades the risk of one model output
func (s *RuleStrategy) Interpret(out inference.Output, session models.Session) Interpretation {
	r := s.rules
	level := models.RiskLow
	var factors, flags []string

	concerns := 0
	urgent := false
	for _, l := range out.Labels {
		if l.Score < r.LabelThreshold {
			continue
		}
		switch {
		case contains(r.UrgentLabels, l.Name):
			urgent = true
			factors = append(factors, fmt.Sprintf("%s (%.2f)", l.Name, l.Score))
		case contains(r.ConcernLabels, l.Name):
			concerns++
			factors = append(factors, fmt.Sprintf("%s (%.2f)", l.Name, l.Score))
		}
	}
	switch {
	case concerns >= 2:
		level = models.RiskHigh
	case concerns == 1:
		level = models.RiskModerate
	}

	for _, rule := range r.FieldRules {
		value := session.Field(rule.Field)
		if value == "" || !rule.Matches(value) {
			continue
		}
		factors = append(factors, rule.Factor)
		level = Raise(level, rule.Level)
	}

	if urgent {
		level = models.RiskUrgent
	}

	if out.Confidence < r.MinConfidence {
		flags = append(flags, "low_confidence")
	}
	if r.RequireScale {
		images, ok := out.Measurements["images"]
		if scaled, has := out.Measurements["scale_referenced"]; ok && has && scaled < images {
			flags = append(flags, "missing_scale_reference")
		}
	}

	recs := append([]string(nil), r.Recommendations[level]...)

	return Interpretation{
		Risk: models.RiskAssessment{
			Level:   level,
			Factors: factors,
			Flags:   flags,
		},
		Recommendations: recs,
		ManualReview:    r.AlwaysReview || Rank(level) >= Rank(models.RiskHigh) || len(flags) > 0,
	}
}

// Rank orders risk levels from low (0) to urgent (3)
func Rank(level models.RiskLevel) int {
	switch level {
	case models.RiskModerate:
		return 1
	case models.RiskHigh:
		return 2
	case models.RiskUrgent:
		return 3
	default:
		return 0
	}
}

// Raise returns the higher of two risk levels
func Raise(a, b models.RiskLevel) models.RiskLevel {
	if Rank(b) > Rank(a) {
		return b
	}
	return a
}

// Equals matches a field value case-insensitively
func Equals(want string) func(string) bool {
	return func(value string) bool {
		return strings.EqualFold(strings.TrimSpace(value), want)
	}
}

// AtLeast matches numeric field values >= min
func AtLeast(min float64) func(string) bool {
	return func(value string) bool {
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		return err == nil && v >= min
	}
}

func contains(list []string, name string) bool {
	for _, v := range list {
		if v == name {
			return true
		}
	}
	return false
}
