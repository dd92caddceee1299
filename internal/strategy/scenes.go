package strategy

import (
	"github.com/anime-shed/capture-inspector-go/internal/requirements"
	"github.com/anime-shed/capture-inspector-go/pkg/models"
)

const (
	defaultLabelThreshold = 0.6
	defaultMinConfidence  = 0.75
)

const reviewAdvice = "Have a clinician review these photos."

// NewSkinStrategy interprets skin captures
func NewSkinStrategy() *RuleStrategy {
	return NewRuleStrategy("skin_interpretation", Rules{
		ConcernLabels:  []string{"irregular_border", "color_variation", "asymmetry", "raised_surface"},
		UrgentLabels:   []string{"bleeding"},
		LabelThreshold: defaultLabelThreshold,
		MinConfidence:  defaultMinConfidence,
		FieldRules: []FieldRule{
			{Field: "changed_recently", Matches: Equals("yes"), Factor: "reported recent change", Level: models.RiskModerate},
		},
		Recommendations: map[models.RiskLevel][]string{
			models.RiskLow:      {"Photograph the area again in four weeks to track changes."},
			models.RiskModerate: {"Photograph the area again in two weeks and compare.", reviewAdvice},
			models.RiskHigh:     {"Book an appointment with a dermatologist.", reviewAdvice},
			models.RiskUrgent:   {"Seek medical care promptly."},
		},
	})
}

// NewWoundStrategy interprets wound captures. Wound results are always reviewed.
func NewWoundStrategy() *RuleStrategy {
	return NewRuleStrategy("wound_interpretation", Rules{
		ConcernLabels:  []string{"redness_spread", "swelling", "exudate", "slough"},
		UrgentLabels:   []string{"necrosis", "infection_signs"},
		LabelThreshold: defaultLabelThreshold,
		MinConfidence:  defaultMinConfidence,
		AlwaysReview:   true,
		RequireScale:   true,
		FieldRules: []FieldRule{
			{Field: "wound_age_days", Matches: AtLeast(28), Factor: "wound older than four weeks", Level: models.RiskHigh},
		},
		Recommendations: map[models.RiskLevel][]string{
			models.RiskLow:      {"Keep the wound clean and photograph it again in three days."},
			models.RiskModerate: {"Photograph the wound daily and watch for spreading redness.", reviewAdvice},
			models.RiskHigh:     {"Contact your care team about this wound.", reviewAdvice},
			models.RiskUrgent:   {"Seek medical care today."},
		},
	})
}

// NewTongueStrategy interprets tongue captures
func NewTongueStrategy() *RuleStrategy {
	return NewRuleStrategy("tongue_interpretation", Rules{
		ConcernLabels:  []string{"thick_coating", "discoloration", "fissures", "swelling"},
		UrgentLabels:   []string{"ulceration"},
		LabelThreshold: defaultLabelThreshold,
		MinConfidence:  defaultMinConfidence,
		Recommendations: map[models.RiskLevel][]string{
			models.RiskLow:      {"No follow-up needed unless symptoms appear."},
			models.RiskModerate: {"Photograph again in one week in the same lighting."},
			models.RiskHigh:     {"Mention these findings to your doctor or dentist.", reviewAdvice},
			models.RiskUrgent:   {"See a doctor if the sore lasts more than two weeks."},
		},
	})
}

// NewStoolStrategy interprets stool captures
func NewStoolStrategy() *RuleStrategy {
	return NewRuleStrategy("stool_interpretation", Rules{
		ConcernLabels:  []string{"unusual_color", "loose_consistency", "hard_consistency", "mucus"},
		UrgentLabels:   []string{"blood_visible", "black_tarry"},
		LabelThreshold: defaultLabelThreshold,
		MinConfidence:  defaultMinConfidence,
		Recommendations: map[models.RiskLevel][]string{
			models.RiskLow:      {"No action needed."},
			models.RiskModerate: {"Track changes over the next few days."},
			models.RiskHigh:     {"Talk to your doctor if this continues.", reviewAdvice},
			models.RiskUrgent:   {"Seek medical care promptly."},
		},
	})
}

// ForScene returns the builtin strategy for a scene id
func ForScene(sceneID string) (*RuleStrategy, bool) {
	switch sceneID {
	case requirements.SceneSkin:
		return NewSkinStrategy(), true
	case requirements.SceneWound:
		return NewWoundStrategy(), true
	case requirements.SceneTongue:
		return NewTongueStrategy(), true
	case requirements.SceneStool:
		return NewStoolStrategy(), true
	}
	return nil, false
}
