package requirements

import "github.com/anime-shed/capture-inspector-go/pkg/models"

// Builtin scene ids
const (
	SceneSkin      = "skin"
	SceneWound     = "wound"
	SceneLabReport = "lab_report"
	SceneTongue    = "tongue"
	SceneStool     = "stool"
)

// Builtin returns the default capture requirements
func Builtin() []Requirement {
	return []Requirement{
		{
			SceneID:       SceneSkin,
			MinResolution: models.Resolution{Width: 800, Height: 600},
			Lighting:      LightingNatural,
			Background:    "plain, neutral",
			Distance:      "Hold the camera 15-20 cm from the skin.",
			Angle:         "Keep the camera parallel to the skin surface.",
			Avoid:         []string{"direct flash", "shadows across the area", "filters"},
			Tips: []string{
				"Use daylight from a window where possible.",
				"Include some healthy skin around the area.",
			},
		},
		{
			SceneID:                SceneWound,
			MinResolution:          models.Resolution{Width: 1024, Height: 768},
			Lighting:               LightingNatural,
			Background:             "clean drape or plain surface",
			Distance:               "Hold the camera 20-30 cm from the wound.",
			Angle:                  "Shoot straight on, perpendicular to the wound bed.",
			Avoid:                  []string{"dressings covering the wound", "flash glare on moist tissue"},
			Tips:                   []string{"Place a ruler or measuring card next to the wound."},
			RequiresScaleReference: true,
			Strict:                 true,
		},
		{
			SceneID:       SceneLabReport,
			MinResolution: models.Resolution{Width: 1200, Height: 1600},
			Lighting:      LightingArtificial,
			Background:    "flat, dark surface",
			Distance:      "Fill the frame with the full page.",
			Angle:         "Hold the camera directly above the page.",
			Avoid:         []string{"folds and creases", "glare from glossy paper", "cropped edges"},
			Tips:          []string{"Flatten the report and make sure all values are legible."},
		},
		{
			SceneID:       SceneTongue,
			MinResolution: models.Resolution{Width: 800, Height: 600},
			Lighting:      LightingNatural,
			Background:    "face lit evenly",
			Distance:      "Hold the camera 10-15 cm from the mouth.",
			Angle:         "Face the camera straight on with the tongue fully extended.",
			Avoid:         []string{"colored lighting", "eating or drinking just before"},
			Tips:          []string{"Relax the tongue and keep it flat."},
		},
		{
			SceneID:       SceneStool,
			MinResolution: models.Resolution{Width: 640, Height: 480},
			Lighting:      LightingAny,
			Background:    "bowl interior",
			Distance:      "Hold the camera about 30 cm above the bowl.",
			Angle:         "Shoot from directly above.",
			Avoid:         []string{"flash reflections on water"},
			Tips:          []string{"Take the photo before flushing."},
		},
	}
}
