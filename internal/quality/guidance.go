package quality

import (
	"strings"

	"github.com/anime-shed/capture-inspector-go/internal/requirements"
	"github.com/anime-shed/capture-inspector-go/pkg/models"
)

const (
	affirmativeGuidance  = "Image quality is good."
	genericRetake        = "Retake the photo following the capture instructions."
	reuploadGuidance     = "Upload the image again."
	smallerImageGuidance = "Use a smaller photo or lower the camera's resolution setting."
	unreadableGuidance   = "Use a JPEG, PNG or GIF photo."
)

var defectGuidance = map[models.DefectType]string{
	models.DefectBlur:             "Hold the camera steady and tap the subject to focus.",
	models.DefectOutOfFocus:       "Tap the subject on screen to focus before capturing.",
	models.DefectUnderexposure:    "Move to a brighter area or add light.",
	models.DefectOverexposure:     "Avoid direct light and turn off the flash.",
	models.DefectPoorLighting:     "Use even, diffuse light without strong shadows.",
	models.DefectOcclusion:        "Remove anything covering the subject.",
	models.DefectInsufficientROI:  "Move closer so the subject fills more of the frame.",
	models.DefectNoScaleReference: "Place a ruler or measuring card next to the subject.",
	models.DefectColorDistortion:  "Turn off filters and avoid colored light.",
	models.DefectMotionBlur:       "Keep still and brace your hands while capturing.",
}

// Guidance builds the retake instructions for a result. A clean pass gets a
// single affirmative line; anything else leads with the scene's framing
// instructions, then one line per distinct defect type in detection order.
func Guidance(req requirements.Requirement, result models.QualityResult) []string {
	if result.Passed && len(result.Defects) == 0 {
		return []string{affirmativeGuidance}
	}

	var lines []string
	seen := make(map[string]bool)
	add := func(line string) {
		line = strings.TrimSpace(line)
		if line == "" || seen[line] {
			return
		}
		seen[line] = true
		lines = append(lines, line)
	}

	add(req.Distance)
	add(req.Angle)
	if len(req.Tips) > 0 {
		add(req.Tips[0])
	}

	covered := make(map[models.DefectType]bool)
	for _, d := range result.Defects {
		if covered[d.Type] {
			continue
		}
		covered[d.Type] = true
		if line, ok := defectGuidance[d.Type]; ok {
			add(line)
		} else {
			add(d.Description)
		}
	}

	if !result.Passed && len(result.Defects) == 0 {
		add(genericRetake)
	}
	if len(lines) == 0 {
		add(genericRetake)
	}
	return lines
}
