package handlers

import (
	"fmt"

	"github.com/anime-shed/capture-inspector-go/internal/inference"
	"github.com/anime-shed/capture-inspector-go/internal/ocr"
	"github.com/anime-shed/capture-inspector-go/internal/requirements"
	"github.com/anime-shed/capture-inspector-go/internal/scene"
	"github.com/anime-shed/capture-inspector-go/internal/storage"
	"github.com/anime-shed/capture-inspector-go/internal/strategy"
)

// Workflow steps shown for every builtin scene
var defaultWorkflow = []string{"capture", "qa", "analyze", "review"}

type sceneInfo struct {
	name           string
	description    string
	requiredFields []string
}

var builtinScenes = map[string]sceneInfo{
	requirements.SceneSkin: {
		name:           "Skin",
		description:    "Photograph a patch of skin such as a mole or rash.",
		requiredFields: []string{"body_site"},
	},
	requirements.SceneWound: {
		name:           "Wound",
		description:    "Track a wound over time with a scale reference in frame.",
		requiredFields: []string{"body_site", "wound_age_days"},
	},
	requirements.SceneLabReport: {
		name:        "Lab report",
		description: "Photograph a printed lab report to read its values.",
	},
	requirements.SceneTongue: {
		name:        "Tongue",
		description: "Photograph the upper surface of the tongue.",
	},
	requirements.SceneStool: {
		name:        "Stool",
		description: "Photograph a stool sample for consistency and color.",
	},
}

// Dependencies are the collaborators builtin handlers need
type Dependencies struct {
	Model   inference.Model
	Fetcher storage.ImageFetcher
	OCR     ocr.Engine
	Options []Option
}

// RequirementSource resolves capture requirements by scene id
type RequirementSource interface {
	Get(sceneID string) (requirements.Requirement, error)
}

// RegisterBuiltin registers configuration and handler for every builtin scene
func RegisterBuiltin(reg *scene.Registry, reqs RequirementSource, deps Dependencies) error {
	for _, id := range []string{
		requirements.SceneSkin,
		requirements.SceneWound,
		requirements.SceneLabReport,
		requirements.SceneTongue,
		requirements.SceneStool,
	} {
		info := builtinScenes[id]
		capture, err := reqs.Get(id)
		if err != nil {
			return err
		}

		if err := reg.Register(id, scene.Configuration{
			Name:           info.name,
			Description:    info.description,
			WorkflowSteps:  defaultWorkflow,
			RequiredFields: info.requiredFields,
			Capture:        capture,
		}); err != nil {
			return err
		}

		h, err := newBuiltinHandler(id, info, deps)
		if err != nil {
			return err
		}
		if err := reg.RegisterHandler(id, h); err != nil {
			return err
		}
	}
	return nil
}

func newBuiltinHandler(id string, info sceneInfo, deps Dependencies) (scene.Handler, error) {
	if id == requirements.SceneLabReport {
		return NewLabReportHandler(deps.OCR, deps.Fetcher, nil, deps.Options...)
	}
	s, ok := strategy.ForScene(id)
	if !ok {
		return nil, fmt.Errorf("no interpretation strategy for scene %q", id)
	}
	return NewModelHandler(id, deps.Model, deps.Fetcher, s, info.requiredFields, deps.Options...)
}
