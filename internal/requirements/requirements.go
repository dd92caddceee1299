// Package requirements holds the per-scene capture requirements used by the
// quality gate and by capture guidance.
package requirements

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	apperrors "github.com/anime-shed/capture-inspector-go/internal/errors"
	"github.com/anime-shed/capture-inspector-go/internal/logger"
	"github.com/anime-shed/capture-inspector-go/pkg/models"
)

// Lighting describes the light source a scene expects
type Lighting string

const (
	LightingNatural    Lighting = "natural"
	LightingArtificial Lighting = "artificial"
	LightingFlash      Lighting = "flash"
	LightingAny        Lighting = "any"
)

// Thresholds overrides the global gate thresholds for one scene.
// A nil field keeps the global value.
type Thresholds struct {
	MinScore    *int `yaml:"min_score,omitempty" json:"min_score,omitempty"`
	BlockFloor  *int `yaml:"block_floor,omitempty" json:"block_floor,omitempty"`
	StrictFloor *int `yaml:"strict_floor,omitempty" json:"strict_floor,omitempty"`
}

// Requirement is the capture contract for a scene
type Requirement struct {
	SceneID                string            `yaml:"-" json:"scene_id"`
	MinResolution          models.Resolution `yaml:"min_resolution" json:"min_resolution"`
	Lighting               Lighting          `yaml:"lighting" json:"lighting"`
	Background             string            `yaml:"background" json:"background"`
	Distance               string            `yaml:"distance" json:"distance"`
	Angle                  string            `yaml:"angle" json:"angle"`
	Avoid                  []string          `yaml:"avoid" json:"avoid,omitempty"`
	Tips                   []string          `yaml:"tips" json:"tips,omitempty"`
	RequiresScaleReference bool              `yaml:"requires_scale_reference" json:"requires_scale_reference"`
	Strict                 bool              `yaml:"strict" json:"strict"`
	Thresholds             *Thresholds       `yaml:"thresholds,omitempty" json:"thresholds,omitempty"`
}

// Validate checks the requirement is usable by the gate
func (r Requirement) Validate() error {
	if strings.TrimSpace(r.SceneID) == "" {
		return fmt.Errorf("scene id is required")
	}
	if r.MinResolution.Width < 0 || r.MinResolution.Height < 0 {
		return fmt.Errorf("scene %s: min resolution must not be negative", r.SceneID)
	}
	switch r.Lighting {
	case LightingNatural, LightingArtificial, LightingFlash, LightingAny:
	default:
		return fmt.Errorf("scene %s: unknown lighting %q", r.SceneID, r.Lighting)
	}
	if r.Thresholds != nil {
		for name, v := range map[string]*int{
			"min_score":    r.Thresholds.MinScore,
			"block_floor":  r.Thresholds.BlockFloor,
			"strict_floor": r.Thresholds.StrictFloor,
		} {
			if v != nil && (*v < 0 || *v > 100) {
				return fmt.Errorf("scene %s: %s must be within 0..100 (got %d)", r.SceneID, name, *v)
			}
		}
	}
	return nil
}

func (r Requirement) clone() Requirement {
	out := r
	out.Avoid = append([]string(nil), r.Avoid...)
	out.Tips = append([]string(nil), r.Tips...)
	if r.Thresholds != nil {
		th := Thresholds{
			MinScore:    cloneInt(r.Thresholds.MinScore),
			BlockFloor:  cloneInt(r.Thresholds.BlockFloor),
			StrictFloor: cloneInt(r.Thresholds.StrictFloor),
		}
		out.Thresholds = &th
	}
	return out
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Registry maps scene ids to capture requirements
type Registry struct {
	mu    sync.RWMutex
	items map[string]Requirement
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Requirement)}
}

// NewBuiltinRegistry creates a registry preloaded with the builtin scenes
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	for _, req := range Builtin() {
		// builtin table is known valid
		_ = r.Put(req)
	}
	return r
}

// Put adds or replaces the requirement for a scene
func (r *Registry) Put(req Requirement) error {
	if err := req.Validate(); err != nil {
		return apperrors.NewConfigurationError("invalid capture requirement", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[req.SceneID]; exists {
		logger.Component("requirements").WithField("scene_id", req.SceneID).Debug("Replacing capture requirement")
	}
	r.items[req.SceneID] = req.clone()
	return nil
}

// Get returns the requirement for a scene. Unknown scenes are a configuration
// error; no default requirement is assumed.
func (r *Registry) Get(sceneID string) (Requirement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.items[sceneID]
	if !ok {
		return Requirement{}, apperrors.NewConfigurationError(
			fmt.Sprintf("no capture requirements registered for scene %q", sceneID), nil).
			WithGuidance("Choose one of the available scenes.")
	}
	return req.clone(), nil
}

// SceneIDs returns the registered scene ids in order
func (r *Registry) SceneIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.items))
	for id := range r.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// overrideFile is the YAML layout of SCENES_FILE
type overrideFile struct {
	Scenes map[string]Requirement `yaml:"scenes"`
}

// LoadOverrides merges a YAML overrides file into the registry. Scenes in the
// file replace the registered requirement wholesale; unknown scenes are added.
func (r *Registry) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.NewConfigurationError("failed to read scenes file", err)
	}
	return r.MergeYAML(data)
}

// MergeYAML merges overrides from raw YAML
func (r *Registry) MergeYAML(data []byte) error {
	var file overrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return apperrors.NewConfigurationError("failed to parse scenes file", err)
	}

	ids := make([]string, 0, len(file.Scenes))
	for id := range file.Scenes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		req := file.Scenes[id]
		req.SceneID = id
		if req.Lighting == "" {
			req.Lighting = LightingAny
		}
		if err := r.Put(req); err != nil {
			return err
		}
	}
	return nil
}
