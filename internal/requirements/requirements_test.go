package requirements

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/anime-shed/capture-inspector-go/internal/errors"
	"github.com/anime-shed/capture-inspector-go/pkg/models"
)

func TestBuiltinRegistry(t *testing.T) {
	r := NewBuiltinRegistry()
	require.Equal(t, []string{SceneLabReport, SceneSkin, SceneStool, SceneTongue, SceneWound}, r.SceneIDs())

	wound, err := r.Get(SceneWound)
	require.NoError(t, err)
	require.True(t, wound.Strict)
	require.True(t, wound.RequiresScaleReference)
	require.Equal(t, models.Resolution{Width: 1024, Height: 768}, wound.MinResolution)
}

func TestGet_UnknownScene(t *testing.T) {
	r := NewBuiltinRegistry()

	_, err := r.Get("ear")
	require.Error(t, err)
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
	require.Equal(t, []string{"Choose one of the available scenes."}, apperrors.GuidanceOf(err))
}

func TestGet_ReturnsCopy(t *testing.T) {
	r := NewBuiltinRegistry()

	skin, err := r.Get(SceneSkin)
	require.NoError(t, err)
	skin.Tips[0] = "changed"

	again, err := r.Get(SceneSkin)
	require.NoError(t, err)
	require.NotEqual(t, "changed", again.Tips[0])
}

func TestPut_Validation(t *testing.T) {
	r := NewRegistry()
	bad := 120

	tests := []struct {
		name string
		req  Requirement
	}{
		{"missing id", Requirement{Lighting: LightingAny}},
		{"bad lighting", Requirement{SceneID: "x", Lighting: "neon"}},
		{"negative resolution", Requirement{SceneID: "x", Lighting: LightingAny, MinResolution: models.Resolution{Width: -1}}},
		{"threshold range", Requirement{SceneID: "x", Lighting: LightingAny, Thresholds: &Thresholds{MinScore: &bad}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, r.Put(tt.req))
		})
	}
}

func TestMergeYAML(t *testing.T) {
	r := NewBuiltinRegistry()

	data := []byte(`
scenes:
  skin:
    min_resolution: {width: 1600, height: 1200}
    lighting: natural
    distance: "Closer."
    angle: "Straight on."
    strict: true
    thresholds:
      min_score: 75
  ear:
    min_resolution: {width: 640, height: 480}
`)
	require.NoError(t, r.MergeYAML(data))

	skin, err := r.Get(SceneSkin)
	require.NoError(t, err)
	require.Equal(t, models.Resolution{Width: 1600, Height: 1200}, skin.MinResolution)
	require.True(t, skin.Strict)
	require.NotNil(t, skin.Thresholds)
	require.Equal(t, 75, *skin.Thresholds.MinScore)
	require.Nil(t, skin.Thresholds.BlockFloor)

	ear, err := r.Get("ear")
	require.NoError(t, err)
	require.Equal(t, LightingAny, ear.Lighting)
}

func TestLoadOverrides(t *testing.T) {
	r := NewBuiltinRegistry()

	path := filepath.Join(t.TempDir(), "scenes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scenes:\n  stool:\n    lighting: neon\n"), 0o600))
	require.Error(t, r.LoadOverrides(path))

	require.Error(t, r.LoadOverrides(filepath.Join(t.TempDir(), "missing.yaml")))
	require.Error(t, r.MergeYAML([]byte("scenes: [")))
}
