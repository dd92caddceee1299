package scene

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/anime-shed/capture-inspector-go/internal/errors"
	"github.com/anime-shed/capture-inspector-go/pkg/models"
)

type stubHandler struct{}

func (stubHandler) Analyze(context.Context, models.Session) (models.AnalysisResult, error) {
	return models.AnalysisResult{}, nil
}

func (stubHandler) ValidateInput(models.Session) models.ValidationResult {
	return models.ValidationResult{Valid: true}
}

func (stubHandler) RequiredFields() []string { return nil }

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("skin", Configuration{Name: "Skin", WorkflowSteps: []string{"capture"}}))
	require.NoError(t, r.RegisterHandler("skin", stubHandler{}))

	cfg, err := r.Get("skin")
	require.NoError(t, err)
	require.Equal(t, "Skin", cfg.Name)

	cfg.WorkflowSteps[0] = "mutated"
	again, err := r.Get("skin")
	require.NoError(t, err)
	require.Equal(t, "capture", again.WorkflowSteps[0])

	h, err := r.Handler("skin")
	require.NoError(t, err)
	require.NotNil(t, h)
}

func TestRegistry_LastWriteWins(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("skin", Configuration{Name: "first"}))
	require.NoError(t, r.Register("skin", Configuration{Name: "second"}))

	cfg, err := r.Get("skin")
	require.NoError(t, err)
	require.Equal(t, "second", cfg.Name)
}

func TestRegistry_Unregistered(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("scene_unknown")
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
	require.NotEmpty(t, apperrors.GuidanceOf(err))

	_, err = r.Handler("scene_unknown")
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
}

func TestRegistry_RejectsNilHandler(t *testing.T) {
	r := NewRegistry()

	require.Error(t, r.RegisterHandler("skin", nil))

	var typedNil *stubPtrHandler
	require.Error(t, r.RegisterHandler("skin", typedNil))
	require.Error(t, r.RegisterHandler(" ", stubHandler{}))
}

type stubPtrHandler struct{ stubHandler }

func TestRegistry_Seal(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("skin", Configuration{}))
	r.Seal()
	require.True(t, r.Sealed())

	require.Error(t, r.Register("wound", Configuration{}))
	require.Error(t, r.RegisterHandler("skin", stubHandler{}))

	_, err := r.Get("skin")
	require.NoError(t, err)
}

func TestRegistry_List(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("wound", Configuration{}))
	require.NoError(t, r.Register("skin", Configuration{}))
	require.NoError(t, r.RegisterHandler("skin", stubHandler{}))

	list := r.List()
	require.Len(t, list, 2)
	require.Equal(t, "skin", list[0].SceneID)
	require.True(t, list[0].HasHandler)
	require.Equal(t, "wound", list[1].SceneID)
	require.False(t, list[1].HasHandler)
}
