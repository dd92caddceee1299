package inference

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anime-shed/capture-inspector-go/pkg/models"
)

func TestSignalModel_Infer(t *testing.T) {
	m := NewSignalModel()
	require.False(t, m.RequiresImageData())

	in := Input{
		SceneID: "skin",
		Images: []ImageInput{
			{Quality: models.QualityResult{QualityScore: 80, Signals: models.QualitySignals{Sharpness: 0.8, ROICoverage: 0.6, Stability: 1}}},
			{Quality: models.QualityResult{QualityScore: 90, Signals: models.QualitySignals{Sharpness: 1.0, ROICoverage: 0.8, Stability: 1}}},
		},
	}

	out, err := m.Infer(context.Background(), in)
	require.NoError(t, err)
	require.InDelta(t, 0.9, out.Features["sharpness"], 1e-9)
	require.InDelta(t, 85, out.Measurements["mean_quality_score"], 1e-9)
	require.InDelta(t, 0.85, out.Confidence, 1e-9)
	require.Equal(t, 2.0, out.Measurements["images"])

	again, err := m.Infer(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, out, again)

	top, ok := out.TopLabel()
	require.True(t, ok)
	require.Equal(t, "capture_consistent", top.Name)
}

func TestSignalModel_Errors(t *testing.T) {
	m := NewSignalModel()

	_, err := m.Infer(context.Background(), Input{})
	require.ErrorIs(t, err, ErrNoImages)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Infer(ctx, Input{Images: []ImageInput{{}}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestParseOutput(t *testing.T) {
	out, err := parseOutput("```json\n{\"labels\":[{\"name\":\"redness\",\"score\":1.4}],\"observations\":[\"Red patch.\"],\"confidence\":0.7}\n```")
	require.NoError(t, err)
	require.Len(t, out.Labels, 1)
	require.Equal(t, 1.0, out.Labels[0].Score)
	require.Equal(t, 0.7, out.Confidence)

	_, err = parseOutput("I cannot help with that.")
	require.Error(t, err)
}

func TestNewGeminiModel(t *testing.T) {
	_, err := NewGeminiModel("", "")
	require.Error(t, err)

	m, err := NewGeminiModel("key", "")
	require.NoError(t, err)
	require.True(t, m.RequiresImageData())
	require.Equal(t, "gemini:gemini-1.5-flash", m.Name())

	_, err = m.Infer(context.Background(), Input{})
	require.ErrorIs(t, err, ErrNoImages)
}

func TestImageFormat(t *testing.T) {
	require.Equal(t, "png", imageFormat([]byte("\x89PNG\r\n\x1a\n0000")))
	require.Equal(t, "gif", imageFormat([]byte("GIF89a000")))
	require.Equal(t, "jpeg", imageFormat([]byte{0xFF, 0xD8, 0xFF, 0xE0}))
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt(Input{
		SceneID:  "lab_report",
		Fields:   map[string]string{"body_site": "forearm"},
		Findings: []string{"redness", "swelling"},
	})

	require.Contains(t, prompt, "lab report photo assessment")
	require.Contains(t, prompt, "- body_site: forearm")
	require.Contains(t, prompt, "redness, swelling")
	require.Contains(t, prompt, `"confidence"`)
}
