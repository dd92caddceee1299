package quality

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anime-shed/capture-inspector-go/internal/analyzer"
	"github.com/anime-shed/capture-inspector-go/internal/config"
	apperrors "github.com/anime-shed/capture-inspector-go/internal/errors"
	"github.com/anime-shed/capture-inspector-go/internal/requirements"
	"github.com/anime-shed/capture-inspector-go/internal/storage"
	"github.com/anime-shed/capture-inspector-go/pkg/models"
)

type fakeFetcher struct {
	err error
}

func (f *fakeFetcher) Fetch(_ context.Context, ref string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte(ref), nil
}

type fakeExtractor struct {
	extraction analyzer.Extraction
	err        error
}

func (f *fakeExtractor) Extract(context.Context, []byte) (analyzer.Extraction, error) {
	return f.extraction, f.err
}

func goodSignals() models.QualitySignals {
	return models.QualitySignals{
		Sharpness: 0.9, Brightness: 0.55, ColorAccuracy: 0.9, ROICoverage: 0.8,
		Composition: 0.9, Noise: 0.1, Stability: 0.9,
	}
}

func newTestGate(extraction analyzer.Extraction) *Gate {
	return NewGate(&fakeFetcher{}, &fakeExtractor{extraction: extraction},
		requirements.NewBuiltinRegistry(), config.DefaultQualityConfig())
}

func boolPtr(v bool) *bool { return &v }

func TestAssess_WellLitSkinPasses(t *testing.T) {
	gate := newTestGate(analyzer.Extraction{
		Signals:    goodSignals(),
		Resolution: models.Resolution{Width: 1600, Height: 1200},
	})

	result, err := gate.Assess(context.Background(), "https://example.com/skin.jpg", requirements.SceneSkin, nil)
	require.NoError(t, err)
	require.GreaterOrEqual(t, result.QualityScore, 80)
	require.Empty(t, result.Defects)
	require.True(t, result.Passed)
	require.False(t, result.Blocking)
	require.Equal(t, []string{affirmativeGuidance}, result.RetakeGuidance)
	require.Equal(t, 60, result.MinScore)
}

func TestAssess_LowResolutionWoundBlocks(t *testing.T) {
	gate := newTestGate(analyzer.Extraction{
		Signals:    goodSignals(),
		Resolution: models.Resolution{Width: 640, Height: 480},
	})

	result, err := gate.Assess(context.Background(), "https://example.com/wound.jpg", requirements.SceneWound, nil)
	require.NoError(t, err)
	require.True(t, result.Blocking)
	require.False(t, result.Passed)
	require.True(t, result.HasDefect(models.DefectBlur), "resolution penalty should push sharpness into blur")
	require.True(t, result.HasDefect(models.DefectNoScaleReference))
	require.NotEmpty(t, result.RetakeGuidance)
	require.Equal(t, models.Resolution{Width: 640, Height: 480}, result.Resolution)
}

func TestAssess_ScaleReferenceSources(t *testing.T) {
	tests := []struct {
		name      string
		detected  bool
		meta      *models.CaptureMetadata
		wantScale bool
	}{
		{"detected marker", true, nil, true},
		{"nothing", false, nil, false},
		{"metadata wins over detector", false, &models.CaptureMetadata{HasScaleReference: boolPtr(true)}, true},
		{"metadata denies", true, &models.CaptureMetadata{HasScaleReference: boolPtr(false)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := newTestGate(analyzer.Extraction{
				Signals:        goodSignals(),
				Resolution:     models.Resolution{Width: 2048, Height: 1536},
				ScaleReference: tt.detected,
			})
			result, err := gate.Assess(context.Background(), "https://example.com/w.jpg", requirements.SceneWound, tt.meta)
			require.NoError(t, err)
			require.Equal(t, !tt.wantScale, result.HasDefect(models.DefectNoScaleReference))
		})
	}
}

func TestAssess_MetadataResolutionFallback(t *testing.T) {
	gate := newTestGate(analyzer.Extraction{Signals: goodSignals()})

	meta := &models.CaptureMetadata{Resolution: &models.Resolution{Width: 320, Height: 240}}
	result, err := gate.Assess(context.Background(), "https://example.com/s.jpg", requirements.SceneSkin, meta)
	require.NoError(t, err)
	require.Equal(t, *meta.Resolution, result.Resolution)
	require.True(t, result.HasDefect(models.DefectBlur))
}

func TestAssess_Errors(t *testing.T) {
	t.Run("unknown scene", func(t *testing.T) {
		gate := newTestGate(analyzer.Extraction{Signals: goodSignals()})
		_, err := gate.Assess(context.Background(), "https://example.com/a.jpg", "scene_unknown", nil)
		require.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
	})

	t.Run("bad reference", func(t *testing.T) {
		gate := newTestGate(analyzer.Extraction{Signals: goodSignals()})
		_, err := gate.Assess(context.Background(), "ftp://example.com/a.jpg", requirements.SceneSkin, nil)
		require.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
		require.NotEmpty(t, apperrors.GuidanceOf(err))
	})

	fetchCases := []struct {
		name string
		err  error
		want apperrors.ErrorType
	}{
		{"not found", fmt.Errorf("x: %w", storage.ErrImageNotFound), apperrors.ErrorTypeNotFound},
		{"too large", storage.ErrImageTooLarge, apperrors.ErrorTypeValidation},
		{"timeout", context.DeadlineExceeded, apperrors.ErrorTypeTimeout},
		{"other", errors.New("connection reset"), apperrors.ErrorTypeProcessing},
		{"unreachable", fmt.Errorf("failed to fetch image after 3 attempts: %w",
			&url.Error{Op: "Get", URL: "https://example.com/a.jpg", Err: errors.New("connection refused")}), apperrors.ErrorTypeNetwork},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("no route to host")}, apperrors.ErrorTypeNetwork},
		{"client timeout", &url.Error{Op: "Get", URL: "https://example.com/a.jpg", Err: timeoutError{}}, apperrors.ErrorTypeTimeout},
		{"bad url", &url.Error{Op: "parse", URL: "::", Err: errors.New("missing protocol scheme")}, apperrors.ErrorTypeProcessing},
		{"already typed", apperrors.NewConfigurationError("azure storage is not configured", nil), apperrors.ErrorTypeConfiguration},
	}
	for _, tc := range fetchCases {
		t.Run("fetch "+tc.name, func(t *testing.T) {
			gate := NewGate(&fakeFetcher{err: tc.err}, &fakeExtractor{},
				requirements.NewBuiltinRegistry(), config.DefaultQualityConfig())
			_, err := gate.Assess(context.Background(), "https://example.com/a.jpg", requirements.SceneSkin, nil)
			require.True(t, apperrors.IsType(err, tc.want), "got %v", err)
		})
	}

	t.Run("network errors are retryable", func(t *testing.T) {
		gate := NewGate(&fakeFetcher{err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}}, &fakeExtractor{},
			requirements.NewBuiltinRegistry(), config.DefaultQualityConfig())
		_, err := gate.Assess(context.Background(), "https://example.com/a.jpg", requirements.SceneSkin, nil)
		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		require.True(t, appErr.Retryable)
		require.NotEmpty(t, appErr.Guidance)
	})

	t.Run("too many pixels", func(t *testing.T) {
		gate := NewGate(&fakeFetcher{}, &fakeExtractor{err: fmt.Errorf("12000x12000: %w", analyzer.ErrTooManyPixels)},
			requirements.NewBuiltinRegistry(), config.DefaultQualityConfig())
		_, err := gate.Assess(context.Background(), "https://example.com/a.jpg", requirements.SceneSkin, nil)
		require.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation), "got %v", err)
		require.Contains(t, apperrors.GuidanceOf(err), smallerImageGuidance)
	})

	t.Run("decode failure", func(t *testing.T) {
		gate := NewGate(&fakeFetcher{}, &fakeExtractor{err: errors.New("bad png")},
			requirements.NewBuiltinRegistry(), config.DefaultQualityConfig())
		_, err := gate.Assess(context.Background(), "https://example.com/a.jpg", requirements.SceneSkin, nil)
		require.True(t, apperrors.IsType(err, apperrors.ErrorTypeProcessing))
		require.NotEmpty(t, apperrors.GuidanceOf(err))
	})
}

func TestThresholdsFor(t *testing.T) {
	gate := newTestGate(analyzer.Extraction{})
	seventyFive := 75

	require.Equal(t, Thresholds{MinScore: 60, BlockFloor: 45, StrictFloor: 80},
		gate.ThresholdsFor(requirements.Requirement{}))
	require.Equal(t, Thresholds{MinScore: 70, BlockFloor: 45, StrictFloor: 80},
		gate.ThresholdsFor(requirements.Requirement{Strict: true}))
	require.Equal(t, Thresholds{MinScore: 75, BlockFloor: 45, StrictFloor: 80},
		gate.ThresholdsFor(requirements.Requirement{Strict: true, Thresholds: &requirements.Thresholds{MinScore: &seventyFive}}))
}

func TestEvaluate_Decisions(t *testing.T) {
	gate := newTestGate(analyzer.Extraction{})
	skin := requirements.Requirement{SceneID: "skin", Lighting: requirements.LightingAny, Distance: "Close.", Angle: "Straight."}

	t.Run("two high defects block despite passable score", func(t *testing.T) {
		s := goodSignals()
		s.Sharpness = 0.55
		s.ROICoverage = 0.35
		result := gate.Evaluate(skin, analyzer.Extraction{Signals: s}, nil)
		require.GreaterOrEqual(t, result.QualityScore, 45)
		require.Equal(t, 2, result.HighSeverityCount())
		require.True(t, result.Blocking)
		require.False(t, result.Passed)
	})

	t.Run("below minimum without blocking", func(t *testing.T) {
		s := goodSignals()
		s.Sharpness = 0.2
		s.ColorAccuracy = 0.45
		s.Composition = 0.1
		result := gate.Evaluate(skin, analyzer.Extraction{Signals: s}, nil)
		require.Less(t, result.QualityScore, 60)
		require.GreaterOrEqual(t, result.QualityScore, 45)
		require.False(t, result.Blocking)
		require.False(t, result.Passed)
	})

	t.Run("score floor blocks", func(t *testing.T) {
		result := gate.Evaluate(skin, analyzer.Extraction{Signals: models.QualitySignals{Brightness: 0.55, Noise: 1}}, nil)
		require.Less(t, result.QualityScore, 45)
		require.True(t, result.Blocking)
	})

	t.Run("pass with minor defect keeps instructions", func(t *testing.T) {
		s := goodSignals()
		s.Brightness = 0.38
		s.ColorAccuracy = 0.45
		result := gate.Evaluate(skin, analyzer.Extraction{Signals: s}, nil)
		require.True(t, result.Passed)
		require.NotEmpty(t, result.Defects)
		require.Equal(t, "Close.", result.RetakeGuidance[0])
	})
}

// signalGrid enumerates coarse signal vectors for property checks
func signalGrid() []models.QualitySignals {
	levels := []float64{0, 0.35, 0.65, 1}
	var out []models.QualitySignals
	for _, sh := range levels {
		for _, br := range levels {
			for _, roi := range levels {
				for _, noise := range levels {
					out = append(out, models.QualitySignals{
						Sharpness: sh, Brightness: br, ColorAccuracy: 0.7, ROICoverage: roi,
						Composition: 0.7, Noise: noise, Stability: 0.7,
					})
				}
			}
		}
	}
	return out
}

func TestEvaluate_Properties(t *testing.T) {
	gate := newTestGate(analyzer.Extraction{})
	reg := requirements.NewBuiltinRegistry()

	for _, sceneID := range reg.SceneIDs() {
		req, err := reg.Get(sceneID)
		require.NoError(t, err)
		for _, s := range signalGrid() {
			for _, res := range []models.Resolution{{}, {Width: 640, Height: 480}, {Width: 4000, Height: 3000}} {
				result := gate.Evaluate(req, analyzer.Extraction{Signals: s, Resolution: res}, nil)

				// blocking implies fail
				if result.Blocking {
					require.False(t, result.Passed)
				}
				// passing requires the threshold
				if result.Passed {
					require.GreaterOrEqual(t, result.QualityScore, result.MinScore)
					require.False(t, result.Blocking)
				}
				// failures always carry guidance
				if !result.Passed {
					require.NotEmpty(t, result.RetakeGuidance)
				}
			}
		}
	}
}

// timeoutError is a net.Error that reports a timeout
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
