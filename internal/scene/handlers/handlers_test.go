package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/anime-shed/capture-inspector-go/internal/errors"
	"github.com/anime-shed/capture-inspector-go/internal/inference"
	"github.com/anime-shed/capture-inspector-go/internal/ocr"
	"github.com/anime-shed/capture-inspector-go/internal/requirements"
	"github.com/anime-shed/capture-inspector-go/internal/scene"
	"github.com/anime-shed/capture-inspector-go/internal/strategy"
	"github.com/anime-shed/capture-inspector-go/pkg/models"
)

var fixedNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	data  map[string][]byte
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, ref string) ([]byte, error) {
	f.calls++
	if d, ok := f.data[ref]; ok {
		return d, nil
	}
	return nil, errors.New("missing")
}

type fakeModel struct {
	needsData bool
	out       inference.Output
	err       error
	got       inference.Input
}

func (m *fakeModel) Name() string            { return "fake" }
func (m *fakeModel) RequiresImageData() bool { return m.needsData }
func (m *fakeModel) Infer(_ context.Context, in inference.Input) (inference.Output, error) {
	m.got = in
	return m.out, m.err
}

type fakeEngine struct {
	text map[string]string
	err  error
}

func (e *fakeEngine) Recognize(_ context.Context, data []byte) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return e.text[string(data)], nil
}

func (e *fakeEngine) Close() error { return nil }

func session(sceneID string, refs ...string) models.Session {
	s := models.Session{ID: "sess-1", SceneID: sceneID, Fields: map[string]string{}}
	for i, ref := range refs {
		s.Images = append(s.Images, models.CapturedImage{
			ID:       ref,
			URL:      ref,
			QAResult: models.QualityResult{QualityScore: 80 + i, Passed: true},
		})
	}
	return s
}

func TestModelHandler_ValidateInput(t *testing.T) {
	h, err := NewModelHandler(requirements.SceneWound, &fakeModel{}, nil, strategy.NewWoundStrategy(), []string{"body_site", "wound_age_days"})
	require.NoError(t, err)
	require.Equal(t, []string{"body_site", "wound_age_days"}, h.RequiredFields())

	v := h.ValidateInput(session(requirements.SceneWound))
	require.False(t, v.Valid)
	require.Len(t, v.Errors, 3)

	s := session(requirements.SceneWound, "a")
	s.Fields["body_site"] = "shin"
	s.Fields["wound_age_days"] = "  "
	v = h.ValidateInput(s)
	require.False(t, v.Valid)
	require.Equal(t, []string{`Field "wound_age_days" is required.`}, v.Errors)

	s.Fields["wound_age_days"] = "5"
	require.True(t, h.ValidateInput(s).Valid)

	require.False(t, h.ValidateInput(session(requirements.SceneSkin, "a")).Valid)
}

func TestModelHandler_Analyze(t *testing.T) {
	model := &fakeModel{out: inference.Output{
		Features:     map[string]float64{"sharpness": 0.9},
		Labels:       []inference.Label{{Name: "asymmetry", Score: 0.8}},
		Measurements: map[string]float64{"images": 1},
		Observations: []string{"ok"},
		Confidence:   0.9,
	}}
	h, err := NewModelHandler(requirements.SceneSkin, model, nil, strategy.NewSkinStrategy(), nil, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)

	result, err := h.Analyze(context.Background(), session(requirements.SceneSkin, "a"))
	require.NoError(t, err)

	require.NotEmpty(t, result.ID)
	require.Equal(t, "sess-1", result.SessionID)
	require.Equal(t, requirements.SceneSkin, result.SceneID)
	require.Equal(t, fixedNow, result.Timestamp)
	require.Equal(t, models.RiskModerate, result.RiskAssessment.Level)
	require.False(t, result.RequiresManualReview)
	require.Equal(t, 0.9, result.Confidence)
	require.Equal(t, 0.8, result.ImageAnalysis.Features["label.asymmetry"])
	require.NotContains(t, model.out.Features, "label.asymmetry", "model output is not mutated")

	require.Len(t, model.got.Images, 1)
	require.Nil(t, model.got.Images[0].Data)
	require.Equal(t, 80, model.got.Images[0].Quality.QualityScore)
	require.Contains(t, model.got.Findings, "bleeding")
}

func TestModelHandler_FetchesDataWhenModelNeedsIt(t *testing.T) {
	model := &fakeModel{needsData: true, out: inference.Output{Confidence: 0.9}}

	_, err := NewModelHandler(requirements.SceneTongue, model, nil, strategy.NewTongueStrategy(), nil)
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))

	fetcher := &fakeFetcher{data: map[string][]byte{"a": []byte("pixels")}}
	h, err := NewModelHandler(requirements.SceneTongue, model, fetcher, strategy.NewTongueStrategy(), nil)
	require.NoError(t, err)

	_, err = h.Analyze(context.Background(), session(requirements.SceneTongue, "a"))
	require.NoError(t, err)
	require.Equal(t, []byte("pixels"), model.got.Images[0].Data)

	_, err = h.Analyze(context.Background(), session(requirements.SceneTongue, "missing"))
	require.Error(t, err)
}

func TestModelHandler_Errors(t *testing.T) {
	_, err := NewModelHandler(requirements.SceneSkin, nil, nil, strategy.NewSkinStrategy(), nil)
	require.Error(t, err)
	_, err = NewModelHandler(requirements.SceneSkin, &fakeModel{}, nil, nil, nil)
	require.Error(t, err)

	h, err := NewModelHandler(requirements.SceneSkin, &fakeModel{err: errors.New("boom")}, nil, strategy.NewSkinStrategy(), nil)
	require.NoError(t, err)

	_, err = h.Analyze(context.Background(), session(requirements.SceneSkin))
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	require.NotEmpty(t, apperrors.GuidanceOf(err))

	_, err = h.Analyze(context.Background(), session(requirements.SceneSkin, "a"))
	require.ErrorContains(t, err, "boom")
}

func TestModelHandler_WithSignalModel(t *testing.T) {
	h, err := NewModelHandler(requirements.SceneStool, inference.NewSignalModel(), nil, strategy.NewStoolStrategy(), nil)
	require.NoError(t, err)

	s := session(requirements.SceneStool, "a", "b")
	s.Images[0].QAResult.Signals = models.QualitySignals{ROICoverage: 0.8, Stability: 0.9}
	s.Images[1].QAResult.Signals = models.QualitySignals{ROICoverage: 0.6, Stability: 0.7}

	first, err := h.Analyze(context.Background(), s)
	require.NoError(t, err)
	second, err := h.Analyze(context.Background(), s)
	require.NoError(t, err)

	require.Equal(t, first.ImageAnalysis, second.ImageAnalysis)
	require.Equal(t, models.RiskLow, first.RiskAssessment.Level)
	require.InDelta(t, 0.805, first.Confidence, 1e-9)
}

func TestLabReportHandler_Analyze(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string][]byte{"p1": []byte("page1"), "p2": []byte("page2")}}
	engine := &fakeEngine{text: map[string]string{
		"page1": "Hemoglobin 13.5 g/dL\nGlucose 98 mg/dL",
		"page2": "Glucose 140 mg/dL\nCreatinine 0.9 mg/dL",
	}}
	h, err := NewLabReportHandler(engine, fetcher, nil)
	require.NoError(t, err)
	require.Empty(t, h.RequiredFields())

	result, err := h.Analyze(context.Background(), session(requirements.SceneLabReport, "p1", "p2"))
	require.NoError(t, err)

	m := result.ImageAnalysis.Measurements
	require.Equal(t, 13.5, m["hemoglobin"])
	require.Equal(t, 98.0, m["glucose"], "first page wins")
	require.Equal(t, 0.9, m["creatinine"])
	require.Len(t, result.ImageAnalysis.Observations, 3)
	require.InDelta(t, 1.0, result.Confidence, 1e-9)
	require.False(t, result.RequiresManualReview)
	require.Contains(t, result.RiskAssessment.Factors, "not found: platelets")
}

func TestLabReportHandler_NoMarkers(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string][]byte{"p1": []byte("page1")}}
	engine := &fakeEngine{text: map[string]string{"page1": "Thank you for visiting"}}
	h, err := NewLabReportHandler(engine, fetcher, nil)
	require.NoError(t, err)

	result, err := h.Analyze(context.Background(), session(requirements.SceneLabReport, "p1"))
	require.NoError(t, err)
	require.True(t, result.RequiresManualReview)
	require.Contains(t, result.RiskAssessment.Flags, "no_markers_found")
	require.Zero(t, result.Confidence)
}

func TestLabReportHandler_EngineUnavailable(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string][]byte{"p1": []byte("page1")}}
	h, err := NewLabReportHandler(&fakeEngine{err: ocr.ErrUnavailable}, fetcher, nil)
	require.NoError(t, err)

	_, err = h.Analyze(context.Background(), session(requirements.SceneLabReport, "p1"))
	require.ErrorIs(t, err, ocr.ErrUnavailable)

	_, err = NewLabReportHandler(nil, fetcher, nil)
	require.Error(t, err)
}

func TestRegisterBuiltin(t *testing.T) {
	reg := scene.NewRegistry()
	reqs := requirements.NewBuiltinRegistry()

	err := RegisterBuiltin(reg, reqs, Dependencies{
		Model:   inference.NewSignalModel(),
		Fetcher: &fakeFetcher{},
		OCR:     &fakeEngine{},
	})
	require.NoError(t, err)

	list := reg.List()
	require.Len(t, list, 5)
	for _, r := range list {
		require.True(t, r.HasHandler, r.SceneID)
		require.Equal(t, []string{"capture", "qa", "analyze", "review"}, r.Configuration.WorkflowSteps)
	}

	wound, err := reg.Get(requirements.SceneWound)
	require.NoError(t, err)
	require.True(t, wound.Capture.RequiresScaleReference)
	require.Equal(t, []string{"body_site", "wound_age_days"}, wound.RequiredFields)

	h, err := reg.Handler(requirements.SceneWound)
	require.NoError(t, err)
	require.Equal(t, wound.RequiredFields, h.RequiredFields())

	require.Error(t, RegisterBuiltin(scene.NewRegistry(), reqs, Dependencies{}), "model is required")
}
