package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type panickingObserver struct{}

func (panickingObserver) OnEvent(context.Context, SessionEvent) { panic("boom") }
func (panickingObserver) GetObserverName() string              { return "panicking" }

func TestMetricsObserver(t *testing.T) {
	m := NewMetricsObserver()
	pub := NewEventPublisher()
	pub.Subscribe(m)

	ctx := context.Background()
	for _, e := range []SessionEvent{
		{EventType: SessionCreated},
		{EventType: ImageRejected},
		{EventType: ImageAccepted},
		{EventType: AnalysisStarted},
		{EventType: AnalysisFailed},
		{EventType: AnalysisStarted},
		{EventType: AnalysisCompleted, Duration: 2 * time.Second},
		{EventType: SessionCompleted},
	} {
		pub.NotifyObservers(ctx, e)
	}

	got := m.GetMetrics()
	require.Equal(t, int64(1), got["sessions_created"])
	require.Equal(t, int64(1), got["images_rejected"])
	require.Equal(t, int64(1), got["images_accepted"])
	require.Equal(t, int64(2), got["total_analyses"])
	require.Equal(t, int64(1), got["successful_analyses"])
	require.Equal(t, int64(1), got["failed_analyses"])
	require.Equal(t, int64(1), got["sessions_completed"])
	require.Equal(t, "2s", got["avg_analysis_time"])
}

func TestEventPublisher_RecoversObserverPanic(t *testing.T) {
	m := NewMetricsObserver()
	pub := NewEventPublisher()
	pub.Subscribe(panickingObserver{})
	pub.Subscribe(m)

	require.NotPanics(t, func() {
		pub.NotifyObservers(context.Background(), SessionEvent{EventType: SessionCreated})
	})
	require.Equal(t, int64(1), m.GetMetrics()["sessions_created"])

	pub.Unsubscribe(m)
	pub.NotifyObservers(context.Background(), SessionEvent{EventType: SessionCreated})
	require.Equal(t, int64(1), m.GetMetrics()["sessions_created"])
}

func TestLoggingObserver(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	o := NewLoggingObserver(log)
	o.OnEvent(context.Background(), SessionEvent{
		EventType:    ImageRejected,
		SessionID:    "s1",
		SceneID:      "wound",
		ImageID:      "img-1",
		ErrorMessage: "blocked",
		Metadata:     map[string]interface{}{"quality_score": 40},
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warning", entry["level"])
	require.Equal(t, "s1", entry["session_id"])
	require.Equal(t, "img-1", entry["image_id"])
	require.Equal(t, "blocked", entry["error"])
	require.Equal(t, float64(40), entry["quality_score"])
	require.Equal(t, "logging_observer", o.GetObserverName())
}
