package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("MODEL_PROVIDER", "")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, cfg.AnalysisTimeout)
	require.Equal(t, DefaultQualityConfig(), cfg.Quality)
	require.Equal(t, "signal", cfg.ModelProvider)
	require.Equal(t, "0.0.0.0:8080", cfg.ServerAddress())
	require.False(t, cfg.AzureEnabled())
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("ANALYSIS_TIMEOUT", "5s")
	t.Setenv("QUALITY_BLOCK_FLOOR", "50")
	t.Setenv("AZURE_STORAGE_ACCOUNT", "acct")
	t.Setenv("AZURE_STORAGE_KEY", "a2V5")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, cfg.AnalysisTimeout)
	require.Equal(t, 50, cfg.Quality.BlockFloor)
	require.True(t, cfg.AzureEnabled())
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port", "PORT", "99999"},
		{"threshold", "QUALITY_MIN_SCORE", "150"},
		{"provider", "MODEL_PROVIDER", "random"},
		{"gemini without key", "MODEL_PROVIDER", "gemini"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GEMINI_API_KEY", "")
			t.Setenv(tt.key, tt.value)
			_, err := LoadFromEnv()
			require.Error(t, err)
		})
	}
}
