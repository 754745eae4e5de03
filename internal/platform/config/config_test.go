package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casework/internal/casefile"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, int64(32<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.SinkTimeout)
	assert.Equal(t, 10*time.Second, cfg.Scoring.Timeout)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.True(t, cfg.UsesDevSigningKey())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("CASEWORK_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("SCORING_TIMEOUT", "2s")
	t.Setenv("EXTRACTION_RATE_PER_SECOND", "2.5")
	t.Setenv("POLICY_WATCH", "true")
	t.Setenv("JWT_SIGNING_KEY", "prod-key")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Second, cfg.Scoring.Timeout)
	assert.InDelta(t, 2.5, cfg.Extraction.RatePerSecond, 1e-9)
	assert.True(t, cfg.WatchPolicy)
	assert.False(t, cfg.UsesDevSigningKey())
}

func TestFromEnvReportsEveryMalformedValue(t *testing.T) {
	t.Setenv("SCORING_TIMEOUT", "ten seconds")
	t.Setenv("REDIS_POOL_SIZE", "many")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCORING_TIMEOUT")
	assert.Contains(t, err.Error(), "REDIS_POOL_SIZE")
}

func TestParsePoliciesOverlaysDefaults(t *testing.T) {
	p, err := ParsePolicies([]byte(`
decision:
  approve_threshold: 0.8
validation:
  issue_severity_weights:
    high: 0.3
`))
	require.NoError(t, err)

	assert.InDelta(t, 0.8, p.Decision.ApproveThreshold, 1e-9)
	assert.InDelta(t, 0.35, p.Decision.ReviewThreshold, 1e-9)
	assert.InDelta(t, 0.3, p.Validation.SeverityWeights[casefile.SeverityHigh], 1e-9)
	assert.InDelta(t, 0.10, p.Validation.SeverityWeights[casefile.SeverityMedium], 1e-9)
	assert.InDelta(t, 0.40, p.Validation.MinConfidence, 1e-9)
}

func TestParsePoliciesRejectsInvalid(t *testing.T) {
	tests := []struct {
		name, yaml, want string
	}{
		{"review above approve", "decision:\n  review_threshold: 0.9\n", "review_threshold"},
		{"unknown key", "decision:\n  aprove_threshold: 0.9\n", "aprove_threshold"},
		{"bad skipped status", "decision:\n  skipped_status: APPROVE\n", "skipped_status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePolicies([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadPoliciesEmptyPathIsDefault(t *testing.T) {
	p, err := LoadPolicies("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPolicies(), p)
}

func TestPolicyWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("decision:\n  approve_threshold: 0.7\n"), 0o600))

	reloaded := make(chan Policies, 4)
	w, err := NewPolicyWatcher(path, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithReloadHook(func(p Policies) { reloaded <- p }))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// The watch is registered asynchronously; rewrite until an event lands.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("decision:\n  approve_threshold: 0.9\n"), 0o600)
		select {
		case <-reloaded:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
	assert.InDelta(t, 0.9, w.Current().Decision.ApproveThreshold, 1e-9)

	cancel()
	require.NoError(t, <-done)
}

func TestPolicyWatcherKeepsPreviousOnInvalidEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("decision:\n  approve_threshold: 0.75\n"), 0o600))

	w, err := NewPolicyWatcher(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("decision:\n  approve_threshold: 7\n"), 0o600))
	require.Error(t, w.Reload())
	assert.InDelta(t, 0.75, w.Current().Decision.ApproveThreshold, 1e-9)
}
