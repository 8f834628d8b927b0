package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/valueobject"
	"github.com/bibbank/loginrisk/internal/infrastructure/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8090", cfg.GRPCAddress())
	assert.Equal(t, ":9090", cfg.HTTPAddress())
	assert.Equal(t, valueobject.FailClosed, cfg.FailureMode)
	assert.Equal(t, 3*time.Second, cfg.RemoteProviderTimeout)
	assert.Equal(t, 5*time.Second, cfg.FingerprintTimeout)
	assert.Equal(t, 10*time.Second, cfg.RiskAssessmentTimeout)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("FAILURE_MODE", "fail-open")
	t.Setenv("REMOTE_PROVIDER_TIMEOUT", "750ms")
	t.Setenv("MFA_THRESHOLD", "30")
	t.Setenv("AUDIT_ASSESSMENTS", "true")
	t.Setenv("ASSESS_RATE_LIMIT", "200")
	t.Setenv("GRPC_REFLECTION", "true")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, valueobject.FailOpen, cfg.FailureMode)
	assert.Equal(t, 750*time.Millisecond, cfg.RemoteProviderTimeout)
	assert.Equal(t, 30, cfg.MFAThreshold)
	assert.True(t, cfg.AuditAssessments)
	assert.Equal(t, 200, cfg.AssessRateLimit)
	assert.True(t, cfg.GRPCReflection)
}

func TestLoad_ReportsAllErrors(t *testing.T) {
	t.Setenv("FAILURE_MODE", "sometimes")
	t.Setenv("GUARD_INTERVAL", "soon")
	t.Setenv("BLOCK_THRESHOLD", "x")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FAILURE_MODE")
	assert.Contains(t, err.Error(), "GUARD_INTERVAL")
	assert.Contains(t, err.Error(), "BLOCK_THRESHOLD")
}

func TestLoad_GuardFeedNeedsComparisonFeed(t *testing.T) {
	t.Setenv("GUARD_CONSUME_FEED", "true")
	t.Setenv("COMPARISON_FEED_ENABLED", "false")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GUARD_CONSUME_FEED")
}

func TestLoad_GuardIntervalMustBePositive(t *testing.T) {
	t.Setenv("GUARD_INTERVAL", "0s")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GUARD_INTERVAL")
}

func TestValidateGuardInterval(t *testing.T) {
	rc := config.DefaultRollout()
	assert.NoError(t, config.ValidateGuardInterval(10*time.Second, rc))
	assert.Error(t, config.ValidateGuardInterval(time.Minute, rc))

	rc.AutoRollback.Window = 5 * time.Minute
	assert.NoError(t, config.ValidateGuardInterval(time.Minute, rc))
	assert.Error(t, config.ValidateGuardInterval(5*time.Minute, rc))
}

func TestParseRollout(t *testing.T) {
	t.Run("full document", func(t *testing.T) {
		rc, err := config.ParseRollout([]byte(`
v2_percentage: 20
shadow_percentage: 50
tenant_allow_list: [acme]
bucket_allow_list: [0, 1, 2]
auto_rollback:
  enabled: true
  min_comparisons: 200
  threshold_percent: 2.5
  window: 30s
`))
		require.NoError(t, err)
		assert.Equal(t, 20, rc.V2Percentage)
		assert.Equal(t, 50, rc.ShadowPercentage)
		assert.Equal(t, []string{"acme"}, rc.TenantAllowList)
		assert.Equal(t, []int{0, 1, 2}, rc.BucketAllowList)
		assert.Equal(t, model.AutoRollbackPolicy{
			Enabled:          true,
			MinComparisons:   200,
			ThresholdPercent: 2.5,
			Window:           30 * time.Second,
		}, rc.AutoRollback)
	})

	t.Run("omitted policy uses defaults and stays enabled", func(t *testing.T) {
		rc, err := config.ParseRollout([]byte("v2_percentage: 10\n"))
		require.NoError(t, err)
		assert.Equal(t, model.DefaultAutoRollbackPolicy(), rc.AutoRollback)
	})

	t.Run("explicitly disabled", func(t *testing.T) {
		rc, err := config.ParseRollout([]byte("auto_rollback:\n  enabled: false\n"))
		require.NoError(t, err)
		assert.False(t, rc.AutoRollback.Enabled)
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := config.ParseRollout([]byte("v2_percentage: 120\n"))
		assert.Error(t, err)
		_, err = config.ParseRollout([]byte("bucket_allow_list: [100]\n"))
		assert.Error(t, err)
	})
}

func TestLoadRollout_MissingFile(t *testing.T) {
	rc, err := config.LoadRollout(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultRollout(), rc)
}

func TestLoadRollout_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rollout.yaml")
	require.NoError(t, os.WriteFile(path, []byte("shadow_percentage: 5\n"), 0o600))

	rc, err := config.LoadRollout(path)
	require.NoError(t, err)
	assert.Equal(t, 5, rc.ShadowPercentage)
}
