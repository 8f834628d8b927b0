package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/pkg/auth"
)

// runCmd executes riskctl with args and stdin, returning stdout.
func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func withEnv(t *testing.T, env map[string]string) {
	t.Helper()
	prev := lookupEnv
	lookupEnv = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	t.Cleanup(func() { lookupEnv = prev })
}

const torLogin = `{
  "fingerprint": {"device_id": "dev-1", "screen_width": 1280, "screen_height": 720},
  "context": {
    "ip": "203.0.113.7",
    "geo": {"country": "KP"},
    "signals": {"is_tor": true, "reputation_score": 5}
  }
}`

func TestScore_JSON(t *testing.T) {
	out, err := runCmd(t, torLogin, "score", "-o", "json")
	require.NoError(t, err)

	var got scoreOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "desktop", got.DeviceType)
	assert.True(t, got.Breakdown.ValidIP)
	assert.Greater(t, got.Breakdown.Network, 0.0)
	assert.Contains(t, got.TriggeredRules, "high_risk_country")
	assert.Greater(t, got.RiskScore, 0)
}

func TestScore_TextFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "login.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "user_agent": "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148",
  "context": {"ip": "not-an-ip"}
}`), 0o600))

	out, err := runCmd(t, "", "score", path)
	require.NoError(t, err)
	assert.Contains(t, out, "score:    0")
	assert.Contains(t, out, "device:   mobile")
	assert.Contains(t, out, "network categories not scored")
}

func TestScore_Errors(t *testing.T) {
	_, err := runCmd(t, `{"context": {"ip": "203.0.113.7"}}`, "score")
	assert.ErrorContains(t, err, "fingerprint")

	_, err = runCmd(t, `{`, "score")
	assert.ErrorContains(t, err, "decode input")
}

func TestOverrides(t *testing.T) {
	withEnv(t, map[string]string{"FORCE_RISK_V1": "1", "FAIL_OPEN_MODE": "true"})

	out, err := runCmd(t, "", "overrides")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "FORCE_RISK_V1")
	assert.True(t, strings.HasSuffix(lines[0], "ON"))
	assert.True(t, strings.HasSuffix(lines[1], "off"))
	// Only "1" turns a switch on.
	assert.True(t, strings.HasSuffix(lines[2], "off"))
}

func TestRolloutValidate(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("v2_percentage: 15\nshadow_percentage: 50\n"), 0o600))
	out, err := runCmd(t, "", "rollout", "validate", good)
	require.NoError(t, err)

	var rc model.RolloutConfig
	require.NoError(t, json.Unmarshal([]byte(out), &rc))
	assert.Equal(t, 15, rc.V2Percentage)
	assert.True(t, rc.AutoRollback.Enabled)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("bucket_allow_list: [100]\n"), 0o600))
	_, err = runCmd(t, "", "rollout", "validate", bad)
	assert.ErrorContains(t, err, "bucket 100")

	_, err = runCmd(t, "", "rollout", "validate", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestToken(t *testing.T) {
	withEnv(t, map[string]string{"JWT_SECRET": "s3cret"})

	out, err := runCmd(t, "", "token", "--subject", "oncall", "--role", auth.RoleOperator, "--tenant", "acme")
	require.NoError(t, err)

	svc, err := auth.NewJWTService(auth.JWTConfig{Secret: "s3cret", Issuer: "loginrisk"})
	require.NoError(t, err)
	claims, err := svc.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "oncall", claims.Subject)
	assert.Equal(t, "acme", claims.TenantID)
	assert.Equal(t, []string{auth.RoleOperator}, claims.Roles)
}

func TestToken_RequiresKeyMaterial(t *testing.T) {
	withEnv(t, map[string]string{})

	_, err := runCmd(t, "", "token", "--subject", "oncall")
	assert.ErrorIs(t, err, auth.ErrNoKeyMaterial)
}

func TestKeys_SignAndValidate(t *testing.T) {
	dir := t.TempDir()

	_, err := runCmd(t, "", "keys", "--out", dir)
	require.NoError(t, err)

	out, err := runCmd(t, "", "token", "--subject", "oncall", "--key-file", filepath.Join(dir, "jwt-key.pem"))
	require.NoError(t, err)

	pub, err := auth.LoadKeyFromFile(filepath.Join(dir, "jwt-pub.pem"))
	require.NoError(t, err)
	svc, err := auth.NewJWTService(auth.JWTConfig{PublicKeyPEM: pub, Issuer: "loginrisk"})
	require.NoError(t, err)
	claims, err := svc.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "oncall", claims.Subject)
}

func TestGuard_RequiresToken(t *testing.T) {
	withEnv(t, map[string]string{})

	_, err := runCmd(t, "", "guard", "status", "--plaintext")
	assert.ErrorContains(t, err, "token is required")
}

func TestCerts(t *testing.T) {
	dir := t.TempDir()

	_, err := runCmd(t, "", "certs", "--out", dir, "--host", "risk.internal")
	require.NoError(t, err)
	for _, name := range []string{"ca.pem", "ca-key.pem", "server.pem", "server-key.pem"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	withEnv(t, map[string]string{})

	_, err := runCmd(t, "", "migrate", "up")
	assert.ErrorContains(t, err, "DATABASE_URL")
}
