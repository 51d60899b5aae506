package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "pollen", cfg.AppName)
	assert.Equal(t, "https://graph.facebook.com/v23.0", cfg.GraphAPIBaseURL)
	assert.Equal(t, 30*time.Second, cfg.GraphHTTPTimeout)
	assert.Equal(t, "/api/v1/facebook/auth/callback", cfg.CallbackPath)
	assert.Equal(t, "abort", cfg.SyncPageFailurePolicy)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, 0, cfg.DatabaseMigrationVersion)
	assert.Equal(t, []string{"pages_show_list", "pages_messaging", "pages_manage_metadata"}, cfg.FacebookOAuthScopes)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, 30*time.Second, cfg.PageLockTTL)
	assert.Equal(t, 10*time.Second, cfg.PageLockWait)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("SYNC_PAGE_FAILURE_POLICY=continue\nKAFKA_BROKERS=a:9092, b:9092,\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("SYNC_PAGE_FAILURE_POLICY")
		os.Unsetenv("KAFKA_BROKERS")
	})

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "continue", cfg.SyncPageFailurePolicy)
	assert.Equal(t, "a:9092, b:9092,", cfg.KafkaBrokers)
}

func TestLoad_InvalidPolicy(t *testing.T) {
	t.Setenv("SYNC_PAGE_FAILURE_POLICY", "retry")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SYNC_PAGE_FAILURE_POLICY")
}

func TestLoad_BindsTypedValues(t *testing.T) {
	t.Setenv("PAGE_LOCK_TTL", "45s")
	t.Setenv("DB_MIGRATION_VERSION", "3")
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("AUTH_ISSUER_URL", "https://issuer")
	t.Setenv("AUTH_CLIENT_ID", "pollen")
	t.Setenv("HTTP_SERVER_ALLOW_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.PageLockTTL)
	assert.Equal(t, 3, cfg.DatabaseMigrationVersion)
	assert.True(t, cfg.AuthEnabled)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowOrigins)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("PAGE_LOCK_WAIT", "ten seconds")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config from environment")
}

func TestValidate_NegativeMigrationVersion(t *testing.T) {
	cfg := &Config{SyncPageFailurePolicy: "abort", GraphAPIBaseURL: "http://graph", DatabaseMigrationVersion: -1}
	assert.ErrorContains(t, cfg.Validate(), "DB_MIGRATION_VERSION")
}

func TestValidate_AuthRequiresIssuer(t *testing.T) {
	cfg := &Config{SyncPageFailurePolicy: "abort", GraphAPIBaseURL: "http://graph", AuthEnabled: true}
	assert.Error(t, cfg.Validate())

	cfg.AuthIssuerURL = "https://issuer"
	cfg.AuthClientID = "pollen"
	assert.NoError(t, cfg.Validate())
}
