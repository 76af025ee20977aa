package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.HTTPPort)
	assert.Equal(t, "50051", cfg.App.GRPCPort)
	assert.Equal(t, "8081", cfg.App.GatewayPort)
	assert.Empty(t, cfg.App.TrustedProxies)
	assert.Equal(t, 10, cfg.App.ShutdownTimeoutSeconds)
	assert.Equal(t, "clean_user_service", cfg.DB.Name)
	assert.Equal(t, 300, cfg.Redis.CacheTTL)
	assert.Equal(t, 20, cfg.RateLimit.BurstCapacity)
	assert.Equal(t, "clean-user-service", cfg.Logger.ServiceName)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	content := "HTTP_PORT=9090\nDB_NAME=from_file\nREDIS_CACHE_TTL=60\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.env"), []byte(content), 0o600))

	t.Setenv("DB_NAME", "from_env")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.HTTPPort)
	assert.Equal(t, "from_env", cfg.DB.Name)
	assert.Equal(t, 60, cfg.Redis.CacheTTL)
}

func TestLoadConfig_ProductionLoggerDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Env)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.True(t, cfg.Logger.EnableSampling)
}

func TestConfig_Validate(t *testing.T) {
	base := func(t *testing.T) *Config {
		cfg, err := LoadConfig(t.TempDir())
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "same ports", mutate: func(c *Config) { c.App.GRPCPort = c.App.HTTPPort }, wantErr: "must differ"},
		{name: "gateway on grpc port", mutate: func(c *Config) { c.App.GatewayPort = c.App.GRPCPort }, wantErr: "must differ"},
		{name: "bad trusted proxy", mutate: func(c *Config) { c.App.TrustedProxies = []string{"10.0.0.0/33"} }, wantErr: "TRUSTED_PROXIES"},
		{name: "missing http port", mutate: func(c *Config) { c.App.HTTPPort = "" }, wantErr: "HTTP_PORT is required"},
		{name: "zero shutdown timeout", mutate: func(c *Config) { c.App.ShutdownTimeoutSeconds = 0 }, wantErr: "SHUTDOWN_TIMEOUT_SECONDS"},
		{name: "idle above open", mutate: func(c *Config) { c.DB.MaxIdleConns = 100 }, wantErr: "DB_MAX_IDLE_CONNS"},
		{name: "rate limit without redis", mutate: func(c *Config) { c.Redis.Enabled = false }, wantErr: "requires REDIS_ENABLED"},
		{name: "zero burst", mutate: func(c *Config) { c.RateLimit.BurstCapacity = 0 }, wantErr: "RATE_LIMIT_BURST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base(t)
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestLoadConfig_TrustedProxies(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", " 10.0.0.0/8, 192.0.2.10 ,,")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.10"}, cfg.App.TrustedProxies)

	prefixes, err := cfg.App.TrustedProxyPrefixes()
	require.NoError(t, err)
	require.Len(t, prefixes, 2)
	assert.Equal(t, "10.0.0.0/8", prefixes[0].String())
	assert.Equal(t, "192.0.2.10/32", prefixes[1].String())
	assert.NoError(t, cfg.Validate())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db user=u password=p dbname=n port=5432 sslmode=disable", c.DSN())
}
