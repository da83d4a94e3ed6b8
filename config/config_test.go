package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, "jwt:\n  secret: s3cret\n"))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "09:00", cfg.Scheduling.DefaultOpen)
	assert.Equal(t, time.Hour, cfg.Scheduling.SelfService.MinLeadTime)
	assert.Equal(t, 90*24*time.Hour, cfg.Scheduling.SelfService.MaxHorizon)
	assert.Equal(t, 7, cfg.Prescriptions.AdherenceWindow)
	assert.Equal(t, 60, cfg.Reports.MonthlyThresholdDays)
	assert.Equal(t, "clinic.notifications", cfg.Redis.Channel)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, `
server:
  port: 9090
database:
  driver: memory
jwt:
  secret: from-file
scheduling:
  self_service:
    min_lead_time: 2h
`))
	t.Setenv("CLINIC_JWT_SECRET", "from-env")
	t.Setenv("CLINIC_DATABASE_HOST", "db.internal")
	t.Setenv("CLINIC_TENANT_CACHE_TTL", "30s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 30*time.Second, cfg.Tenant.CacheTTL)
	assert.Equal(t, 2*time.Hour, cfg.Scheduling.SelfService.MinLeadTime)

	engine := cfg.Scheduling.ToEngineConfig()
	assert.Equal(t, 2*time.Hour, engine.MinLeadTime)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database:      DatabaseConfig{Driver: "postgres"},
			JWT:           JWTConfig{Secret: "x"},
			Prescriptions: PrescriptionConfig{AdherenceWindow: 7},
			Reports:       ReportConfig{MonthlyThresholdDays: 60},
		}
	}
	assert.NoError(t, valid().Validate())

	for name, mutate := range map[string]func(*Config){
		"driver":    func(c *Config) { c.Database.Driver = "mysql" },
		"secret":    func(c *Config) { c.JWT.Secret = "" },
		"window":    func(c *Config) { c.Prescriptions.AdherenceWindow = 0 },
		"threshold": func(c *Config) { c.Reports.MonthlyThresholdDays = -1 },
	} {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
