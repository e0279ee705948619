package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tablequeue/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
app:
  name: tablequeue
database:
  path: "${TQ_TEST_DB_PATH}"
queue:
  average_service_time: 45
  timezone: "UTC"
notifier:
  nats:
    url: "nats://localhost:4222"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))
	t.Setenv("TQ_TEST_DB_PATH", "queue.db")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "tablequeue", cfg.App.Name)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "queue.db", cfg.Database.Path)
	assert.Equal(t, 45, cfg.Queue.AverageServiceTime)
	assert.Equal(t, "nats://localhost:4222", cfg.Notifier.NATS.URL)
	assert.Equal(t, "shops", cfg.Notifier.NATS.SubjectPrefix)
}

func TestLoadConfigWithEnvFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("database:\n  path: \"${TQ_ENV_FILE_DB}\"\n"), 0o644))

	t.Chdir(tmpDir)

	require.NoError(t, os.WriteFile(".env", []byte("TQ_ENV_FILE_DB=from-env.db\n"), 0o644))
	defer os.Unsetenv("TQ_ENV_FILE_DB")

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.Database.Path)
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		c := Config{Database: DatabaseConfig{Path: "path"}}
		c.applyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing sqlite path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "mongo without url",
			mutate:  func(c *Config) { c.Database.Driver = DriverMongo },
			wantErr: true,
		},
		{
			name: "mongo with url",
			mutate: func(c *Config) {
				c.Database.Driver = DriverMongo
				c.Database.Mongo.URL = "mongodb://localhost:27017"
			},
			wantErr: false,
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "postgres" },
			wantErr: true,
		},
		{
			name:    "negative service time",
			mutate:  func(c *Config) { c.Queue.AverageServiceTime = -1 },
			wantErr: true,
		},
		{
			name:    "bad timezone",
			mutate:  func(c *Config) { c.Queue.Timezone = "Mars/Olympus" },
			wantErr: true,
		},
		{
			name: "duplicate api key",
			mutate: func(c *Config) {
				c.API.Auth.APIKeys = []APIClientKey{{Key: "k", Name: "a"}, {Key: "k", Name: "b"}}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, models.DefaultAverageServiceTime, cfg.Queue.AverageServiceTime)
	assert.Equal(t, models.DefaultNearbyLimit, cfg.Queue.NearbyLimit)
	assert.Equal(t, models.DefaultOtpTTL, cfg.OTP.TTL)
	assert.Equal(t, 4000, cfg.API.HTTP.Port)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, 0, cfg.Monitoring.PrometheusPort)

	cfg = &Config{Monitoring: MonitoringConfig{PrometheusEnabled: true}}
	cfg.applyDefaults()
	assert.Equal(t, 9090, cfg.Monitoring.PrometheusPort)
}

func TestQueueLocation(t *testing.T) {
	loc, err := QueueConfig{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = QueueConfig{Timezone: "Asia/Bangkok"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Bangkok", loc.String())
}
