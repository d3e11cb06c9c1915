package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateEnv points the loader at an empty config file path and clears the
// variables these tests touch.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DECLARIFY_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	for _, key := range []string{
		"DECLARIFY_CENTRAL_HUB_BASE_URL",
		"DECLARIFY_CENTRAL_HUB_COMPANY_CODE",
		"DECLARIFY_CENTRAL_HUB_CACHE_TTL",
		"DECLARIFY_SERVER_PORT",
		"DECLARIFY_SCHEDULER_HOUR",
		"DECLARIFY_SCHEDULER_LOCATION",
		"DECLARIFY_STORAGE_DRIVER",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     error
		wantAnyErr  bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name:    "missing central hub url is fatal",
			wantErr: ErrMissingCentralHubURL,
		},
		{
			name: "defaults with base url from env",
			env: map[string]string{
				"DECLARIFY_CENTRAL_HUB_BASE_URL": "https://hub.example.com/",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "https://hub.example.com", cfg.CentralHub.BaseURL)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 5*time.Minute, cfg.CentralHub.CacheTTL)
				assert.Equal(t, 10*time.Second, cfg.CentralHub.Timeout)
				assert.Equal(t, 6, cfg.Scheduler.Hour)
				assert.Equal(t, 0, cfg.Scheduler.Minute)
				assert.Equal(t, 5*time.Minute, cfg.Scheduler.Backoff)
				assert.Equal(t, "memory", cfg.Storage.Driver)
			},
		},
		{
			name: "file values apply and env wins over file",
			file: `
central_hub:
  base_url: https://file.example.com
  company_code: "1001"
  cache_ttl: 2m
server:
  port: 9000
`,
			env: map[string]string{
				"DECLARIFY_SERVER_PORT": "9100",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "https://file.example.com", cfg.CentralHub.BaseURL)
				assert.Equal(t, "1001", cfg.CentralHub.CompanyCode)
				assert.Equal(t, 2*time.Minute, cfg.CentralHub.CacheTTL)
				assert.Equal(t, 9100, cfg.Server.Port)
				// untouched by file or env
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
			},
		},
		{
			name: "invalid base url",
			env: map[string]string{
				"DECLARIFY_CENTRAL_HUB_BASE_URL": "not a url",
			},
			wantAnyErr: true,
		},
		{
			name: "scheduler hour out of range",
			env: map[string]string{
				"DECLARIFY_CENTRAL_HUB_BASE_URL": "https://hub.example.com",
				"DECLARIFY_SCHEDULER_HOUR":       "24",
			},
			wantAnyErr: true,
		},
		{
			name: "unknown storage driver",
			env: map[string]string{
				"DECLARIFY_CENTRAL_HUB_BASE_URL": "https://hub.example.com",
				"DECLARIFY_STORAGE_DRIVER":       "postgres",
			},
			wantAnyErr: true,
		},
		{
			name: "unknown scheduler location",
			env: map[string]string{
				"DECLARIFY_CENTRAL_HUB_BASE_URL": "https://hub.example.com",
				"DECLARIFY_SCHEDULER_LOCATION":   "Mars/Olympus_Mons",
			},
			wantAnyErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)

			if tt.file != "" {
				path := filepath.Join(t.TempDir(), "config.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0o600))
				t.Setenv("DECLARIFY_CONFIG_FILE", path)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			if tt.wantAnyErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestSchedulerConfig_LoadLocation(t *testing.T) {
	loc, err := SchedulerConfig{}.LoadLocation()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = SchedulerConfig{Location: "utc"}.LoadLocation()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}
