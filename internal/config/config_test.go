package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dyluth/canopy/pkg/okr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `version: "1.0"
api:
  base_url: "https://okr.example.com/api/"
identity:
  user_id: "42"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "canopy.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `version: "1.0"
api:
  base_url: "http://localhost:8000/api/"
  token_env: "CANOPY_TEST_TOKEN"
  timeout: "3s"
identity:
  user_id: "7"
load:
  max_concurrency: 4
  strict: true
mirror:
  redis_url: "redis://localhost:6379/0"
  namespace: "team-a"
sync:
  interval: "1m"
  listen: "127.0.0.1:9100"
  roots:
    - id: "12"
      kind: "mision"
    - id: "13"
      kind: "project"
`)
	t.Setenv("CANOPY_TEST_TOKEN", "secret")

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "1.0", config.Version)
	assert.Equal(t, 3*time.Second, config.API.TimeoutDuration())
	assert.Equal(t, "secret", config.API.Token())
	assert.Equal(t, okr.ID("7"), config.UserID())
	assert.Equal(t, 4, *config.Load.MaxConcurrency)
	assert.True(t, config.Load.Strict)
	assert.Equal(t, "redis://localhost:6379/0", config.Mirror.RedisURL)
	assert.Equal(t, "team-a", config.Mirror.Namespace)
	assert.Equal(t, time.Minute, config.Sync.IntervalDuration())
	assert.Equal(t, "127.0.0.1:9100", config.Sync.Listen)

	require.Len(t, config.Sync.Roots, 2)
	assert.Equal(t, okr.KindMission, config.Sync.Roots[0].RootKind())
	assert.Equal(t, okr.KindProject, config.Sync.Roots[1].RootKind())
}

func TestLoad_AppliesDefaults(t *testing.T) {
	config, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, DefaultTimeout, config.API.TimeoutDuration())
	assert.Empty(t, config.API.Token())
	require.NotNil(t, config.Load)
	assert.Equal(t, DefaultMaxConcurrency, *config.Load.MaxConcurrency)
	assert.False(t, config.Load.Strict)
	require.NotNil(t, config.Mirror)
	assert.Equal(t, DefaultNamespace, config.Mirror.Namespace)
	assert.Empty(t, config.Mirror.RedisURL)
	require.NotNil(t, config.Sync)
	assert.Equal(t, DefaultSyncInterval, config.Sync.IntervalDuration())
	assert.Equal(t, DefaultListenAddr, config.Sync.Listen)
	assert.Empty(t, config.Sync.Roots)
}

func TestLoad_ZeroConcurrencyMeansUnbounded(t *testing.T) {
	config, err := Load(writeConfig(t, minimalConfig+"load:\n  max_concurrency: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, *config.Load.MaxConcurrency)
}

func TestLoad_FileNotFound(t *testing.T) {
	config, err := Load("/nonexistent/canopy.yml")
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	config, err := Load(writeConfig(t, "version: \"1.0\"\napi:\n  - this is invalid\n    yaml syntax\n"))
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		extra   string
		base    string
		wantErr string
	}{
		{
			name:    "unsupported version",
			base:    "version: \"2.0\"\napi:\n  base_url: \"https://x.test/\"\nidentity:\n  user_id: \"1\"\n",
			wantErr: "unsupported version: 2.0",
		},
		{
			name:    "missing base url",
			base:    "version: \"1.0\"\nidentity:\n  user_id: \"1\"\n",
			wantErr: "api.base_url is required",
		},
		{
			name:    "non http base url",
			base:    "version: \"1.0\"\napi:\n  base_url: \"ftp://x.test/\"\nidentity:\n  user_id: \"1\"\n",
			wantErr: "api.base_url must be an http(s) URL",
		},
		{
			name:    "missing user",
			base:    "version: \"1.0\"\napi:\n  base_url: \"https://x.test/\"\n",
			wantErr: "identity.user_id is required",
		},
		{
			name:    "bad timeout",
			base:    "version: \"1.0\"\napi:\n  base_url: \"https://x.test/\"\n  timeout: \"soon\"\nidentity:\n  user_id: \"1\"\n",
			wantErr: "api.timeout",
		},
		{
			name:    "negative timeout",
			base:    "version: \"1.0\"\napi:\n  base_url: \"https://x.test/\"\n  timeout: \"-1s\"\nidentity:\n  user_id: \"1\"\n",
			wantErr: "api.timeout must be positive",
		},
		{
			name:    "negative concurrency",
			extra:   "load:\n  max_concurrency: -2\n",
			wantErr: "load.max_concurrency must be >= 0",
		},
		{
			name:    "bad redis url",
			extra:   "mirror:\n  redis_url: \"http://localhost:6379\"\n",
			wantErr: "mirror.redis_url must be a redis://",
		},
		{
			name:    "interval too short",
			extra:   "sync:\n  interval: \"10ms\"\n",
			wantErr: "sync.interval must be at least 1s",
		},
		{
			name:    "root without id",
			extra:   "sync:\n  roots:\n    - kind: mission\n",
			wantErr: "sync.roots[0]: id is required",
		},
		{
			name:    "root with bad kind",
			extra:   "sync:\n  roots:\n    - id: \"1\"\n      kind: galaxy\n",
			wantErr: "invalid root kind",
		},
		{
			name:    "duplicate root",
			extra:   "sync:\n  roots:\n    - id: \"1\"\n      kind: mission\n    - id: \"1\"\n      kind: project\n",
			wantErr: "duplicate root id '1'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := tt.base
			if base == "" {
				base = minimalConfig
			}
			_, err := Parse([]byte(base + tt.extra))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	assert.Equal(t, DefaultPath, ResolvePath(""))
	assert.Equal(t, "custom.yml", ResolvePath("custom.yml"))

	t.Setenv(EnvConfigPath, "/etc/canopy.yml")
	assert.Equal(t, "/etc/canopy.yml", ResolvePath(""))
	assert.Equal(t, "custom.yml", ResolvePath("custom.yml"))
}
