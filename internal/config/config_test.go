package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	return &Config{
		Probe: ProbeConfig{
			ScanDistance: DefaultScanDistance,
			Lookahead:    DefaultLookahead,
			MaxTableSize: DefaultMaxTableSize,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 4096, cfg.Probe.ScanDistance)
	assert.Equal(t, 64<<10, cfg.Probe.Lookahead)
	assert.Equal(t, "64MiB", cfg.Probe.MaxTableSize)
	assert.False(t, cfg.Probe.SeekAllSamples)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)

	n, err := cfg.Probe.MaxTableBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(64<<20), n)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audioprobe.yaml")
	content := `
probe:
  scan_distance: 512
  max_table_size: 1MB
  seek_all_samples: true
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 512, cfg.Probe.ScanDistance)
	assert.Equal(t, DefaultLookahead, cfg.Probe.Lookahead)
	assert.True(t, cfg.Probe.SeekAllSamples)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	n, err := cfg.Probe.MaxTableBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), n)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audioprobe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("probe:\n  scan_distance: 512\n"), 0o600))
	t.Setenv("AUDIOPROBE_PROBE_SCAN_DISTANCE", "2048")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.Probe.ScanDistance)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audioprobe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("probe: [unclosed\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid", modify: func(*Config) {}},
		{
			name:    "zero scan distance",
			modify:  func(c *Config) { c.Probe.ScanDistance = 0 },
			wantErr: "probe.scan_distance",
		},
		{
			name:    "negative lookahead",
			modify:  func(c *Config) { c.Probe.Lookahead = -1 },
			wantErr: "probe.lookahead",
		},
		{
			name:    "bad table size",
			modify:  func(c *Config) { c.Probe.MaxTableSize = "lots" },
			wantErr: "probe.max_table_size",
		},
		{
			name:    "zero table size",
			modify:  func(c *Config) { c.Probe.MaxTableSize = "0" },
			wantErr: "probe.max_table_size",
		},
		{
			name:    "bad level",
			modify:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: "logging.level",
		},
		{
			name:    "bad format",
			modify:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
