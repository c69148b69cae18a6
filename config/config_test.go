package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/reglet-dev/membrane/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Full(t *testing.T) {
	data := `
profile: plugin
profiles:
  - name: plugin
    prefix: plugin_
    version: 2
    required: [version, alloc_buffer, write_to_buffer, get_buffer_ptr, get_buffer_len, dealloc_buffer, init]
    exports:
      dealloc_buffer: plugin_free
    imports:
      log: plugin_log
runtime:
  memory_limit_pages: 16
  wasi: false
  start_functions: [_initialize, _start]
  cache_dir: /tmp/membrane-cache
log:
  level: debug
  format: json
call:
  timeout: 2s
`
	cfg, err := Parse([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, "plugin", cfg.Profile)
	assert.Equal(t, uint32(16), cfg.Runtime.MemoryLimitPages)
	require.NotNil(t, cfg.Runtime.WASI)
	assert.False(t, *cfg.Runtime.WASI)
	assert.Equal(t, []string{"_initialize", "_start"}, cfg.Runtime.StartFunctions)
	assert.Equal(t, 2*time.Second, cfg.Call.Timeout)
	assert.Equal(t, zapcore.DebugLevel, cfg.Log.ZapLevel())

	reg, err := cfg.ProfileRegistry()
	require.NoError(t, err)
	assert.Equal(t, []string{"application", "basic", "plugin"}, reg.List())

	p, ok := reg.Get("plugin")
	require.True(t, ok)
	assert.Equal(t, int32(2), p.Version)
	assert.Equal(t, "plugin_free", p.ExportName(abi.RoleDeallocBuffer))
	assert.Equal(t, "plugin_alloc_buffer", p.ExportName(abi.RoleAllocBuffer))
	assert.Equal(t, "plugin_log", p.ImportName(abi.ImportLog))
	assert.Equal(t, "membrane_host_panic", p.ImportName(abi.ImportPanic))

	initSpec, ok := p.Export(abi.RoleInit)
	require.True(t, ok)
	assert.True(t, initSpec.Required)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown key", "profil: basic\n", "field profil not found"},
		{"bad level", "log:\n  level: loud\n", "Level"},
		{"unknown profile", "profile: nope\n", `unknown profile "nope"`},
		{"unknown role", "profiles:\n  - name: x\n    prefix: x_\n    required: [fly]\n", "Required"},
		{"missing prefix", "profiles:\n  - name: x\n", "Prefix"},
		{"builtin clash", "profiles:\n  - name: basic\n    prefix: b_\n", "already registered"},
		{"data path optional", "profiles:\n  - name: x\n    prefix: x_\n    required: [version]\n", "must be bound and required"},
		{"negative timeout", "call:\n  timeout: -1s\n", "Timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "membrane.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profile: application\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "application", cfg.Profile)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config")
}

func TestOptions(t *testing.T) {
	cfg := New(WithProfile("application"), WithTimeout(time.Second), WithLogLevel("warn"), WithMemoryLimitPages(4))
	assert.Equal(t, "application", cfg.Profile)
	assert.Equal(t, time.Second, cfg.Call.Timeout)
	assert.Equal(t, zapcore.WarnLevel, cfg.Log.ZapLevel())
	assert.Equal(t, uint32(4), cfg.Runtime.MemoryLimitPages)
	assert.NoError(t, cfg.Validate())
}

func TestLogConfig_NewLogger(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		logger, err := LogConfig{Level: "error", Format: format}.NewLogger()
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
		assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	}
}

func TestSchema(t *testing.T) {
	schema, err := Schema()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(schema, &decoded))

	props, ok := decoded["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"profile", "profiles", "runtime", "log", "call"} {
		assert.Contains(t, props, key)
	}
}
