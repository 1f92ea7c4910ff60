package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := write(t, `{
  "output": "salida.txt",
  "error": "errores.txt",
  "trace": "1",
  "cache_driver": "postgres",
  "cache_dsn": "postgres://localhost/bies",
  "max_steps": 500
}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, &Config{
		Output:      "salida.txt",
		Error:       "errores.txt",
		Trace:       1,
		CacheDriver: "postgres",
		CacheDSN:    "postgres://localhost/bies",
		Addr:        ":8080",
		MaxSteps:    500,
		LogLevel:    "warn",
	}, cfg)
}

func TestTraceSpellings(t *testing.T) {
	for _, body := range []string{`{"trace": 1}`, `{"trace": "1"}`} {
		cfg, err := Load(write(t, body))
		require.NoError(t, err)
		require.Equal(t, Level(1), cfg.Trace)
	}
}

func TestLoadFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"unknown key", `{"colour": "red"}`, "unknown field"},
		{"bad trace", `{"trace": "loud"}`, "invalid trace level"},
		{"trace range", `{"trace": 2}`, "trace must be 0 or 1"},
		{"not json", `output=x`, "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(write(t, tt.body))
			require.ErrorContains(t, err, tt.msg)
			require.Equal(t, Default(), cfg)
		})
	}
}

func TestMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.True(t, errors.Is(err, os.ErrNotExist))
	require.Equal(t, Default(), cfg)
}
