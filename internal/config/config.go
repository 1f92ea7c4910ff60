// Package config reads the optional JSON file that supplies defaults for
// the command line flags.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// DefaultFile is looked up in the working directory.
const DefaultFile = ".config_biesm.json"

type Config struct {
	Output      string `json:"output"`
	Error       string `json:"error"`
	Trace       Level  `json:"trace"`
	CacheDriver string `json:"cache_driver"`
	CacheDSN    string `json:"cache_dsn"`
	Addr        string `json:"addr"`
	// MaxSteps bounds each run; 0 leaves CLI runs unbounded and gives
	// the playground its own default.
	MaxSteps int    `json:"max_steps"`
	LogLevel string `json:"log_level"`
}

// Default is what the tools use with no config file.
func Default() *Config {
	return &Config{
		CacheDriver: "sqlite",
		Addr:        ":8080",
		LogLevel:    "warn",
	}
}

// Load reads path over the defaults. A missing file yields the defaults
// together with an error satisfying errors.Is(err, os.ErrNotExist), so
// callers may warn and carry on.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return Default(), errors.Wrapf(err, "parse config %s", path)
	}
	if cfg.Trace > 1 {
		return Default(), errors.Errorf("config %s: trace must be 0 or 1, got %d", path, cfg.Trace)
	}
	return cfg, nil
}

// Level is the trace level. The file may spell it as a number or as a
// quoted number.
type Level int

func (l *Level) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	if s == "" || s == "null" {
		*l = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return errors.Errorf("invalid trace level %s", b)
	}
	*l = Level(n)
	return nil
}
