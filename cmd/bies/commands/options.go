// cmd/bies/commands/options.go
package commands

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"bies/internal/config"
	"bies/internal/logging"
)

// Env is the process surroundings a command runs in.
type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Options are the flags shared by every command, after the config file
// has filled in what the command line left out.
type Options struct {
	Output      string
	Error       string
	Trace       int
	Stats       bool
	CacheDSN    string
	CacheDriver string
	Addr        string
	MaxSteps    int
	LogLevel    string
	UseConfig   bool
	ConfigPath  string

	// Args are the positional arguments, in order.
	Args []string

	set      map[string]bool
	errw     io.Writer
	closeErr func()
}

// takesValue lists the known flags and whether each consumes a value.
var takesValue = map[string]bool{
	"o":            true,
	"e":            true,
	"trace":        true,
	"cache":        true,
	"cache-driver": true,
	"addr":         true,
	"max-steps":    true,
	"log-level":    true,
	"config":       true,
	"stats":        false,
	"use-config":   false,
}

// ParseOptions reads flags and positional arguments in any order.
// Flags are spelled -name or --name, with the value either as the next
// argument or after '='. A lone "--" ends flag parsing.
func ParseOptions(args []string) (*Options, error) {
	o := &Options{ConfigPath: config.DefaultFile, set: make(map[string]bool)}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			o.Args = append(o.Args, args[i+1:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			o.Args = append(o.Args, arg)
			continue
		}

		name := strings.TrimLeft(arg, "-")
		value, hasValue := "", false
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			name, value, hasValue = name[:eq], name[eq+1:], true
		}
		needs, known := takesValue[name]
		if !known {
			return nil, errors.Errorf("unknown flag %s", arg)
		}
		if needs && !hasValue {
			if i+1 >= len(args) {
				return nil, errors.Errorf("flag --%s needs a value", name)
			}
			i++
			value = args[i]
		}
		if err := o.apply(name, value, hasValue); err != nil {
			return nil, err
		}
		o.set[name] = true
	}
	return o, nil
}

func (o *Options) apply(name, value string, hasValue bool) error {
	var err error
	switch name {
	case "o":
		o.Output = value
	case "e":
		o.Error = value
	case "trace":
		o.Trace, err = strconv.Atoi(value)
		if err == nil && o.Trace != 0 && o.Trace != 1 {
			err = errors.New("must be 0 or 1")
		}
	case "cache":
		o.CacheDSN = value
	case "cache-driver":
		o.CacheDriver = value
	case "addr":
		o.Addr = value
	case "max-steps":
		o.MaxSteps, err = strconv.Atoi(value)
	case "log-level":
		o.LogLevel = value
	case "config":
		o.ConfigPath = value
		o.UseConfig = true
	case "stats":
		o.Stats, err = boolValue(value, hasValue)
	case "use-config":
		o.UseConfig, err = boolValue(value, hasValue)
	}
	return errors.Wrapf(err, "invalid value %q for --%s", value, name)
}

func boolValue(value string, hasValue bool) (bool, error) {
	if !hasValue {
		return true, nil
	}
	return strconv.ParseBool(value)
}

// Resolve fills unset options from the config file when asked to, then
// from the built-in defaults.
func (o *Options) Resolve(log zerolog.Logger) error {
	cfg := config.Default()
	if o.UseConfig {
		loaded, err := config.Load(o.ConfigPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Warn().Str("path", o.ConfigPath).Msg("config file not found, using defaults")
		case err != nil:
			return err
		}
		cfg = loaded
	}

	if !o.set["o"] {
		o.Output = cfg.Output
	}
	if !o.set["e"] {
		o.Error = cfg.Error
	}
	if !o.set["trace"] {
		o.Trace = int(cfg.Trace)
	}
	if !o.set["cache"] {
		o.CacheDSN = cfg.CacheDSN
	}
	if !o.set["cache-driver"] {
		o.CacheDriver = cfg.CacheDriver
	}
	if !o.set["addr"] {
		o.Addr = cfg.Addr
	}
	if !o.set["max-steps"] {
		o.MaxSteps = cfg.MaxSteps
	}
	if !o.set["log-level"] {
		o.LogLevel = cfg.LogLevel
	}
	return nil
}

// Logger builds the logger for the command, writing to stderr.
func (o *Options) Logger(env Env) (zerolog.Logger, error) {
	level, err := logging.ParseLevel(o.LogLevel)
	if err != nil {
		return logging.Nop(), errors.Wrapf(err, "invalid log level %q", o.LogLevel)
	}
	return logging.New(env.Stderr, level), nil
}

// OpenOutput returns where program output goes: the --o file, or
// stdout. The close func is never nil.
func (o *Options) OpenOutput(env Env) (io.Writer, func(), error) {
	return openOr(o.Output, env.Stdout, "output")
}

// ErrorStream returns where failures are reported: the --e file, or
// stderr. The file is opened on first use and stays open until Close.
func (o *Options) ErrorStream(env Env) (io.Writer, error) {
	if o.errw != nil {
		return o.errw, nil
	}
	w, closeErr, err := openOr(o.Error, env.Stderr, "error")
	if err != nil {
		return w, err
	}
	o.errw, o.closeErr = w, closeErr
	return w, nil
}

// Close releases the error stream.
func (o *Options) Close() {
	if o.closeErr != nil {
		o.closeErr()
	}
}

func openOr(path string, fallback io.Writer, what string) (io.Writer, func(), error) {
	if path == "" {
		return fallback, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fallback, func() {}, errors.Wrapf(err, "open %s file", what)
	}
	return f, func() { f.Close() }, nil
}
