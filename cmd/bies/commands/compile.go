// cmd/bies/commands/compile.go
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"bies/internal/bytecode"
	"bies/internal/cache"
	"bies/internal/compiler"
)

const (
	SourceExt   = ".bies"
	BytecodeExt = ".basm"
)

// errFailed marks a command whose failures were already reported.
var errFailed = errors.New("failed")

// IsReported tells main not to print err again.
func IsReported(err error) bool {
	return errors.Is(err, errFailed)
}

type compileResult struct {
	out    string
	code   *bytecode.Code
	cached bool
	err    error
}

// CompileCommand compiles each source file to bytecode text. Files are
// compiled concurrently; failures are reported in argument order.
func CompileCommand(ctx context.Context, env Env, o *Options, log zerolog.Logger) error {
	if len(o.Args) == 0 {
		return errors.New("compile requires at least one source file")
	}
	if o.Output != "" && len(o.Args) > 1 {
		return errors.New("--o names a single output and cannot be used with several files")
	}
	for _, file := range o.Args {
		if err := checkExt(file, SourceExt); err != nil {
			return err
		}
	}

	c, err := openCache(ctx, o, log)
	if err != nil {
		return err
	}
	if c != nil {
		defer c.Close()
	}

	results := make([]compileResult, len(o.Args))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, file := range o.Args {
		i, file := i, file
		out := o.Output
		if out == "" {
			out = strings.TrimSuffix(file, filepath.Ext(file)) + BytecodeExt
		}
		results[i].out = out
		g.Go(func() error {
			res := &results[i]
			res.code, res.cached, res.err = compileFile(gctx, c, file, log)
			if res.err == nil {
				res.err = writeBytecode(res.out, res.code)
			}
			return nil
		})
	}
	_ = g.Wait()

	errw, err := o.ErrorStream(env)
	if err != nil {
		return err
	}

	failed := 0
	for i, res := range results {
		if res.err != nil {
			failed++
			fmt.Fprintln(errw, res.err)
			continue
		}
		log.Info().Str("file", o.Args[i]).Str("out", res.out).
			Int("functions", res.code.Len()).Int("instructions", res.code.InstructionCount()).
			Bool("cached", res.cached).Msg("compiled")
	}
	if failed > 0 {
		if len(results) > 1 {
			fmt.Fprintf(errw, "%d of %d file(s) failed to compile\n", failed, len(results))
		}
		return errFailed
	}
	return nil
}

// compileFile reads and compiles one file, going through the cache when
// there is one. Cache trouble is logged and never fails the compile.
func compileFile(ctx context.Context, c *cache.Cache, file string, log zerolog.Logger) (*bytecode.Code, bool, error) {
	src, err := os.ReadFile(file)
	if err != nil {
		return nil, false, errors.Wrap(err, "read source")
	}
	source := string(src)

	if c != nil {
		code, ok, err := c.Get(ctx, source)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("file", file).Msg("cache lookup failed")
		case ok:
			log.Debug().Str("file", file).Msg("cache hit")
			return code, true, nil
		}
	}

	code, err := compiler.CompileSource(source, file)
	if err != nil {
		return nil, false, err
	}
	if c != nil {
		if _, err := c.Put(ctx, file, source, code); err != nil {
			log.Warn().Err(err).Str("file", file).Msg("cache store failed")
		}
	}
	return code, false, nil
}

func writeBytecode(path string, code *bytecode.Code) error {
	return writeFile(path, func(w io.Writer) error { return bytecode.Write(w, code) })
}

// writeFile writes through a temporary file in the same directory and
// renames it over path, so a failed write leaves nothing behind.
func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "create bytecode file")
	}
	tmp := f.Name()
	_ = f.Chmod(0o644)
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "write %s", path)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "write %s", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

func openCache(ctx context.Context, o *Options, log zerolog.Logger) (*cache.Cache, error) {
	if o.CacheDSN == "" {
		return nil, nil
	}
	c, err := cache.Open(ctx, o.CacheDriver, o.CacheDSN)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("driver", c.Driver()).Msg("bytecode cache open")
	return c, nil
}

func checkExt(file, want string) error {
	if filepath.Ext(file) != want {
		return errors.Errorf("%s: expected a %s file", file, want)
	}
	return nil
}
