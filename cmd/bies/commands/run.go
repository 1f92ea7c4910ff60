// cmd/bies/commands/run.go
package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"bies/internal/bytecode"
	"bies/internal/compiler"
	"bies/internal/debugger"
	"bies/internal/vm"
)

// RunCommand loads a bytecode file and executes it.
func RunCommand(ctx context.Context, env Env, o *Options, log zerolog.Logger) error {
	file, err := single(o, "run", BytecodeExt)
	if err != nil {
		return err
	}
	code, err := loadBytecode(file)
	if err != nil {
		return err
	}
	return execute(env, o, log, file, code)
}

// ExecCommand compiles a source file in memory and executes it.
func ExecCommand(ctx context.Context, env Env, o *Options, log zerolog.Logger) error {
	file, err := single(o, "exec", SourceExt)
	if err != nil {
		return err
	}
	c, err := openCache(ctx, o, log)
	if err != nil {
		return err
	}
	if c != nil {
		defer c.Close()
	}
	code, _, err := compileFile(ctx, c, file, log)
	if err != nil {
		return err
	}
	return execute(env, o, log, file, code)
}

func execute(env Env, o *Options, log zerolog.Logger, file string, code *bytecode.Code) error {
	out, closeOut, err := o.OpenOutput(env)
	if err != nil {
		return err
	}
	defer closeOut()

	opts := []vm.Option{vm.WithOutput(out), vm.WithInput(env.Stdin)}
	if o.Trace == 1 {
		opts = append(opts, vm.WithHook(debugger.NewTracer(out)))
	}
	if o.MaxSteps > 0 {
		opts = append(opts, vm.WithMaxSteps(o.MaxSteps))
	}
	r, err := vm.NewRunner(code, opts...)
	if err != nil {
		return err
	}

	start := time.Now()
	runErr := r.Run()
	elapsed := time.Since(start)
	log.Debug().Str("file", file).Int("steps", r.Steps()).Dur("elapsed", elapsed).Msg("run finished")

	if o.Stats {
		errw, err := o.ErrorStream(env)
		if err != nil {
			return err
		}
		fmt.Fprintf(errw, "steps: %s  functions: %s  instructions: %s  time: %s\n",
			humanize.Comma(int64(r.Steps())), humanize.Comma(int64(code.Len())),
			humanize.Comma(int64(code.InstructionCount())), elapsed.Round(time.Microsecond))
	}
	return runErr
}

// DebugCommand runs a program under the interactive debugger. A .bies
// file is compiled first; for a .basm file the source next to it, when
// present, is used for listings.
func DebugCommand(ctx context.Context, env Env, o *Options, log zerolog.Logger) error {
	if len(o.Args) != 1 {
		return errors.New("debug requires exactly one file")
	}
	file := o.Args[0]

	var code *bytecode.Code
	var source []byte
	var err error
	switch filepath.Ext(file) {
	case SourceExt:
		if source, err = os.ReadFile(file); err != nil {
			return errors.Wrap(err, "read source")
		}
		code, err = compiler.CompileSource(string(source), file)
	case BytecodeExt:
		code, err = loadBytecode(file)
		source, _ = os.ReadFile(strings.TrimSuffix(file, BytecodeExt) + SourceExt)
	default:
		err = errors.Errorf("%s: expected a %s or %s file", file, SourceExt, BytecodeExt)
	}
	if err != nil {
		return err
	}

	// The debugger and the program share stdin through one buffer.
	in := bufio.NewReader(env.Stdin)
	d := debugger.NewDebugger(in, env.Stdout)
	if source != nil {
		d.LoadSource(string(source))
	}
	fmt.Fprintf(env.Stdout, "Debugging %s. Type 'help' for commands.\n", file)

	r, err := vm.NewRunner(code,
		vm.WithOutput(env.Stdout),
		vm.WithInput(in),
		vm.WithHook(debugger.NewVMDebugHook(d)))
	if err != nil {
		return err
	}
	err = r.Run()
	if errors.Is(err, vm.ErrStopped) {
		return nil
	}
	if err == nil {
		fmt.Fprintln(env.Stdout, "Program finished")
	}
	return err
}

func single(o *Options, cmd, ext string) (string, error) {
	if len(o.Args) != 1 {
		return "", errors.Errorf("%s requires exactly one %s file", cmd, ext)
	}
	return o.Args[0], checkExt(o.Args[0], ext)
}

func loadBytecode(file string) (*bytecode.Code, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, errors.Wrap(err, "open bytecode")
	}
	defer f.Close()
	return bytecode.Parse(f, file)
}
