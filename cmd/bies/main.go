// cmd/bies/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/rs/zerolog"

	"bies/cmd/bies/commands"
)

const VERSION = "1.0.0"

// Set at build time with -ldflags.
var (
	BuildDate = "unknown"
	GitCommit = "unknown"
)

type command func(context.Context, commands.Env, *commands.Options, zerolog.Logger) error

var table = map[string]command{
	"compile": commands.CompileCommand,
	"run":     commands.RunCommand,
	"exec":    commands.ExecCommand,
	"debug":   commands.DebugCommand,
	"repl":    commands.ReplCommand,
	"serve":   commands.ServeCommand,
	"cache":   commands.CacheCommand,
}

func main() {
	os.Exit(run(os.Args[1:], commands.Env{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}))
}

func run(args []string, env commands.Env) int {
	if len(args) == 0 {
		showUsage(env.Stdout)
		return 1
	}

	switch args[0] {
	case "help", "-h", "-help", "--help":
		showUsage(env.Stdout)
		return 0
	case "version", "-v", "-version", "--version":
		showVersion(env.Stdout)
		return 0
	}

	cmd, ok := table[args[0]]
	if !ok {
		fmt.Fprintf(env.Stderr, "unknown command %q\n\n", args[0])
		showUsage(env.Stderr)
		return 1
	}

	opts, err := commands.ParseOptions(args[1:])
	if err != nil {
		fmt.Fprintln(env.Stderr, err)
		return 1
	}
	log, err := opts.Logger(env)
	if err != nil {
		fmt.Fprintln(env.Stderr, err)
		return 1
	}
	if err := opts.Resolve(log); err != nil {
		fmt.Fprintln(env.Stderr, err)
		return 1
	}
	// The config file may have changed the level.
	if log, err = opts.Logger(env); err != nil {
		fmt.Fprintln(env.Stderr, err)
		return 1
	}

	defer opts.Close()

	err = cmd(context.Background(), env, opts, log)
	if err == nil {
		return 0
	}
	if !commands.IsReported(err) {
		report(env, opts, err)
	}
	log.Debug().Err(err).Str("command", args[0]).Msg("command failed")
	return 1
}

func report(env commands.Env, opts *commands.Options, err error) {
	errw, openErr := opts.ErrorStream(env)
	if openErr != nil {
		fmt.Fprintln(env.Stderr, openErr)
	}
	fmt.Fprintln(errw, err)
}

func showUsage(w io.Writer) {
	fmt.Fprint(w, `bies - compiler and virtual machine for the bies language

Usage:
  bies compile [flags] file.bies...   Compile to .basm next to each source
  bies run [flags] file.basm          Run compiled bytecode
  bies exec [flags] file.bies         Compile in memory and run
  bies debug file.basm|file.bies      Run under the interactive debugger
  bies repl                           Start the interactive prompt
  bies serve [flags]                  Start the WebSocket playground
  bies cache stats|list|clear         Inspect the bytecode cache
  bies version                        Show version information
  bies help                           Show this help

Flags:
  --o file             Write program output (or, for compile, bytecode) to file
  --e file             Write errors to file
  --trace 0|1          Print each instruction before it runs
  --stats              Print run statistics to the error stream
  --cache dsn          Bytecode cache database
  --cache-driver name  sqlite, postgres, mysql or sqlserver (default sqlite)
  --addr host:port     Playground address (default :8080)
  --max-steps n        Instruction budget per run
  --log-level level    debug, info, warn or error (default warn)
  --use-config         Read defaults from .config_biesm.json
  --config file        Read defaults from file
`)
}

func showVersion(w io.Writer) {
	fmt.Fprintf(w, "bies %s\n", VERSION)
	fmt.Fprintf(w, "Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "Go version: %s\n", runtime.Version())
	fmt.Fprintf(w, "Platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
