// cmd/bies/commands/serve.go
package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"bies/internal/repl"
	"bies/internal/server"
)

// ServeCommand runs the playground until interrupted.
func ServeCommand(ctx context.Context, env Env, o *Options, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := openCache(ctx, o, log)
	if err != nil {
		return err
	}
	if c != nil {
		defer c.Close()
	}

	srv := server.New(log, server.Options{MaxSteps: o.MaxSteps, Cache: c})
	fmt.Fprintf(env.Stdout, "Playground on %s (ws path /ws)\n", o.Addr)
	return srv.ListenAndServe(ctx, o.Addr)
}

// CacheCommand inspects or empties the bytecode cache.
func CacheCommand(ctx context.Context, env Env, o *Options, log zerolog.Logger) error {
	if len(o.Args) != 1 {
		return errors.New("cache requires one of: stats, list, clear")
	}
	if o.CacheDSN == "" {
		return errors.New("no cache configured, pass --cache")
	}
	c, err := openCache(ctx, o, log)
	if err != nil {
		return err
	}
	defer c.Close()

	switch o.Args[0] {
	case "stats":
		stats, err := c.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Fprint(env.Stdout, stats)
	case "list":
		entries, err := c.List(ctx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Fprintf(env.Stdout, "%s  %s  %s instructions  %s hits  %s\n",
				e.ID, e.File, humanize.Comma(int64(e.Instructions)), humanize.Comma(e.Hits), humanize.Time(e.Created))
		}
	case "clear":
		n, err := c.Clear(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(env.Stdout, "removed %s entries\n", humanize.Comma(n))
	default:
		return errors.Errorf("unknown cache command %q", o.Args[0])
	}
	return nil
}

// ReplCommand starts the interactive loop on the terminal.
func ReplCommand(ctx context.Context, env Env, o *Options, log zerolog.Logger) error {
	if code := repl.Start(env.Stdout); code != 0 {
		return errors.Wrap(errFailed, "repl")
	}
	return nil
}
