package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"nutrishaweb/src/internal/api"
	"nutrishaweb/src/internal/config"
	"nutrishaweb/src/internal/domain"
	"nutrishaweb/src/internal/service/hook"
	"nutrishaweb/src/internal/service/watch"
)

type Orchestrator struct {
	ctx *domain.Context
	out io.Writer
}

// CreateOrchestrator returns an orchestrator printing operator output to out.
func CreateOrchestrator(ctx *domain.Context, out io.Writer) *Orchestrator {
	return &Orchestrator{
		ctx: ctx,
		out: out,
	}
}

// Run serves until parent is cancelled or the process receives SIGINT or
// SIGTERM. Only startup failures are returned; a stop is not an error.
func (o *Orchestrator) Run(parent context.Context) error {
	log := o.ctx.Log
	cfg := o.ctx.Config
	log.Debugf("Starting NutrishaAI website server (Version: %s)...", cfg.Version)

	server, err := api.Create(o.ctx)
	if err != nil {
		return err
	}
	defer server.Close()

	ln, err := server.Listen()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Watching() {
		if err := o.startWatcher(ctx, server); err != nil {
			ln.Close()
			return err
		}
	}

	_, port, _ := net.SplitHostPort(ln.Addr().String())
	PrintBanner(o.out, cfg, port)

	if err := server.Serve(ctx, ln); err != nil {
		return err
	}

	fmt.Fprintln(o.out, "\n🛑 Server stopped.")
	return nil
}

func (o *Orchestrator) startWatcher(ctx context.Context, server *api.Api) error {
	cfg := o.ctx.Config
	debounce, err := config.DebounceDuration(cfg)
	if err != nil {
		return err
	}

	w, err := watch.New(cfg.Root, cfg.WatchIgnore, debounce, o.ctx.Log)
	if err != nil {
		return err
	}

	var runner *hook.Runner
	if cfg.OnChange != "" {
		runner = hook.New(cfg.OnChange, cfg.Root, o.out, o.ctx.Log)
	}

	onChange := func(paths []string) {
		if runner != nil {
			// Runs off the watcher loop so events keep being collected.
			go func() {
				err := runner.Run(ctx, paths)
				switch {
				case errors.Is(err, hook.ErrBusy):
					o.ctx.Log.Debugf("On-change command still running, skipped %d paths", len(paths))
					return
				case err != nil:
					o.ctx.Log.Errorf("%v", err)
				}
				if cfg.LiveReload {
					server.Reloads().Broadcast(domain.ReloadMessage{Paths: paths})
				}
			}()
			return
		}
		server.Reloads().Broadcast(domain.ReloadMessage{Paths: paths})
	}

	go func() {
		if err := w.Run(ctx, onChange); err != nil {
			o.ctx.Log.Errorf("File watcher stopped: %v", err)
		}
	}()
	return nil
}
