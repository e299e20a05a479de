package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/gauditech/gaudi-sub004/internal/cli"
	"github.com/gauditech/gaudi-sub004/internal/server"
	"github.com/gauditech/gaudi-sub004/pkg/gaudi"
)

const (
	// reloadDebounce groups the file events of one editor save.
	reloadDebounce = 200 * time.Millisecond
	shutdownGrace  = 10 * time.Second
)

// serveCmd serves the APIs of the Definition.
func serveCmd(a *app) *cobra.Command {
	var (
		address string
		watch   bool
		migrate bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the APIs of the blueprint",
		Long: `Serves every API of the Definition over HTTP.

With --watch the blueprint directory is watched: a change that alters the
Definition swaps in a freshly built router, a change to hook sources only
drops the compiled hooks. Requests in flight finish on the router they
started on.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("address") {
				a.cfg.Address = address
			}
			client, err := newClient(a.cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx := cmd.Context()
			rl := &reloader{client: client, migrate: migrate, stderr: a.stderr}
			if err := rl.start(ctx, watch); err != nil {
				return err
			}
			printRoutes(a.stdout, rl.current.Load().Routes())

			if watch {
				dirs := []string{a.cfg.BlueprintDir}
				if rd := client.Config().RuntimeDir; rd != a.cfg.BlueprintDir {
					dirs = append(dirs, rd)
				}
				go func() {
					if err := watchDirs(ctx, dirs, reloadDebounce, func() { rl.reload(ctx) }); err != nil {
						slog.Warn("file watcher stopped", "error", err)
					}
				}()
				slog.Info("watching for changes", "dirs", dirs)
			}

			srv := &http.Server{
				Addr:              a.cfg.Address,
				Handler:           rl,
				ReadHeaderTimeout: 10 * time.Second,
			}
			return listen(ctx, srv)
		},
	}

	cmd.Flags().StringVarP(&address, "address", "a", ":8080", "Address to listen on")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Reload when blueprint or hook files change")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Create missing tables before serving")
	return cmd
}

// listen serves until ctx is done, then shuts srv down gracefully.
func listen(ctx context.Context, srv *http.Server) error {
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	slog.Info("listening", "address", srv.Addr)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func printRoutes(w io.Writer, routes []server.Route) {
	table := cli.NewTable("METHOD", "PATH", "KIND").Style(0, cli.Code).Style(2, cli.Dim)
	for _, r := range routes {
		table.AddRow(r.Method, r.Path, r.Kind)
	}
	fmt.Fprint(w, table.String())
}

// -----------------------------------------------------------------------------
// Reloading
// -----------------------------------------------------------------------------

// reloader serves the current handler and replaces it when the blueprint
// changes.
type reloader struct {
	client  *gaudi.Client
	migrate bool
	stderr  io.Writer
	current atomic.Pointer[gaudi.Handler]
}

func (rl *reloader) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rl.current.Load().ServeHTTP(w, r)
}

// start builds the first handler. A watching server compiles the blueprint,
// since a compiled Definition file would go stale on the first edit.
func (rl *reloader) start(ctx context.Context, fromBlueprint bool) error {
	load := rl.client.LoadDefinition
	if fromBlueprint {
		load = rl.client.Compile
	}
	def, err := load()
	if err != nil {
		return err
	}
	if rl.migrate {
		if _, err := rl.client.Migrate(ctx, def); err != nil {
			return err
		}
	}
	h, err := rl.client.Handler(def)
	if err != nil {
		return err
	}
	rl.current.Store(h)
	return nil
}

// reload recompiles the blueprint. An unchanged Definition keeps its router
// and only drops compiled hooks. Errors keep the previous handler serving.
func (rl *reloader) reload(ctx context.Context) {
	def, err := rl.client.Compile()
	if err != nil {
		fmt.Fprint(rl.stderr, cli.FormatError(err))
		return
	}
	fp, err := rl.client.Fingerprint(def)
	if err != nil {
		fmt.Fprint(rl.stderr, cli.FormatError(err))
		return
	}

	cur := rl.current.Load()
	changed := cur.Fingerprint().Changed(fp)
	if len(changed) == 0 {
		cur.ResetHooks()
		slog.Info("hook sources reloaded")
		return
	}

	if rl.migrate {
		if _, err := rl.client.Migrate(ctx, def); err != nil {
			fmt.Fprint(rl.stderr, cli.FormatError(err))
			return
		}
	}
	h, err := rl.client.Handler(def)
	if err != nil {
		fmt.Fprint(rl.stderr, cli.FormatError(err))
		return
	}
	rl.current.Store(h)
	slog.Info("definition reloaded", "changed", changed, "routes", len(h.Routes()))
}

// watchDirs calls onChange once per burst of file events under dirs until
// ctx is done. Directories created later are watched too.
func watchDirs(ctx context.Context, dirs []string, debounce time.Duration, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				return watcher.Add(path)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("file watcher error", "error", err)

		case <-fire:
			fire = nil
			onChange()
		}
	}
}
