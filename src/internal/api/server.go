package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"nutrishaweb/src/internal/domain"
	"nutrishaweb/src/internal/service/notification"
)

const shutdownTimeout = 5 * time.Second

type Api struct {
	ctx  *domain.Context
	root *os.Root
	hub  *notification.Hub
}

// Create opens the configured root. Files are only ever read through it, so
// neither ".." nor symlinks can reach outside the directory.
func Create(ctx *domain.Context) (*Api, error) {
	root, err := os.OpenRoot(ctx.Config.Root)
	if err != nil {
		return nil, fmt.Errorf("open root %s: %w", ctx.Config.Root, err)
	}
	registerMimeTypes()

	return &Api{
		ctx:  ctx,
		root: root,
		hub:  notification.NewHub(ctx.Log),
	}, nil
}

// Reloads is the hub live reload clients subscribe to.
func (a *Api) Reloads() *notification.Hub {
	return a.hub
}

// Handler composes the request pipeline: access log, then CORS, then routing.
func (a *Api) Handler() http.Handler {
	router := mux.NewRouter()
	// Paths are checked by the static handler; a clean-path redirect from the
	// router would bypass it.
	router.SkipClean(true)
	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	if a.ctx.Config.LiveReload {
		router.HandleFunc(domain.LiveReloadPath, a.handleLiveReload).Methods(http.MethodGet)
		router.HandleFunc(domain.LiveReloadScript, a.handleLiveReloadScript).Methods(http.MethodGet, http.MethodHead)
	}

	router.PathPrefix("/").Handler(a.staticHandler()).Methods(http.MethodGet, http.MethodHead)

	return a.accessLog(cors(router))
}

func (a *Api) Addr() string {
	return net.JoinHostPort(a.ctx.Config.Host, strconv.Itoa(a.ctx.Config.Port))
}

// Listen binds the configured address. A bind failure is the only fatal
// startup condition.
func (a *Api) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", a.Addr())
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", a.Addr(), err)
	}
	return ln, nil
}

// Serve handles connections on ln until ctx is cancelled, then shuts down
// gracefully. A cooperative stop returns nil.
func (a *Api) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.ctx.Log.Debugf("Listening on %s", ln.Addr())
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	// Hijacked live reload sockets are not tracked by Shutdown.
	a.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *Api) Run(ctx context.Context) error {
	ln, err := a.Listen()
	if err != nil {
		return err
	}
	return a.Serve(ctx, ln)
}

func (a *Api) Close() error {
	a.hub.Close()
	return a.root.Close()
}
