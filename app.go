// app.go
package gatewire

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"
)

// App owns the HTTP server lifecycle around a root Stage (typically a
// modules/vhost dispatcher wrapping one Pipeline per virtual host). It
// favors the standard library for graceful shutdown and adds the signal
// plumbing a reverse proxy needs beyond a plain web app: SIGHUP/SIGUSR1
// are forwarded to any registered ReloadHandler (log file reopen,
// configuration reload) in addition to the SIGINT/SIGTERM drain.
type App struct {
	root Stage

	preShutdownDelay time.Duration // wait after marking unready
	shutdownTimeout  time.Duration // max drain window

	shuttingDown atomic.Bool // exposed by HealthzHandler
	log          *slog.Logger

	reloadHandlers []func()
}

// AppOption configures App.
type AppOption func(*App)

// WithLogger sets the logger. If nil, slog.Default is used.
func WithLogger(l *slog.Logger) AppOption {
	return func(a *App) {
		if l != nil {
			a.log = l
		}
	}
}

// WithPreShutdownDelay sets the delay after flipping readiness and before Shutdown.
func WithPreShutdownDelay(d time.Duration) AppOption {
	return func(a *App) {
		if d >= 0 {
			a.preShutdownDelay = d
		}
	}
}

// WithShutdownTimeout sets the maximum duration for http.Server.Shutdown.
func WithShutdownTimeout(d time.Duration) AppOption {
	return func(a *App) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

// WithReloadHandler registers fn to run whenever the process receives
// SIGHUP or SIGUSR1 — modules/commonlog uses this to reopen its log file
// after log rotation without restarting the server.
func WithReloadHandler(fn func()) AppOption {
	return func(a *App) {
		if fn != nil {
			a.reloadHandlers = append(a.reloadHandlers, fn)
		}
	}
}

// New creates an App serving root.
func New(root Stage, opts ...AppOption) *App {
	a := &App{
		root:             root,
		preShutdownDelay: 1 * time.Second,
		shutdownTimeout:  15 * time.Second,
	}
	for _, o := range opts {
		o(a)
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	return a
}

// Logger returns the app logger.
func (a *App) Logger() *slog.Logger { return a.log }

// ServeHTTP drives a single request through the root Stage. If root is
// itself a *Pipeline this delegates directly; otherwise it is wrapped in
// a single-stage Pipeline so the same request/response/logging sequence
// always applies.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if p, ok := a.root.(*Pipeline); ok {
		p.ServeHTTP(w, r)
		return
	}
	NewPipeline(a.root).ServeHTTP(w, r)
}

// HealthzHandler reports 200 while serving and 503 after shutdown begins.
func (a *App) HealthzHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if a.shuttingDown.Load() {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok\n")
	})
}

// Listen starts an HTTP server at addr and handles SIGINT, SIGTERM,
// SIGHUP and SIGUSR1.
func (a *App) Listen(addr string) error {
	srv := &http.Server{Addr: addr, Handler: a}
	return a.serveWithSignals(srv, func() error { return srv.ListenAndServe() })
}

// ListenTLS starts an HTTPS server with the same signal handling as Listen.
func (a *App) ListenTLS(addr, certFile, keyFile string) error {
	srv := &http.Server{Addr: addr, Handler: a}
	return a.serveWithSignals(srv, func() error { return srv.ListenAndServeTLS(certFile, keyFile) })
}

// Serve serves on a custom listener with the same signal handling as Listen.
func (a *App) Serve(l net.Listener) error {
	srv := &http.Server{Addr: l.Addr().String(), Handler: a}
	return a.serveWithSignals(srv, func() error { return srv.Serve(l) })
}

// ServeContext runs the server until ctx is canceled, then performs a graceful drain.
func (a *App) ServeContext(ctx context.Context, srv *http.Server, serveFn func() error) error {
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	srv.BaseContext = func(net.Listener) context.Context { return baseCtx }

	log := a.Logger().With(
		slog.String("addr", srv.Addr),
		slog.Int("pid", os.Getpid()),
		slog.String("go_version", runtime.Version()),
	)
	log.Info("server starting")

	errCh := make(chan error, 1)
	go func() {
		if err := serveFn(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server start failed", slog.Any("error", err))
		}
		return err

	case <-ctx.Done():
		start := time.Now()
		a.shuttingDown.Store(true)
		log.Info("shutdown initiated")

		if a.preShutdownDelay > 0 {
			time.Sleep(a.preShutdownDelay)
		}

		drainCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(drainCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// Grace period expired or other failure. Close and cancel base to nudge handlers.
			log.Warn("graceful shutdown incomplete", slog.Any("error", err))
			_ = srv.Close()
			cancelBase()
		} else {
			// Drain completed. Cancel base to release any background waiters tied to BaseContext.
			cancelBase()
		}

		if err := <-errCh; err != nil {
			log.Error("server exit error after shutdown", slog.Any("error", err))
			return err
		}

		log.Info("server stopped gracefully", slog.Duration("duration", time.Since(start)))
		return nil
	}
}

// serveWithSignals wraps ServeContext with a signal-aware parent context
// for the drain trigger, and separately forwards SIGHUP/SIGUSR1 to every
// registered reload handler for the lifetime of the server.
func (a *App) serveWithSignals(srv *http.Server, serveFn func() error) error {
	parent, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reloadCh := make(chan os.Signal, 1)
	signal.Notify(reloadCh, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(reloadCh)

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-reloadCh:
				a.log.Info("reload signal received")
				for _, fn := range a.reloadHandlers {
					fn()
				}
			case <-done:
				return
			}
		}
	}()

	return a.ServeContext(parent, srv, serveFn)
}
