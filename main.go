// Command puzzleparty starts the collaborative puzzle server.
//
// It serves the puzzle HTTP API, the authenticated event-bus WebSocket,
// Prometheus metrics, and the browser client, with optional ngrok
// tunneling so phones on other networks can join a party.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/puzzleparty/server/api"
	"github.com/puzzleparty/server/auth"
	"github.com/puzzleparty/server/metrics"
	"github.com/puzzleparty/server/puzzle/service"
	"github.com/puzzleparty/server/puzzle/session"
	"github.com/puzzleparty/server/puzzle/tiler"
	"github.com/puzzleparty/server/transport/eventbus"
)

const releaseVersion = "1.0.0"

func main() {
	// Load .env if present; a missing file is not an error.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &Config{}
	if err := newCmd(cfg).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "puzzleparty: %v\n", err)
		os.Exit(1)
	}
}

// run wires the server components and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *Config) error {
	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	store := session.NewStore()
	tiles := tiler.New()

	authStore, err := auth.NewStore(cfg.dbPath)
	if err != nil {
		return fmt.Errorf("open account database: %w", err)
	}
	defer authStore.Close()
	authService := auth.NewService(authStore, cfg.jwtSecret, cfg.jwtExpiry)

	hub := eventbus.NewHub(m, logger)
	puzzleService := service.NewPuzzleService(store, tiles, hub, m, logger)

	// Gateway callbacks close the loop from connection events back into
	// session state.
	hub.SetDisconnectHandler(func(puzzleID, username string) {
		puzzleService.Disconnect(context.Background(), puzzleID, username)
	})
	hub.SetCursorHandler(func(puzzleID, username string, x, y int) {
		puzzleService.RecordCursor(context.Background(), puzzleID, username, x, y)
	})

	apiServer := api.NewServer(puzzleService, authService, hub, api.Options{
		Metrics:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		PublicURL: cfg.publicURL,
		StaticDir: cfg.staticDir,
		Logger:    logger,
	})

	// Janitor prunes sessions whose last participant left a while ago.
	go func() {
		ticker := time.NewTicker(cfg.sessionGrace / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := store.CleanupEmpty(cfg.sessionGrace); removed > 0 {
					logger.Info("removed idle sessions", "count", removed)
				}
				m.ActiveSessions.Set(float64(store.Count()))
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         cfg.addr(),
		Handler:      apiServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server listening",
			"addr", cfg.addr(),
			"api", fmt.Sprintf("http://%s/api", cfg.addr()),
			"eventbus", fmt.Sprintf("ws://%s/eventbus", cfg.addr()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if cfg.ngrokEnabled {
		go func() {
			if err := runNgrok(ctx, cfg, apiServer, logger); err != nil {
				errCh <- fmt.Errorf("ngrok tunnel: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", "error", err)
	}

	logger.Info("server stopped")
	return nil
}

// runNgrok serves the API through a public ngrok tunnel until ctx is
// cancelled.
func runNgrok(ctx context.Context, cfg *Config, handler http.Handler, logger *slog.Logger) error {
	authToken := cfg.ngrokAuth
	if authToken == "" {
		authToken = os.Getenv("NGROK_AUTHTOKEN")
	}
	if authToken == "" {
		return errors.New("no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
	}

	var tunnel ngrokConfig.Tunnel
	if cfg.ngrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.ngrokDomain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		return err
	}
	defer tun.Close()

	logger.Info("ngrok tunnel established", "url", tun.URL())

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
