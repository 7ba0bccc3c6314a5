package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alextreichler/qrmenu/internal/auth"
	"github.com/alextreichler/qrmenu/internal/config"
	"github.com/alextreichler/qrmenu/internal/handlers"
	"github.com/alextreichler/qrmenu/internal/images"
	"github.com/alextreichler/qrmenu/internal/menu"
	"github.com/alextreichler/qrmenu/internal/orders"
	"github.com/alextreichler/qrmenu/internal/realtime"
	"github.com/alextreichler/qrmenu/internal/store/backend"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"
)

const hubBuffer = 64

func main() {
	// Text logs until the configuration says otherwise.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server exited gracefully.")
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(ctx context.Context, cfg *config.Config) error {
	// 2. Init store
	repo, err := backend.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer repo.Close()

	// 3. Session Setup
	sessionStore := sessions.NewCookieStore(cfg.SessionKey)
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.Secure = cfg.CookieSecure
	sessionStore.Options.SameSite = sameSite(cfg.CookieSameSite)
	sessionStore.Options.Path = "/"
	sessionStore.Options.MaxAge = 7 * 24 * 60 * 60
	if cfg.CookieDomain != "" {
		sessionStore.Options.Domain = cfg.CookieDomain
	}

	// 4. Events: local hub, optionally fed through RabbitMQ
	hub := realtime.NewHub(hubBuffer)
	var publisher realtime.Publisher = hub
	var bridge *realtime.Bridge
	if cfg.AMQP.URL != "" {
		bridge, err = realtime.DialBridge(ctx, cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return err
		}
		defer bridge.Close()
		publisher = bridge
	}

	var telegram *realtime.TelegramNotifier
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		telegram, err = realtime.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			return err
		}
	}

	// 5. Services and routes
	imageHost, err := images.NewLocalHost(cfg.UploadDir, cfg.PublicURL)
	if err != nil {
		return err
	}
	mux := handlers.NewRouter(handlers.Deps{
		Menu:           menu.NewService(repo, imageHost),
		Orders:         orders.NewService(repo, publisher),
		Auth:           auth.NewService(repo),
		Sessions:       sessionStore,
		Store:          repo,
		Hub:            hub,
		AllowedOrigins: cfg.AllowedOrigins,
		UploadDir:      cfg.UploadDir,
		MenuURL:        cfg.MenuURL(),
		RateWindow:     cfg.OrderRateWindow,
	})

	// 6. Middleware Setup
	handler := handlers.Secure(mux, handlers.SecurityOptions{
		CSRFKey:        cfg.CSRFKey,
		Secure:         cfg.CookieSecure,
		SameSite:       cfg.CookieSameSite,
		AllowedOrigins: cfg.AllowedOrigins,
		ServerHosts:    []string{"localhost:" + cfg.Port, "127.0.0.1:" + cfg.Port},
	})

	// 7. Start Server with Graceful Shutdown
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server starting", "port", cfg.Port, "store", cfg.Store.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if bridge != nil {
		g.Go(func() error { return bridge.Run(gctx, hub) })
	}
	if telegram != nil {
		g.Go(func() error { return telegram.Run(gctx, hub) })
	}

	return g.Wait()
}

func sameSite(mode string) http.SameSite {
	switch strings.ToLower(mode) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}
