package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"atsboost/internal/auth"
	"atsboost/internal/chat"
	"atsboost/internal/config"
	"atsboost/internal/db"
	"atsboost/internal/expert"
	"atsboost/internal/gpt"
	"atsboost/internal/navstate"
	"atsboost/internal/payment"
	"atsboost/internal/realtime"
	"atsboost/internal/server"
	"atsboost/internal/storage"
	"atsboost/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// connectDB retries with a linear backoff while the database comes up.
func connectDB(cfg config.DBConfig, l *logger.Logger) (*db.PostgresDB, error) {
	var (
		database *db.PostgresDB
		err      error
	)
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		database, err = db.NewPostgresDB(cfg)
		if err == nil {
			return database, nil
		}
		l.Errorw("Failed to connect to database, retrying...", "attempt", i+1, "error", err)
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
}

func newVerifier(ctx context.Context, cfg config.AuthConfig) (auth.Verifier, error) {
	if cfg.Provider == "firebase" {
		return auth.NewFirebaseVerifier(ctx, cfg.FirebaseCredentials)
	}
	return auth.NewJWTVerifier(cfg.JWTSecret), nil
}

func serve(cfg *config.Config) error {
	l := logger.ForEnv(cfg.Env)
	defer l.Sync()
	l.Infow("Starting ATS Boost", "env", cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := connectDB(cfg.DB, l)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	bucket := storage.NewClient(cfg.Storage.ProjectURL, cfg.Storage.AnonKey, cfg.Storage.Bucket)
	chatService := chat.NewService(database, bucket, l.Named("chat"))

	// Realtime: one LISTEN connection feeds the per-user hub.
	hub := realtime.NewHub(l.Named("realtime"))
	listener := realtime.NewListener(database, hub, l.Named("realtime"))
	go listener.Run(ctx)

	verifier, err := newVerifier(ctx, cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize auth: %w", err)
	}

	stripeClient := payment.NewStripeClient(cfg.Stripe)
	if !stripeClient.Enabled() {
		l.Warnw("Stripe is not configured, checkout will use placeholder orders")
	}
	checkoutKey := cfg.Checkout.Key
	if checkoutKey == "" {
		checkoutKey = stripeClient.PublishableKey()
	}

	var relay *expert.Relay
	if cfg.Telegram.Token != "" {
		var drafter expert.Drafter
		if cfg.GPT.APIKey != "" {
			drafter = gpt.NewClient(cfg.GPT.APIKey).WithModel(cfg.GPT.Model)
		}
		relay, err = expert.NewRelay(cfg.Telegram.Token, cfg.Telegram.ExpertChatID, chatService, drafter, l.Named("expert"))
		if err != nil {
			return err
		}
		if err := relay.Start(ctx); err != nil {
			return fmt.Errorf("failed to start expert relay: %w", err)
		}
		chatService.AddObserver(relay)
	} else {
		l.Infow("Telegram token not set, expert relay disabled")
	}

	h, err := server.NewHandler(server.Deps{
		Chat:     chatService,
		Payments: stripeClient,
		Orders:   database,
		WS:       realtime.NewWSHandler(hub, cfg.AllowedOrigins, l.Named("ws")),
		Nav:      navstate.NewCodec(cfg.Auth.StateSecret, isHTTPS(cfg.Server.BaseURL)),
		Verifier: verifier,
		Health:   database.Ping,
		Logger:   l.Named("http"),
	}, server.Options{
		BaseURL:           cfg.Server.BaseURL,
		CheckoutKey:       checkoutKey,
		CheckoutScriptURL: cfg.Checkout.ScriptURL,
		AllowedOrigins:    cfg.AllowedOrigins,
		SecureCookies:     isHTTPS(cfg.Server.BaseURL),
	})
	if err != nil {
		return err
	}

	httpServer := server.NewServer(cfg.Server.Port, server.WithCORS(h.SetupRouter(), cfg.AllowedOrigins), l)
	serverErr := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for termination signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		l.Errorw("HTTP server failed", "error", err)
	}

	l.Infow("Shutting down...")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer stop()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		l.Errorw("Error during HTTP server shutdown", "error", err)
	}
	if relay != nil {
		if err := relay.Stop(shutdownCtx); err != nil {
			l.Errorw("Error during relay shutdown", "error", err)
		}
	}

	l.Infow("Stopped")
	return nil
}

func isHTTPS(baseURL string) bool {
	return strings.HasPrefix(baseURL, "https://")
}
