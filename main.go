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

	"github.com/go-playground/validator/v10"

	"github.com/example/quotesapi/internal/auth"
	cfg "github.com/example/quotesapi/internal/config"
	"github.com/example/quotesapi/internal/mail"
	"github.com/example/quotesapi/internal/quotes"
	"github.com/example/quotesapi/internal/store"
)

type App struct {
	cfg         *cfg.Config
	DB          store.DB
	auth        *auth.Service
	quotes      *quotes.Service
	guard       *auth.Guard
	logger      *slog.Logger
	validate    *validator.Validate
	rateLimiter *RateLimiter
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	c, err := cfg.New()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := NewLogger(c)
	slog.SetDefault(logger)

	db, err := openDB(c, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	var notifier auth.Notifier = mail.NewLogSender(logger)
	if c.MailDriver == "smtp" {
		notifier = mail.NewSMTPSender(mail.Config{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			Username: c.SMTPUsername,
			Password: c.SMTPPassword,
			From:     c.SMTPFrom,
		})
	}

	app, err := newApp(c, db, notifier, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      newRouter(app),
		Addr:         ":" + c.Port,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go app.rateLimiter.Run(ctx, time.Minute)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", srv.Addr), slog.String("db", c.DBAdapter))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	logger.Info("server exited properly")
	return nil
}

func openDB(c *cfg.Config, logger *slog.Logger) (store.DB, error) {
	switch c.DBAdapter {
	case "sqlite":
		s, err := store.NewSQLiteDB(c.SQLiteFile)
		if err != nil {
			return nil, fmt.Errorf("sqlite init: %w", err)
		}
		return s, nil
	case "postgres":
		logger.Info("applying database migrations", slog.String("dir", c.MigrationsDir))
		if err := store.ApplyMigrations(c.MigrationsDir, c.PostgresDSN, logger); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		p, err := store.NewPostgresDB(c.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres init: %w", err)
		}
		logger.Info("connected to PostgreSQL database")
		return p, nil
	case "memory":
		logger.Warn("using in-memory database (not recommended for production)")
		return store.NewMemoryDB(), nil
	default:
		return nil, fmt.Errorf("unsupported DB_ADAPTER: %s (supported: postgres, sqlite, memory)", c.DBAdapter)
	}
}

// newApp wires the services. It is shared by main and the handler tests.
func newApp(c *cfg.Config, db store.DB, notifier auth.Notifier, logger *slog.Logger) (*App, error) {
	codec, err := auth.NewCodec(auth.CodecConfig{
		Issuer:  c.TokenIssuer,
		Access:  auth.TokenConfig{Secret: []byte(c.AccessTokenSecret), TTL: c.AccessTokenTTL},
		Refresh: auth.TokenConfig{Secret: []byte(c.RefreshTokenSecret), TTL: c.RefreshTokenTTL},
		Reset:   auth.TokenConfig{Secret: []byte(c.ResetTokenSecret), TTL: c.ResetTokenTTL},
	})
	if err != nil {
		return nil, fmt.Errorf("token codec: %w", err)
	}
	svc := auth.NewService(db, auth.NewBcryptHasher(c.BcryptCost), codec, notifier,
		auth.WithLogger(logger), auth.WithResetURL(c.ResetURL))

	return &App{
		cfg:         c,
		DB:          db,
		auth:        svc,
		quotes:      quotes.NewService(db, logger),
		guard:       auth.NewGuard(codec),
		logger:      logger,
		validate:    newValidator(),
		rateLimiter: NewRateLimiter(c.RateLimitPerMinute),
	}, nil
}
