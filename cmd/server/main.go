package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finance-tracker/internal/amqp"
	"finance-tracker/internal/auth"
	"finance-tracker/internal/config"
	"finance-tracker/internal/handlers"
	applog "finance-tracker/internal/log"
	"finance-tracker/internal/mail"
	"finance-tracker/internal/services"
	"finance-tracker/internal/storage"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	sessionSweepInterval = time.Hour
	mailBuffer           = 64
	shutdownTimeout      = 30 * time.Second
)

func main() {
	cfg := config.Load()

	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Component: "server",
		JSON:      cfg.LogJSON,
	})
	applog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *applog.Logger) error {
	db, err := storage.NewDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	g, ctx := errgroup.WithContext(ctx)

	queue, closeQueue, err := newMailQueue(ctx, g, cfg, logger)
	if err != nil {
		return err
	}
	defer closeQueue()

	svc := services.New(db, services.Deps{
		Tokens:   auth.NewResetTokens(cfg.SecretKey),
		Mail:     queue,
		BaseURL:  cfg.BaseURL,
		Location: cfg.Location,
		Logger:   logger,
	})

	if err := bootstrapAdmin(ctx, svc, cfg, logger); err != nil {
		return err
	}

	h := handlers.NewHandlers(svc, handlers.Options{
		TemplateDir:  cfg.TemplateDir,
		SecureCookie: cfg.SecureCookie,
		Location:     cfg.Location,
		Logger:       logger,
		RateLimit:    rate.Limit(cfg.RateLimitRPS),
		RateBurst:    cfg.RateLimitBurst,
		TrustProxy:   cfg.TrustProxy,
		Health:       db,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           applog.Middleware(logger)(setupRouter(h, cfg.StaticDir)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}

	g.Go(func() error {
		logger.Info("Starting finance tracker", "port", cfg.Port, "base_url", cfg.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		sweepSessions(ctx, db, logger)
		return nil
	})

	return g.Wait()
}

// newMailQueue publishes reset mail to the broker when one is configured,
// and otherwise delivers it from an in-process dispatcher.
func newMailQueue(ctx context.Context, g *errgroup.Group, cfg *config.Config, logger *applog.Logger) (mail.Queue, func(), error) {
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
		}
		logger.Info("Mail is published to the broker", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		return amqp.NewMailQueue(client, logger), func() { _ = client.Close() }, nil
	}

	sender, err := mail.NewSender(cfg.Mail, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize mail sender: %w", err)
	}
	dispatcher := mail.NewDispatcher(sender, mailBuffer, logger)
	g.Go(func() error {
		return dispatcher.Run(ctx)
	})
	logger.Info("Mail is delivered in-process", "provider", cfg.Mail.Provider)
	return dispatcher, func() {}, nil
}

func bootstrapAdmin(ctx context.Context, svc *services.Services, cfg *config.Config, logger *applog.Logger) error {
	if cfg.AdminUser == "" {
		return nil
	}
	email := cfg.AdminEmail
	if email == "" {
		email = cfg.AdminUser + "@localhost"
	}
	created, err := svc.Auth.EnsureUser(ctx, cfg.AdminUser, cfg.AdminPassword, email)
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	if created {
		logger.Info("Admin user created", "username", cfg.AdminUser)
	}
	return nil
}

func sweepSessions(ctx context.Context, db *storage.DB, logger *applog.Logger) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := db.CleanExpiredSessions(ctx)
			if err != nil {
				logger.Error("Failed to clean expired sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("Expired sessions removed", "count", n)
			}
		}
	}
}

// setupRouter registers every route on a new mux.
func setupRouter(h *handlers.Handlers, staticDir string) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	mux.HandleFunc("GET /healthz", h.Health)

	anon := func(fn http.HandlerFunc) http.Handler { return h.AnonymousOnly(fn) }
	// credential and reset-mail forms are throttled per client
	limited := func(fn http.HandlerFunc) http.Handler { return h.AnonymousOnly(h.RateLimit(fn)) }
	authed := func(fn http.HandlerFunc) http.Handler { return h.AuthMiddleware(fn) }

	mux.HandleFunc("GET /{$}", h.Home)
	mux.Handle("GET /register", anon(h.RegisterForm))
	mux.Handle("POST /register", limited(h.Register))
	mux.Handle("GET /login", anon(h.LoginForm))
	mux.Handle("POST /login", limited(h.Login))
	mux.Handle("GET /logout", authed(h.Logout))
	mux.Handle("POST /logout", authed(h.Logout))
	mux.Handle("GET /forgot_password", anon(h.ForgotPasswordForm))
	mux.Handle("POST /forgot_password", limited(h.ForgotPassword))
	mux.Handle("GET /reset_password/{token}", anon(h.ResetPasswordForm))
	mux.Handle("POST /reset_password/{token}", anon(h.ResetPassword))

	mux.Handle("GET /dashboard", authed(h.Dashboard))
	mux.Handle("GET /stats", authed(h.Statistics))
	mux.Handle("GET /add", authed(h.AddTransactionForm))
	mux.Handle("POST /add", authed(h.AddTransaction))
	mux.Handle("GET /edit/{id}", authed(h.EditTransactionForm))
	mux.Handle("POST /edit/{id}", authed(h.EditTransaction))
	mux.Handle("GET /delete/{id}", authed(h.DeleteTransaction))
	mux.Handle("POST /delete/{id}", authed(h.DeleteTransaction))

	mux.Handle("GET /categories", authed(h.ListCategories))
	mux.Handle("GET /categories/add", authed(h.AddCategoryForm))
	mux.Handle("POST /categories/add", authed(h.AddCategory))
	mux.Handle("GET /categories/edit/{id}", authed(h.EditCategoryForm))
	mux.Handle("POST /categories/edit/{id}", authed(h.EditCategory))
	mux.Handle("GET /categories/delete/{id}", authed(h.DeleteCategory))
	mux.Handle("POST /categories/delete/{id}", authed(h.DeleteCategory))

	mux.HandleFunc("/", h.NotFound)

	return h.Recover(handlers.SecurityHeaders(mux))
}
