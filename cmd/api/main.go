package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"
	"github.com/slack-go/slack"

	"github.com/crafted/backend/internal/ai"
	"github.com/crafted/backend/internal/auth"
	"github.com/crafted/backend/internal/brand"
	"github.com/crafted/backend/internal/config"
	"github.com/crafted/backend/internal/dashboard"
	"github.com/crafted/backend/internal/database"
	"github.com/crafted/backend/internal/jobs"
	"github.com/crafted/backend/internal/ledger"
	"github.com/crafted/backend/internal/metrics"
	"github.com/crafted/backend/internal/middleware"
	"github.com/crafted/backend/internal/payments"
	"github.com/crafted/backend/internal/repository"
	"github.com/crafted/backend/internal/slackbot"
	"github.com/crafted/backend/internal/tasks"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		logger.Error("schema migrations failed", "error", err)
		os.Exit(1)
	}
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		logger.Error("river migrator init failed", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		logger.Error("river migrations failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database ready")

	// Repositories
	userRepo := repository.NewUserRepo(pool)
	taskRepo := repository.NewTaskRepo(pool)
	fileRepo := repository.NewFileRepo(pool)
	messageRepo := repository.NewMessageRepo(pool)
	creditRepo := repository.NewCreditRepo(pool)
	payoutRepo := repository.NewPayoutRepo(pool)
	webhookRepo := repository.NewWebhookRepo(pool)
	brandRepo := repository.NewBrandRepo(pool)
	styleRepo := repository.NewStyleRepo(pool)

	collector := metrics.NewCollector()

	// Ledger
	ledgerSvc := ledger.NewService(pool, userRepo, creditRepo)
	ledgerSvc.Metrics = collector
	payoutSvc := &ledger.PayoutService{
		Pool:             pool,
		Users:            userRepo,
		Credits:          creditRepo,
		Earnings:         creditRepo,
		Payouts:          payoutRepo,
		PricePerCredit:   cfg.PricePerCredit,
		ArtistPercentage: cfg.ArtistPercentage,
		HoldingPeriod:    cfg.HoldingPeriod,
		Metrics:          collector,
	}

	// External services
	stripeClient := payments.NewStripeClient(
		cfg.StripeSecretKey,
		int64(cfg.PricePerCredit*100),
		cfg.CheckoutSuccessURL,
		cfg.CheckoutCancelURL,
		cfg.ConnectRefreshURL,
		cfg.ConnectReturnURL,
	)
	notifier := slackbot.NewNotifier(slack.New(cfg.SlackBotToken), cfg.SlackAdminChannel, logger)
	aiClient := ai.NewClient(cfg.AIAPIURL, cfg.AIAPIKey)
	scraper := brand.NewScraper(brand.NewGuard(), brandRepo, cfg.ScrapeTimeout, cfg.ScrapeMaxBytes, logger)

	// River workers and client
	workers := river.NewWorkers()
	jobs.AddWorkers(workers,
		&jobs.NotifyReviewWorker{Tasks: taskRepo, Users: userRepo, Notifier: notifier, Metrics: collector, Logger: logger},
		&jobs.ClassifyTaskWorker{Tasks: taskRepo, AI: aiClient, Notifier: notifier, Metrics: collector, Logger: logger},
		&jobs.ScrapeBrandWorker{Scraper: scraper, Metrics: collector},
		&jobs.ExecutePayoutWorker{
			Payouts: payoutRepo, Settler: payoutSvc, Users: userRepo,
			Stripe: stripeClient, Notifier: notifier, Metrics: collector, Logger: logger,
		},
	)
	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
	})
	if err != nil {
		logger.Error("river client init failed", "error", err)
		os.Exit(1)
	}
	enqueuer := jobs.NewEnqueuer(riverClient)

	// Auth
	authSvc := auth.NewService(userRepo, cfg.JWTSecret, cfg.TokenExpiry)

	// Handlers
	authHandler := &auth.Handler{Service: authSvc, Logger: logger}
	validator, err := tasks.NewValidator()
	if err != nil {
		logger.Error("request schema compilation failed", "error", err)
		os.Exit(1)
	}
	taskHandler := &tasks.Handler{
		Pool:                pool,
		Tasks:               taskRepo,
		Files:               fileRepo,
		Messages:            messageRepo,
		Users:               userRepo,
		Ledger:              ledgerSvc,
		Validator:           validator,
		Jobs:                enqueuer,
		AdminReviewRequired: cfg.AdminReviewRequired,
		Logger:              logger,
	}
	paymentHandler := &payments.Handler{
		Stripe:           stripeClient,
		Payouts:          payoutSvc,
		PayoutRows:       payoutRepo,
		Users:            userRepo,
		Jobs:             enqueuer,
		PricePerCredit:   cfg.PricePerCredit,
		ArtistPercentage: cfg.ArtistPercentage,
		Logger:           logger,
	}
	webhookHandler := &payments.WebhookHandler{
		Verify:   payments.NewEventVerifier(cfg.StripeWebhookSecret),
		Webhooks: webhookRepo,
		Ledger:   ledgerSvc,
		Users:    userRepo,
		Payouts:  payoutSvc,
		Metrics:  collector,
		Logger:   logger,
	}
	interactionHandler := &slackbot.InteractionHandler{
		SigningSecret: cfg.SlackSigningSecret,
		Reviewer:      taskHandler,
		Webhooks:      webhookRepo,
		Metrics:       collector,
		Logger:        logger,
	}
	brandHandler := &brand.Handler{
		Guard:    brand.NewGuard(),
		Profiles: brandRepo,
		Styles:   styleRepo,
		Jobs:     enqueuer,
		Logger:   logger,
	}
	dashHandler := &dashboard.Handler{
		Credits: creditRepo,
		Users:   userRepo,
		Payouts: payoutRepo,
		Tasks:   taskRepo,
		Logger:  logger,
	}

	mux := newRouter(routerDeps{
		Auth:         authHandler,
		Tasks:        taskHandler,
		Payments:     paymentHandler,
		Webhooks:     webhookHandler,
		Interactions: interactionHandler,
		Brands:       brandHandler,
		Dashboard:    dashHandler,
		Tokens:       authSvc,
		Users:        userRepo,
		Metrics:      collector,
		RateLimit:    middleware.NewRateLimiter(cfg.RateLimitPerMin),
	})

	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(middleware.Metrics(collector)(mux))

	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			logger.Error("river client stopped", "error", err)
		}
	}()

	addr := "0.0.0.0:" + cfg.Port
	logger.Info("http server listening", "addr", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
}
