package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yourhelpa/helpa-server-go/internal/assistant"
	"github.com/yourhelpa/helpa-server-go/internal/config"
	"github.com/yourhelpa/helpa-server-go/internal/database"
	"github.com/yourhelpa/helpa-server-go/internal/handler"
	"github.com/yourhelpa/helpa-server-go/internal/jobs"
	"github.com/yourhelpa/helpa-server-go/internal/lock"
	"github.com/yourhelpa/helpa-server-go/internal/middleware"
	"github.com/yourhelpa/helpa-server-go/internal/monnify"
	"github.com/yourhelpa/helpa-server-go/internal/redis"
	"github.com/yourhelpa/helpa-server-go/internal/repository"
	"github.com/yourhelpa/helpa-server-go/internal/service"
	"github.com/yourhelpa/helpa-server-go/internal/sms"
	"github.com/yourhelpa/helpa-server-go/internal/whatsapp"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to read .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)
	if cfg.IsProduction() {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	if err := cfg.Validate(cfg.IsProduction()); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(context.Background(), config.MigrateTimeout)
	if err := db.Migrate(migrateCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}
	cancel()
	log.Info().Msg("database connected")

	var (
		locker  lock.Locker
		limiter middleware.Limiter
		checks  = []handler.Check{{Name: "database", Ping: db.Ping}}
	)
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")

		locker = lock.NewRedisLocker(redisClient.Client, cfg.SessionLockTTL(), config.SessionLockWait)
		limiter = middleware.NewRedisRateLimiter(redisClient.Client)
		checks = append(checks, handler.Check{Name: "redis", Ping: redisClient.Healthy})
	} else {
		log.Warn().Msg("REDIS_URL not set: using in-process session locks and rate limits")
		locker = lock.NewLocalLocker(config.SessionLockWait)
		limiter = middleware.NewMemoryRateLimiter()
	}

	userRepo := repository.NewUserRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	catalogRepo := repository.NewCatalogRepository(db.DB)
	providerRepo := repository.NewProviderRepository(db.DB)
	transactionRepo := repository.NewTransactionRepository(db.DB)
	paymentEventRepo := repository.NewPaymentEventRepository(db.DB)
	ledger := repository.NewPaymentLedger(db, transactionRepo, sessionRepo)

	messenger := whatsapp.NewClient(whatsapp.Config{
		BaseURL:       cfg.MetaAPIBaseURL,
		APIVersion:    cfg.MetaAPIVersion,
		PhoneNumberID: cfg.MetaPhoneNumberID,
		AccessToken:   cfg.MetaAccessToken,
		DryRun:        cfg.MetaDryRun,
		Timeout:       config.MessagingTimeout,
	})
	if !messenger.Live() {
		log.Warn().Msg("whatsapp credentials missing or dry run enabled: outbound messages will only be logged")
	}

	payments := monnify.NewClient(monnify.Config{
		BaseURL:      cfg.MonnifyBaseURL,
		APIKey:       cfg.MonnifyAPIKey,
		SecretKey:    cfg.MonnifySecretKey,
		ContractCode: cfg.MonnifyContractCode,
		CurrencyCode: cfg.CurrencyCode,
		RedirectURL:  cfg.MonnifyRedirectURL,
		Timeout:      config.PaymentTimeout,
	})
	if !payments.Configured() {
		log.Warn().Msg("monnify credentials missing: payment links will be placeholders")
	}

	oracle := assistant.NewClient(assistant.Config{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
		Timeout: config.AssistantTimeout,
	})

	var codes service.CodeSender = service.NewMessengerCodeSender(messenger)
	if cfg.TwilioConfigured() {
		sender, err := sms.NewTwilioSender(sms.Config{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			From:       cfg.TwilioSMSFrom,
			Timeout:    config.SMSTimeout,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure sms")
		}
		codes = sender
	} else {
		log.Warn().Msg("twilio not configured: confirmation codes will be sent over whatsapp")
	}

	sessionService := service.NewSessionService(sessionRepo, locker)
	dialogueService := service.NewDialogueService(
		userRepo, sessionService, catalogRepo, providerRepo, transactionRepo,
		oracle, payments, codes, messenger,
		service.DialogueConfig{PayerEmailDomain: cfg.PayerEmailDomain, SegmentGap: config.SegmentGap},
	)
	reconcileService := service.NewReconcileService(
		userRepo, transactionRepo, paymentEventRepo, ledger, sessionService, messenger, cfg.PayerEmailDomain,
	)

	metaGate := middleware.NewSignatureMiddleware(middleware.MetaSignature(), cfg.MetaAppSecret, cfg.AllowInsecureWebhooks)
	monnifyGate := middleware.NewSignatureMiddleware(middleware.MonnifySignature(), cfg.MonnifySecretKey, cfg.AllowInsecureWebhooks)
	webhookLimit := middleware.NewIPRateLimitMiddleware(limiter, cfg.RateLimitMax, cfg.RateLimitWindow(), "webhook")

	healthHandler := handler.NewHealthHandler(checks...)
	whatsappHandler := handler.NewWhatsAppHandler(dialogueService, cfg.MetaVerifyToken)
	monnifyHandler := handler.NewMonnifyHandler(reconcileService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	r.Use(middleware.BodyLimit(middleware.DefaultMaxBodySize))

	r.Get("/health", healthHandler.Health)
	r.Get("/", healthHandler.Root)

	r.Group(func(r chi.Router) {
		r.Use(webhookLimit.Handler)

		r.Get("/webhook", whatsappHandler.Verify)
		r.With(metaGate.Handler).Post("/webhook", whatsappHandler.Webhook)
		r.With(monnifyGate.Handler).Post("/monnify-webhook", monnifyHandler.Webhook)
	})

	cleanupJob := jobs.NewCleanupJob(paymentEventRepo, cfg.PaymentEventRetention(), config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerRequestTimeout + config.ServerReadTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("env", cfg.AppEnv).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
