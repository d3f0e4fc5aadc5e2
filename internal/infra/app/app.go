package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/port"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/infra/config"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/infra/database"
	kafkainfra "github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/infra/kafka"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/infra/logger"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/infra/mailer"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/infra/mlclient"
	redisinfra "github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/infra/redis"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/infra/security"
	postgresrepo "github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/repository/postgres"
	redisrepo "github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/repository/redis"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/transport/http/middleware"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/transport/http/routes"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/usecase"
)

// Application owns the wired dependency graph and the HTTP server lifecycle.
type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	kafka  *kafkainfra.Producer
}

// New builds the application from configuration: connections first, then
// repositories, services, and finally the HTTP routes.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	keyProvider, signingKID, err := newKeyProvider(cfg.JWT.KeyDirectory, cfg.App.Env, log)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init key provider: %w", err)
	}

	tokens, err := security.NewJWTManager(security.JWTManagerOptions{
		Provider:   keyProvider,
		KID:        signingKID,
		Issuer:     cfg.JWT.Issuer,
		SessionTTL: cfg.JWT.SessionTokenTTL,
		ResetTTL:   cfg.JWT.ResetTokenTTL,
	})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init jwt manager: %w", err)
	}

	if err := security.ConfigureArgon2(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}); err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	var (
		eventPublisher port.EventPublisher
		kafkaProducer  *kafkainfra.Producer
	)
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			kafkaProducer = producer
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	var otpMailer port.OTPMailer
	if cfg.SMTP.Host != "" {
		otpMailer = mailer.NewSMTPMailer(cfg.SMTP, log)
	} else {
		log.Info("smtp host not configured, reset codes are logged instead of mailed")
		otpMailer = mailer.NewLoggingMailer(log)
	}

	repos := postgresrepo.NewRepositories(pool)
	otpStore := redisrepo.NewOTPStore(redisClient.Client(), cfg.Redis.OTPPrefix)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitStore(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	passwordValidator := security.DefaultPasswordValidator()

	authService := usecase.NewAuthService(repos.Users, tokens, passwordValidator, eventPublisher, log)
	passwordResetService := usecase.NewPasswordResetService(
		repos.Users,
		otpStore,
		otpMailer,
		tokens,
		rateLimitStore,
		eventPublisher,
		passwordValidator,
		log,
		usecase.PasswordResetOptions{
			Window:      rateLimitWindow,
			MaxRequests: cfg.RateLimit.PasswordResetMaxAttempts,
		},
	)
	twoFactorService := usecase.NewTwoFactorService(repos.Users, eventPublisher, cfg.App.Name, log)
	userService := usecase.NewUserService(repos.Users, repos.History, repos.Favorites, log)
	favoriteService := usecase.NewFavoriteService(repos.Favorites)

	var analyticsService *usecase.AnalyticsService
	if cfg.ML.BaseURL != "" {
		mlClient, err := mlclient.New(cfg.ML, log)
		if err != nil {
			pool.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init ml client: %w", err)
		}
		analyticsService = usecase.NewAnalyticsService(mlClient, userService, log)
	} else {
		log.Warn("ml base url not configured, analytics routes disabled")
	}

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Metrics:     metrics,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:          authService,
			PasswordReset: passwordResetService,
			TwoFactor:     twoFactorService,
			Users:         userService,
			Favorites:     favoriteService,
			Analytics:     analyticsService,
		},
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		kafka:  kafkaProducer,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.kafka != nil {
			_ = a.kafka.Close()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting driplytics API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// newKeyProvider loads signing keys from disk, falling back to an ephemeral
// key pair outside production. Tokens signed with an ephemeral key do not
// survive a restart.
func newKeyProvider(keyDir, env string, log *zap.Logger) (security.KeyProvider, string, error) {
	provider, err := security.NewDirKeyProvider(keyDir)
	if err == nil {
		return provider, provider.SigningKID(), nil
	}

	if env == "production" {
		return nil, "", fmt.Errorf("load signing keys from %s: %w", keyDir, err)
	}

	log.Warn("key directory unavailable, generating an ephemeral signing key",
		zap.String("key_directory", keyDir),
		zap.Error(err),
	)

	ephemeral, err := security.NewEphemeralKeyProvider("ephemeral")
	if err != nil {
		return nil, "", err
	}
	return ephemeral, ephemeral.SigningKID(), nil
}
