package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/infra/config"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/transport/http/handlers"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/transport/http/middleware"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth          *usecase.AuthService
	PasswordReset *usecase.PasswordResetService
	TwoFactor     *usecase.TwoFactorService
	Users         *usecase.UserService
	Favorites     *usecase.FavoriteService
	Analytics     *usecase.AnalyticsService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.CORS.AllowedOrigins))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	authMiddleware := middleware.RequireAuth(deps.Services.Auth)
	optionalAuth := middleware.OptionalAuth(deps.Services.Auth)

	healthOptions := make([]handlers.HealthOption, 0, 2)

	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}

	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		authHandler := handlers.NewAuthHandler(deps.Services.Auth)
		passwordHandler := handlers.NewPasswordHandler(deps.Services.PasswordReset)
		twoFactorHandler := handlers.NewTwoFactorHandler(deps.Services.TwoFactor)
		profileHandler := handlers.NewProfileHandler(deps.Services.Users)
		favoritesHandler := handlers.NewFavoritesHandler(deps.Services.Favorites)

		loginMiddlewares := buildLoginMiddlewares(deps)
		resetMiddlewares := buildPasswordResetMiddlewares(deps)

		api.POST("/register", authHandler.Register)
		api.POST("/login", withExtra(loginMiddlewares, authHandler.Login)...)

		api.POST("/forgot-password", withExtra(resetMiddlewares, passwordHandler.Forgot)...)
		api.POST("/verify-otp", passwordHandler.VerifyOTP)
		api.POST("/reset-password", passwordHandler.Reset)
		api.PUT("/change-password", authMiddleware, passwordHandler.Change)

		twoFactorGroup := api.Group("/2fa")
		// Completing a 2FA login happens before a session exists, so the
		// validate route stays outside the auth middleware.
		twoFactorGroup.POST("/validate", withExtra(loginMiddlewares, authHandler.ValidateTwoFactor)...)
		twoFactorGroup.POST("/setup", authMiddleware, twoFactorHandler.Setup)
		twoFactorGroup.POST("/verify", authMiddleware, twoFactorHandler.Verify)
		twoFactorGroup.POST("/disable", authMiddleware, twoFactorHandler.Disable)
		twoFactorGroup.GET("/status", authMiddleware, twoFactorHandler.Status)

		api.GET("/profile", authMiddleware, profileHandler.Get)
		api.PUT("/profile", authMiddleware, profileHandler.Update)
		api.GET("/history/searches", authMiddleware, profileHandler.SearchHistory)
		api.GET("/history/predictions", authMiddleware, profileHandler.PredictionHistory)

		favoritesGroup := api.Group("/favorites")
		favoritesGroup.Use(authMiddleware)
		favoritesGroup.GET("", favoritesHandler.List)
		favoritesGroup.POST("", favoritesHandler.Add)
		favoritesGroup.DELETE("/:sneakerId", favoritesHandler.Remove)

		if deps.Services.Analytics != nil {
			analyticsHandler := handlers.NewAnalyticsHandler(deps.Services.Analytics)
			api.POST("/predict", optionalAuth, analyticsHandler.Predict)
			api.POST("/market-analysis", analyticsHandler.MarketAnalysis)
			api.POST("/hype-score", analyticsHandler.HypeScore)
			api.POST("/google-trends", analyticsHandler.GoogleTrends)
			api.POST("/smart-search", analyticsHandler.SmartSearch)
			api.GET("/sneakers/search", optionalAuth, analyticsHandler.SearchSneakers)
			api.GET("/brands", analyticsHandler.Brands)
		}
	}

	return r
}

func withExtra(extra []gin.HandlerFunc, final gin.HandlerFunc) []gin.HandlerFunc {
	chain := append([]gin.HandlerFunc{}, extra...)
	return append(chain, final)
}

func buildLoginMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.LoginMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       "auth_login_ip",
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}

func buildPasswordResetMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.PasswordResetMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Hour
	}

	rule := middleware.RateLimitRule{
		Name:       "password_reset_ip",
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
