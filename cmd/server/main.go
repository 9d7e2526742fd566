package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CleverOnion/CleverOnion-blog-sub000/cache"
	redisstate "github.com/CleverOnion/CleverOnion-blog-sub000/cache/redis"
	"github.com/CleverOnion/CleverOnion-blog-sub000/config"
	"github.com/CleverOnion/CleverOnion-blog-sub000/internal/federation"
	"github.com/CleverOnion/CleverOnion-blog-sub000/log"
	"github.com/CleverOnion/CleverOnion-blog-sub000/mongodb"
	"github.com/CleverOnion/CleverOnion-blog-sub000/services"
	"github.com/CleverOnion/CleverOnion-blog-sub000/tracing"

	echoapi "github.com/CleverOnion/CleverOnion-blog-sub000/api/echo"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
	}
	appLogger := log.NewZerologAdapter(logLevel, cfg.LogPretty)
	ctx := context.Background()
	appLogger.Info(ctx, "Starting blog auth server", map[string]interface{}{
		"http_port":   cfg.HTTPPort,
		"mongo_db":    cfg.MongoDBName,
		"state_store": cfg.StateStore,
	})

	tracerProvider, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize TracerProvider", err)
	}

	if err := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
		appLogger.Fatal(ctx, "Failed to initialize MongoDB", err)
	}
	db, err := mongodb.GetDatabase()
	if err != nil {
		appLogger.Fatal(ctx, "Failed to get database handle", err)
	}

	userRepo, err := mongodb.NewUserRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to create user repository", err)
	}

	states := newStateStore(cfg)

	signer := services.NewTokenSigner()
	signer.AddKeySigner(cfg.JWTSecretKey)
	tokens := services.NewTokenService(
		signer,
		cfg.JWTSecretKey,
		cfg.JWTIssuer,
		time.Duration(cfg.AccessTokenTTLMin)*time.Minute,
		time.Duration(cfg.RefreshTokenTTLHour)*time.Hour,
	)

	identity := services.NewIdentityService(userRepo)
	auth := services.NewAuthService(states, identity, tokens)
	refresh := services.NewRefreshService(tokens, userRepo)

	github, err := federation.NewGitHubProvider(federation.Config{
		ClientID:     cfg.GitHubClientID,
		ClientSecret: cfg.GitHubClientSecret,
		RedirectURL:  cfg.CallbackBaseURL + "/github",
	})
	if err != nil {
		appLogger.Fatal(ctx, "Failed to configure GitHub provider", err)
	}
	auth.RegisterProvider(github)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	authAPI := echoapi.NewAuthAPI(auth, refresh, userRepo, tokens)
	authAPI.RegisterRoutes(e)

	go func() {
		if err := e.Start(":" + cfg.HTTPPort); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(ctx, "HTTP server failed", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info(ctx, "Shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown failed", err)
	}
	if err := states.Close(); err != nil {
		appLogger.Error(shutdownCtx, "State store close failed", err)
	}
	if err := mongodb.CloseMongoDB(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "MongoDB disconnect failed", err)
	}
	shutdownTracer(shutdownCtx, appLogger, tracerProvider)
}

// newStateStore selects the state store backend. Redis is required when
// more than one instance serves the callback endpoint.
func newStateStore(cfg *config.ServerConfig) cache.StateStore {
	ttl := time.Duration(cfg.StateTTLMin) * time.Minute
	if cfg.StateStore == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return redisstate.NewStateStore(client, "blog_auth", ttl)
	}
	return cache.NewMemoryStateStore(ttl)
}

func shutdownTracer(ctx context.Context, logger log.Logger, tp *sdktrace.TracerProvider) {
	if tp == nil {
		return
	}
	if err := tp.Shutdown(ctx); err != nil {
		logger.Error(ctx, "TracerProvider shutdown failed", err)
	}
}
