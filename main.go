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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/imaginify/imaginify/backend/go-services/handlers"
	"github.com/imaginify/imaginify/backend/go-services/internal/cache"
	"github.com/imaginify/imaginify/backend/go-services/internal/clerk"
	"github.com/imaginify/imaginify/backend/go-services/internal/config"
	"github.com/imaginify/imaginify/backend/go-services/internal/database"
	"github.com/imaginify/imaginify/backend/go-services/internal/oidc"
	"github.com/imaginify/imaginify/backend/go-services/internal/storage"
	"github.com/imaginify/imaginify/backend/go-services/internal/users"
	"github.com/imaginify/imaginify/backend/go-services/internal/webhooks"
	"github.com/imaginify/imaginify/backend/go-services/pkg/logger"
	"github.com/imaginify/imaginify/backend/go-services/pkg/metrics"
	"github.com/imaginify/imaginify/backend/go-services/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())
	logger.Infof("config loaded: mongo=%v redis=%v webhook_secret=%v clerk_api=%v",
		cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Webhook.Secret != "", cfg.Clerk.SecretKey != "")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)

	redisClient := connectRedis(ctx, cfg)

	var inv cache.Invalidator = cache.NoopInvalidator{}
	var dedupe webhooks.Deduper = webhooks.NewMemoryDeduper(cfg.Webhook.DedupeTTL)
	if redisClient != nil {
		inv = cache.NewRedisInvalidator(redisClient, "", "")
		dedupe = webhooks.NewRedisDeduper(redisClient, "", cfg.Webhook.DedupeTTL)
	} else {
		logger.Warnf("Redis not configured: cache invalidation is a no-op and webhook dedupe is per-process")
	}

	connector := database.NewConnector(cfg.MongoDB.URI, cfg.MongoDB.Database, cfg.MongoDB.Timeout)
	var repo users.UserRepository
	if connector.Configured() {
		mrepo := users.NewMongoUserRepository(connector, inv)
		ensureIndexes(ctx, mrepo)
		repo = mrepo
	} else {
		repo = users.NewMemoryUserRepository(inv)
	}

	var metadata users.MetadataWriter = clerk.NoopMetadataWriter{}
	if cfg.Clerk.SecretKey != "" {
		metadata = clerk.NewClient(cfg.Clerk.APIURL, cfg.Clerk.SecretKey)
		users.NewReconciler(repo, metadata, cfg.ReconcileInterval).Start(ctx)
	} else {
		logger.Warnf("CLERK_SECRET_KEY is not set; metadata write-back is disabled")
	}

	verifier := webhooks.NewVerifier(cfg.Webhook.Secret)
	if err := verifier.ConfigError(); err != nil {
		logger.Errorf("webhook verifier: %v", err)
	}

	var archive handlers.Archiver
	if acfg, err := storage.LoadArchiveConfig(); err != nil {
		logger.Warnf("archive config: %v", err)
	} else if acfg.Enabled() {
		if s, err := storage.NewMinIOStorage(ctx, acfg); err != nil {
			logger.Warnf("webhook archive disabled: %v", err)
		} else {
			archive = s
			logger.Infof("archiving webhook deliveries to bucket %s", acfg.Bucket)
		}
	}

	tokenVerifier := newTokenVerifier(ctx, cfg)

	if cfg.Server.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.RequestLogger(), gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	var limit []gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			limit = append(limit, middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.Window))
		} else {
			limit = append(limit, middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	handlers.NewWebhookHandler(verifier, webhooks.NewDispatcher(repo, metadata), dedupe, archive, cfg.Webhook.MaxBodyBytes).
		Register(r, limit...)

	api := r.Group("/api/v1", limit...)
	var pageCache gin.HandlerFunc
	if redisClient != nil {
		pageCache = cache.PageCacheMiddleware(redisClient, "", 30*time.Second)
	}
	handlers.NewUsersHandler(users.NewService(repo, inv)).Register(api, authMiddleware(tokenVerifier), pageCache)

	handlers.RegisterHealth(r, startTime, readinessChecks(cfg, connector, redisClient, verifier))
	handlers.RegisterSwagger(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Infof("Starting account sync service on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server forced to shutdown: %v", err)
	}
	if err := connector.Close(shutdownCtx); err != nil {
		logger.Warnf("mongo disconnect: %v", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	logger.Infof("server exited")
}

func connectRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	if cfg.Redis.Host == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
		_ = client.Close()
		return nil
	}
	logger.Infof("Connected to Redis: %s:%s", cfg.Redis.Host, cfg.Redis.Port)
	return client
}

// ensureIndexes retries with backoff to tolerate MongoDB starting after us.
// The connector keeps retrying lazily on later requests if this gives up.
func ensureIndexes(ctx context.Context, repo *users.MongoUserRepository) {
	const maxAttempts = 5
	backoff := time.Second
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := repo.EnsureIndexes(ctx)
		if err == nil {
			return
		}
		logger.Warnf("attempt %d/%d: ensuring user indexes failed: %v", attempt, maxAttempts, err)
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
}

// newTokenVerifier prefers the networkless PEM key, then issuer discovery,
// then the insecure verifier when explicitly allowed.
func newTokenVerifier(ctx context.Context, cfg *config.Config) middleware.Verifier {
	if cfg.Clerk.JWTKey != "" {
		v, err := oidc.NewJWTKeyVerifier(cfg.Clerk.JWTKey, cfg.Clerk.Issuer)
		if err == nil {
			return v
		}
		logger.Warnf("CLERK_JWT_KEY unusable: %v", err)
	}
	if cfg.Clerk.Issuer != "" {
		v, err := oidc.NewVerifier(ctx, cfg.Clerk.Issuer, cfg.Clerk.ClientID)
		if err == nil {
			return v
		}
		logger.Warnf("failed to initialize OIDC verifier: %v", err)
	}
	if cfg.Clerk.AllowInsecureToken {
		logger.Warnf("enabling insecure token verifier (integration mode)")
		return oidc.NewInsecureVerifier()
	}
	logger.Warnf("no token verifier configured; user API answers 503")
	return nil
}

func authMiddleware(v middleware.Verifier) gin.HandlerFunc {
	if v == nil {
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "authentication not configured"})
		}
	}
	return middleware.AuthMiddleware(v)
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	c.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	c.ExposeHeaders = []string{"Content-Length", middleware.RequestIDHeader}
	return c
}

func readinessChecks(cfg *config.Config, connector *database.Connector, rc *redis.Client, v *webhooks.Verifier) map[string]handlers.ReadinessCheck {
	checks := map[string]handlers.ReadinessCheck{
		"webhook_secret": func(context.Context) error { return v.ConfigError() },
	}
	if connector.Configured() {
		checks["mongo"] = connector.Ping
	}
	if cfg.Redis.Host != "" {
		checks["redis"] = func(ctx context.Context) error {
			if rc == nil {
				return errors.New("redis unavailable")
			}
			return rc.Ping(ctx).Err()
		}
	}
	return checks
}
