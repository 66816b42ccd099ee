package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/config"
	storegrpc "github.com/fjod/storefront/internal/grpc"
	storehttp "github.com/fjod/storefront/internal/http"
	"github.com/fjod/storefront/internal/publisher"
	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/internal/service"
	"github.com/fjod/storefront/pkg/logger"
)

type sessionStore interface {
	cache.CartCache
	Ping(ctx context.Context) error
}

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New("storefront", cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()
	zap.ReplaceGlobals(zl)

	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	ctx := context.Background()

	// Admin credential store
	admins, err := repository.NewAdminRepository(&cfg.Postgres, zl)
	if err != nil {
		zl.Fatal("Failed to connect to admin store", zap.Error(err))
	}
	if err := admins.RunMigrations(&cfg.Postgres); err != nil {
		zl.Fatal("Failed to run admin migrations", zap.Error(err))
	}

	// Product catalog
	catalog, err := repository.NewProductRepository(cfg.CatalogDBPath)
	if err != nil {
		zl.Fatal("Failed to open catalog", zap.Error(err))
	}
	if err := catalog.RunMigrations(cfg.CatalogMigrationsPath); err != nil {
		zl.Fatal("Failed to run catalog migrations", zap.Error(err))
	}
	zl.Info("Catalog ready", zap.String("path", cfg.CatalogDBPath))

	// Cart session store
	store, closeStore, err := openSessionStore(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("Failed to open session store", zap.String("store", cfg.SessionStore), zap.Error(err))
	}

	// Admin audit events
	var pub publisher.Publisher = publisher.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		pub = publisher.NewKafkaPublisher(publisher.AuditTopic, cfg.KafkaBrokers...)
		zl.Info("Publishing admin audit events", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	auth, err := service.NewAuthService(admins, pub, zl, service.AuthConfig{
		Secret:   []byte(cfg.JWTSecret),
		TokenTTL: cfg.JWTExpiresIn,
	})
	if err != nil {
		zl.Fatal("Failed to create auth service", zap.Error(err))
	}
	if cfg.BootstrapEmail != "" && cfg.BootstrapPassword != "" {
		created, err := auth.EnsureAdmin(ctx, cfg.BootstrapEmail, cfg.BootstrapPassword)
		if err != nil {
			zl.Fatal("Failed to bootstrap admin", zap.Error(err))
		}
		if created {
			zl.Info("Bootstrap admin created", zap.String("email", cfg.BootstrapEmail))
		}
	}

	carts := service.NewCartService(store, zl, cfg.CartIdleTTL)

	limiter := storehttp.NewLoginLimiter(cfg.LoginRateLimit, cfg.LoginRateBurst, zl)
	limiterCtx, stopLimiter := context.WithCancel(ctx)
	go limiter.Run(limiterCtx, 10*time.Minute)

	router := storehttp.NewRouter(storehttp.RouterConfig{
		Env:            cfg.Env,
		Production:     cfg.Production(),
		AllowedOrigins: cfg.AllowedOrigins(),
		UploadsDir:     cfg.UploadsDir,
		RequestTimeout: cfg.RequestTimeout,
	}, storehttp.Handlers{
		Admin:        storehttp.NewAdminHandler(auth, cfg.Production(), zl),
		Products:     storehttp.NewProductHandler(catalog, cfg.RequestTimeout, zl),
		Cart:         storehttp.NewCartHandler(carts, catalog, cfg.Production(), cfg.RequestTimeout, zl),
		Tokens:       auth,
		LoginLimiter: limiter,
	}, zl)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	health := storegrpc.NewHealthServer([]storegrpc.Check{
		{Service: storegrpc.AdminStoreService, Probe: admins.Ping},
		{Service: storegrpc.CartStoreService, Probe: store.Ping},
	}, 15*time.Second, zl)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		zl.Fatal("Failed to listen", zap.String("port", cfg.GRPCPort), zap.Error(err))
	}

	go func() {
		zl.Info("gRPC health server listening", zap.String("port", cfg.GRPCPort))
		if err := health.Serve(lis); err != nil {
			zl.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	go func() {
		zl.Info("Storefront listening", zap.String("port", cfg.HTTPPort), zap.String("env", cfg.Env))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("Shutting down storefront...")
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()

	health.Shutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Error("HTTP server shutdown", zap.Error(err))
	}
	stopLimiter()

	if err := carts.Close(); err != nil {
		zl.Error("Cart service shutdown", zap.Error(err))
	}
	if err := auth.Close(); err != nil {
		zl.Error("Auth service shutdown", zap.Error(err))
	}
	if err := pub.Close(); err != nil {
		zl.Error("Publisher shutdown", zap.Error(err))
	}
	if err := closeStore(shutdownCtx); err != nil {
		zl.Error("Session store shutdown", zap.Error(err))
	}
	if err := catalog.Close(); err != nil {
		zl.Error("Catalog shutdown", zap.Error(err))
	}
	if err := admins.Close(); err != nil {
		zl.Error("Admin store shutdown", zap.Error(err))
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		zl.Error("Tracer provider shutdown", zap.Error(err))
	}
	zl.Info("Storefront stopped")
}

// openSessionStore connects the configured cart session backend.
func openSessionStore(ctx context.Context, cfg *config.Config, zl *zap.Logger) (sessionStore, func(context.Context) error, error) {
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		zl.Info("Redis ping succeeded", zap.String("addr", cfg.RedisAddr))
		return cache.NewRedisCache(client, cfg.CartTTL), func(context.Context) error { return client.Close() }, nil

	case config.SessionStoreMongo:
		db, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		store := repository.NewMongoCartStore(db, cfg.CartTTL)
		if err := store.CreateIndexes(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, nil, fmt.Errorf("create cart indexes: %w", err)
		}
		zl.Info("Connected to MongoDB", zap.String("db", cfg.MongoDBName))
		return store, store.Close, nil

	default:
		zl.Warn("Using in-memory cart store; carts will not survive a restart")
		return cache.NewMemoryCache(), func(context.Context) error { return nil }, nil
	}
}
