// Package config loads the storefront settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/fjod/storefront/internal/repository"
)

const (
	SessionStoreRedis  = "redis"
	SessionStoreMongo  = "mongo"
	SessionStoreMemory = "memory"
)

type Config struct {
	HTTPPort   string
	GRPCPort   string
	Env        string
	DomainName string

	JWTSecret    string
	JWTExpiresIn time.Duration

	Postgres repository.Credentials

	CatalogDBPath         string
	CatalogMigrationsPath string

	SessionStore  string
	RedisAddr     string
	RedisPassword string
	MongoURI      string
	MongoDBName   string
	CartTTL       time.Duration
	CartIdleTTL   time.Duration

	KafkaBrokers []string

	UploadsDir string
	LogLevel   string
	LogFormat  string

	LoginRateLimit float64
	LoginRateBurst int

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	BootstrapEmail    string
	BootstrapPassword string
}

func (c *Config) Production() bool {
	return c.Env == "production"
}

// Load reads envFiles (missing files are ignored) and then the environment.
// Variables already set in the environment win over file values.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	p := &parser{}
	cfg := &Config{
		HTTPPort:   getEnv("PORT", "5000"),
		GRPCPort:   getEnv("GRPC_PORT", "50060"),
		Env:        getEnv("APP_ENV", "development"),
		DomainName: getEnv("DOMAIN_NAME", ""),

		JWTSecret:    os.Getenv("JWT_SECRET"),
		JWTExpiresIn: p.duration("JWT_EXPIRES_IN", 2*time.Hour),

		Postgres: repository.Credentials{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              p.integer("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", "postgres"),
			DBName:            getEnv("DB_NAME", "storefront"),
			MigrationsDirPath: getEnv("MIGRATIONS_PATH", "./internal/repository/migrations/admins"),
		},

		CatalogDBPath:         getEnv("CATALOG_DB_PATH", "./catalog.db"),
		CatalogMigrationsPath: getEnv("CATALOG_MIGRATIONS_PATH", "./internal/repository/migrations/catalog"),

		SessionStore:  strings.ToLower(getEnv("SESSION_STORE", SessionStoreRedis)),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:   getEnv("MONGO_DB_NAME", "storefront"),
		CartTTL:       p.duration("CART_TTL", 720*time.Hour),
		CartIdleTTL:   p.duration("CART_IDLE_TTL", 30*time.Minute),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),

		UploadsDir: getEnv("UPLOADS_DIR", "./uploads"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "json"),

		LoginRateLimit: p.float("LOGIN_RATE_LIMIT", 1),
		LoginRateBurst: p.integer("LOGIN_RATE_BURST", 5),

		RequestTimeout:  p.duration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),

		BootstrapEmail:    os.Getenv("ADMIN_BOOTSTRAP_EMAIL"),
		BootstrapPassword: os.Getenv("ADMIN_BOOTSTRAP_PASSWORD"),
	}

	switch cfg.SessionStore {
	case SessionStoreRedis, SessionStoreMongo, SessionStoreMemory:
	default:
		p.errs = append(p.errs, fmt.Errorf("SESSION_STORE: unknown store %q", cfg.SessionStore))
	}
	if cfg.LoginRateLimit <= 0 {
		p.errs = append(p.errs, errors.New("LOGIN_RATE_LIMIT: must be positive"))
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// AllowedOrigins lists the browser origins accepted by CORS.
func (c *Config) AllowedOrigins() []string {
	origins := []string{"http://localhost:3000"}
	if c.DomainName != "" {
		origins = append(origins,
			"https://"+c.DomainName,
			"http://"+c.DomainName,
			"https://www."+c.DomainName,
			"http://www."+c.DomainName,
		)
	}
	return origins
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parser collects conversion errors so every bad key is reported at once.
type parser struct {
	errs []error
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (p *parser) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
