package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	ControlDatabase DatabaseConfig
	TenantPool      TenantPoolConfig
	Redis           RedisConfig
	JWT             JWTConfig
	Auth            AuthConfig
	RateLimit       RateLimitConfig
	Pruner          PrunerConfig
	CORS            CORSConfig
	Log             LogConfig
}

// DatabaseConfig describes the PostgreSQL endpoint hosting the control
// database. Tenant databases live on the same endpoint and differ only by
// database name.
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// TenantPoolConfig bounds the per-tenant connection pools.
type TenantPoolConfig struct {
	MaxOpenConns   int
	MaxIdleConns   int
	ConnectTimeout time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Issuer            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

// AuthConfig carries credential-handling policy.
type AuthConfig struct {
	BcryptCost           int
	AllowUnverifiedLogin bool
	ResetTokenTTL        time.Duration
	VerifyTokenTTL       time.Duration
}

// RateLimitConfig tunes the Redis token bucket guarding credential endpoints.
type RateLimitConfig struct {
	Enabled        bool
	Prefix         string
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
}

// PrunerConfig controls background deletion of expired token rows.
type PrunerConfig struct {
	Enabled  bool
	Interval time.Duration
	Workers  int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.ControlDatabase = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("CONTROL_DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.TenantPool = TenantPoolConfig{
		MaxOpenConns:   v.GetInt("TENANT_DB_MAX_OPEN_CONNS"),
		MaxIdleConns:   v.GetInt("TENANT_DB_MAX_IDLE_CONNS"),
		ConnectTimeout: parseDuration(v.GetString("TENANT_DB_CONNECT_TIMEOUT"), 5*time.Second),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Issuer:            v.GetString("JWT_ISSUER"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 15*time.Minute),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.Auth = AuthConfig{
		BcryptCost:           v.GetInt("AUTH_BCRYPT_COST"),
		AllowUnverifiedLogin: v.GetBool("AUTH_ALLOW_UNVERIFIED_LOGIN"),
		ResetTokenTTL:        parseDuration(v.GetString("AUTH_RESET_TOKEN_TTL"), time.Hour),
		VerifyTokenTTL:       parseDuration(v.GetString("AUTH_VERIFY_TOKEN_TTL"), 24*time.Hour),
	}

	cfg.RateLimit = RateLimitConfig{
		Enabled:        v.GetBool("RATE_LIMIT_ENABLED"),
		Prefix:         v.GetString("RATE_LIMIT_PREFIX"),
		Capacity:       v.GetInt("RATE_LIMIT_CAPACITY"),
		RefillTokens:   v.GetInt("RATE_LIMIT_REFILL_TOKENS"),
		RefillInterval: parseDuration(v.GetString("RATE_LIMIT_REFILL_INTERVAL"), time.Minute),
		TTL:            parseDuration(v.GetString("RATE_LIMIT_TTL"), 10*time.Minute),
	}

	cfg.Pruner = PrunerConfig{
		Enabled:  v.GetBool("TOKEN_PRUNER_ENABLED"),
		Interval: parseDuration(v.GetString("TOKEN_PRUNER_INTERVAL"), time.Hour),
		Workers:  v.GetInt("TOKEN_PRUNER_WORKERS"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("CONTROL_DB_NAME", "lms_control")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("TENANT_DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("TENANT_DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("TENANT_DB_CONNECT_TIMEOUT", "5s")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "lms-identity-api")
	v.SetDefault("JWT_EXPIRATION", "15m")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("AUTH_BCRYPT_COST", 12)
	v.SetDefault("AUTH_ALLOW_UNVERIFIED_LOGIN", true)
	v.SetDefault("AUTH_RESET_TOKEN_TTL", "1h")
	v.SetDefault("AUTH_VERIFY_TOKEN_TTL", "24h")

	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_PREFIX", "rl:auth")
	v.SetDefault("RATE_LIMIT_CAPACITY", 10)
	v.SetDefault("RATE_LIMIT_REFILL_TOKENS", 10)
	v.SetDefault("RATE_LIMIT_REFILL_INTERVAL", "1m")
	v.SetDefault("RATE_LIMIT_TTL", "10m")

	v.SetDefault("TOKEN_PRUNER_ENABLED", true)
	v.SetDefault("TOKEN_PRUNER_INTERVAL", "1h")
	v.SetDefault("TOKEN_PRUNER_WORKERS", 1)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
