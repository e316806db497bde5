package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies OPINIOND_* environment variable overrides, and
// returns the final Config. The caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env if present; a missing file is not an error.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known OPINIOND_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "OPINIOND_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "OPINIOND_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "OPINIOND_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "OPINIOND_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "OPINIOND_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "OPINIOND_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "OPINIOND_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "OPINIOND_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "OPINIOND_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "OPINIOND_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "OPINIOND_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "OPINIOND_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "OPINIOND_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "OPINIOND_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "OPINIOND_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "OPINIOND_REDIS_TLS_ENABLED")
	setInt(&cfg.Redis.CacheTTLMinutes, "OPINIOND_REDIS_CACHE_TTL_MINUTES")
	setInt(&cfg.Redis.StreamMaxLen, "OPINIOND_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "OPINIOND_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "OPINIOND_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "OPINIOND_S3_REGION")
	setStr(&cfg.S3.Bucket, "OPINIOND_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "OPINIOND_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "OPINIOND_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "OPINIOND_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "OPINIOND_S3_FORCE_PATH_STYLE")

	// ── Market ──
	setInt64(&cfg.Market.MinPrice, "OPINIOND_MARKET_MIN_PRICE")
	setInt64(&cfg.Market.MaxPrice, "OPINIOND_MARKET_MAX_PRICE")
	setInt64(&cfg.Market.MinQuantity, "OPINIOND_MARKET_MIN_QUANTITY")
	setInt64(&cfg.Market.MaxQuantity, "OPINIOND_MARKET_MAX_QUANTITY")

	// ── Server ──
	setInt(&cfg.Server.Port, "OPINIOND_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "OPINIOND_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "OPINIOND_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "OPINIOND_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "OPINIOND_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "OPINIOND_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "OPINIOND_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "OPINIOND_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "OPINIOND_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the variable is
// present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
