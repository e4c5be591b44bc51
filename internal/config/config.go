package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	TelegramBotToken    string        `env:"TELEGRAM_BOT_TOKEN,required"`
	TelegramPollTimeout int           `env:"TELEGRAM_POLL_TIMEOUT,default=60"`
	TelegramSendTimeout time.Duration `env:"TELEGRAM_SEND_TIMEOUT,default=10s"`

	DatabaseURL       string        `env:"DATABASE_URL"`
	DBHost            string        `env:"DB_HOST,default=localhost"`
	DBPort            int           `env:"DB_PORT,default=5432"`
	DBUser            string        `env:"DB_USER,default=postgres"`
	DBPassword        string        `env:"DB_PASSWORD"`
	DBName            string        `env:"DB_NAME,default=cryptoalerts"`
	DBSSLMode         string        `env:"DB_SSLMODE,default=disable"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=10"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=25"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=30m"`

	WorkerIntervalSeconds int           `env:"WORKER_INTERVAL_SECONDS,default=60"`
	LeaderLeaseName       string        `env:"LEADER_LEASE_NAME,default=alert-scheduler"`
	LeaderLeaseTTL        time.Duration `env:"LEADER_LEASE_TTL"`
	PremiumSyncSchedule   string        `env:"PREMIUM_SYNC_SCHEDULE,default=@every 10m"`
	ShutdownTimeout       time.Duration `env:"SHUTDOWN_TIMEOUT,default=15s"`

	FreeAlertLimit   int           `env:"FREE_ALERT_LIMIT,default=3"`
	AdminTelegramIDs []int64       `env:"ADMIN_TELEGRAM_IDS"`
	DefaultCooldown  time.Duration `env:"DEFAULT_COOLDOWN,default=15m"`
	MinCooldown      time.Duration `env:"MIN_COOLDOWN,default=60s"`

	PriceFeedMode     string        `env:"PRICE_FEED_MODE,default=rest"`
	BinanceBaseURL    string        `env:"BINANCE_BASE_URL,default=https://api.binance.com"`
	BinanceStreamURL  string        `env:"BINANCE_STREAM_URL,default=wss://stream.binance.com:9443/ws/!miniTicker@arr"`
	PriceFeedTimeout  time.Duration `env:"PRICE_FEED_TIMEOUT,default=8s"`
	PriceFeedRPS      float64       `env:"PRICE_FEED_RPS,default=10"`
	PriceStreamMaxAge time.Duration `env:"PRICE_STREAM_MAX_AGE,default=30s"`

	HTTPAddr     string `env:"HTTP_ADDR,default=:8080"`
	AlertsSecret string `env:"ALERTS_SECRET"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB,default=0"`
	PriceCacheTTL time.Duration `env:"PRICE_CACHE_TTL,default=5m"`

	NATSURL     string `env:"NATS_URL"`
	NATSSubject string `env:"NATS_SUBJECT,default=alerts.fired"`

	LogLevel string `env:"LOG_LEVEL,default=info"`
}

// Load reads an optional .env file and then the process environment, which wins.
func Load(ctx context.Context) (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.WorkerIntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("WORKER_INTERVAL_SECONDS must be positive, got %d", c.WorkerIntervalSeconds))
	}
	if c.FreeAlertLimit < 0 {
		errs = append(errs, fmt.Errorf("FREE_ALERT_LIMIT must not be negative, got %d", c.FreeAlertLimit))
	}
	if c.LeaderLeaseTTL != 0 && c.LeaderLeaseTTL <= c.Interval() {
		errs = append(errs, fmt.Errorf("LEADER_LEASE_TTL %s must exceed the worker interval %s", c.LeaderLeaseTTL, c.Interval()))
	}
	switch c.PriceFeedMode {
	case "rest", "stream":
	default:
		errs = append(errs, fmt.Errorf("PRICE_FEED_MODE must be rest or stream, got %q", c.PriceFeedMode))
	}
	if c.DefaultCooldown < c.MinCooldown {
		errs = append(errs, fmt.Errorf("DEFAULT_COOLDOWN %s is below MIN_COOLDOWN %s", c.DefaultCooldown, c.MinCooldown))
	}
	return errors.Join(errs...)
}

func (c Config) Interval() time.Duration {
	return time.Duration(c.WorkerIntervalSeconds) * time.Second
}

func (c Config) LeaseTTL() time.Duration {
	if c.LeaderLeaseTTL > 0 {
		return c.LeaderLeaseTTL
	}
	return 3 * c.Interval()
}

func (c Config) IsAdmin(telegramUserID int64) bool {
	for _, id := range c.AdminTelegramIDs {
		if id == telegramUserID {
			return true
		}
	}
	return false
}
