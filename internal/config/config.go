// Package config reads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Payment gateway kinds.
const (
	GatewayHTTP = "http"
	GatewayFake = "fake"
)

// Config is validated once at startup by Load.
type Config struct {
	Port string

	DatabaseDriver string
	DatabaseURL    string

	JWTSecret string

	FineMultiplier decimal.Decimal

	// Gateway is GatewayHTTP for a real processor or GatewayFake for an
	// in-memory sandbox.
	Gateway          string
	FakeAutoPay      bool
	GatewayURL       string
	GatewayAPIKey    string
	GatewayRateLimit float64
	GatewayTimeout   time.Duration
	SuccessURL       string
	CancelURL        string

	TelegramToken  string
	TelegramChatID string

	NotifyQueueSize int
	NotifyWorkers   int
	NotifyOverflow  string

	OverdueSweepInterval time.Duration

	OTLPEndpoint string
}

// Load reads every setting, applying defaults, and reports all invalid
// values at once.
func Load() (Config, error) {
	p := parser{}
	cfg := Config{
		Port:           getenv("PORT", "8080"),
		DatabaseDriver: getenv("DATABASE_DRIVER", "sqlite"),
		DatabaseURL:    getenv("DATABASE_URL", "libralend.db"),
		JWTSecret:      getenv("JWT_SECRET", "local_dev_secret"),

		FineMultiplier: p.decimal("FINE_MULTIPLIER", "2"),

		Gateway:          getenv("PAYMENT_GATEWAY", GatewayHTTP),
		FakeAutoPay:      p.bool("PAYMENT_GATEWAY_AUTOPAY", "false"),
		GatewayURL:       os.Getenv("PAYMENT_GATEWAY_URL"),
		GatewayAPIKey:    os.Getenv("PAYMENT_GATEWAY_API_KEY"),
		GatewayRateLimit: p.float("GATEWAY_RATE_LIMIT", "10"),
		GatewayTimeout:   p.duration("GATEWAY_TIMEOUT", "10s"),
		SuccessURL:       getenv("PAYMENT_SUCCESS_URL", "http://localhost:8080/api/v1/payments/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:        getenv("PAYMENT_CANCEL_URL", "http://localhost:8080/api/v1/payments/cancel?session_id={CHECKOUT_SESSION_ID}"),

		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: os.Getenv("TELEGRAM_CHAT_ID"),

		NotifyQueueSize: p.int("NOTIFY_QUEUE_SIZE", "100"),
		NotifyWorkers:   p.int("NOTIFY_WORKERS", "2"),
		NotifyOverflow:  getenv("NOTIFY_OVERFLOW", "block"),

		OverdueSweepInterval: p.duration("OVERDUE_SWEEP_INTERVAL", "24h"),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	switch cfg.DatabaseDriver {
	case "postgres", "pgx", "sqlite":
	default:
		p.fail("DATABASE_DRIVER", fmt.Errorf("unsupported driver %q", cfg.DatabaseDriver))
	}
	switch cfg.NotifyOverflow {
	case "block", "drop-oldest":
	default:
		p.fail("NOTIFY_OVERFLOW", fmt.Errorf("unknown policy %q", cfg.NotifyOverflow))
	}
	if cfg.FineMultiplier.IsNegative() {
		p.fail("FINE_MULTIPLIER", errors.New("must not be negative"))
	}
	if cfg.NotifyQueueSize < 1 {
		p.fail("NOTIFY_QUEUE_SIZE", errors.New("must be at least 1"))
	}
	if cfg.NotifyWorkers < 1 {
		p.fail("NOTIFY_WORKERS", errors.New("must be at least 1"))
	}
	if cfg.OverdueSweepInterval <= 0 {
		p.fail("OVERDUE_SWEEP_INTERVAL", errors.New("must be positive"))
	}
	if (cfg.TelegramToken == "") != (cfg.TelegramChatID == "") {
		p.fail("TELEGRAM_CHAT_ID", errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together"))
	}
	switch cfg.Gateway {
	case GatewayHTTP:
		if cfg.GatewayURL == "" {
			p.fail("PAYMENT_GATEWAY_URL", errors.New("required unless PAYMENT_GATEWAY=fake"))
		}
		if cfg.GatewayAPIKey == "" {
			p.fail("PAYMENT_GATEWAY_API_KEY", errors.New("required unless PAYMENT_GATEWAY=fake"))
		}
		if cfg.FakeAutoPay {
			p.fail("PAYMENT_GATEWAY_AUTOPAY", errors.New("only valid with PAYMENT_GATEWAY=fake"))
		}
	case GatewayFake:
	default:
		p.fail("PAYMENT_GATEWAY", fmt.Errorf("unknown gateway %q", cfg.Gateway))
	}

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LogValue keeps secrets out of the startup log.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("port", c.Port),
		slog.String("database_driver", c.DatabaseDriver),
		slog.String("fine_multiplier", c.FineMultiplier.String()),
		slog.String("gateway", c.Gateway),
		slog.Bool("gateway_autopay", c.FakeAutoPay),
		slog.Bool("telegram_configured", c.TelegramToken != ""),
		slog.Int("notify_queue_size", c.NotifyQueueSize),
		slog.Int("notify_workers", c.NotifyWorkers),
		slog.String("notify_overflow", c.NotifyOverflow),
		slog.Duration("overdue_sweep_interval", c.OverdueSweepInterval),
		slog.Bool("tracing", c.OTLPEndpoint != ""),
	)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

type parser struct {
	errs []error
}

func (p *parser) fail(k string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s: %w", k, err))
}

func (p *parser) int(k, def string) int {
	v, err := strconv.Atoi(getenv(k, def))
	if err != nil {
		p.fail(k, err)
	}
	return v
}

func (p *parser) bool(k, def string) bool {
	v, err := strconv.ParseBool(getenv(k, def))
	if err != nil {
		p.fail(k, err)
	}
	return v
}

func (p *parser) float(k, def string) float64 {
	v, err := strconv.ParseFloat(getenv(k, def), 64)
	if err != nil {
		p.fail(k, err)
	}
	return v
}

func (p *parser) duration(k, def string) time.Duration {
	v, err := time.ParseDuration(getenv(k, def))
	if err != nil {
		p.fail(k, err)
	}
	return v
}

func (p *parser) decimal(k, def string) decimal.Decimal {
	v, err := decimal.NewFromString(getenv(k, def))
	if err != nil {
		p.fail(k, err)
	}
	return v
}
