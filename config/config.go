package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// TT REST credentials
	TTAppKey    string
	TTAppSecret string
	TTEnv       string // "ext_prod_live" or "ext_uat_cert"
	TTAppName   string
	TTCompany   string

	// Monitoring scope
	Account   string
	Exchange  string
	Contracts string // comma-separated, e.g. "ZN Sep26,ZB Sep26"

	// Risk parameters
	StopLoss       float64 // dollars, negative
	NBM            float64 // window in 16ths of a point
	DollarPer16th  float64 // contract value of one 16th of a point
	PollIntervalMs int

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	GatewayAddr   string

	// Alerting
	WebhookURL       string
	TelegramToken    string
	TelegramChatID   string
	AlertMinInterval int // seconds between repeated alerts per instrument
}

// Load reads configuration from the environment with sensible defaults.
// A .env file in the working directory is applied first when present.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Printf("[config] loaded .env")
	}

	return &Config{
		TTAppKey:    mustEnv("TT_APP_KEY"),
		TTAppSecret: mustEnv("TT_APP_SECRET"),
		TTEnv:       getEnv("TT_ENV", "ext_prod_live"),
		TTAppName:   getEnv("TT_APP_NAME", "riskmonitor"),
		TTCompany:   getEnv("TT_COMPANY", "desk"),

		Account:   mustEnv("ACCOUNT"),
		Exchange:  getEnv("EXCHANGE", "CME"),
		Contracts: getEnv("CONTRACTS", "ZN Sep26"),

		StopLoss:       getEnvFloat("STOP_LOSS", -10000),
		NBM:            getEnvFloat("NBM", 25),
		DollarPer16th:  getEnvFloat("DOLLAR_PER_16TH", 62.5),
		PollIntervalMs: getEnvInt("POLL_INTERVAL_MS", 1000),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/fills.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		GatewayAddr:   getEnv("GATEWAY_ADDR", ":8080"),

		WebhookURL:       getEnv("WEBHOOK_URL", ""),
		TelegramToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		AlertMinInterval: getEnvInt("ALERT_MIN_INTERVAL", 60),
	}
}

// ParseContracts splits the Contracts string into trimmed contract names.
func (c *Config) ParseContracts() []string {
	parts := strings.Split(c.Contracts, ",")
	contracts := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		contracts = append(contracts, p)
	}
	return contracts
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid float for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return f
}
