// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Registry backend selectors.
const (
	RegistrySQLite = "sqlite"
	RegistryRedis  = "redis"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	MoySkladToken    string
	AlertChatID      int64
	DatabasePath     string
	LogLevel         string
	AllowedUsers     []int64
	AdminUsers       []int64

	CheckInterval time.Duration
	CycleTimeout  time.Duration
	StateMaxAge   time.Duration
	MessageLimit  int
	NearExpiry    int

	APIBaseURL     string
	APIPageLimit   int
	APIPageDelay   time.Duration
	APITimeout     time.Duration
	FetchAttempts  int
	CreateAttempts int
	RetryDelay     time.Duration

	SendRatePerSecond int
	GroupSendDelay    time.Duration

	SheetPhoneColumn    string
	ExpirationAttribute string

	RegistryBackend string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	MetricsAddr string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	msToken := os.Getenv("MOYSKLAD_TOKEN")
	if msToken == "" {
		return nil, fmt.Errorf("MOYSKLAD_TOKEN is required")
	}

	rawChatID := os.Getenv("ALERT_CHAT_ID")
	if rawChatID == "" {
		return nil, fmt.Errorf("ALERT_CHAT_ID is required")
	}
	chatID, err := strconv.ParseInt(rawChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ALERT_CHAT_ID %q: %w", rawChatID, err)
	}

	allowedUsers, err := envIDList("ALLOWED_USERS")
	if err != nil {
		return nil, err
	}
	adminUsers, err := envIDList("ADMIN_USERS")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		TelegramBotToken: token,
		MoySkladToken:    msToken,
		AlertChatID:      chatID,
		DatabasePath:     envString("DATABASE_PATH", "./data/bot.db"),
		LogLevel:         envString("LOG_LEVEL", "info"),
		AllowedUsers:     allowedUsers,
		AdminUsers:       adminUsers,

		APIBaseURL:          strings.TrimRight(envString("API_BASE_URL", "https://api.moysklad.ru/api/remap/1.2"), "/"),
		SheetPhoneColumn:    envString("SHEET_PHONE_COLUMN", "Наименование"),
		ExpirationAttribute: envString("EXPIRATION_ATTRIBUTE", "Срок годности"),
		RegistryBackend:     envString("REGISTRY_BACKEND", RegistrySQLite),
		RedisAddr:           envString("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		MetricsAddr:         os.Getenv("METRICS_ADDR"),
	}

	ints := []struct {
		dst *int
		key string
		def int
		min int
	}{
		{&cfg.MessageLimit, "MESSAGE_LIMIT", 4096, 64},
		{&cfg.NearExpiry, "NEAR_EXPIRY_DAYS", 7, 0},
		{&cfg.APIPageLimit, "API_PAGE_LIMIT", 500, 1},
		{&cfg.FetchAttempts, "FETCH_ATTEMPTS", 3, 1},
		{&cfg.CreateAttempts, "CREATE_ATTEMPTS", 5, 1},
		{&cfg.SendRatePerSecond, "SEND_RATE_PER_SECOND", 1, 1},
		{&cfg.RedisDB, "REDIS_DB", 0, 0},
	}
	for _, v := range ints {
		n, err := envInt(v.key, v.def)
		if err != nil {
			return nil, err
		}
		if n < v.min {
			return nil, fmt.Errorf("%s must be at least %d, got %d", v.key, v.min, n)
		}
		*v.dst = n
	}

	durations := []struct {
		dst  *time.Duration
		key  string
		def  int
		unit time.Duration
	}{
		{&cfg.CheckInterval, "CHECK_INTERVAL_MINUTES", 720, time.Minute},
		{&cfg.CycleTimeout, "CYCLE_TIMEOUT_MINUTES", 5, time.Minute},
		{&cfg.StateMaxAge, "STATE_MAX_AGE_DAYS", 30, 24 * time.Hour},
		{&cfg.APIPageDelay, "API_PAGE_DELAY_SECONDS", 1, time.Second},
		{&cfg.APITimeout, "API_TIMEOUT_SECONDS", 30, time.Second},
		{&cfg.RetryDelay, "RETRY_DELAY_SECONDS", 60, time.Second},
		{&cfg.GroupSendDelay, "GROUP_SEND_DELAY_SECONDS", 3, time.Second},
	}
	for _, v := range durations {
		n, err := envInt(v.key, v.def)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("%s must not be negative, got %d", v.key, n)
		}
		*v.dst = time.Duration(n) * v.unit
	}

	if cfg.RegistryBackend != RegistrySQLite && cfg.RegistryBackend != RegistryRedis {
		return nil, fmt.Errorf("invalid REGISTRY_BACKEND %q: want %q or %q", cfg.RegistryBackend, RegistrySQLite, RegistryRedis)
	}

	return cfg, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// IsAdmin checks whether a user ID is in the admin list. An empty admin
// list means nobody gets the admin panel.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envIDList(key string) ([]int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q in %s: %w", s, key, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
