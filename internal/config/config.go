package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	Port      string `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // "text" or "json"

	// FrontendURL is where the customer app lives; the menu QR code points at it.
	FrontendURL    string   `yaml:"frontend_url"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// PublicURL prefixes links to uploaded images.
	PublicURL string `yaml:"public_url"`
	UploadDir string `yaml:"upload_dir"`

	Store    StoreConfig    `yaml:"store"`
	AMQP     AMQPConfig     `yaml:"amqp"`
	Telegram TelegramConfig `yaml:"telegram"`

	OrderRateWindow time.Duration `yaml:"order_rate_window"`

	CSRFKey        []byte `yaml:"-"`
	SessionKey     []byte `yaml:"-"`
	CookieDomain   string `yaml:"cookie_domain"`
	CookieSecure   bool   `yaml:"cookie_secure"`
	CookieSameSite string `yaml:"cookie_same_site"` // "lax", "strict" or "none"
}

type StoreConfig struct {
	Driver        string `yaml:"driver"`
	SQLitePath    string `yaml:"sqlite_path"`
	PostgresURL   string `yaml:"postgres_url"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
}

// AMQPConfig enables the cross-instance event bridge when URL is set.
type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// TelegramConfig enables staff alerts when both fields are set.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

func defaults() *Config {
	return &Config{
		Port:      "5000",
		LogLevel:  "info",
		LogFormat: "text",
		PublicURL: "http://localhost:5000",
		UploadDir: "./uploads",
		Store: StoreConfig{
			Driver:        DriverSQLite,
			SQLitePath:    "./qrmenu.db",
			MongoDatabase: "qrmenu",
		},
		AMQP:            AMQPConfig{Exchange: "order_events"},
		OrderRateWindow: 10 * time.Second,
		CookieSameSite:  "lax",
	}
}

// LoadConfig builds the configuration from defaults, then the YAML file named
// by CONFIG_FILE (if any), then environment variables. A .env file in the
// working directory is loaded first when present.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Could not load .env file", "error", err)
	}

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.FrontendURL = strings.TrimRight(getEnv("FRONTEND_URL", cfg.FrontendURL), "/")
	cfg.PublicURL = strings.TrimRight(getEnv("PUBLIC_URL", cfg.PublicURL), "/")
	cfg.UploadDir = getEnv("UPLOAD_DIR", cfg.UploadDir)
	if v, ok := os.LookupEnv("ALLOWED_ORIGINS"); ok {
		cfg.AllowedOrigins = splitList(v)
	}
	if len(cfg.AllowedOrigins) == 0 && cfg.FrontendURL != "" {
		cfg.AllowedOrigins = []string{cfg.FrontendURL}
	}

	cfg.Store.Driver = strings.ToLower(getEnv("STORE_DRIVER", cfg.Store.Driver))
	cfg.Store.SQLitePath = getEnv("DB_PATH", cfg.Store.SQLitePath)
	cfg.Store.PostgresURL = getEnv("DATABASE_URL", cfg.Store.PostgresURL)
	cfg.Store.MongoURI = getEnv("MONGO_URI", cfg.Store.MongoURI)
	cfg.Store.MongoDatabase = getEnv("MONGO_DB", cfg.Store.MongoDatabase)

	cfg.AMQP.URL = getEnv("AMQP_URL", cfg.AMQP.URL)
	cfg.AMQP.Exchange = getEnv("AMQP_EXCHANGE", cfg.AMQP.Exchange)

	cfg.Telegram.Token = getEnv("TELEGRAM_TOKEN", cfg.Telegram.Token)
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", v, err)
		}
		cfg.Telegram.ChatID = id
	}

	if v := os.Getenv("ORDER_RATE_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ORDER_RATE_WINDOW %q: %w", v, err)
		}
		cfg.OrderRateWindow = d
	}

	cfg.CookieDomain = getEnv("COOKIE_DOMAIN", cfg.CookieDomain)
	if v, ok := os.LookupEnv("COOKIE_SECURE"); ok {
		cfg.CookieSecure = v == "true"
	}
	cfg.CookieSameSite = strings.ToLower(getEnv("COOKIE_SAMESITE", cfg.CookieSameSite))

	cfg.CSRFKey = loadKey("CSRF_KEY")
	cfg.SessionKey = loadKey("SESSION_KEY")

	// Make sure port is valid
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		slog.Error("Invalid PORT. Falling back to default.", "PORT", cfg.Port)
		cfg.Port = "5000"
	}

	switch cfg.Store.Driver {
	case DriverSQLite, DriverPostgres, DriverMongo:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q (want sqlite, postgres or mongo)", cfg.Store.Driver)
	}
	if cfg.Store.Driver == DriverPostgres && cfg.Store.PostgresURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the postgres store")
	}
	if cfg.Store.Driver == DriverMongo && cfg.Store.MongoURI == "" {
		return nil, fmt.Errorf("MONGO_URI is required for the mongo store")
	}

	return cfg, nil
}

// MenuURL is the public page the table QR codes point to.
func (c *Config) MenuURL() string {
	base := c.FrontendURL
	if base == "" {
		base = c.PublicURL
	}
	return base + "/menu"
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// loadKey reads a base64 key of at least 32 bytes, or generates a random one.
func loadKey(name string) []byte {
	raw := os.Getenv(name)
	if raw == "" {
		slog.Warn(name + " not set. Generating a random key; sessions and tokens will not survive a restart.")
		return generateRandomBytes(32)
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(decoded) < 32 {
		slog.Warn(name + " is invalid or shorter than 32 bytes. Generating a random key.")
		return generateRandomBytes(32)
	}
	return decoded
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimRight(strings.TrimSpace(part), "/"); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func generateRandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(fmt.Sprintf("read random bytes: %v", err))
	}
	return b
}
