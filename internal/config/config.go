package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Name      string `yaml:"name"`
	Port      string `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`
}

type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MigrationsPath  string        `yaml:"migrations_path"`
}

// DSN returns a key/value connection string understood by both pgx and lib/pq.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PaymentConfig struct {
	APIURL       string        `yaml:"api_url"`
	APIKey       string        `yaml:"api_key"`
	MerchantCode string        `yaml:"merchant_code"`
	ReturnURL    string        `yaml:"return_url"`
	Currency     string        `yaml:"currency"`
	Timeout      time.Duration `yaml:"timeout"`
}

type MessagingConfig struct {
	WhatsAppPhone string `yaml:"whatsapp_phone"`
	Language      string `yaml:"language"`
}

type ShippingConfig struct {
	FlatRate              decimal.Decimal  `yaml:"-"`
	FreeShippingThreshold *decimal.Decimal `yaml:"-"`

	RawFlatRate  string `yaml:"flat_rate"`
	RawThreshold string `yaml:"free_shipping_threshold"`
}

type AdminConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

type Config struct {
	App       AppConfig       `yaml:"app"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Payment   PaymentConfig   `yaml:"payment"`
	Messaging MessagingConfig `yaml:"messaging"`
	Shipping  ShippingConfig  `yaml:"shipping"`
	Admin     AdminConfig     `yaml:"admin"`
}

// NewConfig reads .env (if present), the YAML file named by CONFIG_FILE (if set)
// and finally the environment. Environment values win.
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadYAML(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.App.Name = "storefront"
	cfg.App.Port = "8080"
	cfg.App.LogLevel = "info"
	cfg.Postgres.Port = "5432"
	cfg.Postgres.SSLMode = "disable"
	cfg.Postgres.MaxConns = 10
	cfg.Postgres.MinConns = 2
	cfg.Postgres.MaxConnLifetime = 30 * time.Minute
	cfg.Postgres.MigrationsPath = "migrations"
	cfg.Payment.Currency = "EUR"
	cfg.Payment.Timeout = 15 * time.Second
	cfg.Messaging.Language = "fr"
	cfg.Shipping.RawFlatRate = "0"
	return cfg
}

func loadYAML(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.App.Port, "APP_PORT")
	setString(&cfg.App.LogLevel, "LOG_LEVEL")
	if err := setBool(&cfg.App.LogPretty, "LOG_PRETTY"); err != nil {
		return err
	}

	setString(&cfg.Postgres.Host, "DB_HOST")
	setString(&cfg.Postgres.Port, "DB_PORT")
	setString(&cfg.Postgres.User, "DB_USER")
	setString(&cfg.Postgres.Password, "DB_PASSWORD")
	setString(&cfg.Postgres.DBName, "DB_NAME")
	setString(&cfg.Postgres.SSLMode, "DB_SSLMODE")
	setString(&cfg.Postgres.MigrationsPath, "DB_MIGRATIONS_PATH")
	if err := setInt32(&cfg.Postgres.MaxConns, "DB_MAX_CONNS"); err != nil {
		return err
	}
	if err := setInt32(&cfg.Postgres.MinConns, "DB_MIN_CONNS"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Postgres.MaxConnLifetime, "DB_MAX_CONN_LIFETIME"); err != nil {
		return err
	}

	setString(&cfg.Payment.APIURL, "PAYMENT_API_URL")
	setString(&cfg.Payment.APIKey, "PAYMENT_API_KEY")
	setString(&cfg.Payment.MerchantCode, "PAYMENT_MERCHANT_CODE")
	setString(&cfg.Payment.ReturnURL, "PAYMENT_RETURN_URL")
	setString(&cfg.Payment.Currency, "PAYMENT_CURRENCY")
	if err := setDuration(&cfg.Payment.Timeout, "PAYMENT_TIMEOUT"); err != nil {
		return err
	}

	setString(&cfg.Messaging.WhatsAppPhone, "WHATSAPP_PHONE")
	setString(&cfg.Messaging.Language, "MESSAGE_LANG")

	setString(&cfg.Shipping.RawFlatRate, "SHIPPING_FLAT_RATE")
	setString(&cfg.Shipping.RawThreshold, "FREE_SHIPPING_THRESHOLD")

	setString(&cfg.Admin.Username, "ADMIN_USERNAME")
	setString(&cfg.Admin.PasswordHash, "ADMIN_PASSWORD_HASH")

	return cfg.Shipping.parse()
}

func (s *ShippingConfig) parse() error {
	rate, err := decimal.NewFromString(strings.TrimSpace(s.RawFlatRate))
	if err != nil {
		return fmt.Errorf("invalid SHIPPING_FLAT_RATE %q: %w", s.RawFlatRate, err)
	}
	if rate.IsNegative() {
		return fmt.Errorf("SHIPPING_FLAT_RATE cannot be negative")
	}
	s.FlatRate = rate

	s.FreeShippingThreshold = nil
	if raw := strings.TrimSpace(s.RawThreshold); raw != "" {
		threshold, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("invalid FREE_SHIPPING_THRESHOLD %q: %w", s.RawThreshold, err)
		}
		s.FreeShippingThreshold = &threshold
	}
	return nil
}

func (c *Config) validate() error {
	var missing []string
	required := map[string]string{
		"DB_HOST":               c.Postgres.Host,
		"DB_USER":               c.Postgres.User,
		"DB_NAME":               c.Postgres.DBName,
		"PAYMENT_API_URL":       c.Payment.APIURL,
		"PAYMENT_API_KEY":       c.Payment.APIKey,
		"PAYMENT_MERCHANT_CODE": c.Payment.MerchantCode,
		"WHATSAPP_PHONE":        c.Messaging.WhatsAppPhone,
		"ADMIN_USERNAME":        c.Admin.Username,
		"ADMIN_PASSWORD_HASH":   c.Admin.PasswordHash,
	}
	for _, key := range []string{
		"DB_HOST", "DB_USER", "DB_NAME",
		"PAYMENT_API_URL", "PAYMENT_API_KEY", "PAYMENT_MERCHANT_CODE",
		"WHATSAPP_PHONE", "ADMIN_USERNAME", "ADMIN_PASSWORD_HASH",
	} {
		if strings.TrimSpace(required[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.Postgres.MinConns > c.Postgres.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) cannot exceed DB_MAX_CONNS (%d)", c.Postgres.MinConns, c.Postgres.MaxConns)
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = b
	return nil
}

func setInt32(dst *int32, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = int32(n)
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}
