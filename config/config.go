package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Mode selects which PayFast environment the service talks to.
const (
	ModeSandbox    = "sandbox"
	ModeProduction = "production"
)

const (
	sandboxHost    = "sandbox.payfast.co.za"
	productionHost = "www.payfast.co.za"
)

type Config struct {
	Env      string         `mapstructure:"env"`
	Server   ServerConfig   `mapstructure:"server"`
	PayFast  PayFastConfig  `mapstructure:"payfast"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Alert    AlertConfig    `mapstructure:"alert"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	NotifyPath   string        `mapstructure:"notify_path"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type PayFastConfig struct {
	Mode         string   `mapstructure:"mode"`
	MerchantID   string   `mapstructure:"merchant_id"`
	MerchantKey  string   `mapstructure:"merchant_key"`
	Passphrase   string   `mapstructure:"passphrase"`
	ReturnURL    string   `mapstructure:"return_url"`
	CancelURL    string   `mapstructure:"cancel_url"`
	NotifyURL    string   `mapstructure:"notify_url"`
	TrustedHosts []string `mapstructure:"trusted_hosts"`

	// TrustForwardedHeader controls whether the first element of
	// X-Forwarded-For is used as the notification source address. Only
	// enable behind a proxy that overwrites the header; otherwise the
	// origin check can be spoofed by the caller.
	TrustForwardedHeader bool `mapstructure:"trust_forwarded_header"`

	ResolveTimeout time.Duration `mapstructure:"resolve_timeout"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
}

// Host returns the processor hostname for the configured mode.
func (c PayFastConfig) Host() string {
	if c.Mode == ModeProduction {
		return productionHost
	}
	return sandboxHost
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type LoggerConfig struct {
	Level        string `mapstructure:"level"`
	Format       string `mapstructure:"format"`
	Output       string `mapstructure:"output"`
	EnableColors bool   `mapstructure:"enable_colors"`
	FilePath     string `mapstructure:"file_path"`
	MaxSize      int    `mapstructure:"max_size"`
	MaxBackups   int    `mapstructure:"max_backups"`
	MaxAge       int    `mapstructure:"max_age"`
	Compress     bool   `mapstructure:"compress"`
}

type AlertConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

func (c AlertConfig) Enabled() bool {
	return c.BotToken != "" && c.ChatID != 0
}

// Load reads configuration from .env (if present), config.yaml (if present)
// and environment variables, in increasing priority.
func Load(configPath string) (*Config, error) {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath == "" {
		configPath = "."
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.notify_path", "/api/payfast/notify")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("payfast.mode", ModeSandbox)
	v.SetDefault("payfast.trusted_hosts", []string{
		"www.payfast.co.za",
		"sandbox.payfast.co.za",
		"w1w.payfast.co.za",
		"w2w.payfast.co.za",
	})
	v.SetDefault("payfast.trust_forwarded_header", true)
	v.SetDefault("payfast.resolve_timeout", 5*time.Second)
	v.SetDefault("payfast.confirm_timeout", 10*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "shopfast")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 30*time.Minute)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
}

func Validate(cfg *Config) error {
	switch cfg.PayFast.Mode {
	case ModeSandbox, ModeProduction:
	default:
		return fmt.Errorf("payfast.mode must be %q or %q, got %q",
			ModeSandbox, ModeProduction, cfg.PayFast.Mode)
	}
	if cfg.PayFast.MerchantID == "" {
		return fmt.Errorf("payfast.merchant_id is required")
	}
	if cfg.PayFast.MerchantKey == "" {
		return fmt.Errorf("payfast.merchant_key is required")
	}
	if len(cfg.PayFast.TrustedHosts) == 0 {
		return fmt.Errorf("payfast.trusted_hosts must not be empty")
	}
	if cfg.Server.NotifyPath == "" || !strings.HasPrefix(cfg.Server.NotifyPath, "/") {
		return fmt.Errorf("server.notify_path must start with /")
	}
	return nil
}
