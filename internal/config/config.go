package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Session      SessionConfig
	Verification VerificationConfig
	Mail         MailConfig
	Log          LogConfig
	Guestbook    GuestbookConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	ReadTimeout    int      `mapstructure:"read_timeout"`
	WriteTimeout   int      `mapstructure:"write_timeout"`
	Mode           string   `mapstructure:"mode"` // debug | release | test
	TrustedProxies []string `mapstructure:"trusted_proxies"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	// MigrationsPath: путь к SQL-миграциям для golang-migrate
	MigrationsPath string `mapstructure:"migrations_path"`
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	Mode       string   `mapstructure:"mode"`
	Addrs      []string `mapstructure:"addrs"`
	Addr       string   `mapstructure:"addr"`
	Password   string   `mapstructure:"password"`
	DB         int      `mapstructure:"db"`
	MasterName string   `mapstructure:"master_name"`

	// DialTimeout: таймаут подключения в секундах
	DialTimeout int `mapstructure:"dial_timeout"`

	MaxRetries      int `mapstructure:"max_retries"`
	MinRetryBackoff int `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"`
}

// SessionConfig содержит настройки cookie-сессии
type SessionConfig struct {
	Secret     string `mapstructure:"secret"`
	TTLHours   int    `mapstructure:"ttl_hours"`
	CookieName string `mapstructure:"cookie_name"`
	Secure     bool   `mapstructure:"secure"`
}

// LimitConfig - потолок и длительность фиксированного окна
type LimitConfig struct {
	Ceiling   int `mapstructure:"ceiling"`
	WindowSec int `mapstructure:"window_sec"`
}

// Window возвращает окно как time.Duration
func (l LimitConfig) Window() time.Duration {
	return time.Duration(l.WindowSec) * time.Second
}

// VerificationConfig содержит настройки выдачи и проверки кодов
type VerificationConfig struct {
	// Store: "redis" или "memory"
	Store               string      `mapstructure:"store"`
	ImageTTLSec         int         `mapstructure:"image_ttl_sec"`
	EmailTTLSec         int         `mapstructure:"email_ttl_sec"`
	ImageLimit          LimitConfig `mapstructure:"image_limit"`
	EmailIPLimit        LimitConfig `mapstructure:"email_ip_limit"`
	EmailRecipientLimit LimitConfig `mapstructure:"email_recipient_limit"`
	StoreTimeoutSec     int         `mapstructure:"store_timeout_sec"`
	SweepIntervalSec    int         `mapstructure:"sweep_interval_sec"`
	// FontPath: предпочтительный TTF шрифт для картинки, при отсутствии используется встроенный
	FontPath string `mapstructure:"font_path"`
}

// MailConfig содержит настройки почтового транспорта
type MailConfig struct {
	// Provider: smtp | resend | sendgrid | noop
	Provider       string `mapstructure:"provider"`
	Server         string `mapstructure:"server"`
	Port           int    `mapstructure:"port"`
	UseTLS         bool   `mapstructure:"use_tls"`
	UseSSL         bool   `mapstructure:"use_ssl"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	From           string `mapstructure:"from"`
	ResendAPIKey   string `mapstructure:"resend_api_key"`
	SendGridAPIKey string `mapstructure:"sendgrid_api_key"`
	TimeoutSec     int    `mapstructure:"timeout_sec"`
}

// LogConfig содержит настройки логирования
type LogConfig struct {
	Dir   string `mapstructure:"dir"`
	Debug bool   `mapstructure:"debug"`
}

// GuestbookConfig содержит настройки гостевой книги
type GuestbookConfig struct {
	MaxMessageLength int     `mapstructure:"max_message_length"`
	PostsPerMinute   float64 `mapstructure:"posts_per_minute"`
	PostBurst        int     `mapstructure:"post_burst"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// IsRelease сообщает, запущено ли приложение в production-режиме
func (s *ServerConfig) IsRelease() bool {
	return s.Mode == "release"
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.read_timeout", 15)
	vip.SetDefault("server.write_timeout", 15)
	vip.SetDefault("server.mode", "debug")
	vip.SetDefault("server.trusted_proxies", []string{"127.0.0.1", "::1"})
	vip.SetDefault("server.allowed_origins", []string{"http://localhost:5000", "http://localhost:3000"})

	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("database.migrations_path", "file://migrations")

	vip.SetDefault("redis.mode", "single")
	vip.SetDefault("redis.addr", "localhost:6379")
	vip.SetDefault("redis.dial_timeout", 5)

	vip.SetDefault("session.ttl_hours", 24*7)
	vip.SetDefault("session.cookie_name", "homepage_session")

	vip.SetDefault("verification.store", "redis")
	vip.SetDefault("verification.image_ttl_sec", 300)
	vip.SetDefault("verification.email_ttl_sec", 300)
	vip.SetDefault("verification.image_limit.ceiling", 10)
	vip.SetDefault("verification.image_limit.window_sec", 60)
	vip.SetDefault("verification.email_ip_limit.ceiling", 20)
	vip.SetDefault("verification.email_ip_limit.window_sec", 3600)
	vip.SetDefault("verification.email_recipient_limit.ceiling", 5)
	vip.SetDefault("verification.email_recipient_limit.window_sec", 3600)
	vip.SetDefault("verification.store_timeout_sec", 2)
	vip.SetDefault("verification.sweep_interval_sec", 60)

	vip.SetDefault("mail.provider", "smtp")
	vip.SetDefault("mail.server", "localhost")
	vip.SetDefault("mail.port", 25)
	vip.SetDefault("mail.timeout_sec", 10)

	vip.SetDefault("log.dir", "logs/")

	vip.SetDefault("guestbook.max_message_length", 1000)
	vip.SetDefault("guestbook.posts_per_minute", 6)
	vip.SetDefault("guestbook.post_burst", 3)
}

// Load загружает конфигурацию из .env, файла конфигурации и переменных окружения
func Load(configPath string) (*Config, error) {
	// .env не обязателен: в контейнере переменные приходят из окружения
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Предупреждение: не удалось прочитать .env: %v", err)
	}

	vip := viper.New()
	setDefaults(vip)

	// Привязка для Server
	vip.BindEnv("server.port", "SERVER_PORT")
	vip.BindEnv("server.mode", "GIN_MODE")

	// Привязка для секции Database
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	// Привязка для секции Redis
	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	// Сессии
	vip.BindEnv("session.secret", "SECRET_KEY")
	vip.BindEnv("session.secure", "SESSION_COOKIE_SECURE")

	// Коды подтверждения
	vip.BindEnv("verification.store", "VERIFICATION_STORE")
	vip.BindEnv("verification.font_path", "CAPTCHA_FONT_PATH")

	// Почта (имена переменных совпадают с прежним деплоем)
	vip.BindEnv("mail.provider", "MAIL_PROVIDER")
	vip.BindEnv("mail.server", "MAIL_SERVER")
	vip.BindEnv("mail.port", "MAIL_PORT")
	vip.BindEnv("mail.use_tls", "MAIL_USE_TLS")
	vip.BindEnv("mail.use_ssl", "MAIL_USE_SSL")
	vip.BindEnv("mail.username", "MAIL_USERNAME")
	vip.BindEnv("mail.password", "MAIL_PASSWORD")
	vip.BindEnv("mail.from", "MAIL_FROM")
	vip.BindEnv("mail.resend_api_key", "RESEND_API_KEY")
	vip.BindEnv("mail.sendgrid_api_key", "SENDGRID_API_KEY")

	// Логи
	vip.BindEnv("log.dir", "LOG_DIR")
	vip.BindEnv("log.debug", "LOG_DEBUG")

	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	if c.Database.Host == "" || c.Database.DBName == "" || c.Database.User == "" {
		return fmt.Errorf("database configuration (host, dbname, user) is incomplete (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if c.Session.Secret == "" {
		if c.Server.IsRelease() {
			return fmt.Errorf("session secret is required in release mode (check SECRET_KEY env var)")
		}
		c.Session.Secret = "dev-secret-key-for-development-only"
		log.Println("Warning: SECRET_KEY is not set, using development secret")
	}
	if c.Server.IsRelease() && c.Database.Password == "" {
		return fmt.Errorf("database password is required in release mode (check DATABASE_PASSWORD env var)")
	}

	switch c.Mail.Provider {
	case "smtp", "resend", "sendgrid", "noop":
	default:
		return fmt.Errorf("unsupported mail provider: %q", c.Mail.Provider)
	}
	switch c.Verification.Store {
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported verification store: %q", c.Verification.Store)
	}

	for name, l := range map[string]LimitConfig{
		"image_limit":           c.Verification.ImageLimit,
		"email_ip_limit":        c.Verification.EmailIPLimit,
		"email_recipient_limit": c.Verification.EmailRecipientLimit,
	} {
		if l.Ceiling <= 0 || l.WindowSec <= 0 {
			return fmt.Errorf("verification.%s must have positive ceiling and window_sec", name)
		}
	}
	return nil
}
