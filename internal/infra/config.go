package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config - корневая структура конфигурации консоли.
type Config struct {
	Server    ServerConfig             `mapstructure:"server"`
	Services  map[string]ServiceConfig `mapstructure:"services"`
	Auth      AuthConfig               `mapstructure:"auth"`
	Cache     CacheConfig              `mapstructure:"cache"`
	Database  DatabaseConfig           `mapstructure:"database"`
	Redis     RedisConfig              `mapstructure:"redis"`
	Health    HealthConfig             `mapstructure:"health"`
	Backends  BackendsConfig           `mapstructure:"backends"`
	Dashboard DashboardConfig          `mapstructure:"dashboard"`
	Documents DocumentsConfig          `mapstructure:"documents"`
	Logger    LoggerConfig             `mapstructure:"logger"`

	v *viper.Viper
}

// ServerConfig описывает настройки HTTP-сервера.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	MetricsAddr  string        `mapstructure:"metrics_addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// Demo поднимает встроенный имитатор всех четырех сервисов вместо реальных
	Demo bool `mapstructure:"demo"`
}

// ServiceConfig - адрес бэкенда. HealthAuth: прикладывать ли токен к /health.
type ServiceConfig struct {
	URL        string `mapstructure:"url"`
	HealthAuth bool   `mapstructure:"health_auth"`
}

// AuthConfig - подпись исходящих токенов и проверка входящих.
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	Subject        string        `mapstructure:"subject"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	PublicKeyPath  string        `mapstructure:"public_key_path"`
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	// ProtectAPI включает проверку Bearer-токена на /api/v1
	ProtectAPI bool `mapstructure:"protect_api"`
	PublicKey  []byte
	PrivateKey []byte
}

type CacheConfig struct {
	Backend      string        `mapstructure:"backend"` // memory, redis, postgres
	DashboardTTL time.Duration `mapstructure:"dashboard_ttl"`
	// WarmTimeout ограничивает прогрев при старте, 0 - без ограничения
	WarmTimeout  time.Duration `mapstructure:"warm_timeout"`
}

// DatabaseConfig описывает подключение к PostgreSQL.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type HealthConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// BackendsConfig - общие настройки HTTP-клиентов к сервисам.
type BackendsConfig struct {
	// RequestTimeout 0 - без ограничения, запрос ждет сколько угодно
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst"`

	// Настройки Circuit Breaker
	CBMaxRequests uint32        `mapstructure:"cb_max_requests"`
	CBInterval    time.Duration `mapstructure:"cb_interval"`
	CBTimeout     time.Duration `mapstructure:"cb_timeout"`
	CBFailures    uint32        `mapstructure:"cb_failures"`
}

// DocumentsConfig - загрузка документов в базу знаний.
type DocumentsConfig struct {
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

type DashboardConfig struct {
	PriceChange float64 `mapstructure:"price_change"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// Service возвращает настройки сервиса по имени (nl_sql, agent, rag, forecast).
func (c *Config) Service(name string) (ServiceConfig, bool) {
	s, ok := c.Services[name]
	return s, ok
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// SERVER_PORT=9000 перекроет server.port
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет - работаем на ENV и дефолтах
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	cfg.v = v

	// Ключ может прийти прямо в ENV (Docker/K8s), иначе читаем файл по пути
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")
	cfg.Auth.PrivateKey = loadKeyResource(cfg.Auth.PrivateKeyPath, "AUTH_PRIVATE_KEY_DATA")
	if secret := os.Getenv("AUTH_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	for _, name := range []string{"nl_sql", "agent", "rag", "forecast"} {
		if s, ok := c.Services[name]; !ok || s.URL == "" {
			return fmt.Errorf("config: services.%s.url is required", name)
		}
	}
	switch c.Cache.Backend {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("config: unknown cache.backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "postgres" && c.Database.URL == "" {
		return errors.New("config: database.url is required for the postgres cache")
	}
	return nil
}

// Watch следит за файлом конфигурации и отдает перечитанный конфиг в onChange.
// Возвращает false, если конфиг собран только из ENV и дефолтов.
func (c *Config) Watch(onChange func(e fsnotify.Event, next *Config, err error)) bool {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return false
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		next, err := decode(c.v)
		onChange(e, next, err)
	})
	c.v.WatchConfig()
	return true
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 0)

	v.SetDefault("services.agent.url", "http://localhost:8000")
	v.SetDefault("services.agent.health_auth", true)
	v.SetDefault("services.nl_sql.url", "http://localhost:8001")
	v.SetDefault("services.nl_sql.health_auth", true)
	v.SetDefault("services.rag.url", "http://localhost:8002")
	v.SetDefault("services.rag.health_auth", false)
	v.SetDefault("services.forecast.url", "http://localhost:8003")
	v.SetDefault("services.forecast.health_auth", false)

	v.SetDefault("auth.jwt_secret", "dev-secret-key-change-in-production")
	v.SetDefault("auth.subject", "frontend-user")
	v.SetDefault("auth.token_ttl", time.Hour)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.dashboard_ttl", 5*time.Minute)
	v.SetDefault("cache.warm_timeout", 30*time.Second)
	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("health.poll_interval", 30*time.Second)
	v.SetDefault("health.timeout", 5*time.Second)

	v.SetDefault("backends.rate_limit", 20.0)
	v.SetDefault("backends.rate_burst", 10)
	v.SetDefault("backends.cb_max_requests", 1)
	v.SetDefault("backends.cb_interval", time.Minute)
	v.SetDefault("backends.cb_timeout", 30*time.Second)
	v.SetDefault("backends.cb_failures", 5)

	v.SetDefault("dashboard.price_change", 2.3)
	v.SetDefault("documents.max_upload_bytes", 50<<20)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}

// loadKeyResource - ключ из ENV (PEM целиком) или из файла по пути
func loadKeyResource(path string, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
