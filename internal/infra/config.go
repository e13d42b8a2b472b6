package infra

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config — корневая структура конфигурации дашборда и генератора трафика.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Replay    ReplayConfig    `mapstructure:"replay"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Auth      AuthConfig      `mapstructure:"auth"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Generator GeneratorConfig `mapstructure:"generator"`
}

// ServerConfig описывает HTTP-сервер консоли.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BackendConfig — IDS бэкенд и предохранитель перед ним.
type BackendConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// Timeout 0 — локальный таймаут не ставится
	Timeout time.Duration `mapstructure:"timeout"`

	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`

	CBMaxRequests      uint32        `mapstructure:"cb_max_requests"`
	CBInterval         time.Duration `mapstructure:"cb_interval"`
	CBTimeout          time.Duration `mapstructure:"cb_timeout"`
	CBFailureThreshold uint32        `mapstructure:"cb_failure_threshold"`
}

type MonitorConfig struct {
	StatsInterval     time.Duration `mapstructure:"stats_interval"`
	AlertsInterval    time.Duration `mapstructure:"alerts_interval"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	AlertLimit        int           `mapstructure:"alert_limit"`
}

type ReplayConfig struct {
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	DefaultMaxRows int           `mapstructure:"default_max_rows"`
	DefaultSleepMs int           `mapstructure:"default_sleep_ms"`
}

// RedisConfig — Pub/Sub между инстансами. Пустой Addr отключает рассылку.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DatabaseConfig — PostgreSQL для журнала. Пустой URL: журнал пишется в лог.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

type JournalConfig struct {
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// AuthConfig: если ключа нет, командные маршруты открыты.
type AuthConfig struct {
	PublicKeyPath string `mapstructure:"public_key_path"`
	Scope         string `mapstructure:"scope"`
	PublicKey     []byte
}

// GRPCConfig — health-сервис. Port 0 отключает его.
type GRPCConfig struct {
	Port int `mapstructure:"port"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// GeneratorConfig — cmd/generator.
type GeneratorConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	FeaturesPath  string        `mapstructure:"features_path"`
	ReadyAttempts uint          `mapstructure:"ready_attempts"`
	ReadyDelay    time.Duration `mapstructure:"ready_delay"`
}

// LoadConfig объединяет .env, config.yaml и переменные окружения.
func LoadConfig() (*Config, error) {
	// .env опционален
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("error loading .env: %w", err)
		}
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// BACKEND_BASE_URL=http://ids:8000 перекроет backend.base_url
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет — работаем на ENV и дефолтах
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	base := strings.TrimSpace(c.Backend.BaseURL)
	if base == "" {
		return errors.New("config: backend.base_url is required")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: backend.base_url %q must be an absolute URL", base)
	}
	if c.Monitor.AlertLimit <= 0 {
		return errors.New("config: monitor.alert_limit must be positive")
	}
	if c.Replay.DefaultMaxRows < 0 || c.Replay.DefaultSleepMs < 0 {
		return errors.New("config: replay defaults must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.max_upload_bytes", 64<<20)

	v.SetDefault("backend.base_url", "http://127.0.0.1:8000")
	v.SetDefault("backend.timeout", 0)
	v.SetDefault("backend.rate_limit", 50)
	v.SetDefault("backend.rate_burst", 10)
	v.SetDefault("backend.cb_max_requests", 3)
	v.SetDefault("backend.cb_interval", 5*time.Second)
	v.SetDefault("backend.cb_timeout", 10*time.Second)
	v.SetDefault("backend.cb_failure_threshold", 5)

	v.SetDefault("monitor.stats_interval", 2*time.Second)
	v.SetDefault("monitor.alerts_interval", 2*time.Second)
	v.SetDefault("monitor.reconcile_interval", 0)
	v.SetDefault("monitor.alert_limit", 10)

	v.SetDefault("replay.poll_interval", time.Second)
	v.SetDefault("replay.default_max_rows", 2000)
	v.SetDefault("replay.default_sleep_ms", 0)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)

	v.SetDefault("journal.buffer_size", 1000)
	v.SetDefault("journal.batch_size", 100)
	v.SetDefault("journal.flush_interval", time.Second)

	v.SetDefault("auth.public_key_path", "")
	v.SetDefault("auth.scope", "dashboard:operate")

	v.SetDefault("grpc.port", 0)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	v.SetDefault("generator.interval", time.Second)
	v.SetDefault("generator.features_path", "")
	v.SetDefault("generator.ready_attempts", 10)
	v.SetDefault("generator.ready_delay", 2*time.Second)
}

// loadKeyResource: PEM прямо в ENV (Docker/K8s) или файл по пути из конфига
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
