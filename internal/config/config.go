package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 總配置結構
type Config struct {
	App       AppConfig       `yaml:"app"`
	Redis     RedisConfig     `yaml:"redis"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	WSS       WSSConfig       `yaml:"wss"`
	GameLoop  GameLoopConfig  `yaml:"gameLoop"`
	Session   SessionConfig   `yaml:"session"`
	Economy   EconomyConfig   `yaml:"economy"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	CORS      CORSConfig      `yaml:"cors"`
	Database  DatabaseConfig  `yaml:"database"`
	Security  SecurityConfig  `yaml:"security"`
	AdminSeed AdminSeedConfig `yaml:"adminSeed"`
}

type AppConfig struct {
	Name  string `yaml:"name"`
	Env   string `yaml:"env"`
	Port  int    `yaml:"port"`
	PodIP string `yaml:"-"` // Pod IP (runtime injected, not from file)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

type WSSConfig struct {
	Path            string   `yaml:"path"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	ReadBufferSize  int      `yaml:"read_buffer_size"`
	WriteBufferSize int      `yaml:"write_buffer_size"`
	WriteWaitSec    int      `yaml:"write_wait_sec"`
	PongWaitSec     int      `yaml:"pong_wait_sec"`
	MaxMessageSize  int64    `yaml:"max_message_size"`
}

// GameLoopConfig governs the turn-timeout scheduler's sweep cadence.
type GameLoopConfig struct {
	TickIntervalMs int `yaml:"tickIntervalMs"`
}

// SessionConfig governs connection lifecycle and reconnection.
type SessionConfig struct {
	ReconnectionGracePeriodSeconds int `yaml:"reconnectionGracePeriodSeconds"`
}

// EconomyConfig governs starting balances and idempotency retention.
type EconomyConfig struct {
	InitialCoins               int64 `yaml:"initialCoins"`
	IdempotencyKeyRetentionDays int  `yaml:"idempotencyKeyRetentionDays"`
}

// RateLimitConfig governs the per-user minute bucket.
type RateLimitConfig struct {
	PermitLimit   int64 `yaml:"permitLimit"`
	WindowMinutes int   `yaml:"windowMinutes"`
}

// CORSConfig carries cors.allowedOrigins, separate from
// WSSConfig.AllowedOrigins. It is loaded and env-overridable, but no
// component reads it: the websocket upgrade checks WSSConfig.AllowedOrigins.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// DatabaseConfig governs the MySQL connection pool.
type DatabaseConfig struct {
	MaxPoolSize        int `yaml:"maxPoolSize"`
	MinPoolSize        int `yaml:"minPoolSize"`
	ConnectionIdleLife int `yaml:"connectionIdleLifetime"` // seconds
	CommandTimeout     int `yaml:"commandTimeout"`         // seconds
}

// SecurityConfig governs API key validation for admin/service callers.
type SecurityConfig struct {
	MinimumAPIKeyLength int `yaml:"minimumApiKeyLength"`
}

// AdminSeedConfig describes the operator account created at bootstrap if
// no admin exists yet.
type AdminSeedConfig struct {
	Email        string `yaml:"email"`
	Password     string `yaml:"password"`
	InitialCoins int64  `yaml:"initialCoins"`
}

// applyDefaults fills every recognized option with its documented default
// so YAML omissions never leave a field at Go's zero value.
func applyDefaults(cfg *Config) {
	if cfg.GameLoop.TickIntervalMs == 0 {
		cfg.GameLoop.TickIntervalMs = 5000
	}
	if cfg.Session.ReconnectionGracePeriodSeconds == 0 {
		cfg.Session.ReconnectionGracePeriodSeconds = 15
	}
	if cfg.Economy.InitialCoins == 0 {
		cfg.Economy.InitialCoins = 100
	}
	if cfg.RateLimit.PermitLimit == 0 {
		cfg.RateLimit.PermitLimit = 100
	}
	if cfg.RateLimit.WindowMinutes == 0 {
		cfg.RateLimit.WindowMinutes = 1
	}
	if cfg.Database.MaxPoolSize == 0 {
		cfg.Database.MaxPoolSize = 20
	}
	if cfg.Database.MinPoolSize == 0 {
		cfg.Database.MinPoolSize = 5
	}
	if cfg.Database.ConnectionIdleLife == 0 {
		cfg.Database.ConnectionIdleLife = 300
	}
	if cfg.Database.CommandTimeout == 0 {
		cfg.Database.CommandTimeout = 5
	}
	if cfg.Security.MinimumAPIKeyLength == 0 {
		cfg.Security.MinimumAPIKeyLength = 32
	}
	if cfg.WSS.Path == "" {
		cfg.WSS.Path = "/ws"
	}
}

// TickInterval returns GameLoop.TickIntervalMs as a time.Duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.GameLoop.TickIntervalMs) * time.Millisecond
}

// ReconnectionGrace returns Session.ReconnectionGracePeriodSeconds as a
// time.Duration.
func (c *Config) ReconnectionGrace() time.Duration {
	return time.Duration(c.Session.ReconnectionGracePeriodSeconds) * time.Second
}

// Load 讀取設定檔
// 優先讀取 config/config.yaml，然後使用環境變數覆蓋
func Load(configPath ...string) (*Config, error) {
	// 1. 決定設定檔路徑
	dir := "./config"
	if len(configPath) > 0 {
		dir = configPath[0]
	}
	filename := "config.yaml"
	fullPath := filepath.Join(dir, filename)

	var cfg Config

	// 2. 讀取 YAML 檔案 (如果存在)
	data, err := os.ReadFile(fullPath)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse yaml at %s: %w", fullPath, err)
		}
	} else {
		return nil, fmt.Errorf("failed to read config file at %s: %w", fullPath, err)
	}

	// 3. 套用預設值 (在 env override 之前，讓 env 永遠有最後決定權)
	applyDefaults(&cfg)

	// 4. 環境變數覆蓋 (Environment Variable Override)
	overrideWithEnv(&cfg)

	return &cfg, nil
}

func overrideWithEnv(cfg *Config) {
	// App
	if env := os.Getenv(EnvAppEnv); env != "" {
		cfg.App.Env = env
	}
	if portVal := os.Getenv(EnvPort); portVal != "" {
		if p, err := strconv.Atoi(portVal); err == nil {
			cfg.App.Port = p
		}
	}
	if podIP := os.Getenv(EnvPodIP); podIP != "" {
		cfg.App.PodIP = podIP
	}

	// MySQL
	if val := os.Getenv(EnvMySQLHost); val != "" {
		cfg.MySQL.Host = val
	}
	if val := os.Getenv(EnvMySQLPassword); val != "" {
		cfg.MySQL.Password = val
	}
	if val := os.Getenv(EnvMySQLUser); val != "" {
		cfg.MySQL.User = val
	}
	if val := os.Getenv(EnvMySQLDB); val != "" {
		cfg.MySQL.DBName = val
	}
	if val := os.Getenv(EnvMySQLPort); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.MySQL.Port = p
		}
	}

	// Redis
	if val := os.Getenv(EnvRedisAddr); val != "" {
		cfg.Redis.Addr = val
	}
	if val := os.Getenv(EnvRedisPassword); val != "" {
		cfg.Redis.Password = val
	}

	// Economy / game loop / session / rate limit
	if val := os.Getenv(EnvGameLoopTickMs); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.GameLoop.TickIntervalMs = p
		}
	}
	if val := os.Getenv(EnvReconnectGraceSeconds); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Session.ReconnectionGracePeriodSeconds = p
		}
	}
	if val := os.Getenv(EnvEconomyInitialCoins); val != "" {
		if p, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Economy.InitialCoins = p
		}
	}
	if val := os.Getenv(EnvRateLimitPermit); val != "" {
		if p, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.RateLimit.PermitLimit = p
		}
	}

	// CORS
	if val := os.Getenv(EnvCORSAllowedOrigins); val != "" {
		cfg.CORS.AllowedOrigins = strings.Split(val, ",")
	}

	// Admin seed
	if val := os.Getenv(EnvAdminSeedEmail); val != "" {
		cfg.AdminSeed.Email = val
	}
	if val := os.Getenv(EnvAdminSeedPassword); val != "" {
		cfg.AdminSeed.Password = val
	}
}
