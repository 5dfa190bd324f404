package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Session store backends.
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FRONTDESK"

// Config captures configuration values for the front-desk service.
type Config struct {
	HTTPPort             int
	Store                string
	SQLitePath           string
	SessionStore         string
	SessionTTL           time.Duration
	MaxSessionSelections int
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	RateLimitPerMinute   int
	OpenStayHorizonDays  int
	MaxGridDays          int
	LogLevel             string
}

var defaults = map[string]any{
	"http_port":              8080,
	"store":                  StoreSQLite,
	"sqlite_path":            "frontdesk.db",
	"session_store":          SessionStoreMemory,
	"session_ttl":            "30m",
	"max_session_selections": 50,
	"redis_addr":             "",
	"redis_password":         "",
	"redis_db":               0,
	"rate_limit_per_minute":  600,
	"open_stay_horizon_days": 30,
	"max_grid_days":          366,
	"log_level":              "info",
}

// Load reads configuration from FRONTDESK_* environment variables and, when
// path is not empty, from a YAML file. Environment variables win over the file.
//
// Every missing or invalid key is reported in a single error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("設定ファイルを読み込めません: %s: %w", path, err)
		}
	}

	p := parser{v: v}
	cfg := Config{
		HTTPPort:             p.positiveInt("http_port"),
		Store:                p.oneOf("store", StoreSQLite, StoreMemory),
		SQLitePath:           p.str("sqlite_path"),
		SessionStore:         p.oneOf("session_store", SessionStoreMemory, SessionStoreRedis),
		SessionTTL:           p.duration("session_ttl"),
		MaxSessionSelections: p.positiveInt("max_session_selections"),
		RedisAddr:            p.str("redis_addr"),
		RedisPassword:        v.GetString("redis_password"),
		RedisDB:              p.nonNegativeInt("redis_db"),
		RateLimitPerMinute:   p.nonNegativeInt("rate_limit_per_minute"),
		OpenStayHorizonDays:  p.positiveInt("open_stay_horizon_days"),
		MaxGridDays:          p.positiveInt("max_grid_days"),
		LogLevel:             p.oneOf("log_level", "debug", "info", "warn", "error"),
	}

	if cfg.Store == StoreSQLite && cfg.SQLitePath == "" {
		p.missing = append(p.missing, envName("sqlite_path"))
	}
	if cfg.SessionStore == SessionStoreRedis && cfg.RedisAddr == "" {
		p.missing = append(p.missing, envName("redis_addr"))
	}

	if len(p.missing) > 0 {
		return Config{}, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(p.missing, ", "))
	}
	if len(p.invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(p.invalid, ", "))
	}
	return cfg, nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(key)
}

type parser struct {
	v       *viper.Viper
	missing []string
	invalid []string
}

func (p *parser) str(key string) string {
	return strings.TrimSpace(p.v.GetString(key))
}

func (p *parser) integer(key string, min int) int {
	value := p.str(key)
	n, err := strconv.Atoi(value)
	if err != nil || n < min {
		p.invalid = append(p.invalid, envName(key))
		return 0
	}
	return n
}

func (p *parser) positiveInt(key string) int    { return p.integer(key, 1) }
func (p *parser) nonNegativeInt(key string) int { return p.integer(key, 0) }

func (p *parser) duration(key string) time.Duration {
	d, err := time.ParseDuration(p.str(key))
	if err != nil || d <= 0 {
		p.invalid = append(p.invalid, envName(key))
		return 0
	}
	return d
}

func (p *parser) oneOf(key string, allowed ...string) string {
	value := strings.ToLower(p.str(key))
	for _, a := range allowed {
		if value == a {
			return value
		}
	}
	p.invalid = append(p.invalid, envName(key))
	return ""
}
