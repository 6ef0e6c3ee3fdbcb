package config

import (
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the client configuration.
type Config struct {
	ServerURL     string // websocket endpoint of the session server, e.g. wss://host:7650/socket
	StreamBaseURL string // base for /get?name=<id> audio requests; derived from ServerURL when empty

	LatencyInitial float64 // seconds
	LatencyStep    float64 // seconds added per load failure
	LatencyCeiling float64 // seconds
	RetryDelay     time.Duration
	TickInterval   time.Duration
	LyricOffset    float64 // seconds, independent of LatencyInitial

	Furigana bool
	Autoplay bool // false: audio context starts suspended until a manual resume
	FFTSize  int

	ControlAddr string // local control API, empty disables it

	// Redis配置，RedisHost 为空时不启用
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// 日志配置
	LogLevel      string
	LogFile       string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
	LogCompress   bool
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvFloat gets an environment variable as float64 or returns a default value.
func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
// With no filenames godotenv reads ./.env.
func Load(filenames ...string) *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(filenames...); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() *Config {
	serverURL := getEnv("SERVER_URL", "ws://127.0.0.1:7650/socket")

	cfg := &Config{
		ServerURL:      serverURL,
		StreamBaseURL:  getEnv("STREAM_BASE_URL", ""),
		LatencyInitial: getEnvFloat("LATENCY_INITIAL", 0.6),
		LatencyStep:    getEnvFloat("LATENCY_STEP", 0.2),
		LatencyCeiling: getEnvFloat("LATENCY_CEILING", 3),
		RetryDelay:     time.Duration(getEnvInt("RETRY_DELAY_MS", 200)) * time.Millisecond,
		TickInterval:   time.Duration(getEnvInt("TICK_INTERVAL_MS", 100)) * time.Millisecond,
		LyricOffset:    getEnvFloat("LYRIC_OFFSET", 0),
		Furigana:       getEnvBool("FURIGANA", true),
		Autoplay:       getEnvBool("AUTOPLAY", false),
		FFTSize:        getEnvInt("FFT_SIZE", 1024),
		ControlAddr:    getEnv("CONTROL_ADDR", "127.0.0.1:7651"),
		RedisHost:      getEnv("REDIS_HOST", ""),
		RedisPort:      getEnv("REDIS_PORT", "6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", ""),
		LogMaxSize:     getEnvInt("LOG_MAX_SIZE", 100),
		LogMaxBackups:  getEnvInt("LOG_MAX_BACKUPS", 3),
		LogMaxAge:      getEnvInt("LOG_MAX_AGE", 28),
		LogCompress:    getEnvBool("LOG_COMPRESS", false),
	}

	cfg.Normalize()
	return cfg
}

// Normalize fills derived values and repairs out-of-range settings. Call it
// again after overriding fields.
func (c *Config) Normalize() {
	if c.StreamBaseURL == "" {
		c.StreamBaseURL = deriveStreamBase(c.ServerURL)
	}
	if c.LatencyCeiling < c.LatencyInitial {
		c.LatencyCeiling = c.LatencyInitial
	}
	if c.FFTSize < 32 || c.FFTSize&(c.FFTSize-1) != 0 {
		c.FFTSize = 1024
	}
}

// RedisEnabled reports whether a Redis host was configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// deriveStreamBase maps ws(s)://host/socket to http(s)://host.
func deriveStreamBase(serverURL string) string {
	u, err := url.Parse(serverURL)
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := "http"
	if u.Scheme == "wss" || u.Scheme == "https" {
		scheme = "https"
	}
	return scheme + "://" + u.Host
}
