package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        int
	GinMode     string
	TLSCertFile string
	TLSKeyFile  string
	LogLevel    string

	BackendBaseURL string
	BackendWSURL   string
	BackendTimeout time.Duration

	SessionStateFile string
	RedisAddr        string
	RedisPassword    string
	RedisPrefix      string

	WSMaxRetries        int
	WSRetryDelay        time.Duration
	NotifyDedupCapacity int
	CommandRatePerSec   float64
	CommandBurst        int
	LoginRateLimit      int
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

// LoadConfig reads an optional .env file, then the process environment.
// Variables already set in the environment win over the file.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:                3000,
		GinMode:             "release",
		LogLevel:            "info",
		BackendTimeout:      15 * time.Second,
		RedisPrefix:         "guardian:",
		WSMaxRetries:        5,
		WSRetryDelay:        5 * time.Second,
		NotifyDedupCapacity: 1000,
		CommandRatePerSec:   5,
		CommandBurst:        5,
		LoginRateLimit:      10,
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}
	if raw := env.Getenv("LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return Config{}, fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}

	cfg.BackendBaseURL = strings.TrimRight(env.Getenv("BACKEND_BASE_URL"), "/")
	if cfg.BackendBaseURL == "" {
		return Config{}, fmt.Errorf("BACKEND_BASE_URL is required")
	}
	base, err := url.Parse(cfg.BackendBaseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return Config{}, fmt.Errorf("invalid BACKEND_BASE_URL")
	}

	cfg.BackendWSURL = env.Getenv("BACKEND_WS_URL")
	if cfg.BackendWSURL == "" {
		cfg.BackendWSURL = deriveWSURL(base)
	} else if u, err := url.Parse(cfg.BackendWSURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return Config{}, fmt.Errorf("invalid BACKEND_WS_URL")
	}

	if raw := env.Getenv("BACKEND_TIMEOUT_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid BACKEND_TIMEOUT_SECONDS")
		}
		cfg.BackendTimeout = time.Duration(seconds) * time.Second
	}

	cfg.SessionStateFile = env.Getenv("SESSION_STATE_FILE")
	cfg.RedisAddr = env.Getenv("REDIS_ADDR")
	cfg.RedisPassword = env.Getenv("REDIS_PASSWORD")
	if raw := env.Getenv("REDIS_PREFIX"); raw != "" {
		cfg.RedisPrefix = raw
	}

	if raw := env.Getenv("WS_MAX_RETRIES"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("invalid WS_MAX_RETRIES")
		}
		cfg.WSMaxRetries = n
	}
	if raw := env.Getenv("WS_RETRY_DELAY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid WS_RETRY_DELAY_SECONDS")
		}
		cfg.WSRetryDelay = time.Duration(seconds) * time.Second
	}
	if raw := env.Getenv("NOTIFY_DEDUP_CAPACITY"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid NOTIFY_DEDUP_CAPACITY")
		}
		cfg.NotifyDedupCapacity = n
	}
	if raw := env.Getenv("COMMAND_RATE_PER_SEC"); raw != "" {
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil || rate < 0 {
			return Config{}, fmt.Errorf("invalid COMMAND_RATE_PER_SEC")
		}
		cfg.CommandRatePerSec = rate
	}
	if raw := env.Getenv("COMMAND_BURST"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid COMMAND_BURST")
		}
		cfg.CommandBurst = n
	}
	if raw := env.Getenv("LOGIN_RATE_LIMIT"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid LOGIN_RATE_LIMIT")
		}
		cfg.LoginRateLimit = n
	}

	return cfg, nil
}

func deriveWSURL(base *url.URL) string {
	u := *base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
