package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingEnv is returned when a required environment variable is unset.
var ErrMissingEnv = errors.New("required environment variable missing")

const (
	defaultHSLHistoryURL        = "https://www.hsl.fi/omat-tiedot/kaupunkipyorat/matkahistoria"
	defaultKilometrikisaLogin   = "https://www.kilometrikisa.fi/accounts/login/"
	defaultKilometrikisaLogSave = "https://www.kilometrikisa.fi/contest/log-save/"
	defaultKilometrikisaMinSave = "https://www.kilometrikisa.fi/contest/minute-log-save/"
)

// Credentials is a username/password pair for one site.
type Credentials struct {
	Username string
	Password string
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	HSL           Credentials
	Kilometrikisa Credentials

	Headless          bool
	ChromeBin         string
	SlowMo            time.Duration
	NavigationTimeout time.Duration
	SettleDelay       time.Duration

	MaxConcurrency int
	RateLimitMs    int
	ExcludeToday   bool
	Debug          bool

	HSLHistoryURL              string
	KilometrikisaLoginURL      string
	KilometrikisaLogSaveURL    string
	KilometrikisaMinuteSaveURL string
}

// Load reads the .env file and returns a populated Config struct. All
// missing credentials are reported in one error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from the given lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	var missing []string
	require := func(key string) string {
		val := getenv(key)
		if val == "" {
			missing = append(missing, key)
		}
		return val
	}

	cfg := &Config{
		HSL: Credentials{
			Username: require("HSL_USERNAME"),
			Password: require("HSL_PASSWORD"),
		},
		Kilometrikisa: Credentials{
			Username: require("KILOMETRIKISA_USERNAME"),
			Password: require("KILOMETRIKISA_PASSWORD"),
		},

		Headless:          getEnvBool(getenv, "HEADLESS", false),
		ChromeBin:         getEnv(getenv, "CHROME_BIN", ""),
		SlowMo:            time.Duration(getEnvInt(getenv, "SLOW_MO_MS", 10)) * time.Millisecond,
		NavigationTimeout: time.Duration(getEnvInt(getenv, "NAVIGATION_TIMEOUT_SEC", 30)) * time.Second,
		SettleDelay:       time.Duration(getEnvInt(getenv, "SETTLE_DELAY_MS", 1000)) * time.Millisecond,

		MaxConcurrency: getEnvInt(getenv, "MAX_CONCURRENCY", 4),
		RateLimitMs:    getEnvInt(getenv, "RATE_LIMIT_MS", 0),
		ExcludeToday:   getEnvBool(getenv, "EXCLUDE_TODAY", false),
		Debug:          getEnvBool(getenv, "DEBUG", false),

		HSLHistoryURL:              getEnv(getenv, "HSL_HISTORY_URL", defaultHSLHistoryURL),
		KilometrikisaLoginURL:      getEnv(getenv, "KILOMETRIKISA_LOGIN_URL", defaultKilometrikisaLogin),
		KilometrikisaLogSaveURL:    getEnv(getenv, "KILOMETRIKISA_LOG_SAVE_URL", defaultKilometrikisaLogSave),
		KilometrikisaMinuteSaveURL: getEnv(getenv, "KILOMETRIKISA_MINUTE_LOG_SAVE_URL", defaultKilometrikisaMinSave),
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}
	return cfg, nil
}

func getEnv(getenv func(string) string, key, fallback string) string {
	if val := getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(getenv func(string) string, key string, fallback int) int {
	if val := getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(getenv func(string) string, key string, fallback bool) bool {
	if val := getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
