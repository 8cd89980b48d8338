package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type AppConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	APIBaseURL  string        `env:"API_BASE_URL"`
	APITimeout  time.Duration `env:"API_TIMEOUT" envDefault:"10s"`
	APIRetryMax int           `env:"API_RETRY_MAX" envDefault:"3"`
	RealtimeURL string        `env:"REALTIME_URL"`

	// Credentials forwarded on every backend request and on the socket handshake.
	AuthToken   string `env:"AUTH_TOKEN"`
	UserID      int64  `env:"USER_ID"`
	IsModerator bool   `env:"USER_IS_MODERATOR" envDefault:"true"`

	// DeskJWTSecret enables bearer token checks on the desk endpoints.
	DeskJWTSecret string `env:"DESK_JWT_SECRET"`

	RedisURL    string `env:"REDIS_URL"`
	DatabaseURL string `env:"DATABASE_URL"`

	RosterTTL        time.Duration `env:"ROSTER_TTL" envDefault:"1h"`
	NoteSaveDelay    time.Duration `env:"NOTE_SAVE_DELAY" envDefault:"250ms"`
	NoteSavePolicy   string        `env:"NOTE_SAVE_POLICY" envDefault:"per-report"`
	DeferSessionOpen bool          `env:"DEFER_SESSION_OPEN" envDefault:"true"`

	MessagesDir string `env:"MESSAGES_DIR"`

	ReconnectAttempts int           `env:"REALTIME_RECONNECT_ATTEMPTS" envDefault:"5"`
	ReconnectDelay    time.Duration `env:"REALTIME_RECONNECT_DELAY" envDefault:"1s"`
}

var validPolicies = []string{"per-report", "block", "queue", "flush-and-switch"}

// Load reads the environment. Variables from ENV_FILE (default .env) fill
// in whatever the process environment leaves unset.
func Load() (*AppConfig, error) {
	if err := loadDotenv(); err != nil {
		return nil, err
	}
	cfg, err := env.ParseAs[AppConfig]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	cfg.APIBaseURL = strings.TrimSpace(cfg.APIBaseURL)
	cfg.RealtimeURL = strings.TrimSpace(cfg.RealtimeURL)
	cfg.NoteSavePolicy = strings.ToLower(strings.TrimSpace(cfg.NoteSavePolicy))

	if cfg.APIBaseURL == "" {
		return nil, errors.New("API_BASE_URL is required")
	}
	if cfg.RealtimeURL == "" {
		return nil, errors.New("REALTIME_URL is required")
	}
	if cfg.UserID <= 0 {
		return nil, errors.New("USER_ID is required")
	}
	if !policyValid(cfg.NoteSavePolicy) {
		return nil, fmt.Errorf("NOTE_SAVE_POLICY must be one of %s", strings.Join(validPolicies, ", "))
	}
	if cfg.NoteSaveDelay <= 0 {
		cfg.NoteSaveDelay = 250 * time.Millisecond
	}
	if cfg.APIRetryMax <= 0 {
		cfg.APIRetryMax = 1
	}

	return &cfg, nil
}

func policyValid(p string) bool {
	for _, v := range validPolicies {
		if v == p {
			return true
		}
	}
	return false
}

func loadDotenv() error {
	path := strings.TrimSpace(os.Getenv("ENV_FILE"))
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}
