// Package config reads portal settings from PORTAL_* environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	SessionSecret  string
	BackendURL     string
	Port           string
	LogLevel       string
	LogFormat      string
	DBPath         string
	ContentDir     string
	WebsiteURL     string
	RegisterURL    string
	AllowedOrigins []string
	SessionMaxAge  time.Duration
	StatusInterval time.Duration
	BackendTimeout time.Duration
	RefreshRate    float64
	// TrustProxy makes the login rate limit key on CF-Connecting-IP and
	// X-Forwarded-For. Only set it when a proxy in front rewrites them.
	TrustProxy     bool
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return FromEnv(os.Getenv)
}

// DBPath returns the database location on its own, for commands that need
// no other settings.
func DBPath(getenv func(string) string) string {
	if v := strings.TrimSpace(getenv("PORTAL_DB_PATH")); v != "" {
		return v
	}
	return "portal.db"
}

// FromEnv reads the configuration through getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		SessionSecret: getenv("PORTAL_SESSION_SECRET"),
		BackendURL:    strings.TrimRight(get("PORTAL_BACKEND_URL", ""), "/"),
		Port:          get("PORTAL_PORT", "6020"),
		LogLevel:      get("PORTAL_LOG_LEVEL", "info"),
		LogFormat:     get("PORTAL_LOG_FORMAT", "text"),
		DBPath:        DBPath(getenv),
		ContentDir:    get("PORTAL_CONTENT_DIR", "content/prod"),
		WebsiteURL:    get("PORTAL_WEBSITE_URL", "http://localhost:6020"),
		RegisterURL:   get("PORTAL_REGISTER_URL", ""),
	}

	if cfg.SessionSecret == "" {
		return Config{}, fmt.Errorf("PORTAL_SESSION_SECRET environment variable is required")
	}
	if cfg.BackendURL == "" {
		return Config{}, fmt.Errorf("PORTAL_BACKEND_URL environment variable is required")
	}
	if u, err := url.Parse(cfg.BackendURL); err != nil || u.Scheme == "" || u.Host == "" {
		return Config{}, fmt.Errorf("PORTAL_BACKEND_URL must be an absolute URL, got %q", cfg.BackendURL)
	}
	if _, err := strconv.ParseUint(cfg.Port, 10, 16); err != nil {
		return Config{}, fmt.Errorf("PORTAL_PORT must be a valid port: %w", err)
	}
	if f := strings.ToLower(cfg.LogFormat); f != "text" && f != "json" {
		return Config{}, fmt.Errorf("PORTAL_LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	if v := get("PORTAL_ALLOWED_ORIGINS", ""); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	var err error
	if cfg.SessionMaxAge, err = duration(get, "PORTAL_SESSION_MAX_AGE", "720h"); err != nil {
		return Config{}, err
	}
	if cfg.StatusInterval, err = duration(get, "PORTAL_STATUS_INTERVAL", "30s"); err != nil {
		return Config{}, err
	}
	if cfg.BackendTimeout, err = duration(get, "PORTAL_BACKEND_TIMEOUT", "10s"); err != nil {
		return Config{}, err
	}

	cfg.RefreshRate, err = strconv.ParseFloat(get("PORTAL_REFRESH_RATE", "5"), 64)
	if err != nil || cfg.RefreshRate <= 0 {
		return Config{}, fmt.Errorf("PORTAL_REFRESH_RATE must be a positive number")
	}
	if cfg.TrustProxy, err = strconv.ParseBool(get("PORTAL_TRUST_PROXY", "false")); err != nil {
		return Config{}, fmt.Errorf("PORTAL_TRUST_PROXY must be a boolean: %w", err)
	}

	return cfg, nil
}

func duration(get func(key, def string) string, key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(get(key, def))
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
