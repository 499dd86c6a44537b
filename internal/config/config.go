// Package config reads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL  = "https://api.walletwizard.app"
	DefaultRegion  = "US"
	DefaultTimeout = 30 * time.Second
	homeDirName    = ".walletwizard"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	APIURL      string
	Token       string // WALLET_TOKEN; beats the saved session when set
	Home        string
	Region      string
	HTTPTimeout time.Duration
	LogLevel    string
	LogDev      bool
}

// LoadDotEnv reads a .env file in the working directory if there is one.
// Variables already set in the environment win.
func LoadDotEnv() bool {
	return godotenv.Load() == nil
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Config{
		APIURL:   strings.TrimRight(fallback(getenv("WALLET_API_URL"), DefaultAPIURL), "/"),
		Token:    strings.TrimSpace(getenv("WALLET_TOKEN")),
		Home:     strings.TrimSpace(getenv("WALLET_HOME")),
		Region:   strings.ToUpper(fallback(getenv("WALLET_REGION"), DefaultRegion)),
		LogLevel: strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL"))),
		LogDev:   getenv("LOG_DEV") == "1",
	}

	seconds := fallback(getenv("WALLET_HTTP_TIMEOUT_SECONDS"), "30")
	if n, err := strconv.Atoi(seconds); err == nil && n > 0 {
		cfg.HTTPTimeout = time.Duration(n) * time.Second
	} else {
		cfg.HTTPTimeout = DefaultTimeout
	}

	if cfg.Home == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("config: locate home directory: %w", err)
		}
		cfg.Home = filepath.Join(home, homeDirName)
	}

	u, err := url.Parse(cfg.APIURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return Config{}, errors.New("WALLET_API_URL must be an absolute http(s) URL")
	}
	if len(cfg.Region) != 2 {
		return Config{}, fmt.Errorf("WALLET_REGION must be a two-letter region code, got %q", cfg.Region)
	}

	return cfg, nil
}

// SessionPath is the file the saved session lives in.
func (c Config) SessionPath() string {
	return filepath.Join(c.Home, "session.json")
}

// LogDir is the directory log files are written to.
func (c Config) LogDir() string {
	return filepath.Join(c.Home, "logs")
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}
