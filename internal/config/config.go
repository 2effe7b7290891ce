// Package config loads the user's booking preferences from config.json (the
// file the configuration UI maintains) and layers process settings from the
// environment on top. The core never mutates shared config: a Config value is
// built once at startup and passed into each component.
package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xuyuanfang/WHULibSeatReservation/internal/reservation"
	"github.com/xuyuanfang/WHULibSeatReservation/internal/secret"
)

// encPrefix marks a password stored encrypted at rest.
const encPrefix = "enc:"

// File mirrors config.json as the configuration UI writes it.
type File struct {
	Name      string `json:"name"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Library   string `json:"lib"`
	Room      string `json:"room"`
	StartTime string `json:"starttime"`
	EndTime   string `json:"endtime"`
	Window    string `json:"window"` // any|yes|no
	Power     string `json:"power"`  // any|yes|no
}

type Config struct {
	Name     string
	Username string
	Password string

	Filter reservation.Filter

	WebBaseURL string
	AppBaseURL string

	PollInterval time.Duration
	GateMargin   time.Duration

	// Optional extras; empty/nil disables the feature.
	DatabaseURL      string
	SessionCachePath string
	SessionHashKey   []byte
	SessionBlockKey  []byte
}

// Load reads path and applies WHULIB_* environment overrides. An encrypted
// password requires WHULIB_PASSPHRASE to be set.
func Load(path string) (Config, error) {
	var f File
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(b, &f); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg := Config{
		Name:     getenv("WHULIB_NAME", f.Name),
		Username: getenv("WHULIB_USERNAME", f.Username),
		Password: getenv("WHULIB_PASSWORD", f.Password),

		WebBaseURL: getenv("WHULIB_WEB_BASE_URL", ""),
		AppBaseURL: getenv("WHULIB_APP_BASE_URL", ""),

		DatabaseURL:      getenv("DATABASE_URL", ""),
		SessionCachePath: getenv("WHULIB_SESSION_CACHE", ""),
	}
	cfg.Filter = reservation.Filter{
		Building:  getenv("WHULIB_LIBRARY", f.Library),
		Room:      getenv("WHULIB_ROOM", f.Room),
		StartTime: getenv("WHULIB_START", f.StartTime),
		EndTime:   getenv("WHULIB_END", f.EndTime),
	}
	if cfg.Filter.Window, err = parsePreference(getenv("WHULIB_WINDOW", f.Window)); err != nil {
		return Config{}, fmt.Errorf("window: %w", err)
	}
	if cfg.Filter.Power, err = parsePreference(getenv("WHULIB_POWER", f.Power)); err != nil {
		return Config{}, fmt.Errorf("power: %w", err)
	}

	pollSec, err := strconv.Atoi(getenv("WHULIB_POLL_SECONDS", "3"))
	if err != nil || pollSec < 1 {
		return Config{}, fmt.Errorf("invalid WHULIB_POLL_SECONDS")
	}
	cfg.PollInterval = time.Duration(pollSec) * time.Second

	marginMin, err := strconv.Atoi(getenv("WHULIB_GATE_MARGIN_MINUTES", "30"))
	if err != nil || marginMin < 0 {
		return Config{}, fmt.Errorf("invalid WHULIB_GATE_MARGIN_MINUTES")
	}
	cfg.GateMargin = time.Duration(marginMin) * time.Minute

	if strings.HasPrefix(cfg.Password, encPrefix) {
		pass := os.Getenv("WHULIB_PASSPHRASE")
		if pass == "" {
			return Config{}, fmt.Errorf("password is encrypted; WHULIB_PASSPHRASE is required")
		}
		pt, err := secret.Decrypt(pass, strings.TrimPrefix(cfg.Password, encPrefix))
		if err != nil {
			return Config{}, fmt.Errorf("decrypt password: %w", err)
		}
		cfg.Password = pt
	}

	if cfg.SessionCachePath != "" {
		if cfg.SessionHashKey, err = mustB64("SESSION_HASH_KEY"); err != nil {
			return Config{}, err
		}
		if cfg.SessionBlockKey, err = mustB64("SESSION_BLOCK_KEY"); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("username and password are required")
	}
	if c.Filter.StartTime == "" || c.Filter.EndTime == "" {
		return fmt.Errorf("starttime and endtime are required")
	}
	return nil
}

// Save writes the preferences back to path the way the configuration UI
// would. The in-memory password is not re-encrypted here; callers pass the
// stored form.
func Save(path string, f File) error {
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o600)
}

func parsePreference(s string) (reservation.Preference, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any":
		return reservation.PrefAny, nil
	case "yes":
		return reservation.PrefYes, nil
	case "no":
		return reservation.PrefNo, nil
	default:
		return reservation.PrefAny, fmt.Errorf("want any/yes/no, got %q", s)
	}
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func mustB64(k string) ([]byte, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return nil, fmt.Errorf("%s is required (base64) when the session cache is enabled", k)
	}
	if b, err := base64.StdEncoding.DecodeString(v); err == nil {
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", k, err)
	}
	return b, nil
}
