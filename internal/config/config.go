package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

type Config struct {
	Mode              string
	HTTPAddr          string
	WriteTimeout      time.Duration
	DBDriver          string
	DBDSN             string
	SessionSecret     string
	SessionCookieName string
	SessionTTL        time.Duration
	CookieSecure      bool
	CookieSameSite    string
	FrontendOrigin    string
	StaticDir         string
	VerificationTTL   time.Duration
	WithdrawReserve   bool
	BcryptCost        int
	MarketTimeout     time.Duration
	MarketRetries     int
	MarketBackoff     time.Duration
	MarketBudget      time.Duration
	BinanceBaseURL    string
	ForexBaseURL      string
	WallexAPIKey      string
	LogLevel          string
}

func (c Config) Production() bool {
	return c.Mode == ModeProduction
}

// source resolves a key from the environment first and the optional YAML file second.
type source struct {
	file map[string]string
}

func (s source) get(key string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(s.file[key])
}

func (s source) str(key, def string) string {
	if v := s.get(key); v != "" {
		return v
	}
	return def
}

func (s source) duration(key string, def time.Duration) (time.Duration, error) {
	raw := s.get(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}

func (s source) boolean(key string, def bool) (bool, error) {
	raw := s.get(key)
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return b, nil
}

func (s source) integer(key string, def int) (int, error) {
	raw := s.get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return n, nil
}

// readFile loads a flat YAML mapping of the same keys as the environment.
func readFile(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		if v == nil {
			continue
		}
		out[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return out, nil
}

func hasWildcard(origins string) bool {
	for _, o := range strings.Split(origins, ",") {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

func Load() (Config, error) {
	var c Config
	src := source{}
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		file, err := readFile(path)
		if err != nil {
			return c, err
		}
		src.file = file
	}

	var missing []string
	var err error

	c.Mode = strings.ToLower(src.str("APP_MODE", ModeDevelopment))
	if c.Mode != ModeDevelopment && c.Mode != ModeProduction {
		return c, errors.New("invalid APP_MODE: use development or production")
	}
	c.HTTPAddr = src.str("HTTP_ADDR", ":3000")
	if c.WriteTimeout, err = src.duration("HTTP_WRITE_TIMEOUT", 15*time.Second); err != nil {
		return c, err
	}

	c.DBDriver = strings.ToLower(src.str("DB_DRIVER", "postgres"))
	switch c.DBDriver {
	case "postgres", "mysql", "memory":
	default:
		return c, fmt.Errorf("invalid DB_DRIVER %q: use postgres, mysql or memory", c.DBDriver)
	}
	c.DBDSN = src.get("DB_DSN")
	if c.DBDSN == "" && c.DBDriver != "memory" {
		missing = append(missing, "DB_DSN")
	}

	c.SessionSecret = src.get("SESSION_SECRET")
	if c.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}
	c.SessionCookieName = src.str("SESSION_COOKIE_NAME", "swiftx_session")
	if c.SessionTTL, err = src.duration("SESSION_TTL", 24*time.Hour); err != nil {
		return c, err
	}
	if c.CookieSecure, err = src.boolean("COOKIE_SECURE", c.Production()); err != nil {
		return c, err
	}
	defaultSameSite := "lax"
	if c.Production() {
		defaultSameSite = "none"
	}
	c.CookieSameSite = strings.ToLower(src.str("COOKIE_SAMESITE", defaultSameSite))
	switch c.CookieSameSite {
	case "lax", "strict", "none":
	default:
		return c, fmt.Errorf("invalid COOKIE_SAMESITE %q: use lax, strict or none", c.CookieSameSite)
	}

	c.FrontendOrigin = src.str("FRONTEND_ORIGIN", "*")
	// Cookie sessions plus a wildcard origin would let any site act for a logged-in user.
	if c.Production() && hasWildcard(c.FrontendOrigin) {
		missing = append(missing, "FRONTEND_ORIGIN")
	}
	c.StaticDir = src.get("STATIC_DIR")
	if c.VerificationTTL, err = src.duration("VERIFICATION_TTL", 24*time.Hour); err != nil {
		return c, err
	}
	if c.WithdrawReserve, err = src.boolean("WITHDRAW_RESERVE", false); err != nil {
		return c, err
	}
	if c.BcryptCost, err = src.integer("BCRYPT_COST", 12); err != nil {
		return c, err
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return c, fmt.Errorf("invalid BCRYPT_COST %d: must be between %d and %d", c.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	if c.MarketTimeout, err = src.duration("MARKET_TIMEOUT", 10*time.Second); err != nil {
		return c, err
	}
	if c.MarketRetries, err = src.integer("MARKET_RETRIES", 3); err != nil {
		return c, err
	}
	if c.MarketRetries < 1 {
		return c, errors.New("invalid MARKET_RETRIES: must be at least 1")
	}
	if c.MarketBackoff, err = src.duration("MARKET_BACKOFF", 500*time.Millisecond); err != nil {
		return c, err
	}
	if c.MarketBudget, err = src.duration("MARKET_BUDGET", 12*time.Second); err != nil {
		return c, err
	}
	if c.MarketBudget >= c.WriteTimeout {
		return c, fmt.Errorf("invalid MARKET_BUDGET %s: must be below HTTP_WRITE_TIMEOUT %s", c.MarketBudget, c.WriteTimeout)
	}
	c.BinanceBaseURL = strings.TrimRight(src.str("BINANCE_BASE_URL", "https://api.binance.com"), "/")
	c.ForexBaseURL = strings.TrimRight(src.str("FOREX_BASE_URL", "https://open.er-api.com"), "/")
	c.WallexAPIKey = src.get("WALLEX_API_KEY")
	c.LogLevel = strings.ToLower(src.str("LOG_LEVEL", "info"))

	if len(missing) > 0 {
		return c, errors.New("missing required env: " + strings.Join(missing, ","))
	}
	return c, nil
}
