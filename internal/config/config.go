package config

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env          string
	Addr         string
	PublicURL    *url.URL
	DBDSN        string
	DBMigrate    bool
	CookieSecret string
	SessionTTL   time.Duration
	LogLevel     string

	GoogleClientID string
	AppleServiceID string

	// VisibilityEngine is "table" or "rego".
	VisibilityEngine string

	BlobBackend   string
	BlobDir       string
	BlobPublicURL string
	S3Bucket      string
	S3Region      string

	CORSOrigins []string
}

// Load reads the environment after merging the optional .env file named by
// APP_ENV_FILE. Variables already set in the environment win.
func Load() (Config, error) {
	path := os.Getenv("APP_ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := loadDotEnvFile(path, os.Setenv, os.Getenv); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("APP_ENV_FILE: %w", err)
	}
	return LoadFromEnv(os.Getenv)
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:              getenv("APP_ENV"),
		Addr:             getenv("APP_ADDR"),
		DBDSN:            getenv("APP_DB_DSN"),
		LogLevel:         getenv("APP_LOG_LEVEL"),
		CookieSecret:     getenv("APP_COOKIE_SECRET"),
		GoogleClientID:   strings.TrimSpace(getenv("APP_GOOGLE_CLIENT_ID")),
		AppleServiceID:   strings.TrimSpace(getenv("APP_APPLE_SERVICE_ID")),
		VisibilityEngine: strings.ToLower(strings.TrimSpace(getenv("APP_VISIBILITY_ENGINE"))),
		BlobBackend:      strings.ToLower(strings.TrimSpace(getenv("APP_BLOB_BACKEND"))),
		BlobDir:          getenv("APP_BLOB_DIR"),
		BlobPublicURL:    strings.TrimRight(getenv("APP_BLOB_PUBLIC_URL"), "/"),
		S3Bucket:         getenv("APP_S3_BUCKET"),
		S3Region:         getenv("APP_S3_REGION"),
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}

	publicURLRaw := getenv("APP_PUBLIC_URL")
	if publicURLRaw != "" {
		parsed, err := url.Parse(publicURLRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_PUBLIC_URL: %w", err)
		}
		if !parsed.IsAbs() || parsed.Host == "" {
			return Config{}, errors.New("APP_PUBLIC_URL: must be an absolute URL")
		}
		switch parsed.Scheme {
		case "http", "https":
		default:
			return Config{}, errors.New("APP_PUBLIC_URL: scheme must be http or https")
		}
		cfg.PublicURL = parsed
	}

	ttlRaw := getenv("APP_SESSION_TTL")
	if ttlRaw == "" {
		cfg.SessionTTL = 30 * 24 * time.Hour
	} else {
		ttl, err := time.ParseDuration(ttlRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_SESSION_TTL: %w", err)
		}
		if ttl <= 0 {
			return Config{}, errors.New("APP_SESSION_TTL: must be > 0")
		}
		cfg.SessionTTL = ttl
	}

	if raw := strings.TrimSpace(getenv("APP_DB_MIGRATE")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_DB_MIGRATE: %w", err)
		}
		cfg.DBMigrate = v
	}

	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}

	switch cfg.VisibilityEngine {
	case "":
		cfg.VisibilityEngine = "table"
	case "table", "rego":
	default:
		return Config{}, errors.New("APP_VISIBILITY_ENGINE: must be table or rego")
	}

	switch cfg.BlobBackend {
	case "":
		cfg.BlobBackend = "disk"
		fallthrough
	case "disk":
		if cfg.BlobDir == "" {
			cfg.BlobDir = "data/media"
		}
	case "s3":
		if cfg.S3Bucket == "" {
			return Config{}, errors.New("APP_S3_BUCKET: required when APP_BLOB_BACKEND=s3")
		}
	default:
		return Config{}, errors.New("APP_BLOB_BACKEND: must be disk or s3")
	}

	cfg.CORSOrigins = parseCSV(getenv("APP_CORS_ORIGINS"))

	if cfg.IsProd() {
		if cfg.PublicURL == nil {
			return Config{}, errors.New("APP_PUBLIC_URL: required in prod")
		}
		if cfg.DBDSN == "" {
			return Config{}, errors.New("APP_DB_DSN: required in prod")
		}
		if len(cfg.CookieSecret) < 32 {
			return Config{}, errors.New("APP_COOKIE_SECRET: must be at least 32 bytes in prod")
		}
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

func (c Config) CookieSecure() bool {
	if c.PublicURL != nil {
		return c.PublicURL.Scheme == "https"
	}
	return c.IsProd()
}

// loadDotEnvFile sets KEY=VALUE pairs from path that are not already set.
// Blank lines, comments and lines without '=' are skipped, as are empty
// values. An "export " prefix and matching quotes are stripped.
func loadDotEnvFile(path string, setenv func(string, string) error, getenv func(string) string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = unquote(strings.TrimSpace(val))
		if key == "" || val == "" || getenv(key) != "" {
			continue
		}
		if err := setenv(key, val); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return sc.Err()
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// parseCSV splits a comma list, dropping blanks and duplicates. Case is kept
// since origins are compared verbatim.
func parseCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimRight(strings.TrimSpace(p), "/")
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
