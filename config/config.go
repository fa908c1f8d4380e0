package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Driver names the datastore backend selected by the database URL.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverBolt     Driver = "bbolt"
)

const (
	DefaultAddr      = ":8000"
	DefaultSecretKey = "inkwell-insecure-local-dev-key"
	sqliteFile       = "db.sqlite3"

	// minDatabaseURLLength is the length a DATABASE_URL must exceed before it is considered at all.
	minDatabaseURLLength = 10
)

// DefaultAllowedHosts are the host patterns accepted when debug is off. A leading dot matches any subdomain.
var DefaultAllowedHosts = []string{".vercel.app", ".now.sh", "localhost", "127.0.0.1"}

// Config is the resolved runtime configuration. It is built once at startup and passed explicitly.
type Config struct {
	Addr         string   `toml:"addr"`
	BaseDir      string   `toml:"base_dir"`
	SecretKey    string   `toml:"secret_key"`
	AllowedHosts []string `toml:"allowed_hosts"`
	MediaRoot    string   `toml:"media_root"`
	Database     Database `toml:"database"`
	Logging      Logging  `toml:"logging"`

	// Debug is true unless the VERCEL environment variable is set.
	Debug bool `toml:"-"`
	// StaticRoot is <BaseDir>/static when that directory exists, otherwise empty.
	StaticRoot string `toml:"-"`
}

// Database selects the datastore.
type Database struct {
	URL    string `toml:"url"`
	Driver Driver `toml:"-"`
	// DSN is what the driver opens: a file path for sqlite, a directory for bbolt, or the URL itself for postgres.
	DSN string `toml:"-"`
}

// Logging configures the slog handler.
type Logging struct {
	Level  string `toml:"level"`  // debug, info, warn or error
	Format string `toml:"format"` // text or json
}

// Default returns the configuration used when nothing else is supplied.
func Default() *Config {
	return &Config{
		Addr:         DefaultAddr,
		BaseDir:      ".",
		SecretKey:    DefaultSecretKey,
		AllowedHosts: append([]string(nil), DefaultAllowedHosts...),
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the optional TOML file at path, a .env file in the
// base directory and finally the process environment. Problems with DATABASE_URL are logged
// and the SQLite default is kept.
func Load(path string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode configuration file %s: %w", path, err)
		}
	}

	if v, ok := os.LookupEnv("INKWELL_BASE_DIR"); ok && v != "" {
		cfg.BaseDir = v
	}

	if err := godotenv.Load(filepath.Join(cfg.BaseDir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg.applyEnv()
	cfg.resolve(logger)

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("INKWELL_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("SECRET_KEY"); v != "" {
		c.SecretKey = v
	}
	if v := os.Getenv("INKWELL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("INKWELL_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}

	_, onVercel := os.LookupEnv("VERCEL")
	c.Debug = !onVercel
}

func (c *Config) resolve(logger *slog.Logger) {
	if c.MediaRoot == "" {
		c.MediaRoot = filepath.Join(c.BaseDir, "media")
	}

	c.StaticRoot = ""
	if info, err := os.Stat(filepath.Join(c.BaseDir, "static")); err == nil && info.IsDir() {
		c.StaticRoot = filepath.Join(c.BaseDir, "static")
	}

	c.Database.Driver = DriverSQLite
	c.Database.DSN = filepath.Join(c.BaseDir, sqliteFile)

	raw := c.Database.URL
	if len(raw) <= minDatabaseURLLength {
		return
	}

	driver, dsn, err := parseDatabaseURL(raw, c.BaseDir)
	if err != nil {
		logger.Warn("could not load DATABASE_URL, using SQLite", slog.String("error", err.Error()))
		return
	}

	c.Database.Driver = driver
	c.Database.DSN = dsn
}

// parseDatabaseURL maps a database URL onto a driver and the DSN that driver opens.
// Relative sqlite and bbolt paths are resolved against baseDir.
func parseDatabaseURL(raw, baseDir string) (Driver, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid database URL: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		if u.Host == "" {
			return "", "", errors.New("postgres URL has no host")
		}
		return DriverPostgres, raw, nil
	case "sqlite", "sqlite3", "file":
		path, err := localPath(u, baseDir)
		if err != nil {
			return "", "", err
		}
		return DriverSQLite, path, nil
	case "bolt", "bbolt":
		path, err := localPath(u, baseDir)
		if err != nil {
			return "", "", err
		}
		return DriverBolt, path, nil
	case "":
		return "", "", errors.New("database URL has no scheme")
	default:
		return "", "", fmt.Errorf("unsupported database scheme %q", u.Scheme)
	}
}

// localPath follows the sqlite:///relative and sqlite:////absolute convention.
func localPath(u *url.URL, baseDir string) (string, error) {
	path := u.Opaque
	if path == "" {
		path = u.Host + u.Path
		if u.Host == "" {
			path = strings.TrimPrefix(u.Path, "/")
		}
	}

	if path == "" {
		return "", fmt.Errorf("%s URL has no path", u.Scheme)
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return path, nil
}

// NewLogger builds the slog logger described by the logging section.
func (l Logging) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.level()}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (l Logging) level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// HostAllowed reports whether host, with any port removed, matches one of the allowed patterns.
func (c *Config) HostAllowed(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)

	for _, pattern := range c.AllowedHosts {
		pattern = strings.ToLower(pattern)
		switch {
		case pattern == "*":
			return true
		case strings.HasPrefix(pattern, "."):
			if host == pattern[1:] || strings.HasSuffix(host, pattern) {
				return true
			}
		case host == pattern:
			return true
		}
	}
	return false
}
