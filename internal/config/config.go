package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissing wraps the list of required settings that are not set.
var ErrMissing = errors.New("missing required configuration")

// NotionConfig describes the record source.
type NotionConfig struct {
	// Token is the integration secret. Prefer NOTION_TOKEN over storing it
	// in the file.
	Token      string `yaml:"token" json:"-"`
	DatabaseID string `yaml:"database_id" json:"database_id"`
	Version    string `yaml:"version" json:"version"`
	BaseURL    string `yaml:"base_url" json:"base_url"`
	PageSize   int    `yaml:"page_size" json:"page_size"`
	// RequestsPerSecond throttles database queries.
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
}

// FeedConfig controls feed content and delivery.
type FeedConfig struct {
	Name      string `yaml:"name" json:"name"`
	TimeZone  string `yaml:"timezone" json:"timezone"`
	ProductID string `yaml:"product_id" json:"product_id"`

	// WindowSize bounds the windowed ("lite") feed.
	WindowSize int `yaml:"window_size" json:"window_size"`
	// CacheTTL is the freshness window of an assembled feed.
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`

	// DateProperties is the name priority for the event date.
	DateProperties      []string `yaml:"date_properties" json:"date_properties"`
	DescriptionProperty string   `yaml:"description_property" json:"description_property"`
	LocationProperty    string   `yaml:"location_property" json:"location_property"`

	FullFilename string `yaml:"full_filename" json:"full_filename"`
	LiteFilename string `yaml:"lite_filename" json:"lite_filename"`
	// GzipMinBytes is the smallest full-feed body sent gzip-encoded.
	GzipMinBytes int `yaml:"gzip_min_bytes" json:"gzip_min_bytes"`
}

// ExportConfig controls static export.
type ExportConfig struct {
	Path string `yaml:"path" json:"path"`
	// Schedule is an optional cron expression ("*/15 * * * *"). Empty
	// means export once and exit.
	Schedule string `yaml:"schedule" json:"schedule"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the feed endpoints.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	Notion NotionConfig `yaml:"notion" json:"notion"`
	Feed   FeedConfig   `yaml:"feed" json:"feed"`
	Export ExportConfig `yaml:"export" json:"export"`
	Log    LogConfig    `yaml:"log" json:"log"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen: "0.0.0.0:5000",
		Notion: NotionConfig{
			Version:           "2022-06-28",
			BaseURL:           "https://api.notion.com/v1",
			PageSize:          100,
			RequestsPerSecond: 3,
			Timeout:           30 * time.Second,
		},
		Feed: FeedConfig{
			Name:                "Notion Feed",
			TimeZone:            "Europe/Istanbul",
			ProductID:           "Notion ICS Bridge",
			WindowSize:          50,
			CacheTTL:            600 * time.Second,
			DateProperties:      []string{"Unified Date", "Next Repetition", "Repetition Date"},
			DescriptionProperty: "Description",
			LocationProperty:    "Location",
			FullFilename:        "notion_flashcards.ics",
			LiteFilename:        "notion_flashcards_lite.ics",
			GzipMinBytes:        8192,
		},
		Export: ExportConfig{
			Path: "docs/calendar.ics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()

	if c.Listen == "" {
		c.Listen = d.Listen
	}

	if c.Notion.Version == "" {
		c.Notion.Version = d.Notion.Version
	}
	if c.Notion.BaseURL == "" {
		c.Notion.BaseURL = d.Notion.BaseURL
	}
	if c.Notion.PageSize <= 0 || c.Notion.PageSize > 100 {
		c.Notion.PageSize = d.Notion.PageSize
	}
	if c.Notion.RequestsPerSecond < 0 {
		c.Notion.RequestsPerSecond = 0
	}
	if c.Notion.Timeout <= 0 {
		c.Notion.Timeout = d.Notion.Timeout
	}

	if c.Feed.Name == "" {
		c.Feed.Name = d.Feed.Name
	}
	if c.Feed.TimeZone == "" {
		c.Feed.TimeZone = d.Feed.TimeZone
	}
	if c.Feed.ProductID == "" {
		c.Feed.ProductID = d.Feed.ProductID
	}
	if c.Feed.WindowSize <= 0 {
		c.Feed.WindowSize = d.Feed.WindowSize
	}
	if c.Feed.CacheTTL <= 0 {
		c.Feed.CacheTTL = d.Feed.CacheTTL
	}
	if len(c.Feed.DateProperties) == 0 {
		c.Feed.DateProperties = d.Feed.DateProperties
	}
	if c.Feed.DescriptionProperty == "" {
		c.Feed.DescriptionProperty = d.Feed.DescriptionProperty
	}
	if c.Feed.LocationProperty == "" {
		c.Feed.LocationProperty = d.Feed.LocationProperty
	}
	if c.Feed.FullFilename == "" {
		c.Feed.FullFilename = d.Feed.FullFilename
	}
	if c.Feed.LiteFilename == "" {
		c.Feed.LiteFilename = d.Feed.LiteFilename
	}
	if c.Feed.GzipMinBytes <= 0 {
		c.Feed.GzipMinBytes = d.Feed.GzipMinBytes
	}

	if c.Export.Path == "" {
		c.Export.Path = d.Export.Path
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
		c.Log.Format = strings.ToLower(c.Log.Format)
	default:
		c.Log.Format = d.Log.Format
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}

	// Half-configured basic auth is treated as disabled.
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		c.BasicAuth = nil
	}
}

// ApplyEnv overlays environment variables on top of file values.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv("NOTION_TOKEN"); v != "" {
		c.Notion.Token = v
	}
	if v := getenv("NOTION_DATABASE_ID"); v != "" {
		c.Notion.DatabaseID = v
	}
	if v := getenv("FEED_NAME"); v != "" {
		c.Feed.Name = v
	}
	if v := getenv("FEED_TZ"); v != "" {
		c.Feed.TimeZone = v
	}
	if v := getenv("PORT"); v != "" {
		c.Listen = "0.0.0.0:" + v
	}
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var missing []string
	if c.Notion.Token == "" {
		missing = append(missing, "NOTION_TOKEN (notion.token)")
	}
	if c.Notion.DatabaseID == "" {
		missing = append(missing, "NOTION_DATABASE_ID (notion.database_id)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}
	return nil
}

// Load reads configuration from the given YAML path, overlays the
// environment and validates the result.
//
// Behavior:
//   - An empty path skips the file: defaults plus environment only.
//   - If the file does not exist, a default config is written there with
//     0600 perms (secrets from the environment are not persisted).
//   - If the file exists, it is unmarshaled and normalized.
func Load(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return nil, fmt.Errorf("write default config: %w", err)
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".notionics-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
