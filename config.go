package flatpress

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SiteConfig holds all configuration for a flatpress site.
type SiteConfig struct {
	Name        string `yaml:"name"`        // Site name (default "Blog")
	URL         string `yaml:"url"`         // Canonical URL (default "http://localhost:3000")
	Description string `yaml:"description"` // Site description for RSS and meta tags
	Author      string `yaml:"author"`      // Default author for posts and JSON-LD

	Addr       string `yaml:"addr"`        // Listen address (default ":3000")
	ContentDir string `yaml:"content_dir"` // Post/settings/index root (default "content")
	UploadsDir string `yaml:"uploads_dir"` // Uploaded media root (default "uploads")

	AnalyticsEnabled      bool   `yaml:"analytics"`           // Enable analytics (default false)
	AnalyticsDatabasePath string `yaml:"analytics_db"`        // Analytics SQLite path (default "data/analytics.db")
	WatchContent          bool   `yaml:"watch_content"`       // Watch the posts dir for out-of-band edits
	AdminPassword         string `yaml:"-"`                   // Required: admin login password (plain or bcrypt hash)
	SessionSecret         string `yaml:"-"`                   // Required: session encryption secret
	CookieSecure          bool   `yaml:"cookie_secure"`       // Set true for HTTPS

	PostCacheTTL time.Duration `yaml:"post_cache_ttl"` // Published-post cache TTL (default 5min)
}

// ApplyDefaults fills unset fields with their defaults. New calls it;
// the CLI calls it directly when operating without an App.
func (c *SiteConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "Blog"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.ContentDir == "" {
		c.ContentDir = "content"
	}
	if c.UploadsDir == "" {
		c.UploadsDir = "uploads"
	}
	if c.AnalyticsDatabasePath == "" {
		c.AnalyticsDatabasePath = "data/analytics.db"
	}
	if c.PostCacheTTL == 0 {
		c.PostCacheTTL = 5 * time.Minute
	}
}

// LoadSiteConfig reads a YAML config file into a SiteConfig. Secrets
// (admin password, session secret) are never read from the file; set them
// from the environment. A missing file returns a zero config and no error
// so env-only deployments keep working.
func LoadSiteConfig(path string) (SiteConfig, error) {
	var cfg SiteConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithUpdateExcludes replaces the overlay-copy exclusion list used by the
// self-updater.
func WithUpdateExcludes(prefixes []string) Option {
	return func(a *App) {
		a.updateExcludes = prefixes
	}
}
