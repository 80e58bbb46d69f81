// Package flatpress is a flat-file blog publishing engine built with Go,
// Echo, and templ. Posts are stored as individual JSON documents on disk
// with a derived index; the package provides blog CRUD, an admin
// dashboard, backup/restore, self-update, image uploads, analytics, RSS,
// and sitemap out of the box.
//
// Users provide their own templ templates via the ViewFuncs struct, and
// flatpress handles all the handler logic, middleware, and storage
// operations.
package flatpress

import (
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/flatpress/analytics"
)

// ViewFuncs holds user-provided templ components that the framework calls
// when rendering pages. This is the inversion-of-control mechanism that
// lets users own and customize all templates.
type ViewFuncs struct {
	Home             func(posts []Post, activeTag string, tags []string, siteURL string) templ.Component
	HomePartial      func(posts []Post, activeTag string, tags []string, siteURL string) templ.Component
	BlogSection      func(posts []Post, activeTag string, tags []string) templ.Component
	Post             func(post Post, posts []Post, siteURL string) templ.Component
	PostPartial      func(post Post, posts []Post, siteURL string) templ.Component
	AdminLogin       func(showError bool, csrfToken string) templ.Component
	AdminDashboard   func(posts []Post, message string, csrfToken string) templ.Component
	AdminFormPartial func(post Post, csrfToken string) templ.Component
	AdminImages      func(images []Image, csrfToken string) templ.Component
	AdminSettings    func(settings Settings, message string, csrfToken string) templ.Component
	AdminTools       func(backups []BackupFile, message string, csrfToken string) templ.Component
	NotFound         func() templ.Component
	ServerError      func() templ.Component
}

// App is the central flatpress application. It wires together the
// document store, settings, backups, updater, cache, handlers,
// middleware, and user-provided templates.
type App struct {
	Config   SiteConfig
	Echo     *echo.Echo
	Store    *Store
	Settings *SettingsStore
	Backups  *Backups
	Updater  *Updater
	Cache    *PostCache
	Views    ViewFuncs

	loginLimiter   *LoginLimiter
	analyticsStore *analytics.Store
	watcher        *ContentWatcher
	customRoutes   []func(*App)
	staticDir      string
	updateExcludes []string
}

// New creates a new flatpress App with the given configuration and view functions.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.ApplyDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Views:     views,
		staticDir: "public",
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Start initializes storage, cache, middleware, routes, and starts the server.
func (a *App) Start() error {
	if err := a.init(); err != nil {
		return err
	}
	defer a.stopBackground()

	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// init wires storage and routes without binding a listener. Split from
// Start so the maintenance CLI can reuse the same construction.
func (a *App) init() error {
	if a.Config.AdminPassword == "" {
		return fmt.Errorf("flatpress: AdminPassword is required")
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("flatpress: SessionSecret is required")
	}

	store, err := NewStore(a.Config.ContentDir, a.Config.Author)
	if err != nil {
		return fmt.Errorf("flatpress: init store: %w", err)
	}
	a.Store = store
	a.Settings = NewSettingsStore(a.Config.ContentDir)
	a.Backups = NewBackups(".")
	a.Updater = NewUpdater(".")
	if a.updateExcludes != nil {
		a.Updater.Excludes = a.updateExcludes
	}
	a.Cache = NewPostCache(store, a.Config.PostCacheTTL)
	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	if a.Config.WatchContent {
		w, err := WatchContent(store, a.Cache)
		if err != nil {
			return fmt.Errorf("flatpress: init watcher: %w", err)
		}
		a.watcher = w
	}

	if a.Config.AnalyticsEnabled {
		analyticsStore, err := analytics.NewStore(a.Config.AnalyticsDatabasePath)
		if err != nil {
			return fmt.Errorf("flatpress: init analytics: %w", err)
		}
		a.analyticsStore = analyticsStore
		if err := analytics.InitSalt(analyticsStore); err != nil {
			return fmt.Errorf("flatpress: init analytics salt: %w", err)
		}
	}

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

func (a *App) stopBackground() {
	if a.watcher != nil {
		a.watcher.Close()
	}
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Embedded framework assets, falling through to the user's static dir.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	e.GET("/public/analytics.js", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))

	// User's static assets and uploaded media.
	e.Static("/public", a.staticDir)
	e.Static("/uploads", a.Config.UploadsDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)

	// Public routes
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/blog", handleBlogRedirect)
	e.GET("/", a.handleHome)
	e.GET("/blog/:slug/", a.handlePost)

	// Admin routes
	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)
	e.GET("/admin/post/:slug/", a.handleAdminPost)
	e.POST("/admin/save/", a.handleAdminSave)
	e.DELETE("/admin/post/:slug/", a.handleAdminDelete)
	e.GET("/admin/settings/", a.handleAdminSettings)
	e.POST("/admin/settings/", a.handleAdminSettingsSave)
	e.GET("/admin/tools/", a.handleAdminTools)
	e.POST("/admin/backup/", a.handleAdminBackupCreate)
	e.POST("/admin/restore/", a.handleAdminRestore)
	e.POST("/admin/update/", a.handleAdminUpdate)
	e.GET("/admin/images/", a.handleImageList)
	e.POST("/admin/images/upload/", a.handleImageUpload)
	e.DELETE("/admin/images/:filename/", a.handleImageDelete)

	// Analytics routes
	if a.Config.AnalyticsEnabled && a.analyticsStore != nil {
		handler := analytics.NewHandler(a.analyticsStore)
		e.POST("/api/analytics/collect", handler.Collect)
		e.GET("/admin/analytics/stats/", func(c echo.Context) error {
			if !IsAdmin(c) {
				return c.Redirect(http.StatusSeeOther, "/admin/")
			}
			return handler.Stats(c)
		})
	}
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	a.stopBackground()
	if a.analyticsStore != nil {
		a.analyticsStore.Close()
	}
	return nil
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
// This is a convenience function for use in scaffolded main.go files.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or fatally exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("flatpress: required environment variable %s is not set", key)
	}
	return v
}
