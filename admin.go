package flatpress

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

func (a *App) handleAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return Render(c, a.Views.AdminLogin(false, CsrfToken(c)))
	}
	return a.renderAdminDashboard(c, c.QueryParam("msg"))
}

func (a *App) handleAdminPost(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	slug := c.Param("slug")
	post, err := a.Store.Get(slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.NoContent(http.StatusNotFound)
		}
		return err
	}
	return Render(c, a.Views.AdminFormPartial(post, CsrfToken(c)))
}

func (a *App) handleAdminLogin(c echo.Context) error {
	if !a.loginLimiter.Check(c.RealIP()) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	if checkPassword(c.FormValue("password"), a.Config.AdminPassword) {
		if err := setAdminSession(c); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	a.loginLimiter.Record(c.RealIP())
	return Render(c, a.Views.AdminLogin(true, CsrfToken(c)))
}

// checkPassword accepts either a bcrypt hash or a plaintext secret as the
// configured password. Plaintext comparison is constant-time.
func checkPassword(given, configured string) bool {
	if strings.HasPrefix(configured, "$2a$") || strings.HasPrefix(configured, "$2b$") || strings.HasPrefix(configured, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(configured)) == 1
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

// handleAdminSave creates or updates a post. An original_slug field marks
// an update; when the submitted slug differs, the backing file is renamed
// through the store so filename and embedded slug never diverge.
func (a *App) handleAdminSave(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	if err := c.Request().ParseForm(); err != nil {
		return err
	}

	title := strings.TrimSpace(c.FormValue("title"))
	if title == "" {
		return a.adminRedirect(c, "Title is required.")
	}
	body := c.FormValue("content")
	if strings.TrimSpace(body) == "" {
		return a.adminRedirect(c, "Content is required.")
	}
	kind := ContentKind(c.FormValue("content_type"))
	if kind != ContentHTML {
		kind = ContentMarkdown
	}
	status := Status(c.FormValue("status"))
	if status != StatusPublished {
		status = StatusDraft
	}

	originalSlug := strings.TrimSpace(c.FormValue("original_slug"))
	slug := strings.TrimSpace(c.FormValue("slug"))

	var post Post
	if originalSlug != "" {
		existing, err := a.Store.Get(originalSlug)
		if err != nil {
			return a.adminRedirect(c, "Post to update was not found.")
		}
		post = existing
		if slug != "" && slug != originalSlug {
			newSlug := Slugify(slug)
			if newSlug == "" {
				return a.adminRedirect(c, "Slug must contain letters or digits.")
			}
			if err := a.Store.Rename(originalSlug, newSlug); err != nil {
				if errors.Is(err, ErrExists) {
					return a.adminRedirect(c, "That slug is already taken.")
				}
				return err
			}
			post.Slug = newSlug
		}
	} else {
		if slug == "" {
			slug = title
		}
		post.Slug = a.Store.UniqueSlug(slug)
		post.Date = time.Now().UTC().Format(time.RFC3339)
	}

	post.Title = title
	post.SetContent(kind, body)
	post.Excerpt = strings.TrimSpace(c.FormValue("excerpt"))
	post.Status = status
	post.Tags = SplitList(c.FormValue("tags"))
	post.Categories = SplitList(c.FormValue("categories"))
	post.Author = strings.TrimSpace(c.FormValue("author"))
	if post.Author == "" {
		post.Author = a.Config.Author
	}
	post.Meta.Image = strings.TrimSpace(c.FormValue("image"))

	if err := a.Store.Save(&post); err != nil {
		c.Logger().Errorf("save post: %v", err)
		return a.adminRedirect(c, "Failed to save post. Check file permissions.")
	}
	a.Cache.Invalidate()
	return a.renderAdminDashboard(c, "saved")
}

func (a *App) handleAdminDelete(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	slug := c.Param("slug")
	if err := a.Store.Delete(slug); err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.NoContent(http.StatusNotFound)
		}
		c.Logger().Errorf("delete post: %v", err)
		return a.adminRedirect(c, "Failed to delete post. Check file permissions.")
	}
	a.Cache.Invalidate()
	return a.renderAdminDashboard(c, "deleted")
}

func (a *App) handleAdminSettings(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	settings, err := a.Settings.Load()
	if err != nil {
		return err
	}
	return Render(c, a.Views.AdminSettings(settings, c.QueryParam("msg"), CsrfToken(c)))
}

func (a *App) handleAdminSettingsSave(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	settings, err := a.Settings.Load()
	if err != nil {
		return err
	}
	settings.SiteTitle = strings.TrimSpace(c.FormValue("site_title"))
	settings.SiteDescription = strings.TrimSpace(c.FormValue("site_description"))
	if n, err := strconv.Atoi(c.FormValue("posts_per_page")); err == nil && n > 0 {
		settings.PostsPerPage = n
	}
	settings.DefaultAuthor = strings.TrimSpace(c.FormValue("default_author"))
	settings.AIAPIKey = strings.TrimSpace(c.FormValue("ai_api_key"))
	settings.AIModel = strings.TrimSpace(c.FormValue("ai_model"))
	settings.UpdateRepo = strings.TrimSpace(c.FormValue("update_repo"))
	settings.UpdateBranch = strings.TrimSpace(c.FormValue("update_branch"))
	settings.UpdateToken = strings.TrimSpace(c.FormValue("update_token"))
	settings.UpdateURL = strings.TrimSpace(c.FormValue("update_url"))
	settings.UpdateChecksum = strings.TrimSpace(c.FormValue("update_checksum"))

	if err := a.Settings.Save(settings); err != nil {
		c.Logger().Errorf("save settings: %v", err)
		return Render(c, a.Views.AdminSettings(settings, "Failed to save settings.", CsrfToken(c)))
	}
	return Render(c, a.Views.AdminSettings(settings, "saved", CsrfToken(c)))
}

func (a *App) handleAdminTools(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	return a.renderAdminTools(c, c.QueryParam("msg"))
}

func (a *App) handleAdminBackupCreate(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	info, err := a.Backups.Create(c.FormValue("kind"))
	if err != nil {
		c.Logger().Errorf("create backup: %v", err)
		return a.renderAdminTools(c, "Backup failed: "+err.Error())
	}
	return a.renderAdminTools(c, "Backup created ("+strconv.Itoa(info.FileCount)+" files).")
}

func (a *App) handleAdminRestore(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	name := c.FormValue("backup")
	if name == "" {
		return a.renderAdminTools(c, "Select a backup to restore.")
	}
	// Restore and self-update share one lock: both rewrite the live tree.
	a.Updater.Lock()
	err := a.Backups.Restore(name)
	a.Updater.Unlock()
	if err != nil {
		c.Logger().Errorf("restore backup: %v", err)
		return a.renderAdminTools(c, "Restore failed: "+err.Error())
	}
	a.Cache.Invalidate()
	if err := a.Store.RebuildIndex(); err != nil {
		c.Logger().Errorf("rebuild index after restore: %v", err)
	}
	return a.renderAdminTools(c, "Backup restored.")
}

// handleAdminUpdate runs exactly one acquire strategy per invocation:
// an uploaded archive when one is attached, otherwise the configured
// direct URL, otherwise the configured repository zipball.
func (a *App) handleAdminUpdate(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	settings, err := a.Settings.Load()
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	if file, err := c.FormFile("archive"); err == nil && file != nil {
		src, err := file.Open()
		if err != nil {
			return err
		}
		defer src.Close()
		tmp, err := saveUploadedArchive(src)
		if err != nil {
			c.Logger().Errorf("stage uploaded update: %v", err)
			return a.renderAdminTools(c, "Update failed: "+err.Error())
		}
		defer removeFile(tmp)
		if err := a.Updater.FromArchive(tmp); err != nil {
			c.Logger().Errorf("apply uploaded update: %v", err)
			return a.renderAdminTools(c, "Update failed: "+err.Error())
		}
		return a.renderAdminTools(c, "Update applied from uploaded archive.")
	}

	switch {
	case settings.UpdateURL != "":
		if err := a.Updater.FromURL(ctx, settings.UpdateURL, settings.UpdateChecksum); err != nil {
			c.Logger().Errorf("update from url: %v", err)
			return a.renderAdminTools(c, "Update failed: "+err.Error())
		}
		return a.renderAdminTools(c, "Update applied from "+settings.UpdateURL+".")
	case settings.UpdateRepo != "":
		if err := a.Updater.FromRepo(ctx, settings.UpdateRepo, settings.UpdateBranch, settings.UpdateToken); err != nil {
			c.Logger().Errorf("update from repo: %v", err)
			return a.renderAdminTools(c, "Update failed: "+err.Error())
		}
		return a.renderAdminTools(c, "Update applied from "+settings.UpdateRepo+".")
	default:
		return a.renderAdminTools(c, "Configure an update URL or repository first.")
	}
}

func (a *App) renderAdminDashboard(c echo.Context, msg string) error {
	posts := a.Store.ListAll(StatusAll)
	return Render(c, a.Views.AdminDashboard(posts, msg, CsrfToken(c)))
}

func (a *App) renderAdminTools(c echo.Context, msg string) error {
	backups, err := a.Backups.List()
	if err != nil {
		return err
	}
	return Render(c, a.Views.AdminTools(backups, msg, CsrfToken(c)))
}

func (a *App) adminRedirect(c echo.Context, msg string) error {
	return c.Redirect(http.StatusSeeOther, "/admin/?msg="+url.QueryEscape(msg))
}
