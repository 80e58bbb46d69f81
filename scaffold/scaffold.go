// Package scaffold holds the file templates the flatpress CLI uses to
// create a new project. Contents use Go text/template syntax; the CLI
// fills in module and site names.
package scaffold

// File is one scaffolded project file.
type File struct {
	// Path is relative to the new project root.
	Path string
	// Content is a text/template body.
	Content string
}

// Data holds the variables available to every scaffold template.
type Data struct {
	ProjectName string
	ModuleName  string
	SiteName    string
}

// Files lists every file written into a new project, in creation order.
var Files = []File{
	{Path: "go.mod", Content: goModTmpl},
	{Path: "main.go", Content: mainTmpl},
	{Path: "flatpress.yaml", Content: configTmpl},
	{Path: ".env.example", Content: dotenvTmpl},
	{Path: ".gitignore", Content: gitignoreTmpl},
	{Path: "public/robots.txt", Content: robotsTmpl},
	{Path: "content/posts/hello-world.json", Content: helloPostTmpl},
}

const goModTmpl = `module {{.ModuleName}}

go 1.24.0

require (
	github.com/a-h/templ v0.3.960
	github.com/eringen/flatpress v0.1.0
)
`

const mainTmpl = `package main

import (
	"context"
	"io"
	"log"

	"github.com/a-h/templ"
	"github.com/eringen/flatpress"
)

// raw returns a component that writes s verbatim. Replace these with your
// own templ templates as the site grows.
func raw(s string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	})
}

func page(title, body string) templ.Component {
	return raw("<!DOCTYPE html><html><head><title>" + title + "</title></head><body>" + body + "</body></html>")
}

func main() {
	cfg, err := flatpress.LoadSiteConfig("flatpress.yaml")
	if err != nil {
		log.Fatal(err)
	}
	cfg.AdminPassword = flatpress.MustEnv("ADMIN_PASSWORD")
	cfg.SessionSecret = flatpress.MustEnv("SESSION_SECRET")

	views := flatpress.ViewFuncs{
		Home: func(posts []flatpress.Post, activeTag string, tags []string, siteURL string) templ.Component {
			return page("{{.SiteName}}", "<h1>{{.SiteName}}</h1>")
		},
		HomePartial: func(posts []flatpress.Post, activeTag string, tags []string, siteURL string) templ.Component {
			return raw("<section></section>")
		},
		BlogSection: func(posts []flatpress.Post, activeTag string, tags []string) templ.Component {
			return raw("<section></section>")
		},
		Post: func(post flatpress.Post, posts []flatpress.Post, siteURL string) templ.Component {
			return page(post.Title, "<article><h1>"+post.Title+"</h1></article>")
		},
		PostPartial: func(post flatpress.Post, posts []flatpress.Post, siteURL string) templ.Component {
			return raw("<article></article>")
		},
		AdminLogin: func(showError bool, csrfToken string) templ.Component {
			return page("Login", "<form method=\"post\" action=\"/admin/login/\"><input type=\"hidden\" name=\"_csrf\" value=\""+csrfToken+"\"><input type=\"password\" name=\"password\"><button>Login</button></form>")
		},
		AdminDashboard: func(posts []flatpress.Post, message string, csrfToken string) templ.Component {
			return page("Admin", "<h1>Admin</h1>")
		},
		AdminFormPartial: func(post flatpress.Post, csrfToken string) templ.Component {
			return raw("<form></form>")
		},
		AdminImages: func(images []flatpress.Image, csrfToken string) templ.Component {
			return page("Images", "<h1>Images</h1>")
		},
		AdminSettings: func(settings flatpress.Settings, message string, csrfToken string) templ.Component {
			return page("Settings", "<h1>Settings</h1>")
		},
		AdminTools: func(backups []flatpress.BackupFile, message string, csrfToken string) templ.Component {
			return page("Tools", "<h1>Tools</h1>")
		},
		NotFound:    func() templ.Component { return page("Not Found", "<h1>404</h1>") },
		ServerError: func() templ.Component { return page("Error", "<h1>500</h1>") },
	}

	app := flatpress.New(cfg, views)
	log.Fatal(app.Start())
}
`

const configTmpl = `name: "{{.SiteName}}"
url: "http://localhost:8080"
description: "A {{.SiteName}} blog"
author: ""
addr: ":8080"
analytics: false
watch_content: true
`

const dotenvTmpl = `ADMIN_PASSWORD=change-me
SESSION_SECRET=change-me-too
`

const gitignoreTmpl = `.env
admin/backups/
data/
logs/
`

const robotsTmpl = `User-agent: *
Allow: /
Disallow: /admin/
`

const helloPostTmpl = `{
  "slug": "hello-world",
  "title": "Hello, World",
  "content_type": "markdown",
  "content_markdown": "Welcome to **{{.SiteName}}**. Edit or delete this post from the admin dashboard.",
  "status": "published",
  "date": "2026-01-01T00:00:00Z",
  "updated": "2026-01-01T00:00:00Z",
  "author": "",
  "tags": [],
  "categories": [],
  "meta": {
    "image": ""
  }
}
`
