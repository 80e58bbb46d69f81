// Package markdown renders post bodies to safe HTML. Markdown conversion
// goes through goldmark; both converted markdown and raw HTML posts pass
// through a bluemonday allow-list policy before reaching a template.
package markdown

import (
	"bytes"
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

var (
	// ugcPolicy is the display policy: formatting, links, images, tables.
	ugcPolicy = func() *bluemonday.Policy {
		p := bluemonday.UGCPolicy()
		p.AllowAttrs("class").OnElements("code", "pre", "span", "div")
		p.AllowAttrs("loading", "decoding", "width", "height").OnElements("img")
		return p
	}()

	// strictPolicy strips every tag, for excerpts and plain-text derivation.
	strictPolicy = bluemonday.StrictPolicy()
)

// ToHTML converts markdown source to sanitized HTML.
func ToHTML(source string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		// goldmark only fails on writer errors, which bytes.Buffer never
		// produces; fall back to the escaped source just in case.
		return strictPolicy.Sanitize(source)
	}
	return ugcPolicy.Sanitize(buf.String())
}

// Sanitize filters raw HTML through the display allow-list. Used for posts
// authored directly in HTML, which are stored verbatim and cleaned only at
// render time.
func Sanitize(rawHTML string) string {
	return ugcPolicy.Sanitize(rawHTML)
}

// StripTags removes all markup, leaving text content only.
func StripTags(rawHTML string) string {
	return strictPolicy.Sanitize(rawHTML)
}

// Component wraps ToHTML as a templ component for direct use in views.
func Component(source string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, ToHTML(source))
		return err
	})
}

// HTMLComponent wraps Sanitize as a templ component for html-kind posts.
func HTMLComponent(rawHTML string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, Sanitize(rawHTML))
		return err
	})
}
