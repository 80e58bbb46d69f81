package flatpress

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/flatpress/markdown"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// PostBody returns the sanitized HTML component for a post's content,
// regardless of whether it was authored in markdown or raw HTML. The
// stored fields stay verbatim; sanitization happens only here, at render
// time.
func PostBody(p Post) templ.Component {
	if p.Kind == ContentHTML {
		return markdown.HTMLComponent(p.HTML)
	}
	return markdown.Component(p.Markdown)
}
