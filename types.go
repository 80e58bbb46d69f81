package flatpress

import (
	"encoding/json"
	"time"
)

// ContentKind discriminates the two content representations a post can carry.
// Exactly one of the matching content fields is persisted per document.
type ContentKind string

const (
	ContentMarkdown ContentKind = "markdown"
	ContentHTML     ContentKind = "html"
)

// Status is a post's publication state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"

	// StatusAll is a filter value for listings, never persisted.
	StatusAll Status = "all"
)

// PostMeta carries per-post metadata surfaced in OpenGraph tags.
type PostMeta struct {
	Image string `json:"image"`
}

// Post is the core content type, stored as one pretty-printed JSON file per
// post under content/posts/<slug>.json. The filename always equals Slug.
type Post struct {
	Slug       string      `json:"slug"`
	Title      string      `json:"title"`
	Kind       ContentKind `json:"content_type"`
	Markdown   string      `json:"content_markdown,omitempty"`
	HTML       string      `json:"content_html,omitempty"`
	Excerpt    string      `json:"excerpt,omitempty"`
	Status     Status      `json:"status"`
	Date       string      `json:"date"`
	Updated    string      `json:"updated"`
	Author     string      `json:"author"`
	Tags       []string    `json:"tags"`
	Categories []string    `json:"categories"`
	Meta       PostMeta    `json:"meta"`
}

// Content returns the post body for its content kind.
func (p Post) Content() string {
	if p.Kind == ContentHTML {
		return p.HTML
	}
	return p.Markdown
}

// SetContent assigns body to the field matching kind and clears the other,
// keeping the exclusive-content invariant.
func (p *Post) SetContent(kind ContentKind, body string) {
	if kind == ContentHTML {
		p.Kind = ContentHTML
		p.HTML = body
		p.Markdown = ""
		return
	}
	p.Kind = ContentMarkdown
	p.Markdown = body
	p.HTML = ""
}

// Published reports whether the post is publicly visible.
func (p Post) Published() bool {
	return p.Status == StatusPublished
}

// Link returns the public URL path for the post.
func (p Post) Link() string {
	return "/blog/" + p.Slug
}

// DateTime parses the post date. Unparsable or missing dates sort as the
// epoch so broken documents sink to the bottom of listings instead of
// breaking them.
func (p Post) DateTime() time.Time {
	return parsePostTime(p.Date)
}

func parsePostTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Unix(0, 0).UTC()
}

// postFile is the on-disk decode target. It accepts the legacy keys older
// installations wrote (a bare "content" body and a top-level "image") so
// they can be migrated into the canonical fields in one place.
type postFile struct {
	Post
	LegacyContent string `json:"content,omitempty"`
	LegacyImage   string `json:"image,omitempty"`
}

// decodePost parses raw JSON into a Post, normalizing legacy documents.
func decodePost(data []byte) (Post, error) {
	var f postFile
	if err := json.Unmarshal(data, &f); err != nil {
		return Post{}, err
	}
	p := f.Post
	if p.Kind != ContentMarkdown && p.Kind != ContentHTML {
		p.Kind = ContentMarkdown
	}
	if p.Markdown == "" && p.HTML == "" && f.LegacyContent != "" {
		p.SetContent(p.Kind, f.LegacyContent)
	}
	if p.Meta.Image == "" && f.LegacyImage != "" {
		p.Meta.Image = f.LegacyImage
	}
	// Re-assert exclusivity for documents that carried both fields.
	p.SetContent(p.Kind, p.Content())
	if p.Status != StatusDraft && p.Status != StatusPublished {
		p.Status = StatusDraft
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Categories == nil {
		p.Categories = []string{}
	}
	return p, nil
}

// Image is the stored metadata for an uploaded image.
type Image struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	URL          string `json:"url"`
	ThumbURL     string `json:"thumb_url,omitempty"`
	MediumURL    string `json:"medium_url,omitempty"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Size         int    `json:"size"`
	UploadedAt   string `json:"uploaded_at"`
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
}
