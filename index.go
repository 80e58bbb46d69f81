package flatpress

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eringen/flatpress/markdown"
)

const indexFilename = "index.json"

// IndexEntry is the lightweight per-post summary stored in index.json.
// The field order here fixes the key order in the serialized document so
// repeated rebuilds over unchanged posts are byte-identical.
type IndexEntry struct {
	Slug       string   `json:"slug"`
	Title      string   `json:"title"`
	Date       string   `json:"date"`
	Updated    string   `json:"updated"`
	Status     Status   `json:"status"`
	Excerpt    string   `json:"excerpt"`
	Tags       []string `json:"tags"`
	Categories []string `json:"categories"`
	Author     string   `json:"author"`
	Meta       PostMeta `json:"meta"`
}

// IndexPath returns the location of the derived index document.
func (s *Store) IndexPath() string {
	return filepath.Join(s.contentDir, indexFilename)
}

// RebuildIndex regenerates index.json wholesale from the on-disk post
// documents. It runs synchronously after every mutation; incremental
// patching is deliberately avoided because partial updates can drift from
// the authoritative per-post files. The index is a read optimization for
// dashboards and search; public listings scan the posts directory
// directly.
func (s *Store) RebuildIndex() error {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	entries := s.BuildIndexEntries()
	if err := writePrettyJSON(s.IndexPath(), entries); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// BuildIndexEntries derives the summary records for every parsable post,
// newest-first, without touching index.json.
func (s *Store) BuildIndexEntries() []IndexEntry {
	posts := s.ListAll(StatusAll)
	entries := make([]IndexEntry, 0, len(posts))
	for _, p := range posts {
		e := IndexEntry{
			Slug:       p.Slug,
			Title:      p.Title,
			Date:       p.Date,
			Updated:    p.Updated,
			Status:     p.Status,
			Excerpt:    p.Excerpt,
			Tags:       p.Tags,
			Categories: p.Categories,
			Author:     p.Author,
			Meta:       p.Meta,
		}
		if e.Excerpt == "" {
			e.Excerpt = DeriveExcerpt(p)
		}
		if e.Author == "" {
			e.Author = s.defaultAuthor
		}
		if e.Tags == nil {
			e.Tags = []string{}
		}
		if e.Categories == nil {
			e.Categories = []string{}
		}
		entries = append(entries, e)
	}
	// ListAll already sorts newest-first; keep the sort here too so the
	// builder stays correct if callers feed it differently ordered input
	// one day.
	sort.SliceStable(entries, func(i, j int) bool {
		return parsePostTime(entries[i].Date).After(parsePostTime(entries[j].Date))
	})
	return entries
}

const excerptRunes = 200

// DeriveExcerpt strips all markup from the post body and truncates it to
// ~200 characters with an ellipsis.
func DeriveExcerpt(p Post) string {
	var html string
	if p.Kind == ContentHTML {
		html = p.HTML
	} else {
		html = markdown.ToHTML(p.Markdown)
	}
	text := strings.Join(strings.Fields(markdown.StripTags(html)), " ")
	runes := []rune(text)
	if len(runes) <= excerptRunes {
		return text
	}
	return strings.TrimSpace(string(runes[:excerptRunes])) + "…"
}
