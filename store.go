package flatpress

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
)

// ErrNotFound is returned when a requested post does not exist. A post file
// that exists but cannot be parsed reads as not found too: one corrupt
// document must never take the site down.
var ErrNotFound = errors.New("flatpress: post not found")

// ErrExists is returned by Rename when the target slug is already taken.
var ErrExists = errors.New("flatpress: post already exists")

const postExt = ".json"

// Store is the flat-file document store. Each post lives in its own JSON
// file named by slug under <contentDir>/posts; the store is the only writer
// of those files and of the derived index.json next to them.
//
// Writes take a per-slug mutex for the read-modify-write and rebuild the
// index synchronously before returning, so the index never lags a mutation
// made through the store.
type Store struct {
	contentDir    string
	postsDir      string
	defaultAuthor string

	slugLocks sync.Map // slug -> *sync.Mutex
	indexMu   sync.Mutex

	logger *log.Logger
}

// NewStore creates a Store rooted at contentDir, creating the posts
// directory if needed. defaultAuthor fills the author field of index
// entries whose document has none.
func NewStore(contentDir, defaultAuthor string) (*Store, error) {
	postsDir := filepath.Join(contentDir, "posts")
	if err := os.MkdirAll(postsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create posts dir: %w", err)
	}
	return &Store{
		contentDir:    contentDir,
		postsDir:      postsDir,
		defaultAuthor: defaultAuthor,
		logger:        log.New("flatpress"),
	}, nil
}

// ContentDir returns the content root the store operates on.
func (s *Store) ContentDir() string {
	return s.contentDir
}

func (s *Store) postPath(slug string) string {
	return filepath.Join(s.postsDir, slug+postExt)
}

func (s *Store) lock(slug string) *sync.Mutex {
	mu, _ := s.slugLocks.LoadOrStore(slug, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Get reads a single post by slug. Missing and unparsable files both
// return ErrNotFound.
func (s *Store) Get(slug string) (Post, error) {
	if slug == "" || slug != filepath.Base(slug) {
		return Post{}, ErrNotFound
	}
	data, err := os.ReadFile(s.postPath(slug))
	if err != nil {
		return Post{}, ErrNotFound
	}
	p, err := decodePost(data)
	if err != nil {
		s.logger.Warnf("corrupt post document %s: %v", slug+postExt, err)
		return Post{}, ErrNotFound
	}
	return p, nil
}

// Exists reports whether a post file is present for slug.
func (s *Store) Exists(slug string) bool {
	_, err := os.Stat(s.postPath(slug))
	return err == nil
}

// Save persists the post to its slug-named file and rebuilds the index.
// The slug must be non-empty. The updated timestamp is bumped and kept
// monotonically non-decreasing across saves of the same slug.
func (s *Store) Save(p *Post) error {
	if strings.TrimSpace(p.Slug) == "" {
		return errors.New("flatpress: save requires a slug")
	}
	mu := s.lock(p.Slug)
	mu.Lock()
	defer mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	if p.Date == "" {
		p.Date = now
	}
	if prev, err := s.Get(p.Slug); err == nil && prev.Updated > now {
		p.Updated = prev.Updated
	} else {
		p.Updated = now
	}
	// Normalize through SetContent so exactly one content field survives.
	p.SetContent(p.Kind, p.Content())
	if p.Status != StatusPublished {
		p.Status = StatusDraft
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Categories == nil {
		p.Categories = []string{}
	}

	if err := writePrettyJSON(s.postPath(p.Slug), p); err != nil {
		return fmt.Errorf("save post %s: %w", p.Slug, err)
	}
	return s.RebuildIndex()
}

// Delete removes the post file and rebuilds the index. Returns ErrNotFound
// when no file exists for slug.
func (s *Store) Delete(slug string) error {
	mu := s.lock(slug)
	mu.Lock()
	defer mu.Unlock()

	if err := os.Remove(s.postPath(slug)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete post %s: %w", slug, err)
	}
	return s.RebuildIndex()
}

// Rename moves a post to a new slug, keeping the embedded slug field and
// the filename in sync. It fails with ErrExists if the target slug is
// taken and ErrNotFound if the source is missing; on failure nothing is
// moved and the old document stays intact.
func (s *Store) Rename(oldSlug, newSlug string) error {
	if oldSlug == newSlug {
		return nil
	}
	if strings.TrimSpace(newSlug) == "" {
		return errors.New("flatpress: rename requires a target slug")
	}
	first, second := oldSlug, newSlug
	if second < first {
		first, second = second, first
	}
	muA, muB := s.lock(first), s.lock(second)
	muA.Lock()
	defer muA.Unlock()
	muB.Lock()
	defer muB.Unlock()

	p, err := s.Get(oldSlug)
	if err != nil {
		return err
	}
	if s.Exists(newSlug) {
		return ErrExists
	}
	if err := os.Rename(s.postPath(oldSlug), s.postPath(newSlug)); err != nil {
		return fmt.Errorf("rename post %s -> %s: %w", oldSlug, newSlug, err)
	}
	p.Slug = newSlug
	if err := writePrettyJSON(s.postPath(newSlug), &p); err != nil {
		return fmt.Errorf("rewrite renamed post %s: %w", newSlug, err)
	}
	return s.RebuildIndex()
}

// ListAll scans the posts directory and returns every parsable post,
// optionally filtered by status (StatusAll bypasses filtering), sorted
// newest-first by date. This scan backs the public listing paths rather
// than the index, so a stale index can never serve wrong data. Corrupt
// files are logged and skipped.
func (s *Store) ListAll(status Status) []Post {
	entries, err := os.ReadDir(s.postsDir)
	if err != nil {
		s.logger.Warnf("scan posts dir: %v", err)
		return nil
	}
	var posts []Post
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), postExt) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.postsDir, e.Name()))
		if err != nil {
			s.logger.Warnf("read post %s: %v", e.Name(), err)
			continue
		}
		p, err := decodePost(data)
		if err != nil {
			s.logger.Warnf("corrupt post document %s: %v", e.Name(), err)
			continue
		}
		if p.Slug == "" {
			p.Slug = strings.TrimSuffix(e.Name(), postExt)
		}
		if status != StatusAll && status != "" && p.Status != status {
			continue
		}
		posts = append(posts, p)
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].DateTime().After(posts[j].DateTime())
	})
	return posts
}

// ListTags returns a sorted, deduplicated slice of all tags from published posts.
func (s *Store) ListTags() []string {
	set := make(map[string]struct{})
	for _, p := range s.ListAll(StatusPublished) {
		for _, t := range p.Tags {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				set[t] = struct{}{}
			}
		}
	}
	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// CountByStatus tallies posts per publication status, for the reindex
// command summary.
func (s *Store) CountByStatus() map[Status]int {
	counts := make(map[Status]int)
	for _, p := range s.ListAll(StatusAll) {
		counts[p.Status]++
	}
	return counts
}

// UniqueSlug slugifies base and resolves collisions against existing files.
// The first collision gets a time-based suffix so two posts created with
// the same title in the same second still diverge; if that exact name is
// somehow taken as well, a counter suffix takes over.
func (s *Store) UniqueSlug(base string) string {
	slug := Slugify(base)
	if slug == "" {
		slug = fmt.Sprintf("post-%d", time.Now().Unix())
	}
	if !s.Exists(slug) {
		return slug
	}
	stamped := fmt.Sprintf("%s-%d", slug, time.Now().Unix())
	if !s.Exists(stamped) {
		return stamped
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", stamped, i)
		if !s.Exists(candidate) {
			return candidate
		}
	}
}

// writePrettyJSON writes v as indented JSON with HTML escaping disabled so
// unicode and markup survive round-trips byte-for-byte.
func writePrettyJSON(path string, v any) error {
	data, err := encodePrettyJSON(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
