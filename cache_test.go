package flatpress

import (
	"errors"
	"testing"
	"time"
)

func setupTestCache(t *testing.T) (*Store, *PostCache) {
	t.Helper()
	s := setupTestStore(t)
	return s, NewPostCache(s, time.Minute)
}

func TestCacheServesPublishedOnly(t *testing.T) {
	s, c := setupTestCache(t)

	pub := Post{Slug: "pub", Title: "Pub", Markdown: "x", Status: StatusPublished}
	draft := Post{Slug: "draft", Title: "Draft", Markdown: "x", Status: StatusDraft}
	for _, p := range []*Post{&pub, &draft} {
		if err := s.Save(p); err != nil {
			t.Fatal(err)
		}
	}

	posts := c.ListPosts("")
	if len(posts) != 1 || posts[0].Slug != "pub" {
		t.Errorf("ListPosts = %v, want only published", posts)
	}

	if _, err := c.GetPost("draft"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPost(draft) err = %v, want ErrNotFound", err)
	}
	if _, err := c.GetPost("pub"); err != nil {
		t.Errorf("GetPost(pub) err = %v", err)
	}
}

func TestCacheTagFilterIsCaseInsensitive(t *testing.T) {
	s, c := setupTestCache(t)

	p := Post{Slug: "tagged", Title: "Tagged", Markdown: "x", Status: StatusPublished, Tags: []string{"Go"}}
	if err := s.Save(&p); err != nil {
		t.Fatal(err)
	}

	if got := c.ListPosts("gO"); len(got) != 1 {
		t.Errorf("ListPosts(gO) = %v, want 1 post", got)
	}
	if got := c.ListPosts("rust"); len(got) != 0 {
		t.Errorf("ListPosts(rust) = %v, want none", got)
	}
}

func TestCacheInvalidate(t *testing.T) {
	s, c := setupTestCache(t)

	if got := c.ListPosts(""); len(got) != 0 {
		t.Fatalf("expected empty cache, got %v", got)
	}

	p := Post{Slug: "late", Title: "Late", Markdown: "x", Status: StatusPublished}
	if err := s.Save(&p); err != nil {
		t.Fatal(err)
	}

	// Still the cached empty result until invalidated.
	if got := c.ListPosts(""); len(got) != 0 {
		t.Fatalf("expected stale cache before invalidation, got %v", got)
	}
	c.Invalidate()
	if got := c.ListPosts(""); len(got) != 1 {
		t.Errorf("expected fresh scan after invalidation, got %v", got)
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	s := setupTestStore(t)
	c := NewPostCache(s, 50*time.Millisecond)

	if got := c.ListPosts(""); len(got) != 0 {
		t.Fatalf("expected empty cache, got %v", got)
	}
	p := Post{Slug: "later", Title: "Later", Markdown: "x", Status: StatusPublished}
	if err := s.Save(&p); err != nil {
		t.Fatal(err)
	}

	time.Sleep(80 * time.Millisecond)
	if got := c.ListPosts(""); len(got) != 1 {
		t.Errorf("expected reload after TTL, got %v", got)
	}
}
