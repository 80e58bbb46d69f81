package flatpress

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), "Default Author")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return s
}

func TestSaveAndGetPost(t *testing.T) {
	s := setupTestStore(t)

	post := Post{
		Slug:     "test-post",
		Title:    "Test Post",
		Date:     "2024-01-15T10:00:00Z",
		Tags:     []string{"go", "testing"},
		Excerpt:  "A test post summary",
		Markdown: "# Test Content\n\nThis is test content.",
		Kind:     ContentMarkdown,
		Status:   StatusPublished,
	}

	if err := s.Save(&post); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Get("test-post")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got.Slug != post.Slug {
		t.Errorf("Slug = %q, want %q", got.Slug, post.Slug)
	}
	if got.Title != post.Title {
		t.Errorf("Title = %q, want %q", got.Title, post.Title)
	}
	if got.Markdown != post.Markdown {
		t.Errorf("Markdown = %q, want %q", got.Markdown, post.Markdown)
	}
	if got.Link() != "/blog/test-post" {
		t.Errorf("Link = %q, want %q", got.Link(), "/blog/test-post")
	}
	if !got.Published() {
		t.Error("Published should be true")
	}
	if got.Updated == "" {
		t.Error("Updated should be set on save")
	}
	if len(got.Tags) != 2 || got.Tags[0] != "go" || got.Tags[1] != "testing" {
		t.Errorf("Tags = %v, want [go testing]", got.Tags)
	}
}

func TestSaveRequiresSlug(t *testing.T) {
	s := setupTestStore(t)
	p := Post{Title: "No Slug"}
	if err := s.Save(&p); err == nil {
		t.Fatal("expected error saving post without slug")
	}
}

func TestSaveKeepsExactlyOneContentField(t *testing.T) {
	s := setupTestStore(t)

	p := Post{
		Slug:     "both-fields",
		Title:    "Both Fields",
		Kind:     ContentMarkdown,
		Markdown: "markdown body",
		HTML:     "<p>stray html</p>",
		Status:   StatusPublished,
	}
	if err := s.Save(&p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Get("both-fields")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Markdown != "markdown body" {
		t.Errorf("Markdown = %q, want %q", got.Markdown, "markdown body")
	}
	if got.HTML != "" {
		t.Errorf("HTML = %q, want empty", got.HTML)
	}

	p.SetContent(ContentHTML, "<p>now html</p>")
	if err := s.Save(&p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, _ = s.Get("both-fields")
	if got.HTML != "<p>now html</p>" || got.Markdown != "" {
		t.Errorf("after switching kind: Markdown=%q HTML=%q", got.Markdown, got.HTML)
	}
}

func TestUpdatedNeverMovesBackwards(t *testing.T) {
	s := setupTestStore(t)

	p := Post{Slug: "clock-skew", Title: "Clock Skew", Markdown: "x", Status: StatusPublished}
	if err := s.Save(&p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Simulate a document written by a machine with a fast clock.
	onDisk, _ := s.Get("clock-skew")
	onDisk.Updated = "2999-01-01T00:00:00Z"
	if err := writePrettyJSON(s.postPath("clock-skew"), &onDisk); err != nil {
		t.Fatalf("rewrite post: %v", err)
	}

	onDisk.Title = "Edited"
	if err := s.Save(&onDisk); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, _ := s.Get("clock-skew")
	if got.Updated != "2999-01-01T00:00:00Z" {
		t.Errorf("Updated = %q, want the future timestamp preserved", got.Updated)
	}
}

func TestGetMissingPost(t *testing.T) {
	s := setupTestStore(t)
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetCorruptPost(t *testing.T) {
	s := setupTestStore(t)
	if err := os.WriteFile(s.postPath("broken"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get("broken"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCorruptPostDoesNotBreakListing(t *testing.T) {
	s := setupTestStore(t)

	good := Post{Slug: "good", Title: "Good", Markdown: "ok", Status: StatusPublished}
	if err := s.Save(&good); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := os.WriteFile(s.postPath("broken"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	posts := s.ListAll(StatusAll)
	if len(posts) != 1 || posts[0].Slug != "good" {
		t.Errorf("ListAll = %v, want only the good post", posts)
	}
}

func TestLegacyDocumentNormalized(t *testing.T) {
	s := setupTestStore(t)

	legacy := `{
		"slug": "old-post",
		"title": "Old Post",
		"content": "legacy body",
		"image": "/uploads/cover.jpg",
		"status": "published",
		"date": "2023-06-01"
	}`
	if err := os.WriteFile(s.postPath("old-post"), []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get("old-post")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Kind != ContentMarkdown {
		t.Errorf("Kind = %q, want markdown", got.Kind)
	}
	if got.Markdown != "legacy body" {
		t.Errorf("Markdown = %q, want legacy body migrated", got.Markdown)
	}
	if got.Meta.Image != "/uploads/cover.jpg" {
		t.Errorf("Meta.Image = %q, want legacy image migrated", got.Meta.Image)
	}
}

func TestDeleteRemovesFromListings(t *testing.T) {
	s := setupTestStore(t)

	p := Post{Slug: "doomed", Title: "Doomed", Markdown: "x", Status: StatusPublished}
	if err := s.Save(&p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Delete("doomed"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := s.Get("doomed"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: err = %v, want ErrNotFound", err)
	}
	if posts := s.ListAll(StatusAll); len(posts) != 0 {
		t.Errorf("ListAll after delete = %v, want empty", posts)
	}
	if err := s.Delete("doomed"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete: err = %v, want ErrNotFound", err)
	}
}

func TestRename(t *testing.T) {
	s := setupTestStore(t)

	p := Post{Slug: "old-slug", Title: "Renamed", Markdown: "x", Status: StatusPublished}
	if err := s.Save(&p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Rename("old-slug", "new-slug"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	if s.Exists("old-slug") {
		t.Error("old file should be gone after rename")
	}
	got, err := s.Get("new-slug")
	if err != nil {
		t.Fatalf("Get renamed: %v", err)
	}
	if got.Slug != "new-slug" {
		t.Errorf("embedded slug = %q, want new-slug", got.Slug)
	}
}

func TestRenameToTakenSlug(t *testing.T) {
	s := setupTestStore(t)

	a := Post{Slug: "a", Title: "A", Markdown: "x", Status: StatusPublished}
	b := Post{Slug: "b", Title: "B", Markdown: "x", Status: StatusPublished}
	if err := s.Save(&a); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(&b); err != nil {
		t.Fatal(err)
	}

	if err := s.Rename("a", "b"); !errors.Is(err, ErrExists) {
		t.Errorf("err = %v, want ErrExists", err)
	}
	if _, err := s.Get("a"); err != nil {
		t.Error("source post should be intact after failed rename")
	}
}

func TestUniqueSlug(t *testing.T) {
	s := setupTestStore(t)

	slug := s.UniqueSlug("Hello, World!")
	if slug != "hello-world" {
		t.Errorf("UniqueSlug = %q, want hello-world", slug)
	}

	p := Post{Slug: slug, Title: "Hello", Markdown: "x", Status: StatusPublished}
	if err := s.Save(&p); err != nil {
		t.Fatal(err)
	}

	second := s.UniqueSlug("Hello, World!")
	if second == "hello-world" {
		t.Error("collision should produce a different slug")
	}
	if !strings.HasPrefix(second, "hello-world-") {
		t.Errorf("collision slug = %q, want hello-world- prefix", second)
	}
	if s.Exists(second) {
		t.Error("returned slug should not already exist")
	}
}

func TestListAllFiltersAndSorts(t *testing.T) {
	s := setupTestStore(t)

	posts := []Post{
		{Slug: "oldest", Title: "Oldest", Date: "2022-01-01T00:00:00Z", Markdown: "x", Status: StatusPublished},
		{Slug: "draft", Title: "Draft", Date: "2024-01-01T00:00:00Z", Markdown: "x", Status: StatusDraft},
		{Slug: "newest", Title: "Newest", Date: "2025-01-01T00:00:00Z", Markdown: "x", Status: StatusPublished},
	}
	for i := range posts {
		if err := s.Save(&posts[i]); err != nil {
			t.Fatal(err)
		}
	}

	published := s.ListAll(StatusPublished)
	if len(published) != 2 {
		t.Fatalf("published count = %d, want 2", len(published))
	}
	if published[0].Slug != "newest" || published[1].Slug != "oldest" {
		t.Errorf("order = [%s %s], want newest-first", published[0].Slug, published[1].Slug)
	}

	all := s.ListAll(StatusAll)
	if len(all) != 3 {
		t.Errorf("all count = %d, want 3", len(all))
	}

	counts := s.CountByStatus()
	if counts[StatusPublished] != 2 || counts[StatusDraft] != 1 {
		t.Errorf("counts = %v, want 2 published / 1 draft", counts)
	}
}

func TestListTags(t *testing.T) {
	s := setupTestStore(t)

	a := Post{Slug: "a", Title: "A", Markdown: "x", Status: StatusPublished, Tags: []string{"Go", "web"}}
	b := Post{Slug: "b", Title: "B", Markdown: "x", Status: StatusPublished, Tags: []string{"go"}}
	d := Post{Slug: "d", Title: "D", Markdown: "x", Status: StatusDraft, Tags: []string{"hidden"}}
	for _, p := range []*Post{&a, &b, &d} {
		if err := s.Save(p); err != nil {
			t.Fatal(err)
		}
	}

	tags := s.ListTags()
	if len(tags) != 2 || tags[0] != "go" || tags[1] != "web" {
		t.Errorf("ListTags = %v, want [go web]", tags)
	}
}

func TestCreatePostEndToEnd(t *testing.T) {
	s := setupTestStore(t)

	p := Post{
		Slug:     s.UniqueSlug("Hello World!"),
		Title:    "Hello World!",
		Kind:     ContentMarkdown,
		Markdown: "# Hi",
		Status:   StatusPublished,
	}
	if err := s.Save(&p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if p.Slug != "hello-world" {
		t.Errorf("slug = %q, want hello-world", p.Slug)
	}
	if !s.Exists("hello-world") {
		t.Error("expected hello-world.json on disk")
	}

	entries := s.BuildIndexEntries()
	if len(entries) != 1 {
		t.Fatalf("index entries = %d, want 1", len(entries))
	}
	if entries[0].Slug != "hello-world" || entries[0].Title != "Hello World!" {
		t.Errorf("index entry = %+v", entries[0])
	}
	if entries[0].Excerpt != "Hi" {
		t.Errorf("derived excerpt = %q, want Hi", entries[0].Excerpt)
	}
}

func TestPostFilenameMatchesSlug(t *testing.T) {
	s := setupTestStore(t)

	p := Post{Slug: "hello-world", Title: "Hello", Markdown: "x", Status: StatusPublished}
	if err := s.Save(&p); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(s.postsDir, "hello-world.json")); err != nil {
		t.Errorf("expected content/posts/hello-world.json on disk: %v", err)
	}
}
