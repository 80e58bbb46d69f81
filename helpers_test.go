package flatpress

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Hello, World!", "hello-world"},
		{"  Already-Slugged  ", "already-slugged"},
		{"Ünïcödé Tïtle", "n-c-d-t-tle"},
		{"multiple   spaces", "multiple-spaces"},
		{"2026 year in review", "2026-year-in-review"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" go , web ,, testing ")
	want := []string{"go", "web", "testing"}
	if len(got) != len(want) {
		t.Fatalf("SplitList = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SplitList[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if SplitList("") != nil {
		t.Error("SplitList of empty string should be nil")
	}
}

func TestBuildURL(t *testing.T) {
	if got := BuildURL("https://example.com", "blog", "my-post"); got != "https://example.com/blog/my-post/" {
		t.Errorf("BuildURL = %q", got)
	}
	if got := BuildURL("https://example.com"); got != "https://example.com" {
		t.Errorf("BuildURL base only = %q", got)
	}
}

func TestFilterRelatedPosts(t *testing.T) {
	current := Post{Slug: "current", Tags: []string{"Go", "web"}}
	posts := []Post{
		{Slug: "current", Tags: []string{"go"}},
		{Slug: "match", Tags: []string{"go", "tools"}},
		{Slug: "nomatch", Tags: []string{"cooking"}},
		{Slug: "case", Tags: []string{"WEB"}},
	}
	related := FilterRelatedPosts(current, posts)
	if len(related) != 2 {
		t.Fatalf("related = %v, want 2 posts", related)
	}
	if related[0].Slug != "match" || related[1].Slug != "case" {
		t.Errorf("related = [%s %s], want [match case]", related[0].Slug, related[1].Slug)
	}
}

func TestBlogPostingJsonLD(t *testing.T) {
	cfg := SiteConfig{Name: "My Site", URL: "https://example.com", Author: "Site Author"}
	post := Post{
		Slug:    "post",
		Title:   "Post Title",
		Excerpt: "Summary",
		Date:    "2026-01-01T00:00:00Z",
		Updated: "2026-02-01T00:00:00Z",
		Tags:    []string{"go"},
	}
	jsonLD := BlogPostingJsonLD(post, cfg)
	for _, want := range []string{
		`"BlogPosting"`,
		`"Post Title"`,
		`"dateModified":"2026-02-01T00:00:00Z"`,
		`"Site Author"`,
	} {
		if !strings.Contains(jsonLD, want) {
			t.Errorf("JSON-LD missing %s: %s", want, jsonLD)
		}
	}
}
