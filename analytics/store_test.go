package analytics

import (
	"path/filepath"
	"testing"
	"time"
)

func setupTestAnalytics(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "analytics.db"))
	if err != nil {
		t.Fatalf("failed to create analytics store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSettingsUpsert(t *testing.T) {
	s := setupTestAnalytics(t)

	val, err := s.GetSetting("missing")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if val != "" {
		t.Errorf("missing key = %q, want empty", val)
	}

	if err := s.SetSetting("hash_salt", "abc"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	if err := s.SetSetting("hash_salt", "def"); err != nil {
		t.Fatalf("SetSetting upsert failed: %v", err)
	}
	val, err = s.GetSetting("hash_salt")
	if err != nil {
		t.Fatal(err)
	}
	if val != "def" {
		t.Errorf("value = %q, want def", val)
	}
}

func TestSaveVisitAndStats(t *testing.T) {
	s := setupTestAnalytics(t)

	now := time.Now().UTC()
	visits := []*Visit{
		{VisitorID: "v1", SessionID: "s1", IPHash: "h1", Browser: "Chrome", OS: "Linux", Device: "Desktop", Path: "/", Referrer: "Direct", Timestamp: now},
		{VisitorID: "v1", SessionID: "s1", IPHash: "h1", Browser: "Chrome", OS: "Linux", Device: "Desktop", Path: "/blog/post/", Referrer: "Google", Timestamp: now},
		{VisitorID: "v2", SessionID: "s2", IPHash: "h2", Browser: "Firefox", OS: "Windows", Device: "Desktop", Path: "/", Referrer: "Direct", Timestamp: now},
	}
	for _, v := range visits {
		if err := s.SaveVisit(v); err != nil {
			t.Fatalf("SaveVisit failed: %v", err)
		}
	}
	bv := &BotVisit{BotName: "Googlebot", IPHash: "h3", UserAgent: "Googlebot/2.1", Path: "/", Timestamp: now}
	if err := s.SaveBotVisit(bv); err != nil {
		t.Fatalf("SaveBotVisit failed: %v", err)
	}

	stats, err := s.GetStats(now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.TotalViews != 3 {
		t.Errorf("TotalViews = %d, want 3", stats.TotalViews)
	}
	if stats.UniqueVisitors != 2 {
		t.Errorf("UniqueVisitors = %d, want 2", stats.UniqueVisitors)
	}
	if stats.BotVisits != 1 {
		t.Errorf("BotVisits = %d, want 1", stats.BotVisits)
	}
	if len(stats.TopPages) == 0 || stats.TopPages[0].Path != "/" || stats.TopPages[0].Views != 2 {
		t.Errorf("TopPages = %v, want / with 2 views first", stats.TopPages)
	}
	if len(stats.TopBots) != 1 || stats.TopBots[0].Name != "Googlebot" {
		t.Errorf("TopBots = %v, want Googlebot", stats.TopBots)
	}

	realtime, err := s.RealtimeVisitors()
	if err != nil {
		t.Fatal(err)
	}
	if realtime != 2 {
		t.Errorf("RealtimeVisitors = %d, want 2", realtime)
	}
}

func TestUpdateVisitDuration(t *testing.T) {
	s := setupTestAnalytics(t)

	now := time.Now().UTC()
	v := &Visit{VisitorID: "v1", SessionID: "s1", IPHash: "h1", Browser: "Chrome", OS: "Linux", Device: "Desktop", Path: "/page/", Referrer: "Direct", Timestamp: now}
	if err := s.SaveVisit(v); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateVisitDuration("v1", "/page/", 42); err != nil {
		t.Fatalf("UpdateVisitDuration failed: %v", err)
	}

	var got int
	err := s.db.QueryRow(`SELECT duration_sec FROM visits WHERE visitor_id = 'v1'`).Scan(&got)
	if err != nil {
		t.Fatal(err)
	}
	if got != 42 {
		t.Errorf("duration = %d, want 42", got)
	}
}

func TestCleanupOldVisits(t *testing.T) {
	s := setupTestAnalytics(t)

	old := time.Now().UTC().AddDate(0, 0, -100)
	recent := time.Now().UTC()
	if err := s.SaveVisit(&Visit{VisitorID: "v1", SessionID: "s1", IPHash: "h", Browser: "b", OS: "o", Device: "d", Path: "/", Timestamp: old}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveVisit(&Visit{VisitorID: "v2", SessionID: "s2", IPHash: "h", Browser: "b", OS: "o", Device: "d", Path: "/", Timestamp: recent}); err != nil {
		t.Fatal(err)
	}

	if err := s.CleanupOldVisits(30); err != nil {
		t.Fatalf("CleanupOldVisits failed: %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM visits`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("visits after cleanup = %d, want 1", count)
	}
}
