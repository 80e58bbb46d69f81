package analytics

import "testing"

func TestParseUserAgent(t *testing.T) {
	cases := []struct {
		ua      string
		browser string
		os      string
		device  string
	}{
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36", "Chrome", "Windows", "Desktop"},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Gecko/20100101 Firefox/121.0", "Firefox", "macOS", "Desktop"},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Version/17.0 Mobile/15E148 Safari/604.1", "Safari", "iOS", "Mobile"},
		{"Mozilla/5.0 (Linux; Android 14) Chrome/120.0 Mobile Safari/537.36", "Chrome", "Android", "Mobile"},
		{"Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) Version/17.0 Mobile/15E148 Safari/604.1", "Safari", "iOS", "Tablet"},
		{"curl/8.0", "Other", "Other", "Desktop"},
	}
	for _, tc := range cases {
		browser, os, device := ParseUserAgent(tc.ua)
		if browser != tc.browser || os != tc.os || device != tc.device {
			t.Errorf("ParseUserAgent(%q) = (%s, %s, %s), want (%s, %s, %s)",
				tc.ua, browser, os, device, tc.browser, tc.os, tc.device)
		}
	}
}

func TestIsBot(t *testing.T) {
	if !IsBot("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)") {
		t.Error("Googlebot not detected")
	}
	if !IsBot("AhrefsBot/7.0") {
		t.Error("AhrefsBot not detected")
	}
	if IsBot("Mozilla/5.0 (Windows NT 10.0) Chrome/120.0") {
		t.Error("regular browser flagged as bot")
	}
}

func TestExtractBotName(t *testing.T) {
	cases := []struct{ ua, want string }{
		{"Mozilla/5.0 (compatible; Googlebot/2.1)", "Googlebot"},
		{"Mozilla/5.0 (compatible; bingbot/2.0)", "Bingbot"},
		{"SomeRandomBot/1.0", "Other Bot"},
		{"curl/8.0", "Unknown"},
	}
	for _, tc := range cases {
		if got := ExtractBotName(tc.ua); got != tc.want {
			t.Errorf("ExtractBotName(%q) = %q, want %q", tc.ua, got, tc.want)
		}
	}
}

func TestCleanReferrer(t *testing.T) {
	cases := []struct{ ref, want string }{
		{"", "Direct"},
		{"https://www.google.com/search?q=x", "Google"},
		{"https://duckduckgo.com/", "DuckDuckGo"},
		{"https://www.example.org/some/page", "example.org"},
		{"not a url", "Other"},
	}
	for _, tc := range cases {
		if got := CleanReferrer(tc.ref); got != tc.want {
			t.Errorf("CleanReferrer(%q) = %q, want %q", tc.ref, got, tc.want)
		}
	}
}

func TestVisitorIDStableAndDistinct(t *testing.T) {
	a := GenerateVisitorID("192.0.2.1", "agent-a")
	b := GenerateVisitorID("192.0.2.1", "agent-a")
	c := GenerateVisitorID("192.0.2.2", "agent-a")
	if a != b {
		t.Error("same inputs should hash identically")
	}
	if a == c {
		t.Error("different IPs should hash differently")
	}
	if len(a) != 16 {
		t.Errorf("visitor id length = %d, want 16", len(a))
	}
}
