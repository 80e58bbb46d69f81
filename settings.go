package flatpress

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const settingsFilename = "settings.json"

// Settings is the typed view of content/settings.json: site metadata,
// pagination, AI-assistant credentials, and self-updater configuration.
type Settings struct {
	SiteTitle       string `json:"site_title"`
	SiteDescription string `json:"site_description"`
	PostsPerPage    int    `json:"posts_per_page"`
	DefaultAuthor   string `json:"default_author"`

	AIAPIKey string `json:"ai_api_key"`
	AIModel  string `json:"ai_model"`

	UpdateRepo     string `json:"update_repo"`
	UpdateBranch   string `json:"update_branch"`
	UpdateToken    string `json:"update_token"`
	UpdateURL      string `json:"update_url"`
	UpdateChecksum string `json:"update_checksum"`
}

func defaultSettings() Settings {
	return Settings{
		SiteTitle:    "Blog",
		PostsPerPage: 10,
		UpdateBranch: "main",
	}
}

// SettingsStore owns content/settings.json with read-merge-write
// semantics: saving overlays the typed fields onto whatever object is on
// disk, so keys written by older versions or other tools survive.
type SettingsStore struct {
	path string
	mu   sync.Mutex
}

// NewSettingsStore returns a store for the settings document under
// contentDir. The file is created lazily on first save.
func NewSettingsStore(contentDir string) *SettingsStore {
	return &SettingsStore{path: filepath.Join(contentDir, settingsFilename)}
}

// Path returns the settings file location.
func (st *SettingsStore) Path() string {
	return st.path
}

// Load reads the settings document. A missing file yields defaults; a
// corrupt file is an error, because silently resetting site configuration
// would lose updater credentials.
func (st *SettingsStore) Load() (Settings, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.load()
}

func (st *SettingsStore) load() (Settings, error) {
	s := defaultSettings()
	data, err := os.ReadFile(st.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return defaultSettings(), fmt.Errorf("parse settings: %w", err)
	}
	return s, nil
}

// Save merges s over the raw on-disk object and writes the result,
// preserving unknown keys.
func (st *SettingsStore) Save(s Settings) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	merged := make(map[string]json.RawMessage)
	if data, err := os.ReadFile(st.path); err == nil {
		// A corrupt existing file is overwritten rather than merged.
		_ = json.Unmarshal(data, &merged)
	}

	typed, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	var typedMap map[string]json.RawMessage
	if err := json.Unmarshal(typed, &typedMap); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	for k, v := range typedMap {
		merged[k] = v
	}

	if err := os.MkdirAll(filepath.Dir(st.path), 0o755); err != nil {
		return fmt.Errorf("create content dir: %w", err)
	}
	// Maps serialize with sorted keys, keeping repeated saves diff-friendly.
	if err := writePrettyJSON(st.path, merged); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
