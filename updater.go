package flatpress

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultUpdateExcludes are the path prefixes the overlay copy never
// touches: user content, uploads, logs, the analytics database, existing
// backups, and local secrets. Matching is a case-insensitive prefix test
// against the forward-slash relative path.
var DefaultUpdateExcludes = []string{
	"content/",
	"uploads/",
	"logs/",
	"data/",
	"admin/backups/",
	"flatpress.yaml",
	".env",
}

// Updater fetches a remote snapshot of the application code and overlays
// it onto the live installation while protecting user data. There is no
// rollback: if the overlay copy fails partway the installation is left in
// a mixed state and the error names the offending path.
type Updater struct {
	// Root is the live installation directory.
	Root string
	// Excludes are relative path prefixes skipped by the overlay copy.
	Excludes []string

	client *http.Client
	mu     sync.Mutex
}

// NewUpdater returns an Updater for the installation at root with the
// default exclusion list and transport timeouts.
func NewUpdater(root string) *Updater {
	return &Updater{
		Root:     root,
		Excludes: DefaultUpdateExcludes,
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// Lock serializes self-update against restore; both call it. Exported so
// the restore handler can share the same critical section.
func (u *Updater) Lock()   { u.mu.Lock() }
func (u *Updater) Unlock() { u.mu.Unlock() }

// FromURL downloads a zip archive from url and applies it. If checksum is
// non-empty it must be the hex SHA-256 of the archive; a mismatch aborts
// before anything is extracted or copied.
func (u *Updater) FromURL(ctx context.Context, url, checksum string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	scratch, err := u.prepareScratch()
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)

	archive := filepath.Join(scratch, "update.zip")
	if err := u.download(ctx, url, "", archive); err != nil {
		return err
	}
	if checksum != "" {
		if err := verifyChecksum(archive, checksum); err != nil {
			return err
		}
	}
	return u.apply(scratch, archive)
}

// FromArchive applies an already-uploaded local zip archive.
func (u *Updater) FromArchive(archivePath string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, err := os.Stat(archivePath); err != nil {
		return fmt.Errorf("update archive missing: %w", err)
	}
	scratch, err := u.prepareScratch()
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)
	return u.apply(scratch, archivePath)
}

// FromRepo fetches the zipball for a repository branch from the GitHub
// API, optionally authenticating with a bearer token, and applies it.
// Zipballs wrap the tree in a commit-named top-level directory, which
// apply detects and unwraps.
func (u *Updater) FromRepo(ctx context.Context, repo, branch, token string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if repo == "" {
		return fmt.Errorf("update: no repository configured")
	}
	if branch == "" {
		branch = "main"
	}
	scratch, err := u.prepareScratch()
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)

	url := fmt.Sprintf("https://api.github.com/repos/%s/zipball/%s", repo, branch)
	archive := filepath.Join(scratch, "update.zip")
	if err := u.download(ctx, url, token, archive); err != nil {
		return err
	}
	return u.apply(scratch, archive)
}

// prepareScratch clears and recreates the update staging directory.
func (u *Updater) prepareScratch() (string, error) {
	scratch := filepath.Join(os.TempDir(), "flatpress-update")
	if err := os.RemoveAll(scratch); err != nil {
		return "", fmt.Errorf("clear update scratch: %w", err)
	}
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return "", fmt.Errorf("create update scratch: %w", err)
	}
	return scratch, nil
}

// download performs a GET (following redirects) and streams the body to
// dest. Non-2xx responses fail with the HTTP status.
func (u *Updater) download(ctx context.Context, url, token, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build update request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("download update: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("download update: unexpected status %s", resp.Status)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("write update archive: %w", err)
	}
	_, err = io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write update archive: %w", err)
	}
	return nil
}

// verifyChecksum compares the hex SHA-256 of the file against want.
func verifyChecksum(path, want string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("checksum: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("checksum: %w", err)
	}
	got := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(got, strings.TrimSpace(want)) {
		return fmt.Errorf("checksum mismatch: archive is %s, expected %s", got, want)
	}
	return nil
}

// apply extracts the archive into the scratch directory and overlays the
// resulting tree onto the installation root.
func (u *Updater) apply(scratch, archive string) error {
	src := filepath.Join(scratch, "src")
	if err := os.MkdirAll(src, 0o755); err != nil {
		return fmt.Errorf("create extract dir: %w", err)
	}
	if err := unzip(archive, src); err != nil {
		return fmt.Errorf("extract update: %w", err)
	}
	root, err := sourceRoot(src)
	if err != nil {
		return err
	}
	if err := copyTree(root, u.Root, u.Excludes); err != nil {
		return fmt.Errorf("apply update: %w", err)
	}
	return nil
}

// saveUploadedArchive spools an uploaded update archive to a temp file
// and returns its path. The caller removes it when done.
func saveUploadedArchive(r io.Reader) (string, error) {
	f, err := os.CreateTemp("", "flatpress-upload-*.zip")
	if err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}
	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("stage upload: %w", err)
	}
	return f.Name(), nil
}

func removeFile(path string) {
	_ = os.Remove(path)
}

// sourceRoot unwraps the single top-level directory zipballs produce; an
// archive with files at its root is used as-is.
func sourceRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("inspect update layout: %w", err)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("update archive is empty")
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}

// excluded reports whether the slash-relative path rel falls under any of
// the configured prefixes, case-insensitively. A directory prefix like
// "content/" also matches the bare directory entry itself.
func excluded(rel string, excludes []string) bool {
	lower := strings.ToLower(filepath.ToSlash(rel))
	for _, ex := range excludes {
		ex = strings.ToLower(ex)
		if strings.HasPrefix(lower, ex) || lower == strings.TrimSuffix(ex, "/") {
			return true
		}
	}
	return false
}

// copyTree recursively copies src onto dst, creating destination
// directories as needed and overwriting files unconditionally. Subtrees
// whose relative path matches an exclusion prefix are skipped wholesale.
// No diffing, no backup-before-overwrite: callers own that risk.
func copyTree(src, dst string, excludes []string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if excluded(rel, excludes) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if err := copyFile(path, target); err != nil {
			return fmt.Errorf("copy %s: %w", filepath.ToSlash(rel), err)
		}
		return nil
	})
}
