package flatpress

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	backupInfoFilename = "backup_info.json"
	defaultMaxBackups  = 10
)

// BackupInfo is the metadata record embedded in every archive. It is
// written once, as the final content entry, with the byte size taken from
// a counting writer wrapped around the archive file, so no second pass
// over a finished archive is needed.
type BackupInfo struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	FileCount int    `json:"file_count"`
	SizeBytes int64  `json:"size_bytes"`
}

// BackupFile describes one archive on disk for listings.
type BackupFile struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// HumanSize renders the archive size for display.
func (b BackupFile) HumanSize() string {
	return humanize.Bytes(uint64(b.Size))
}

// Backups archives the content directory, uploads, a fixed list of core
// files, and a library directory into timestamped zip bundles, and
// restores them. A fixed-size ring keeps only the newest archives.
type Backups struct {
	// Root is the installation root all archived paths are relative to.
	Root string
	// Dir is where archives are written (default <root>/admin/backups).
	Dir string
	// CoreFiles are individual files included by name when present.
	CoreFiles []string
	// LibDir is an extra directory archived under its own prefix.
	LibDir string
	// Keep caps how many archives the retention ring holds.
	Keep int
}

// NewBackups returns a Backups engine with the standard layout for root.
func NewBackups(root string) *Backups {
	return &Backups{
		Root:      root,
		Dir:       filepath.Join(root, "admin", "backups"),
		CoreFiles: []string{"flatpress.yaml", ".env", "go.mod", "go.sum", "main.go"},
		LibDir:    "views",
		Keep:      defaultMaxBackups,
	}
}

// countingWriter tracks bytes flushed to the underlying archive file so
// the metadata entry can record the archive size without reopening it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Create writes a new archive named blog_backup_<kind>_<timestamp>.zip and
// applies retention. It returns the metadata that was embedded.
func (b *Backups) Create(kind string) (BackupInfo, error) {
	if kind == "" {
		kind = "manual"
	}
	if err := os.MkdirAll(b.Dir, 0o755); err != nil {
		return BackupInfo{}, fmt.Errorf("create backups dir: %w", err)
	}
	now := time.Now()
	name := fmt.Sprintf("blog_backup_%s_%s.zip", kind, now.Format("20060102_150405"))
	path := filepath.Join(b.Dir, name)

	f, err := os.Create(path)
	if err != nil {
		return BackupInfo{}, fmt.Errorf("create backup archive: %w", err)
	}
	cw := &countingWriter{w: f}
	zw := zip.NewWriter(cw)

	count := 0
	addTree := func(dir, prefix string) error {
		n, err := zipTree(zw, filepath.Join(b.Root, dir), prefix)
		count += n
		return err
	}

	err = func() error {
		if err := addTree("content", "content"); err != nil {
			return err
		}
		if err := addTree("uploads", "uploads"); err != nil {
			return err
		}
		for _, core := range b.CoreFiles {
			src := filepath.Join(b.Root, core)
			if _, err := os.Stat(src); err != nil {
				continue
			}
			if err := zipFile(zw, src, core); err != nil {
				return err
			}
			count++
		}
		if b.LibDir != "" {
			if err := addTree(b.LibDir, filepath.ToSlash(b.LibDir)); err != nil {
				return err
			}
		}

		if err := zw.Flush(); err != nil {
			return err
		}
		info := BackupInfo{
			Timestamp: now.UTC().Format(time.RFC3339),
			Type:      kind,
			FileCount: count,
			SizeBytes: cw.n,
		}
		w, err := zw.Create(backupInfoFilename)
		if err != nil {
			return err
		}
		data, err := encodePrettyJSON(info)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		return zw.Close()
	}()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return BackupInfo{}, fmt.Errorf("write backup: %w", err)
	}

	if err := b.applyRetention(); err != nil {
		return BackupInfo{}, err
	}
	info := BackupInfo{Timestamp: now.UTC().Format(time.RFC3339), Type: kind, FileCount: count, SizeBytes: cw.n}
	return info, nil
}

// applyRetention deletes the oldest archives (by mtime) until at most Keep
// remain.
func (b *Backups) applyRetention() error {
	files, err := b.List()
	if err != nil {
		return err
	}
	keep := b.Keep
	if keep <= 0 {
		keep = defaultMaxBackups
	}
	// List is newest-first; everything past the cap goes.
	for _, old := range files[min(keep, len(files)):] {
		if err := os.Remove(filepath.Join(b.Dir, old.Name)); err != nil {
			return fmt.Errorf("prune backup %s: %w", old.Name, err)
		}
	}
	return nil
}

// List enumerates archives newest-first.
func (b *Backups) List() ([]BackupFile, error) {
	entries, err := os.ReadDir(b.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list backups: %w", err)
	}
	var files []BackupFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".zip") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, BackupFile{Name: e.Name(), Size: fi.Size(), ModTime: fi.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ModTime.After(files[j].ModTime) })
	return files, nil
}

// Restore extracts the named archive into a temporary directory, copies
// the content and uploads subtrees plus core files and the lib dir back
// over the live installation, then removes the temp dir. The archive is
// not authenticated: restoring an untrusted archive is equivalent to
// arbitrary file overwrite.
func (b *Backups) Restore(name string) error {
	if name != filepath.Base(name) || !strings.HasSuffix(name, ".zip") {
		return fmt.Errorf("restore: invalid backup name %q", name)
	}
	archive := filepath.Join(b.Dir, name)

	tmp, err := os.MkdirTemp("", "flatpress-restore-")
	if err != nil {
		return fmt.Errorf("restore: temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := unzip(archive, tmp); err != nil {
		return fmt.Errorf("restore: extract %s: %w", name, err)
	}

	for _, dir := range []string{"content", "uploads"} {
		src := filepath.Join(tmp, dir)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := copyTree(src, filepath.Join(b.Root, dir), nil); err != nil {
			return fmt.Errorf("restore %s: %w", dir, err)
		}
	}
	for _, core := range b.CoreFiles {
		src := filepath.Join(tmp, core)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := copyFile(src, filepath.Join(b.Root, core)); err != nil {
			return fmt.Errorf("restore %s: %w", core, err)
		}
	}
	if b.LibDir != "" {
		src := filepath.Join(tmp, b.LibDir)
		if _, err := os.Stat(src); err == nil {
			if err := copyTree(src, filepath.Join(b.Root, b.LibDir), nil); err != nil {
				return fmt.Errorf("restore %s: %w", b.LibDir, err)
			}
		}
	}
	return nil
}

// Info reads the embedded metadata record from an archive, if present.
func (b *Backups) Info(name string) (BackupInfo, error) {
	zr, err := zip.OpenReader(filepath.Join(b.Dir, name))
	if err != nil {
		return BackupInfo{}, fmt.Errorf("open backup %s: %w", name, err)
	}
	defer zr.Close()
	for _, zf := range zr.File {
		if zf.Name != backupInfoFilename {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return BackupInfo{}, err
		}
		defer rc.Close()
		var info BackupInfo
		if err := decodeJSON(rc, &info); err != nil {
			return BackupInfo{}, fmt.Errorf("parse %s: %w", backupInfoFilename, err)
		}
		return info, nil
	}
	return BackupInfo{}, fmt.Errorf("backup %s has no %s", name, backupInfoFilename)
}

// zipTree adds every regular file under dir to zw with the given path
// prefix. A missing dir adds nothing.
func zipTree(zw *zip.Writer, dir, prefix string) (int, error) {
	if _, err := os.Stat(dir); err != nil {
		return 0, nil
	}
	count := 0
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if err := zipFile(zw, path, prefix+"/"+filepath.ToSlash(rel)); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

func zipFile(zw *zip.Writer, src, name string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

// unzip extracts an archive into dest, rejecting entries that would escape
// it.
func unzip(archive, dest string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer zr.Close()
	for _, zf := range zr.File {
		target := filepath.Join(dest, filepath.FromSlash(zf.Name))
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry escapes destination: %s", zf.Name)
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		rc, err := zf.Open()
		if err != nil {
			return err
		}
		out, err := os.Create(target)
		if err != nil {
			rc.Close()
			return err
		}
		_, err = io.Copy(out, rc)
		rc.Close()
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}
