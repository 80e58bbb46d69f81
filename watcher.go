package flatpress

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/labstack/gommon/log"
)

// ContentWatcher watches the posts directory for out-of-band edits (rsync
// deploys, manual fixes over SSH) and keeps the derived state honest:
// events invalidate the post cache and rebuild the index. Events are
// debounced so a burst of file writes triggers one rebuild.
type ContentWatcher struct {
	fw     *fsnotify.Watcher
	done   chan struct{}
	logger *log.Logger
}

const watchDebounce = 500 * time.Millisecond

// WatchContent starts a watcher over the store's posts directory.
func WatchContent(store *Store, cache *PostCache) (*ContentWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(store.postsDir); err != nil {
		fw.Close()
		return nil, err
	}
	w := &ContentWatcher{
		fw:     fw,
		done:   make(chan struct{}),
		logger: log.New("flatpress"),
	}
	go w.run(store, cache)
	return w, nil
}

func (w *ContentWatcher) run(store *Store, cache *PostCache) {
	var timer *time.Timer
	var pending <-chan time.Time
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(ev.Name, postExt) {
				continue
			}
			if !ev.Op.Has(fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			pending = timer.C
		case <-pending:
			pending = nil
			cache.Invalidate()
			if err := store.RebuildIndex(); err != nil {
				w.logger.Warnf("rebuild index after external change: %v", err)
			} else {
				w.logger.Infof("posts changed on disk in %s, index rebuilt", filepath.Base(store.postsDir))
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warnf("content watcher: %v", err)
		}
	}
}

// Close stops the watcher.
func (w *ContentWatcher) Close() error {
	close(w.done)
	return w.fw.Close()
}
