// Package watcher keeps a published manifest consistent with a live template directory.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/webcontainer-demo/livedemo/common"
	"github.com/webcontainer-demo/livedemo/common/debounce"
	"github.com/webcontainer-demo/livedemo/tree"
)

const defaultDebounce = 100 * time.Millisecond

type Config struct {
	Debounce time.Duration // quiet period before a burst of changes triggers a new snapshot
}

// Watcher republishes the manifest whenever something under the template root changes. Only the latest
// state matters: bursts of changes are coalesced into one snapshot.
type Watcher struct {
	publisher *tree.Publisher
	config    Config

	fsw *fsnotify.Watcher

	logger *logrus.Logger
}

func New(publisher *tree.Publisher, config Config, opts ...common.LogOption) *Watcher {
	if config.Debounce <= 0 {
		config.Debounce = defaultDebounce
	}

	return &Watcher{
		publisher: publisher,
		config:    config,
		logger:    common.NewLogger(opts...),
	}
}

// Run watches the template root until ctx is done. Once the watches are in place the manifest is published
// again, which picks up changes made since any earlier publish. Watching and that publish must succeed;
// later failures are logged and leave the previous manifest in place.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WithMessage(err, "failed to create file watcher")
	}
	defer fsw.Close()
	w.fsw = fsw

	// watch before the first snapshot so that no change is missed in between
	if err := w.addRecursive(w.publisher.Root()); err != nil {
		return err
	}

	if _, err := w.publisher.Publish(); err != nil {
		return errors.WithMessage(err, "failed to publish initial manifest")
	}

	republish := debounce.New(w.config.Debounce, func(name string) {
		if _, err := w.publisher.Publish(); err != nil {
			w.logger.WithError(err).WithField("trigger", name).Warn("Failed to republish manifest")
		}
	})
	defer republish.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}

			if !w.relevant(event.Name) {
				continue
			}

			w.logger.WithFields(logrus.Fields{
				"path": event.Name,
				"op":   event.Op.String(),
			}).Debug("Template changed")

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						w.logger.WithError(err).WithField("path", event.Name).Warn("Failed to watch new directory")
					}
				}
			}

			republish.Trigger(event.Name)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}

			w.logger.WithError(err).Warn("File watcher error")
		}
	}
}

// relevant reports whether a changed path can affect the snapshot, i.e. no component of it is filtered.
func (w *Watcher) relevant(name string) bool {
	relpath, err := filepath.Rel(w.publisher.Root(), name)
	if err != nil || strings.HasPrefix(relpath, "..") {
		return false
	}

	if relpath == "." {
		return true
	}

	for _, part := range strings.Split(filepath.ToSlash(relpath), "/") {
		if w.publisher.Snapshotter().Excluded(part) {
			return false
		}
	}

	return true
}

// addRecursive watches dir and every non filtered directory below it.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return &tree.AccessError{Op: "walk", Path: path, Err: err}
		}

		if !d.IsDir() {
			return nil
		}

		if path != dir && w.publisher.Snapshotter().Excluded(d.Name()) {
			return filepath.SkipDir
		}

		if err := w.fsw.Add(path); err != nil {
			return &tree.AccessError{Op: "watch", Path: path, Err: err}
		}

		return nil
	})
}
