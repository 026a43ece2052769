// Package watcher re-runs a callback whenever files of a skill tree change.
// Bursts of events are coalesced: the callback runs once the tree has been
// quiet for the debounce interval.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillscan/pkg/logger"
)

// DefaultDebounce is used when a non-positive debounce is given.
const DefaultDebounce = 500 * time.Millisecond

// Event is a file system change within the watched tree.
type Event struct {
	Path string
	Op   fsnotify.Op
	Time time.Time
}

// Handler receives the events of one debounced burst.
type Handler func(ctx context.Context, events []Event)

// Watcher watches a skill directory, or a single file, recursively.
// Hidden files and directories are ignored, matching what the scanner reads.
type Watcher struct {
	root     string
	file     string // set when watching a single file
	debounce time.Duration
	handler  Handler
	fsw      *fsnotify.Watcher
}

// New creates a watcher for root. Call Run to start delivering events.
func New(root string, debounce time.Duration, handler Handler) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot watch %s", root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}

	w := &Watcher{root: root, debounce: debounce, handler: handler, fsw: fsw}
	if !info.IsDir() {
		w.file = filepath.Clean(root)
		w.root = filepath.Dir(root)
		err = fsw.Add(w.root)
	} else {
		err = w.addTree(root)
	}
	if err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "failed to watch %s", root)
	}
	return w, nil
}

// addTree registers dir and every non-hidden directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
}

// Run delivers debounced events to the handler until ctx is done. The
// handler runs on the Run goroutine, so a slow handler delays the next
// batch rather than overlapping with it.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	log := logger.G(ctx)

	var (
		batch []Event
		timer *time.Timer
		fire  <-chan time.Time
	)
	stop := func() {
		if timer != nil {
			timer.Stop()
		}
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 && w.file == "" {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						log.WithError(err).WithField("directory", ev.Name).Warn("failed to watch new directory")
					}
				}
			}

			log.WithField("file", ev.Name).WithField("operation", ev.Op.String()).Debug("file change detected")
			batch = append(batch, Event{Path: ev.Name, Op: ev.Op, Time: time.Now()})
			stop()
			timer = time.NewTimer(w.debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			events := batch
			batch = nil
			w.handler(ctx, events)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("file watcher error")
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if w.file != "" {
		return filepath.Clean(ev.Name) == w.file
	}

	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return false
		}
	}
	return true
}
