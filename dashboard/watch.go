package dashboard

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 250 * time.Millisecond

// watcher reloads the manager when the dataset or an artifact changes on
// disk. Parent directories are watched so atomic replacements are seen.
type watcher struct {
	manager *Manager
	fs      *fsnotify.Watcher
	files   map[string]bool
	done    chan struct{}
	exited  chan struct{}
	once    sync.Once
}

func newWatcher(m *Manager, paths []string) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &watcher{
		manager: m,
		fs:      fsw,
		files:   make(map[string]bool),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	dirs := make(map[string]bool)
	for _, path := range paths {
		if path == "" {
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			fsw.Close()
			return nil, err
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *watcher) run(ctx context.Context) {
	defer close(w.exited)
	defer w.fs.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.manager.logger.Debug("artifact changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(reloadDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			select {
			case <-w.done:
				return
			default:
			}
			_ = w.manager.Reload()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.manager.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

func (w *watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return w.files[abs]
}

// stop returns once run has exited.
func (w *watcher) stop() {
	w.once.Do(func() { close(w.done) })
	<-w.exited
}
