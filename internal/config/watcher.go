package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/twistedxcom/termina/internal/logging"
)

var configLog = logging.ForComponent(logging.CompConfig)

// debounceWindow coalesces the write bursts editors produce when saving.
const debounceWindow = 250 * time.Millisecond

// Watcher monitors the config file and delivers freshly parsed configs on
// Reloads. Parse failures keep the previous config and are only logged;
// a broken edit must never take the session down.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	reloads chan *Config
	cancel  context.CancelFunc
}

// NewWatcher watches the config file at path. The containing directory is
// watched rather than the file itself so atomic rename-into-place saves
// are seen too.
func NewWatcher(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", filepath.Dir(path), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		path:    path,
		watcher: fsw,
		reloads: make(chan *Config, 1),
		cancel:  cancel,
	}
	go w.loop(ctx)
	return w, nil
}

// Reloads delivers a new Config after each observed change.
func (w *Watcher) Reloads() <-chan *Config { return w.reloads }

// Close stops watching.
func (w *Watcher) Close() {
	w.cancel()
	w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				fire = timer.C
			} else {
				timer.Reset(debounceWindow)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			configLog.Warn("config watcher error", slog.String("error", err.Error()))

		case <-fire:
			timer = nil
			fire = nil
			cfg, err := Load(w.path)
			if err != nil {
				var unknown *UnknownKeysError
				if !errors.As(err, &unknown) {
					configLog.Warn("config reload failed, keeping previous",
						slog.String("error", err.Error()))
					continue
				}
				configLog.Warn("config has unknown keys", slog.String("error", err.Error()))
			}
			configLog.Info("config reloaded", slog.String("path", w.path))
			select {
			case w.reloads <- cfg:
			default:
				// Receiver is behind; drop the older pending reload.
				select {
				case <-w.reloads:
				default:
				}
				w.reloads <- cfg
			}
		}
	}
}
