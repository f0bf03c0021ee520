package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

type Option func(o *options)

type options struct {
	moveWindow time.Duration
	buffer     int
}

// WithMoveWindow sets how long a rename waits for the matching create before
// it is reported as a delete.
func WithMoveWindow(d time.Duration) Option {
	return func(o *options) {
		o.moveWindow = d
	}
}

// WithBuffer sets the capacity of the events channel.
func WithBuffer(n int) Option {
	return func(o *options) {
		o.buffer = n
	}
}

// Watcher watches directory trees recursively. Directories created inside a
// watched tree are watched automatically.
type Watcher struct {
	fsw    *fsnotify.Watcher
	events chan Event
	logger zerolog.Logger

	mu sync.Mutex
	tr translator

	closeOnce sync.Once
}

func New(logger zerolog.Logger, opts ...Option) (*Watcher, error) {
	o := options{
		moveWindow: 100 * time.Millisecond,
		buffer:     256,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.moveWindow <= 0 {
		o.moveWindow = 100 * time.Millisecond
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	return &Watcher{
		fsw:    fsw,
		events: make(chan Event, o.buffer),
		logger: logger,
		tr: translator{
			window: o.moveWindow,
			stat:   os.Stat,
		},
	}, nil
}

// Events is closed when Run returns.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// AddRecursive watches root and every directory below it.
func (w *Watcher) AddRecursive(root string) error {
	root = filepath.Clean(root)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			w.logger.Warn().Err(err).Str("path", path).Msg("skipping unreadable directory")
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	w.logger.Debug().Str("root", root).Msg("watching directory tree")
	return nil
}

// RemoveRecursive stops watching root and every directory below it.
func (w *Watcher) RemoveRecursive(root string) {
	root = filepath.Clean(root)
	for _, path := range w.fsw.WatchList() {
		if isWithin(root, path) {
			_ = w.fsw.Remove(path)
		}
	}
}

// Run forwards events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)

	ticker := time.NewTicker(w.tr.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.mu.Lock()
			out := w.tr.translate(ev, time.Now())
			w.mu.Unlock()
			for _, e := range out {
				if e.IsDir && (e.Op == Add || e.Op == Move) {
					if err := w.AddRecursive(e.Path); err != nil {
						w.logger.Warn().Err(err).Str("path", e.Path).Msg("cannot watch new directory")
					}
				}
				if !w.send(ctx, e) {
					return nil
				}
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Error().Err(err).Msg("file watcher overflowed, some changes were missed")
				continue
			}
			w.logger.Warn().Err(err).Msg("file watcher error")

		case <-ticker.C:
			w.mu.Lock()
			out := w.tr.expire(time.Now())
			w.mu.Unlock()
			for _, e := range out {
				if !w.send(ctx, e) {
					return nil
				}
			}
		}
	}
}

func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) send(ctx context.Context, e Event) bool {
	w.logger.Trace().Object("event", e).Msg("file event")
	select {
	case w.events <- e:
		return true
	case <-ctx.Done():
		return false
	}
}

func isWithin(root, path string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
