// Package watcher turns fsnotify notifications into a stream of typed
// add/delete/modify/move events.
package watcher

import (
	"io/fs"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

type Op uint8

const (
	Add Op = iota + 1
	Delete
	Modify
	Move
)

func (o Op) String() string {
	switch o {
	case Add:
		return "add"
	case Delete:
		return "delete"
	case Modify:
		return "modify"
	case Move:
		return "move"
	}
	return "unknown"
}

type Event struct {
	Op   Op
	Path string
	// OldPath is only set for Move.
	OldPath string
	// IsDir is only reliable for Add, Modify and Move; a deleted path can no
	// longer be inspected.
	IsDir bool
}

func (e Event) MarshalZerologObject(ev *zerolog.Event) {
	ev.Stringer("op", e.Op)
	ev.Str("path", e.Path)
	if e.OldPath != "" {
		ev.Str("old_path", e.OldPath)
	}
	if e.IsDir {
		ev.Bool("dir", true)
	}
}

type pendingRename struct {
	path string
	at   time.Time
}

// translator pairs fsnotify's rename and create notifications into moves. A
// rename with no create inside the window is a move out of the watched tree,
// which is reported as a delete.
type translator struct {
	window  time.Duration
	pending *pendingRename
	stat    func(string) (fs.FileInfo, error)
}

func (t *translator) translate(ev fsnotify.Event, now time.Time) []Event {
	var out []Event

	switch {
	case ev.Has(fsnotify.Create):
		isDir := t.isDir(ev.Name)
		if t.pending != nil && now.Sub(t.pending.at) <= t.window && t.pending.path != ev.Name {
			out = append(out, Event{Op: Move, Path: ev.Name, OldPath: t.pending.path, IsDir: isDir})
			t.pending = nil
			return out
		}
		out = append(out, t.expire(now)...)
		out = append(out, Event{Op: Add, Path: ev.Name, IsDir: isDir})

	case ev.Has(fsnotify.Rename):
		if t.pending != nil {
			out = append(out, Event{Op: Delete, Path: t.pending.path})
		}
		t.pending = &pendingRename{path: ev.Name, at: now}

	case ev.Has(fsnotify.Remove):
		out = append(out, t.expire(now)...)
		out = append(out, Event{Op: Delete, Path: ev.Name})

	case ev.Has(fsnotify.Write), ev.Has(fsnotify.Chmod):
		out = append(out, t.expire(now)...)
		isDir := t.isDir(ev.Name)
		if isDir && !ev.Has(fsnotify.Write) {
			// attribute changes on directories carry no content change
			return out
		}
		out = append(out, Event{Op: Modify, Path: ev.Name, IsDir: isDir})
	}

	return out
}

// expire reports a pending rename that outlived the pairing window.
func (t *translator) expire(now time.Time) []Event {
	if t.pending == nil || now.Sub(t.pending.at) <= t.window {
		return nil
	}
	out := []Event{{Op: Delete, Path: t.pending.path}}
	t.pending = nil
	return out
}

func (t *translator) isDir(path string) bool {
	if t.stat == nil {
		return false
	}
	info, err := t.stat(path)
	return err == nil && info.IsDir()
}
