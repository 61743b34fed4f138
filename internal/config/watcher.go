// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"context"
	"crypto/sha1"
	"hash"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileDebounce is the default duration we wait for the contents to have
// stabilised to work around some editors writing an empty file and then the
// buffer.
const FileDebounce = 10 * time.Millisecond

// Change is a configuration change identified by a Watcher. If the
// configuration file was removed, Config is nil and Err is nil.
type Change struct {
	Event  fsnotify.Event
	Config *Config
	Sum    Sum
	Err    error
}

// Watcher watches a configuration file, sending semantically meaningful
// changes to the file's configuration.
type Watcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	changes  chan<- Change
	hash     hash.Hash
	sum      Sum
	done     chan struct{}
	log      *slog.Logger
}

// NewWatcher starts a watcher for the configuration file at path, sending
// change events on the changes channel until ctx is cancelled or Close is
// called. The file's directory is watched so that files replaced by a
// rename are followed. The debounce parameter specifies how long to wait
// after an fsnotify.Event before reading the file to ensure that writes will
// be reflected in the state checksum. If it is less than zero, FileDebounce
// is used.
func NewWatcher(ctx context.Context, path string, changes chan<- Change, debounce time.Duration, log *slog.Logger) (*Watcher, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	err = watcher.Add(filepath.Dir(path))
	if err != nil {
		watcher.Close()
		return nil, err
	}
	if debounce < 0 {
		debounce = FileDebounce
	}
	w := &Watcher{
		path:     path,
		debounce: debounce,
		watcher:  watcher,
		changes:  changes,
		hash:     sha1.New(),
		done:     make(chan struct{}),
		log:      log.With(slog.String("component", "config_watcher")),
	}
	b, err := os.ReadFile(path)
	if err == nil {
		_, w.sum, err = unmarshal(w.hash, b)
	}
	if err != nil {
		w.log.LogAttrs(ctx, slog.LevelWarn, "initial config", slog.String("path", path), slog.Any("error", err))
	}
	go func() {
		defer close(w.done)
		w.process(ctx)
	}()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

// process watches the Watcher's fsnotify.Watcher events performing
// filtering for the watched file and semantic deduplication.
func (w *Watcher) process(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			switch {
			case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create):
				w.log.LogAttrs(ctx, slog.LevelDebug, "update", slog.String("name", ev.Name), slog.String("op", ev.Op.String()))
				time.Sleep(w.debounce)
				b, err := os.ReadFile(w.path)
				if err != nil {
					w.log.LogAttrs(ctx, slog.LevelError, "read file", slog.Any("error", err))
					w.send(ctx, Change{Event: ev, Err: err})
					continue
				}
				cfg, sum, err := unmarshal(w.hash, b)
				if err != nil {
					w.send(ctx, Change{Event: ev, Err: err})
					continue
				}
				if sum == w.sum {
					w.log.LogAttrs(ctx, slog.LevelDebug, "no change", slog.Any("sum", sum))
					continue
				}
				w.log.LogAttrs(ctx, slog.LevelDebug, "set hash", slog.Any("sum", sum), slog.Any("previous", w.sum))
				w.sum = sum
				w.send(ctx, Change{Event: ev, Config: cfg, Sum: sum})

			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				w.log.LogAttrs(ctx, slog.LevelDebug, "remove", slog.String("name", ev.Name), slog.String("op", ev.Op.String()))
				w.sum = Sum{}
				w.send(ctx, Change{Event: ev})
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.send(ctx, Change{Err: err})
		}
	}
}

func (w *Watcher) send(ctx context.Context, c Change) {
	select {
	case <-ctx.Done():
	case w.changes <- c:
	}
}
