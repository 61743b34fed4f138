// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kortschak/xfade/internal/locked"
	"github.com/kortschak/xfade/internal/slogext"
)

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := os.WriteFile(path, []byte("[defaults]\nquality = 90\n"), 0o644)
	if err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	var logBuf locked.BytesBuffer
	log := slog.New(slogext.NewJSONHandler(&logBuf, &slogext.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: slogext.NewAtomicBool(true),
	}))
	defer func() {
		if t.Failed() {
			t.Logf("log:\n%s\n", &logBuf)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan Change, 10)
	w, err := NewWatcher(ctx, path, changes, -1, log)
	if err != nil {
		t.Fatalf("unexpected error starting watcher: %v", err)
	}
	defer w.Close()

	steps := []struct {
		name    string
		data    string
		want    *int
		wantErr bool
	}{
		{name: "no_semantic_change", data: "# comment\n[defaults]\nquality = 90\n"},
		{name: "quality", data: "[defaults]\nquality = 70\n", want: ptr(70)},
		{name: "invalid", data: "[defaults]\nquality = 700\n", wantErr: true},
		{name: "other_file", data: ""},
		{name: "restore", data: "[defaults]\nquality = 90\n", want: ptr(90)},
	}
	for _, step := range steps {
		target := path
		if step.name == "other_file" {
			target = filepath.Join(dir, "other.toml")
		}
		err := os.WriteFile(target, []byte(step.data), 0o644)
		if err != nil {
			t.Fatalf("failed to write config for %s: %v", step.name, err)
		}
		if step.want == nil && !step.wantErr {
			select {
			case c := <-changes:
				t.Errorf("unexpected change for %s: %v", step.name, c.LogValue())
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}
		select {
		case c := <-changes:
			if step.wantErr {
				if c.Err == nil {
					t.Errorf("expected error for %s", step.name)
				}
				// Drain any error from a second write event.
				drain(changes, 100*time.Millisecond)
				continue
			}
			if c.Err != nil {
				t.Errorf("unexpected error for %s: %v", step.name, c.Err)
				continue
			}
			if !c.Event.Has(fsnotify.Write) && !c.Event.Has(fsnotify.Create) {
				t.Errorf("unexpected op for %s: %v", step.name, c.Event.Op)
			}
			if c.Config == nil || c.Config.Defaults.Quality == nil || *c.Config.Defaults.Quality != *step.want {
				t.Errorf("unexpected config for %s: %v", step.name, c.LogValue())
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %s change", step.name)
		}
	}

	err = os.Remove(path)
	if err != nil {
		t.Fatalf("failed to remove config: %v", err)
	}
	select {
	case c := <-changes:
		if c.Config != nil || c.Err != nil || !c.Event.Has(fsnotify.Remove) {
			t.Errorf("unexpected change for remove: %v", c.LogValue())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for remove change")
	}
}

func drain(c <-chan Change, wait time.Duration) {
	for {
		select {
		case <-c:
		case <-time.After(wait):
			return
		}
	}
}
