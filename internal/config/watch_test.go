// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type reload struct {
	cfg *Config
	err error
}

func startWatcher(t *testing.T, path string) (*Watcher, <-chan reload) {
	t.Helper()
	ch := make(chan reload, 8)
	w, err := NewWatcher(path, 20*time.Millisecond, func(cfg *Config, err error) {
		ch <- reload{cfg, err}
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w, ch
}

func waitReload(t *testing.T, ch <-chan reload) reload {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("no reload")
		return reload{}
	}
}

func TestWatcher_ReloadsOnSave(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := SaveTOML(Default(), path); err != nil {
		t.Fatal(err)
	}
	_, ch := startWatcher(t, path)

	cfg := Default()
	cfg.Log.Level = "debug"
	if err := SaveTOML(cfg, path); err != nil {
		t.Fatal(err)
	}

	r := waitReload(t, ch)
	if r.err != nil {
		t.Fatalf("reload error: %v", r.err)
	}
	if r.cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", r.cfg.Log.Level)
	}
}

func TestWatcher_ReportsInvalidFile(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := SaveTOML(Default(), path); err != nil {
		t.Fatal(err)
	}
	_, ch := startWatcher(t, path)

	if err := os.WriteFile(path, []byte("this is = = not toml"), 0600); err != nil {
		t.Fatal(err)
	}

	r := waitReload(t, ch)
	if r.err == nil {
		t.Fatal("expected an error for an invalid file")
	}
	if r.cfg != nil {
		t.Error("cfg should be nil on error")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := SaveTOML(Default(), path); err != nil {
		t.Fatal(err)
	}
	_, ch := startWatcher(t, path)

	if err := os.WriteFile(filepath.Join(dir, "chat_history"), []byte("hi"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case r := <-ch:
		t.Fatalf("unexpected reload: %+v", r)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_NoReloadAfterClose(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := SaveTOML(Default(), path); err != nil {
		t.Fatal(err)
	}
	w, ch := startWatcher(t, path)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := SaveTOML(Default(), path); err != nil {
		t.Fatal(err)
	}
	select {
	case r := <-ch:
		t.Fatalf("reload after Close: %+v", r)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "config.toml")
	w, err := NewWatcher(path, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if w.Path() != path {
		t.Errorf("Path() = %q, want %q", w.Path(), path)
	}
	if err := w.Watch(); err == nil {
		t.Error("Watch should fail when the directory does not exist")
	}
}
