// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package patterns

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePatterns(t *testing.T, path, version string) {
	t.Helper()
	data := bytes.Replace(DefaultYAML(), []byte(`version: "2026.01"`), []byte(`version: "`+version+`"`), 1)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	writePatterns(t, path, "v1")

	reloaded := make(chan *Library, 4)
	w, err := NewWatcher(path, func(lib *Library) { reloaded <- lib }, &WatcherOptions{Debounce: 20 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)

	writePatterns(t, path, "v2")

	select {
	case lib := <-reloaded:
		assert.Equal(t, "v2", lib.Version())
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload after write")
	}
}

func TestWatcher_InvalidFileKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	writePatterns(t, path, "v1")

	reloaded := make(chan *Library, 4)
	failed := make(chan error, 4)
	w, err := NewWatcher(path, func(lib *Library) { reloaded <- lib }, &WatcherOptions{
		Debounce: 20 * time.Millisecond,
		OnError:  func(err error) { failed <- err },
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)

	require.NoError(t, os.WriteFile(path, []byte("keywords: [unterminated"), 0o600))

	select {
	case err := <-failed:
		assert.Error(t, err)
	case lib := <-reloaded:
		t.Fatalf("invalid file must not be delivered, got version %q", lib.Version())
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the failed reload")
	}
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patterns.yaml")
	writePatterns(t, path, "v1")

	reloaded := make(chan *Library, 4)
	w, err := NewWatcher(path, func(lib *Library) { reloaded <- lib }, &WatcherOptions{Debounce: 10 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1"), 0o600))

	select {
	case lib := <-reloaded:
		t.Fatalf("sibling write triggered reload of %q", lib.Version())
	case <-time.After(200 * time.Millisecond):
	}
}

func TestNewWatcher_RequiresCallback(t *testing.T) {
	_, err := NewWatcher("patterns.yaml", nil, nil)
	assert.Error(t, err)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	writePatterns(t, path, "v1")

	w, err := NewWatcher(path, func(*Library) {}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}
