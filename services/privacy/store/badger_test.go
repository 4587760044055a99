// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/privacyguard/services/privacy"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := OpenBadger(BadgerConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBadgerStore_ProfileRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	assert.True(t, s.InMemory())

	rec := privacy.Record{
		"name":   "Jane",
		"skills": []any{"go", "sql"},
		"salary": map[string]any{"min": 150000},
	}
	require.NoError(t, s.PutProfile(ctx, "jane", rec))

	got, err := s.GetProfile(ctx, "jane")
	require.NoError(t, err)
	assert.Equal(t, "Jane", got["name"])
	assert.Equal(t, []any{"go", "sql"}, got["skills"])
	assert.Equal(t, json.Number("150000"), got["salary"].(map[string]any)["min"])
}

func TestBadgerStore_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetProfile(ctx, "nobody")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.GetSettings(ctx, "nobody")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.GetEndpoint(ctx, "nobody", "projects")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestBadgerStore_InvalidKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetProfile(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, s.PutEndpoint(ctx, "jane", "", privacy.Record{}), ErrInvalidKey)
	assert.ErrorIs(t, s.DeleteProfile(ctx, ""), ErrInvalidKey)
}

func TestBadgerStore_SettingsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := &privacy.UserPrivacySettings{
		ShowContactInfo:    true,
		AIAssistantAccess:  false,
		BusinessCardMode:   true,
		CustomPrivacyRules: map[string]string{"contact.website": "redact"},
	}
	require.NoError(t, s.PutSettings(ctx, "jane", in))

	got, err := s.GetSettings(ctx, "jane")
	require.NoError(t, err)
	assert.Equal(t, in, got)

	assert.Error(t, s.PutSettings(ctx, "jane", nil))
}

func TestBadgerStore_Endpoints(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutEndpoint(ctx, "jane", "projects", privacy.Record{"items": []any{"a"}}))
	require.NoError(t, s.PutEndpoint(ctx, "jane", "experience", privacy.Record{"items": []any{"b"}}))
	require.NoError(t, s.PutEndpoint(ctx, "janet", "projects", privacy.Record{"items": []any{"c"}}))

	got, err := s.GetEndpoint(ctx, "jane", "projects")
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, got["items"])

	names, err := s.ListEndpoints(ctx, "jane")
	require.NoError(t, err)
	assert.Equal(t, []string{"experience", "projects"}, names, "prefix must not leak into janet's keys")
}

func TestBadgerStore_DeleteProfileCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutProfile(ctx, "jane", privacy.Record{"name": "Jane"}))
	require.NoError(t, s.PutSettings(ctx, "jane", privacy.ShowAll()))
	require.NoError(t, s.PutEndpoint(ctx, "jane", "projects", privacy.Record{}))
	require.NoError(t, s.PutProfile(ctx, "janet", privacy.Record{"name": "Janet"}))

	require.NoError(t, s.DeleteProfile(ctx, "jane"))
	require.NoError(t, s.DeleteProfile(ctx, "jane"), "deleting twice is not an error")

	_, err := s.GetProfile(ctx, "jane")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetSettings(ctx, "jane")
	assert.ErrorIs(t, err, ErrNotFound)
	names, err := s.ListEndpoints(ctx, "jane")
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = s.GetProfile(ctx, "janet")
	assert.NoError(t, err)
}

func TestBadgerStore_CancelledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.PutProfile(ctx, "jane", privacy.Record{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBadgerStore_PersistentDir(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := DefaultBadgerConfig(dir)
	cfg.GCInterval = 0
	s, err := OpenBadger(cfg)
	require.NoError(t, err)
	assert.False(t, s.InMemory())
	require.NoError(t, s.PutProfile(ctx, "jane", privacy.Record{"name": "Jane"}))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "Close is idempotent")

	s, err = OpenBadger(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	got, err := s.GetProfile(ctx, "jane")
	require.NoError(t, err)
	assert.Equal(t, "Jane", got["name"])
}
