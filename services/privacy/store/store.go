// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists profiles, endpoint payloads and privacy settings.
//
// Values are stored as JSON under versioned key prefixes:
//
//	profiles/v1/{username}
//	settings/v1/{username}
//	endpoints/v1/{username}/{endpoint}
//
// Keys are built only from identifiers that already passed the input
// validator, so they never contain a separator.
package store

import (
	"context"
	"errors"

	"github.com/AleutianAI/privacyguard/services/privacy"
)

// ErrNotFound is returned when no value is stored under the requested key.
var ErrNotFound = errors.New("store: not found")

// ErrInvalidKey is returned for an empty identifier.
var ErrInvalidKey = errors.New("store: invalid key")

const (
	profilePrefix  = "profiles/v1/"
	settingsPrefix = "settings/v1/"
	endpointPrefix = "endpoints/v1/"
)

// ProfileStore is the persistence contract used by the HTTP API.
//
// Thread Safety: Implementations must be safe for concurrent use.
type ProfileStore interface {
	GetProfile(ctx context.Context, username string) (privacy.Record, error)
	PutProfile(ctx context.Context, username string, rec privacy.Record) error
	GetSettings(ctx context.Context, username string) (*privacy.UserPrivacySettings, error)
	PutSettings(ctx context.Context, username string, settings *privacy.UserPrivacySettings) error
	GetEndpoint(ctx context.Context, username, endpoint string) (privacy.Record, error)
	PutEndpoint(ctx context.Context, username, endpoint string, rec privacy.Record) error
	ListEndpoints(ctx context.Context, username string) ([]string, error)

	// DeleteProfile removes the profile, its settings and every endpoint
	// payload of the user.
	DeleteProfile(ctx context.Context, username string) error
}

func profileKey(username string) []byte  { return []byte(profilePrefix + username) }
func settingsKey(username string) []byte { return []byte(settingsPrefix + username) }

func endpointUserPrefix(username string) []byte {
	return []byte(endpointPrefix + username + "/")
}

func endpointKey(username, endpoint string) []byte {
	return []byte(endpointPrefix + username + "/" + endpoint)
}
