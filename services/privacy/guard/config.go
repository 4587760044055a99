// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package guard

import (
	"os"
	"strconv"
	"strings"

	"github.com/AleutianAI/privacyguard/services/privacy"
)

// Config holds all configuration for the view guard and its collaborators.
//
// Description:
//
//	Loaded from environment variables at startup via LoadConfig(). All
//	fields have safe defaults: business card views, masking on, audit on.
//
// Thread Safety: Config is a value type. Safe to copy and share after loading.
type Config struct {
	// DefaultLevel is used when a request does not name a level.
	// Env: PRIVACY_DEFAULT_LEVEL (default: "business_card")
	DefaultLevel privacy.Level

	// MaskingEnabled controls the second redaction pass after filtering.
	// Env: PRIVACY_MASKING_ENABLED (default: "true")
	MaskingEnabled bool

	// AuditEnabled controls whether view and validation audit logging is active.
	// Env: PRIVACY_AUDIT_ENABLED (default: "true")
	AuditEnabled bool

	// AuditHashContent controls whether the rendered view is SHA256-hashed
	// in audit logs.
	// Env: PRIVACY_AUDIT_HASH_CONTENT (default: "true")
	AuditHashContent bool

	// RateLimitPerMin is the per-client request budget for the HTTP API.
	// Zero disables rate limiting.
	// Env: PRIVACY_RATE_LIMIT_PER_MIN (default: 120)
	RateLimitPerMin int

	// StoreDir is the BadgerDB directory. Empty means in-memory.
	// Env: PRIVACY_STORE_DIR (default: "")
	StoreDir string

	// PatternsFile optionally replaces the embedded pattern tables.
	// Env: PRIVACY_PATTERNS_FILE (default: "")
	PatternsFile string
}

// LoadConfig reads guard configuration from environment variables.
//
// Description:
//
//	Reads all PRIVACY_* environment variables. Malformed values fall back
//	to the default. An unrecognized PRIVACY_DEFAULT_LEVEL, or "none",
//	falls back to business_card; the escape hatch is never a default.
//
// Outputs:
//   - *Config: Fully populated configuration.
func LoadConfig() *Config {
	level := privacy.LevelBusinessCard
	if raw := envString("PRIVACY_DEFAULT_LEVEL", ""); raw != "" {
		parsed := privacy.Level(strings.ToLower(strings.TrimSpace(raw)))
		if parsed.Known() && parsed != privacy.LevelNone {
			level = parsed
		}
	}

	return &Config{
		DefaultLevel:     level,
		MaskingEnabled:   envBool("PRIVACY_MASKING_ENABLED", true),
		AuditEnabled:     envBool("PRIVACY_AUDIT_ENABLED", true),
		AuditHashContent: envBool("PRIVACY_AUDIT_HASH_CONTENT", true),
		RateLimitPerMin:  envInt("PRIVACY_RATE_LIMIT_PER_MIN", 120),
		StoreDir:         envString("PRIVACY_STORE_DIR", ""),
		PatternsFile:     envString("PRIVACY_PATTERNS_FILE", ""),
	}
}

// envBool reads a boolean environment variable with a default value.
func envBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

// envInt reads an integer environment variable with a default value.
// Negative values are treated as malformed.
func envInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}

func envString(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}
