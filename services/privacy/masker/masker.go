// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package masker is the second redaction pass applied to filtered output.
//
// The masker has its own per-level keyword table, independent of the
// filter's. Keys that match are replaced wholesale; everything else is
// walked and string leaves are scanned in place with the content patterns
// that belong to the active level's keywords.
package masker

import (
	"regexp"
	"strings"

	"github.com/AleutianAI/privacyguard/services/privacy"
	"github.com/AleutianAI/privacyguard/services/privacy/patterns"
)

// Replacement literals.
const (
	// RedactedValue replaces key-matched values and content matches.
	RedactedValue = "***REDACTED***"

	// MaskedValue replaces email-keyed values that are not addresses.
	MaskedValue = "***MASKED***"
)

// SensitiveDataMasker replaces sensitive values in already-filtered records.
//
// Thread Safety: Safe for concurrent use. Per-level tables are resolved once
// in New and never modified.
type SensitiveDataMasker struct {
	levels   map[privacy.Level]levelTable
	fallback levelTable
}

type levelTable struct {
	keywords []string
	content  []*regexp.Regexp
}

// New builds a masker from the library's masking tables.
//
// Inputs:
//   - lib: Compiled pattern tables. Must not be nil.
//
// Outputs:
//   - *SensitiveDataMasker: The masker.
func New(lib *patterns.Library) *SensitiveDataMasker {
	m := &SensitiveDataMasker{levels: make(map[privacy.Level]levelTable, len(privacy.Levels))}
	for _, level := range privacy.Levels {
		words, _ := lib.MaskingKeywords(level.String())
		m.levels[level] = levelTable{
			keywords: words,
			content:  lib.MaskingContentPatterns(words),
		}
	}
	m.fallback = m.levels[privacy.LevelPublicFull]
	return m
}

// Mask returns a copy of rec with the level's sensitive values replaced.
//
// Description:
//
//	For each map entry whose key contains one of the level's keywords:
//	  - key contains "password" or "secret": "[REDACTED]"
//	  - key contains "email": local part starred out when the value holds
//	    an "@", otherwise "***MASKED***"
//	  - anything else: "***REDACTED***"
//	Other entries are walked recursively, and every string leaf has the
//	level's content patterns replaced with "***REDACTED***".
//
//	Level "none" masks nothing. Unknown levels use the public_full table.
//
// Inputs:
//   - rec: Filtered record. Never modified.
//   - level: The level the record was filtered at.
//
// Outputs:
//   - privacy.Record: A new record. Never nil.
func (m *SensitiveDataMasker) Mask(rec privacy.Record, level privacy.Level) privacy.Record {
	if level == privacy.LevelNone {
		out := privacy.CloneRecord(rec)
		if out == nil {
			out = privacy.Record{}
		}
		return out
	}

	table, ok := m.levels[level]
	if !ok {
		table = m.fallback
	}
	out, _ := table.mask(rec).(map[string]any)
	if out == nil {
		out = privacy.Record{}
	}
	return out
}

// Keywords returns the masker keyword list used for a level.
func (m *SensitiveDataMasker) Keywords(level privacy.Level) []string {
	table, ok := m.levels[level]
	if !ok {
		table = m.fallback
	}
	return append([]string(nil), table.keywords...)
}

func (t levelTable) mask(v privacy.Value) privacy.Value {
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, child := range node {
			if patterns.ContainsAny(k, t.keywords) {
				out[k] = replacementFor(k, child)
				continue
			}
			out[k] = t.mask(child)
		}
		return out
	case []any:
		out := make([]any, len(node))
		for i, item := range node {
			out[i] = t.mask(item)
		}
		return out
	case string:
		for _, re := range t.content {
			node = re.ReplaceAllString(node, RedactedValue)
		}
		return node
	default:
		return privacy.Clone(v)
	}
}

func replacementFor(key string, v privacy.Value) privacy.Value {
	lower := strings.ToLower(key)
	switch {
	case strings.Contains(lower, "password"), strings.Contains(lower, "secret"):
		return privacy.RedactedPlaceholder
	case strings.Contains(lower, "email"):
		if s, ok := v.(string); ok && strings.Contains(s, "@") {
			return MaskEmail(s)
		}
		return MaskedValue
	default:
		return RedactedValue
	}
}

// MaskEmail replaces the local part of an address with one "*" per
// character and keeps "@" and the domain. The split is at the first "@".
func MaskEmail(s string) string {
	local, domain, found := strings.Cut(s, "@")
	if !found {
		return MaskedValue
	}
	return strings.Repeat("*", len([]rune(local))) + "@" + domain
}
