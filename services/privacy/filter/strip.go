// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package filter

import (
	"github.com/AleutianAI/privacyguard/services/privacy"
	"github.com/AleutianAI/privacyguard/services/privacy/patterns"
)

// stripSensitive walks v and removes every map entry whose key contains one
// of keywords or whose value looks sensitive by content.
//
// Description:
//
//	Maps: an entry is dropped when its lowercased key contains any keyword,
//	or when its value is a sensitive scalar. Otherwise the key is kept with
//	its recursively stripped value.
//
//	Arrays: elements are stripped recursively. Elements that reduce to nil
//	(including sensitive scalars and original nulls) are dropped.
//
//	Scalars are returned unchanged; sensitive scalars are dropped by the
//	enclosing container. A sensitive scalar at the root reduces to nil.
//
//	The result never shares containers with v.
//
// Inputs:
//   - lib: Pattern tables.
//   - v: The value to strip.
//   - keywords: Lowercase field-name keywords.
//
// Outputs:
//   - privacy.Value: The stripped copy.
func stripSensitive(lib *patterns.Library, v privacy.Value, keywords []string) privacy.Value {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			if patterns.ContainsAny(k, keywords) {
				continue
			}
			if lib.ValueLooksSensitive(child) {
				continue
			}
			out[k] = stripSensitive(lib, child, keywords)
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			if lib.ValueLooksSensitive(item) {
				continue
			}
			stripped := stripSensitive(lib, item, keywords)
			if stripped == nil {
				continue
			}
			out = append(out, stripped)
		}
		return out
	default:
		if lib.ValueLooksSensitive(v) {
			return nil
		}
		return privacy.Clone(v)
	}
}

// stripRecord applies stripSensitive to a top-level record.
func stripRecord(lib *patterns.Library, r privacy.Record, keywords []string) privacy.Record {
	out, _ := stripSensitive(lib, r, keywords).(map[string]any)
	if out == nil {
		return privacy.Record{}
	}
	return out
}

// dropKeys walks v and removes every map entry whose key contains one of
// keywords, without any content inspection. Used by the settings pipeline
// for location and salary categories.
func dropKeys(v privacy.Value, keywords []string) privacy.Value {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			if patterns.ContainsAny(k, keywords) {
				continue
			}
			out[k] = dropKeys(child, keywords)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = dropKeys(item, keywords)
		}
		return out
	default:
		return privacy.Clone(v)
	}
}

func dropKeysRecord(r privacy.Record, keywords []string) privacy.Record {
	out, _ := dropKeys(r, keywords).(map[string]any)
	if out == nil {
		return privacy.Record{}
	}
	return out
}
