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
	"strings"
	"unicode"
)

// ContainsAny reports whether the lowercased name contains any keyword.
// Keywords must already be lowercase.
func ContainsAny(name string, keywords []string) bool {
	lower := strings.ToLower(name)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// FieldNameMatches reports whether a field name belongs to a keyword group.
//
// Description:
//
//	Case-insensitive substring match with no word boundaries, so
//	"emergency" matches "Emergency_Contact". Over-matching is accepted in
//	exchange for never missing a compound key.
//
// Inputs:
//   - name: The map key to test.
//   - set: The keyword group.
//
// Outputs:
//   - bool: True if any keyword in the group is a substring of name.
func (l *Library) FieldNameMatches(name string, set KeywordSet) bool {
	return ContainsAny(name, l.keywords[set])
}

// ValueLooksSensitive reports whether a scalar value matches any content
// heuristic: phone number, SSN, credit card, API-key-shaped token, PEM
// private key header, secret token, or personal email.
//
// Description:
//
//	Only strings are inspected. Numbers, booleans, nil and containers are
//	never sensitive by content; containers are handled by recursion in
//	the caller.
//
// Inputs:
//   - v: Any record value.
//
// Outputs:
//   - bool: True if v is a string that matches a content heuristic.
func (l *Library) ValueLooksSensitive(v any) bool {
	s, ok := v.(string)
	if !ok || s == "" {
		return false
	}
	if l.IsPhoneNumber(s) {
		return true
	}
	for _, rule := range l.contentRules {
		if rule.Pattern.MatchString(s) {
			return true
		}
	}
	return l.IsPersonalEmail(s)
}

// IsPhoneNumber reports whether s has at least the configured number of
// digits and as a whole looks like a phone number.
func (l *Library) IsPhoneNumber(s string) bool {
	digits := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if digits < l.phoneMinDigits {
		return false
	}
	return l.phoneShape.MatchString(strings.TrimSpace(s))
}

// IsPersonalEmail reports whether s contains "@" together with a personal
// marker (personal, private, home).
func (l *Library) IsPersonalEmail(s string) bool {
	if !strings.Contains(s, "@") {
		return false
	}
	return l.HasPersonalMarker(s)
}

// HasPersonalMarker reports whether s contains a personal marker,
// case-insensitively.
func (l *Library) HasPersonalMarker(s string) bool {
	return ContainsAny(s, l.personalMarkers)
}

// IsCurrentEndDate reports whether an experience end_date denotes an
// ongoing position: nil, or one of the current-end markers.
func (l *Library) IsCurrentEndDate(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	s = strings.TrimSpace(s)
	for _, m := range l.currentEndMarkers {
		if strings.EqualFold(s, m) {
			return true
		}
	}
	return false
}

// FindDangerousSubstrings returns every dangerous pattern contained in the
// lowercased text, in table order. Used for reporting.
func (l *Library) FindDangerousSubstrings(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, p := range l.dangerous {
		if strings.Contains(lower, p) {
			found = append(found, p)
		}
	}
	return found
}

// FirstDangerousSubstring returns the first dangerous pattern, in table
// order, contained in the lowercased text.
func (l *Library) FirstDangerousSubstring(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, p := range l.dangerous {
		if strings.Contains(lower, p) {
			return p, true
		}
	}
	return "", false
}
