// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package privacy holds the value and configuration types shared by the
// privacy filter, the sensitive data masker, and the HTTP layer.
//
// Records are schema-less JSON trees. A Record is a map of string keys to
// Values, and a Value is one of: string, number (json.Number, float64 or
// any Go integer), bool, nil, []any, or map[string]any. Every transform in
// the privacy packages is a pure function that switches on the dynamic type
// of a Value and builds new containers; no transform writes into its input.
//
// Thread Safety:
//
//	All exported functions are safe for concurrent use as long as each call
//	receives its own Record.
package privacy

import (
	"strings"
)

// Record is one stored entry's payload: a JSON object.
type Record = map[string]any

// Value is any node of a Record tree.
type Value = any

// =============================================================================
// Privacy Levels
// =============================================================================

// Level names a privacy policy controlling how much of a record is visible.
type Level string

const (
	// LevelBusinessCard shows a minimal contact card.
	LevelBusinessCard Level = "business_card"

	// LevelProfessional shows a professional profile without personal details.
	LevelProfessional Level = "professional"

	// LevelPublicFull shows everything except generically sensitive data.
	LevelPublicFull Level = "public_full"

	// LevelAISafe is the professional view with AI-exclusions applied on top.
	LevelAISafe Level = "ai_safe"

	// LevelNone disables filtering. Honoured only for authenticated owners.
	LevelNone Level = "none"
)

// Levels lists the closed set of filtering levels, most restrictive first.
// LevelNone is not included because it is an escape hatch, not a policy.
var Levels = []Level{LevelBusinessCard, LevelAISafe, LevelProfessional, LevelPublicFull}

// ParseLevel converts a caller-supplied level string into a Level.
//
// Description:
//
//	Matching is case-insensitive and ignores surrounding whitespace.
//	Unrecognized strings degrade to LevelPublicFull, the most permissive
//	non-"none" level, rather than failing.
//
// Inputs:
//   - s: The level string from a query parameter or request body.
//
// Outputs:
//   - Level: The parsed level.
func ParseLevel(s string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelBusinessCard:
		return LevelBusinessCard
	case LevelProfessional:
		return LevelProfessional
	case LevelPublicFull:
		return LevelPublicFull
	case LevelAISafe:
		return LevelAISafe
	case LevelNone:
		return LevelNone
	default:
		return LevelPublicFull
	}
}

// Known reports whether l is one of the five recognized level values.
func (l Level) Known() bool {
	switch l {
	case LevelBusinessCard, LevelProfessional, LevelPublicFull, LevelAISafe, LevelNone:
		return true
	default:
		return false
	}
}

// String returns the wire name of the level.
func (l Level) String() string {
	return string(l)
}

// =============================================================================
// User Privacy Settings
// =============================================================================

// Custom privacy rule actions.
const (
	// RuleHide deletes the addressed key.
	RuleHide = "hide"

	// RuleRedact replaces the addressed value with RedactedPlaceholder.
	RuleRedact = "redact"
)

// RedactedPlaceholder replaces values hidden by a "redact" rule or by the
// masker's credential branch.
const RedactedPlaceholder = "[REDACTED]"

// UserPrivacySettings are per-user overrides layered on top of the
// professional level.
//
// Description:
//
//	Each Show* flag is a no-op when true. A false flag removes the
//	corresponding category from the professional view. The zero value hides
//	every optional category, which is the safest default for settings that
//	were never saved.
//
// Thread Safety: UserPrivacySettings is a value type. Treat CustomPrivacyRules
// as read-only once the settings are shared.
type UserPrivacySettings struct {
	ShowContactInfo      bool `json:"show_contact_info"`
	ShowLocation         bool `json:"show_location"`
	ShowCurrentCompany   bool `json:"show_current_company"`
	ShowSalaryRange      bool `json:"show_salary_range"`
	ShowEducationDetails bool `json:"show_education_details"`
	ShowPersonalProjects bool `json:"show_personal_projects"`
	BusinessCardMode     bool `json:"business_card_mode"`
	AIAssistantAccess    bool `json:"ai_assistant_access"`

	// CustomPrivacyRules maps a dot-separated path (numeric segments index
	// arrays) to RuleHide or RuleRedact.
	CustomPrivacyRules map[string]string `json:"custom_privacy_rules,omitempty"`
}

// ShowAll returns settings with every category visible and no custom rules.
func ShowAll() *UserPrivacySettings {
	return &UserPrivacySettings{
		ShowContactInfo:      true,
		ShowLocation:         true,
		ShowCurrentCompany:   true,
		ShowSalaryRange:      true,
		ShowEducationDetails: true,
		ShowPersonalProjects: true,
		AIAssistantAccess:    true,
	}
}
