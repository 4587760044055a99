// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package filter produces level-appropriate views of profile records.
//
// Every level ends with the generic strip, so a key or value that is
// generically sensitive can never reach any audience, whatever the
// level-specific logic in front of it does.
//
// Thread Safety:
//
//	*PrivacyFilter is stateless beyond its immutable pattern library and is
//	safe for concurrent use.
package filter

import (
	"github.com/AleutianAI/privacyguard/services/privacy"
	"github.com/AleutianAI/privacyguard/services/privacy/patterns"
)

// MaxBusinessCardSkills caps skills.technical on a business card.
const MaxBusinessCardSkills = 5

// PrivacyFilter transforms records into privacy-safe views.
//
// Thread Safety: Safe for concurrent use.
type PrivacyFilter struct {
	lib *patterns.Library
}

// New creates a PrivacyFilter backed by the given pattern library.
//
// Inputs:
//   - lib: Compiled pattern tables. Must not be nil.
//
// Outputs:
//   - *PrivacyFilter: The filter.
func New(lib *patterns.Library) *PrivacyFilter {
	return &PrivacyFilter{lib: lib}
}

// Filter returns the view of rec appropriate for level.
//
// Description:
//
//	Dispatch order:
//	  1. level "none" with authenticated=true: an exact copy of rec.
//	  2. settings.business_card_mode: the business card view at any level.
//	  3. business_card: name/title/company/position/contact/skills only.
//	  4. professional: settings pipeline when settings are present,
//	     otherwise the default professional exclusions.
//	  5. ai_safe: professional, then the AI exclusions.
//	  6. public_full, unauthenticated "none", and anything unrecognized:
//	     the generic strip only.
//
//	Every branch except (1) finishes with the generic strip.
//
// Inputs:
//   - rec: The record to filter. Never modified.
//   - level: The requested level.
//   - settings: Optional per-user settings. May be nil.
//   - authenticated: Whether the caller owns the record.
//
// Outputs:
//   - privacy.Record: A new record. Never nil.
func (f *PrivacyFilter) Filter(rec privacy.Record, level privacy.Level, settings *privacy.UserPrivacySettings, authenticated bool) privacy.Record {
	if level == privacy.LevelNone && authenticated {
		out := privacy.CloneRecord(rec)
		if out == nil {
			out = privacy.Record{}
		}
		return out
	}

	if settings != nil && settings.BusinessCardMode {
		return f.BusinessCard(rec)
	}

	switch level {
	case privacy.LevelBusinessCard:
		return f.BusinessCard(rec)
	case privacy.LevelProfessional:
		return f.Professional(rec, settings)
	case privacy.LevelAISafe:
		return f.AISafe(rec, settings)
	default:
		return f.PublicFull(rec)
	}
}

// PublicFull applies only the generic strip.
func (f *PrivacyFilter) PublicFull(rec privacy.Record) privacy.Record {
	return f.genericStrip(rec)
}

// Professional returns the professional view.
//
// Description:
//
//	With settings, runs the ordered settings pipeline (see applySettings).
//	Without settings, strips the professional exclusion keywords and then
//	applies the generic strip.
func (f *PrivacyFilter) Professional(rec privacy.Record, settings *privacy.UserPrivacySettings) privacy.Record {
	if settings != nil {
		return f.applySettings(rec, settings)
	}
	out := stripRecord(f.lib, rec, f.lib.Keywords(patterns.KeywordsProfessional))
	return f.genericStrip(out)
}

// AISafe returns the professional view with the AI exclusion keywords
// stripped on top, followed by the generic strip.
func (f *PrivacyFilter) AISafe(rec privacy.Record, settings *privacy.UserPrivacySettings) privacy.Record {
	out := f.Professional(rec, settings)
	out = stripRecord(f.lib, out, f.lib.Keywords(patterns.KeywordsAI))
	return f.genericStrip(out)
}

// BusinessCard builds the minimal card view.
//
// Description:
//
//	Output keys, each only when available: name, title, company, position,
//	contact, skills. company and position come from experience[0] and fall
//	back to top-level keys of the same name, which keeps the view stable
//	when it is filtered again. contact keeps only the business card
//	allow-list and is omitted when nothing survives the generic strip.
//	skills.technical is stripped, then truncated to MaxBusinessCardSkills.
func (f *PrivacyFilter) BusinessCard(rec privacy.Record) privacy.Record {
	card := privacy.Record{}

	copyIfPresent(card, rec, "name")
	copyIfPresent(card, rec, "title")

	var current privacy.Record
	if experience, ok := privacy.AsList(rec["experience"]); ok && len(experience) > 0 {
		current, _ = privacy.AsRecord(experience[0])
	}
	for _, key := range []string{"company", "position"} {
		if v, ok := current[key]; ok && v != nil {
			card[key] = privacy.Clone(v)
			continue
		}
		copyIfPresent(card, rec, key)
	}

	if contact, ok := privacy.AsRecord(rec["contact"]); ok {
		allowed := f.genericStrip(pickKeys(contact, f.lib.BusinessCardContactFields()))
		if len(allowed) > 0 {
			card["contact"] = allowed
		}
	}

	if skills, ok := rec["skills"]; ok && skills != nil {
		// Strip before truncating so a dropped entry frees its slot.
		stripped := stripSensitive(f.lib, skills, f.lib.Keywords(patterns.KeywordsGeneric))
		if stripped != nil {
			card["skills"] = truncateTechnicalSkills(stripped)
		}
	}

	return f.genericStrip(card)
}

// genericStrip is the mandatory final pass for every level.
func (f *PrivacyFilter) genericStrip(rec privacy.Record) privacy.Record {
	return stripRecord(f.lib, rec, f.lib.Keywords(patterns.KeywordsGeneric))
}

// =============================================================================
// Helpers
// =============================================================================

func copyIfPresent(dst, src privacy.Record, key string) {
	if v, ok := src[key]; ok && v != nil {
		dst[key] = privacy.Clone(v)
	}
}

// pickKeys returns a new record with only the listed keys of src.
func pickKeys(src privacy.Record, keys []string) privacy.Record {
	out := privacy.Record{}
	for _, k := range keys {
		if v, ok := src[k]; ok && v != nil {
			out[k] = privacy.Clone(v)
		}
	}
	return out
}

func truncateTechnicalSkills(skills privacy.Value) privacy.Value {
	cloned := privacy.Clone(skills)
	m, ok := privacy.AsRecord(cloned)
	if !ok {
		return cloned
	}
	if technical, ok := privacy.AsList(m["technical"]); ok && len(technical) > MaxBusinessCardSkills {
		m["technical"] = technical[:MaxBusinessCardSkills]
	}
	return m
}
