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
	"sort"
	"strconv"
	"strings"

	"github.com/AleutianAI/privacyguard/services/privacy"
	"github.com/AleutianAI/privacyguard/services/privacy/patterns"
)

// settingsStep is one stage of the settings pipeline. Each step receives a
// record it may not modify and returns a new one.
type settingsStep func(f *PrivacyFilter, rec privacy.Record, s *privacy.UserPrivacySettings) privacy.Record

// settingsPipeline runs in this exact order. The business card short
// circuit and the final generic strip are handled by applySettings.
var settingsPipeline = []settingsStep{
	restrictContact,
	hideLocation,
	hideCurrentCompany,
	hideSalary,
	hideEducationDetails,
	applyCustomRules,
}

// applySettings runs the settings-driven professional pipeline.
//
// Description:
//
//	 1. business_card_mode: the business card view, nothing else runs.
//	 2. show_contact_info=false: contact reduced to the restricted allow-list
//	    plus a non-personal email.
//	 3. show_location=false: location keys removed anywhere.
//	 4. show_current_company=false: company removed from ongoing positions.
//	 5. show_salary_range=false: salary keys removed anywhere.
//	 6. show_education_details=false: gpa/grades/thesis removed per entry.
//	 7. custom_privacy_rules, in sorted path order.
//	 8. generic strip.
//
//	Every step works on its own deep copy.
func (f *PrivacyFilter) applySettings(rec privacy.Record, s *privacy.UserPrivacySettings) privacy.Record {
	if s.BusinessCardMode {
		return f.BusinessCard(rec)
	}

	out := privacy.CloneRecord(rec)
	if out == nil {
		out = privacy.Record{}
	}
	for _, step := range settingsPipeline {
		out = step(f, out, s)
	}
	return f.genericStrip(out)
}

func restrictContact(f *PrivacyFilter, rec privacy.Record, s *privacy.UserPrivacySettings) privacy.Record {
	if s.ShowContactInfo {
		return rec
	}
	contact, ok := privacy.AsRecord(rec["contact"])
	if !ok {
		return rec
	}

	out := privacy.CloneRecord(rec)
	restricted := pickKeys(contact, f.lib.RestrictedContactFields())
	if email, ok := contact["email"].(string); ok && !f.lib.HasPersonalMarker(email) {
		restricted["email"] = email
	}
	out["contact"] = restricted
	return out
}

func hideLocation(f *PrivacyFilter, rec privacy.Record, s *privacy.UserPrivacySettings) privacy.Record {
	if s.ShowLocation {
		return rec
	}
	return dropKeysRecord(rec, f.lib.Keywords(patterns.KeywordsLocation))
}

// hideCurrentCompany drops company from every experience entry whose
// end_date is missing, null, or a current marker. position and description
// stay.
func hideCurrentCompany(f *PrivacyFilter, rec privacy.Record, s *privacy.UserPrivacySettings) privacy.Record {
	if s.ShowCurrentCompany {
		return rec
	}
	if _, ok := privacy.AsList(rec["experience"]); !ok {
		return rec
	}

	out := privacy.CloneRecord(rec)
	experience, _ := privacy.AsList(out["experience"])
	for _, item := range experience {
		entry, ok := privacy.AsRecord(item)
		if !ok {
			continue
		}
		if f.lib.IsCurrentEndDate(entry["end_date"]) {
			delete(entry, "company")
		}
	}
	return out
}

func hideSalary(f *PrivacyFilter, rec privacy.Record, s *privacy.UserPrivacySettings) privacy.Record {
	if s.ShowSalaryRange {
		return rec
	}
	return dropKeysRecord(rec, f.lib.Keywords(patterns.KeywordsSalary))
}

func hideEducationDetails(f *PrivacyFilter, rec privacy.Record, s *privacy.UserPrivacySettings) privacy.Record {
	if s.ShowEducationDetails {
		return rec
	}
	if _, ok := privacy.AsList(rec["education"]); !ok {
		return rec
	}

	out := privacy.CloneRecord(rec)
	education, _ := privacy.AsList(out["education"])
	private := f.lib.EducationPrivateFields()
	for _, item := range education {
		entry, ok := privacy.AsRecord(item)
		if !ok {
			continue
		}
		for _, field := range private {
			delete(entry, field)
		}
	}
	return out
}

// applyCustomRules applies per-path hide/redact overrides.
//
// Description:
//
//	Paths are applied in sorted order so that the result does not depend on
//	map iteration. Paths that do not resolve and actions other than
//	"hide"/"redact" are ignored.
func applyCustomRules(_ *PrivacyFilter, rec privacy.Record, s *privacy.UserPrivacySettings) privacy.Record {
	if len(s.CustomPrivacyRules) == 0 {
		return rec
	}

	paths := make([]string, 0, len(s.CustomPrivacyRules))
	for p := range s.CustomPrivacyRules {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := privacy.CloneRecord(rec)
	for _, p := range paths {
		action := strings.ToLower(strings.TrimSpace(s.CustomPrivacyRules[p]))
		if action != privacy.RuleHide && action != privacy.RuleRedact {
			continue
		}
		applyRule(out, strings.Split(p, "."), action)
	}
	return out
}

// applyRule resolves segments against root and applies action to the
// addressed node in place. root must already be a private copy.
func applyRule(root privacy.Record, segments []string, action string) {
	if len(segments) == 0 {
		return
	}

	var parent privacy.Value = root
	var grandparent privacy.Value
	var parentKey string

	last := len(segments) - 1
	for _, seg := range segments[:last] {
		child, ok := descend(parent, seg)
		if !ok {
			return
		}
		grandparent, parentKey = parent, seg
		parent = child
	}

	leaf := segments[last]
	switch node := parent.(type) {
	case map[string]any:
		if _, ok := node[leaf]; !ok {
			return
		}
		if action == privacy.RuleHide {
			delete(node, leaf)
		} else {
			node[leaf] = privacy.RedactedPlaceholder
		}
	case []any:
		idx, ok := index(node, leaf)
		if !ok {
			return
		}
		if action == privacy.RuleRedact {
			node[idx] = privacy.RedactedPlaceholder
			return
		}
		// Removing an element reallocates the slice, so the new slice has
		// to be written back into whatever holds it.
		shrunk := append(append([]any{}, node[:idx]...), node[idx+1:]...)
		setChild(grandparent, parentKey, shrunk)
	}
}

func descend(v privacy.Value, seg string) (privacy.Value, bool) {
	switch node := v.(type) {
	case map[string]any:
		child, ok := node[seg]
		return child, ok
	case []any:
		idx, ok := index(node, seg)
		if !ok {
			return nil, false
		}
		return node[idx], true
	default:
		return nil, false
	}
}

func setChild(container privacy.Value, seg string, child privacy.Value) {
	switch node := container.(type) {
	case map[string]any:
		node[seg] = child
	case []any:
		if idx, ok := index(node, seg); ok {
			node[idx] = child
		}
	}
}

func index(list []any, seg string) (int, bool) {
	idx, err := strconv.Atoi(seg)
	if err != nil || idx < 0 || idx >= len(list) {
		return 0, false
	}
	return idx, true
}
