// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package patterns provides the immutable keyword and regex tables used by
// the privacy filter, the sensitive data masker, and the input validator.
//
// The tables are defined in patterns.yaml, embedded in the binary, and
// compiled once into a Library. A Library is never modified after Load
// returns, so one instance is shared by every request.
//
// Thread Safety:
//
//	*Library is safe for concurrent use.
package patterns

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Default Tables
// =============================================================================

//go:embed patterns.yaml
var defaultPatternsYAML []byte

// DefaultYAML returns a copy of the embedded pattern tables.
func DefaultYAML() []byte {
	return slices.Clone(defaultPatternsYAML)
}

// MaxYAMLFileSize bounds override files loaded from disk.
const MaxYAMLFileSize = 1 << 20

// DefaultPhoneMinDigits is used when the YAML omits content.phone.min_digits.
const DefaultPhoneMinDigits = 10

var tracer = otel.Tracer("aleutian.privacy.patterns")

// =============================================================================
// YAML Schema
// =============================================================================

type fileSchema struct {
	Version  string `yaml:"version"`
	Keywords struct {
		Generic             []string `yaml:"generic"`
		ProfessionalExclude []string `yaml:"professional_exclude"`
		AIExclude           []string `yaml:"ai_exclude"`
	} `yaml:"keywords"`
	Settings struct {
		Location          []string `yaml:"location"`
		Salary            []string `yaml:"salary"`
		EducationPrivate  []string `yaml:"education_private"`
		CurrentEndMarkers []string `yaml:"current_end_markers"`
	} `yaml:"settings"`
	Contact struct {
		BusinessCardAllow []string `yaml:"business_card_allow"`
		RestrictedAllow   []string `yaml:"restricted_allow"`
	} `yaml:"contact"`
	PersonalMarkers []string `yaml:"personal_markers"`
	Content         struct {
		Phone struct {
			Shape     string `yaml:"shape"`
			MinDigits int    `yaml:"min_digits"`
		} `yaml:"phone"`
		Rules []struct {
			Name  string `yaml:"name"`
			Regex string `yaml:"regex"`
		} `yaml:"rules"`
	} `yaml:"content"`
	Masking struct {
		Levels  map[string][]string `yaml:"levels"`
		Content map[string]string   `yaml:"content"`
	} `yaml:"masking"`
	DangerousPatterns []string `yaml:"dangerous_patterns"`
}

// maskingLevels must all be present in masking.levels.
var maskingLevels = []string{"business_card", "professional", "public_full", "ai_safe"}

// =============================================================================
// Library
// =============================================================================

// KeywordSet selects one of the field-name keyword groups.
type KeywordSet int

const (
	// KeywordsGeneric is the set stripped at every filtering level.
	KeywordsGeneric KeywordSet = iota

	// KeywordsProfessional is the default professional exclusion set.
	KeywordsProfessional

	// KeywordsAI is the AI assistant exclusion set.
	KeywordsAI

	// KeywordsLocation is stripped when show_location is false.
	KeywordsLocation

	// KeywordsSalary is stripped when show_salary_range is false.
	KeywordsSalary
)

// String returns the YAML group name of the set.
func (k KeywordSet) String() string {
	switch k {
	case KeywordsGeneric:
		return "generic"
	case KeywordsProfessional:
		return "professional_exclude"
	case KeywordsAI:
		return "ai_exclude"
	case KeywordsLocation:
		return "location"
	case KeywordsSalary:
		return "salary"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ContentRule is a named regex that marks a string value as sensitive.
type ContentRule struct {
	Name    string
	Pattern *regexp.Regexp
}

// Library is the compiled, immutable form of the pattern tables.
//
// Description:
//
//	Keyword lists are lowercased at load time so matching only needs to
//	lowercase the field name. Slices returned by accessors are copies.
//
// Thread Safety: Immutable after Load; safe for concurrent use.
type Library struct {
	version     string
	fingerprint string

	keywords map[KeywordSet][]string

	educationPrivate  []string
	currentEndMarkers []string

	businessCardContact []string
	restrictedContact   []string
	personalMarkers     []string

	phoneShape     *regexp.Regexp
	phoneMinDigits int
	contentRules   []ContentRule

	maskingLevels  map[string][]string
	maskingContent map[string]*regexp.Regexp

	dangerous []string
}

// Load parses and validates pattern tables from YAML bytes.
//
// Description:
//
//	Unmarshals the YAML, lowercases keyword lists, compiles every regex,
//	and checks that all required groups are present. The returned Library
//	is fully initialized and never modified afterwards.
//
// Inputs:
//   - ctx: Context for tracing.
//   - data: Raw YAML bytes.
//
// Outputs:
//   - *Library: The compiled tables.
//   - error: Non-nil if the YAML is malformed, too large, or incomplete.
func Load(ctx context.Context, data []byte) (*Library, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	_, span := tracer.Start(ctx, "patterns.Load")
	defer span.End()

	if len(data) == 0 {
		return nil, fmt.Errorf("patterns.Load: empty YAML data")
	}
	if len(data) > MaxYAMLFileSize {
		return nil, fmt.Errorf("patterns.Load: YAML data exceeds maximum size (%d > %d)", len(data), MaxYAMLFileSize)
	}

	var raw fileSchema
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("patterns.Load: parsing YAML: %w", err)
	}

	lib, err := compile(&raw)
	if err != nil {
		return nil, fmt.Errorf("patterns.Load: validation: %w", err)
	}
	sum := sha256.Sum256(data)
	lib.fingerprint = fmt.Sprintf("sha256:%x", sum)

	span.SetAttributes(
		attribute.String("version", lib.version),
		attribute.Int("generic_keywords", len(lib.keywords[KeywordsGeneric])),
		attribute.Int("content_rules", len(lib.contentRules)),
		attribute.Int("dangerous_patterns", len(lib.dangerous)),
	)

	slog.Info("privacy patterns loaded",
		slog.String("version", lib.version),
		slog.String("fingerprint", lib.fingerprint),
		slog.Int("generic_keywords", len(lib.keywords[KeywordsGeneric])),
		slog.Int("dangerous_patterns", len(lib.dangerous)),
	)

	return lib, nil
}

// LoadFile reads and compiles pattern tables from a YAML file on disk.
func LoadFile(ctx context.Context, path string) (*Library, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("patterns.LoadFile: %w", err)
	}
	if info.Size() > MaxYAMLFileSize {
		return nil, fmt.Errorf("patterns.LoadFile: %s exceeds maximum size (%d > %d)", path, info.Size(), MaxYAMLFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("patterns.LoadFile: %w", err)
	}
	return Load(ctx, data)
}

var (
	defaultOnce    sync.Once
	defaultLibrary *Library
	defaultErr     error
)

// Default returns the Library compiled from the embedded tables.
//
// Description:
//
//	Compiles on first call and caches the result for subsequent calls.
//
// Thread Safety: Safe for concurrent use via sync.Once.
func Default() (*Library, error) {
	defaultOnce.Do(func() {
		defaultLibrary, defaultErr = Load(context.Background(), defaultPatternsYAML)
	})
	return defaultLibrary, defaultErr
}

// MustDefault is Default for callers that cannot proceed without tables.
// It panics if the embedded YAML is invalid, which is a build defect.
func MustDefault() *Library {
	lib, err := Default()
	if err != nil {
		panic(err)
	}
	return lib
}

// compile validates the raw schema and builds the Library.
func compile(raw *fileSchema) (*Library, error) {
	lib := &Library{
		version: raw.Version,
		keywords: map[KeywordSet][]string{
			KeywordsGeneric:      lowerAll(raw.Keywords.Generic),
			KeywordsProfessional: lowerAll(raw.Keywords.ProfessionalExclude),
			KeywordsAI:           lowerAll(raw.Keywords.AIExclude),
			KeywordsLocation:     lowerAll(raw.Settings.Location),
			KeywordsSalary:       lowerAll(raw.Settings.Salary),
		},
		educationPrivate:    slices.Clone(raw.Settings.EducationPrivate),
		currentEndMarkers:   slices.Clone(raw.Settings.CurrentEndMarkers),
		businessCardContact: slices.Clone(raw.Contact.BusinessCardAllow),
		restrictedContact:   slices.Clone(raw.Contact.RestrictedAllow),
		personalMarkers:     lowerAll(raw.PersonalMarkers),
		phoneMinDigits:      raw.Content.Phone.MinDigits,
		maskingLevels:       make(map[string][]string, len(raw.Masking.Levels)),
		maskingContent:      make(map[string]*regexp.Regexp, len(raw.Masking.Content)),
		dangerous:           slices.Clone(raw.DangerousPatterns),
	}

	for set, words := range lib.keywords {
		if len(words) == 0 {
			return nil, fmt.Errorf("keyword group %s must not be empty", set)
		}
	}
	if len(lib.businessCardContact) == 0 {
		return nil, fmt.Errorf("contact.business_card_allow must not be empty")
	}
	if len(lib.personalMarkers) == 0 {
		return nil, fmt.Errorf("personal_markers must not be empty")
	}
	if len(lib.dangerous) == 0 {
		return nil, fmt.Errorf("dangerous_patterns must not be empty")
	}
	for i, p := range lib.dangerous {
		if p == "" {
			return nil, fmt.Errorf("dangerous_patterns[%d]: must not be empty", i)
		}
	}

	if lib.phoneMinDigits <= 0 {
		lib.phoneMinDigits = DefaultPhoneMinDigits
	}
	if raw.Content.Phone.Shape == "" {
		return nil, fmt.Errorf("content.phone.shape must not be empty")
	}
	shape, err := regexp.Compile(raw.Content.Phone.Shape)
	if err != nil {
		return nil, fmt.Errorf("content.phone.shape: %w", err)
	}
	lib.phoneShape = shape

	byName := make(map[string]*regexp.Regexp, len(raw.Content.Rules))
	for i, r := range raw.Content.Rules {
		if r.Name == "" {
			return nil, fmt.Errorf("content.rules[%d]: name must not be empty", i)
		}
		if _, dup := byName[r.Name]; dup {
			return nil, fmt.Errorf("content.rules[%d]: duplicate name %q", i, r.Name)
		}
		re, err := regexp.Compile(r.Regex)
		if err != nil {
			return nil, fmt.Errorf("content.rules[%d] (%s): %w", i, r.Name, err)
		}
		byName[r.Name] = re
		lib.contentRules = append(lib.contentRules, ContentRule{Name: r.Name, Pattern: re})
	}

	for _, level := range maskingLevels {
		words, ok := raw.Masking.Levels[level]
		if !ok {
			return nil, fmt.Errorf("masking.levels.%s is required", level)
		}
		lib.maskingLevels[level] = lowerAll(words)
	}
	for keyword, rule := range raw.Masking.Content {
		re, ok := byName[rule]
		if !ok {
			return nil, fmt.Errorf("masking.content.%s references unknown content rule %q", keyword, rule)
		}
		lib.maskingContent[strings.ToLower(keyword)] = re
	}

	return lib, nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// =============================================================================
// Accessors
// =============================================================================

// Version returns the version string declared in the YAML.
func (l *Library) Version() string { return l.version }

// Fingerprint returns the SHA256 of the YAML the library was built from.
func (l *Library) Fingerprint() string { return l.fingerprint }

// Keywords returns a copy of the given keyword group.
func (l *Library) Keywords(set KeywordSet) []string {
	return slices.Clone(l.keywords[set])
}

// EducationPrivateFields returns the education entry keys hidden when
// show_education_details is false.
func (l *Library) EducationPrivateFields() []string {
	return slices.Clone(l.educationPrivate)
}

// BusinessCardContactFields returns the contact keys kept on a business card.
func (l *Library) BusinessCardContactFields() []string {
	return slices.Clone(l.businessCardContact)
}

// RestrictedContactFields returns the contact keys kept when
// show_contact_info is false. Email is handled separately.
func (l *Library) RestrictedContactFields() []string {
	return slices.Clone(l.restrictedContact)
}

// MaskingKeywords returns the masker keyword list for a level name.
func (l *Library) MaskingKeywords(level string) ([]string, bool) {
	words, ok := l.maskingLevels[level]
	if !ok {
		return nil, false
	}
	return slices.Clone(words), true
}

// MaskingContentPatterns returns the content regexes that belong to the
// given masker keywords, in keyword order. Keywords without a content rule
// contribute nothing.
func (l *Library) MaskingContentPatterns(keywords []string) []*regexp.Regexp {
	var out []*regexp.Regexp
	for _, kw := range keywords {
		if re, ok := l.maskingContent[strings.ToLower(kw)]; ok {
			out = append(out, re)
		}
	}
	return out
}

// ContentRules returns the named content rules in declaration order.
func (l *Library) ContentRules() []ContentRule {
	return slices.Clone(l.contentRules)
}

// DangerousPatterns returns the ordered dangerous-substring table.
func (l *Library) DangerousPatterns() []string {
	return slices.Clone(l.dangerous)
}
