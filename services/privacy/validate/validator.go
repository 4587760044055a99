// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validate checks user-supplied identifiers before they reach any
// data lookup.
//
// The dangerous-pattern check is a plain substring test on the lowercased
// input with no word boundaries. Trailing delimiters in the table are what
// separate "admin/secret" (blocked) from "administration" (allowed).
package validate

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/privacyguard/services/privacy/patterns"
)

// MaxIdentifierLength is the maximum length of a username or endpoint name.
const MaxIdentifierLength = 50

// Field names used in messages for the two identifier kinds.
const (
	FieldUsername = "username"
	FieldEndpoint = "endpoint_name"
)

// identifierTags runs the format check before the length check.
var identifierTags = fmt.Sprintf("identifier,max=%d", MaxIdentifierLength)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// InputValidator validates route parameters against the dangerous-pattern
// table and the identifier allow-list.
//
// Thread Safety: Safe for concurrent use. validator.Validate caches struct
// metadata internally and is documented as safe for concurrent use.
type InputValidator struct {
	lib      *patterns.Library
	validate *validator.Validate
}

// New creates an InputValidator.
//
// Inputs:
//   - lib: Compiled pattern tables. Must not be nil.
//
// Outputs:
//   - *InputValidator: The validator.
func New(lib *patterns.Library) *InputValidator {
	v := validator.New()
	mustRegisterValidation(v, "identifier", validateIdentifier)
	return &InputValidator{lib: lib, validate: v}
}

// mustRegisterValidation panics when a custom tag cannot be registered.
// The tags are compiled in, so a failure is a programming error.
func mustRegisterValidation(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validate: register %q: %v", tag, err))
	}
}

func validateIdentifier(fl validator.FieldLevel) bool {
	return identifierPattern.MatchString(fl.Field().String())
}

// Validate checks value for emptiness and dangerous patterns.
//
// Description:
//
//	Fails with ErrEmptyValue when value is empty and allowEmpty is false.
//	Otherwise checks the dangerous-pattern table in order against the
//	lowercased value and fails on the first hit.
//
// Inputs:
//   - value: The raw parameter.
//   - field: Field name used in the message.
//   - allowEmpty: Whether "" is acceptable.
//
// Outputs:
//   - error: nil or *Error.
func (v *InputValidator) Validate(value, field string, allowEmpty bool) error {
	if value == "" {
		if allowEmpty {
			return nil
		}
		return emptyError(field)
	}
	if pattern, found := v.lib.FirstDangerousSubstring(value); found {
		return dangerousError(field, pattern)
	}
	return nil
}

// ValidateUsername runs Validate and then the identifier format and length
// checks, with field name "username".
func (v *InputValidator) ValidateUsername(value string) error {
	return v.ValidateIdentifier(value, FieldUsername)
}

// ValidateEndpointName is ValidateUsername for endpoint names.
func (v *InputValidator) ValidateEndpointName(value string) error {
	return v.ValidateIdentifier(value, FieldEndpoint)
}

// ValidateIdentifier runs Validate (empty not allowed), then checks
// ^[A-Za-z0-9_-]+$, then length <= MaxIdentifierLength.
func (v *InputValidator) ValidateIdentifier(value, field string) error {
	if err := v.Validate(value, field, false); err != nil {
		return err
	}

	err := v.validate.Var(value, identifierTags)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 && fieldErrs[0].Tag() == "max" {
		return lengthError(field)
	}
	return formatError(field)
}

// FindViolations returns every dangerous pattern contained in value, in
// table order. It never fails.
func (v *InputValidator) FindViolations(value string) []string {
	return v.lib.FindDangerousSubstrings(value)
}

// IsSafe reports whether value contains no dangerous pattern.
func (v *InputValidator) IsSafe(value string) bool {
	_, found := v.lib.FirstDangerousSubstring(value)
	return !found
}
