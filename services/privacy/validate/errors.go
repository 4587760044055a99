// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validate

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every *Error wraps exactly one of these.
var (
	// ErrEmptyValue indicates an empty value where one is required.
	ErrEmptyValue = errors.New("empty value")

	// ErrDangerousPattern indicates a known attack substring.
	ErrDangerousPattern = errors.New("dangerous pattern detected")

	// ErrFormatInvalid indicates characters outside the identifier allow-list.
	ErrFormatInvalid = errors.New("invalid format")

	// ErrLengthExceeded indicates an identifier longer than MaxIdentifierLength.
	ErrLengthExceeded = errors.New("length exceeded")
)

// SecurityViolation records the dangerous pattern found and the field it
// was found in.
type SecurityViolation struct {
	Pattern string `json:"pattern"`
	Field   string `json:"field"`
}

// Error is the single error type returned by the validator.
//
// Description:
//
//	Error() is the complete client-facing message and is safe to echo in an
//	HTTP 400 body. Kind is one of the sentinel errors and is reachable with
//	errors.Is. Violation is set only for ErrDangerousPattern.
type Error struct {
	Kind      error
	Field     string
	Violation *SecurityViolation
	msg       string
}

// Error returns the client-facing message.
func (e *Error) Error() string { return e.msg }

// Unwrap returns the sentinel kind.
func (e *Error) Unwrap() error { return e.Kind }

func emptyError(field string) *Error {
	return &Error{
		Kind:  ErrEmptyValue,
		Field: field,
		msg:   fmt.Sprintf("%s cannot be empty", field),
	}
}

func dangerousError(field, pattern string) *Error {
	return &Error{
		Kind:      ErrDangerousPattern,
		Field:     field,
		Violation: &SecurityViolation{Pattern: pattern, Field: field},
		msg:       fmt.Sprintf("Dangerous pattern detected in %s: %s", field, pattern),
	}
}

func formatError(field string) *Error {
	return &Error{
		Kind:  ErrFormatInvalid,
		Field: field,
		msg:   fmt.Sprintf("Invalid %s format: only letters, numbers, hyphens and underscores are allowed", field),
	}
}

func lengthError(field string) *Error {
	return &Error{
		Kind:  ErrLengthExceeded,
		Field: field,
		msg:   fmt.Sprintf("%s too long (max %d characters)", field, MaxIdentifierLength),
	}
}
