// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api exposes the privacy engine over HTTP.
//
// Every record leaving the service passes through guard.ViewGuard.Render,
// and every route parameter passes through guard.ViewGuard.CheckParam
// before it is used as a store key.
//
// Routes (under the group passed to RegisterRoutes, typically /v1):
//
//	GET    /users/:username/profile?level=
//	PUT    /users/:username/profile              (owner only)
//	DELETE /users/:username/profile              (owner only)
//	PUT    /users/:username/settings             (owner only)
//	GET    /users/:username/endpoints/:endpoint?level=
//	PUT    /users/:username/endpoints/:endpoint  (owner only)
//	POST   /privacy/filter
//	POST   /privacy/filter/batch
//	POST   /privacy/validate
//	GET    /privacy/health
package api

import (
	"github.com/AleutianAI/privacyguard/services/privacy"
	"github.com/AleutianAI/privacyguard/services/privacy/validate"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidParameter = "INVALID_PARAMETER"
	CodeInvalidBody      = "INVALID_BODY"
	CodeNotFound         = "NOT_FOUND"
	CodeUnauthenticated  = "UNAUTHENTICATED"
	CodeForbidden        = "FORBIDDEN"
	CodeAIAccessDenied   = "AI_ACCESS_DENIED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInternal         = "INTERNAL_ERROR"
)

// MaxBatchItems bounds a single batch filter request.
const MaxBatchItems = 100

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Error is safe to show to the client.
	Error string `json:"error"`

	// Code is a stable machine-readable code.
	Code string `json:"code,omitempty"`

	// Details carries the matched pattern for blocked parameters.
	Details string `json:"details,omitempty"`
}

// FilterRequest asks for one ad-hoc record to be rendered.
type FilterRequest struct {
	Record   privacy.Record               `json:"record" binding:"required"`
	Level    string                       `json:"level"`
	Settings *privacy.UserPrivacySettings `json:"settings,omitempty"`
}

// FilterResponse is one rendered record.
type FilterResponse struct {
	RequestID     string         `json:"request_id"`
	Level         string         `json:"level"`
	Masked        bool           `json:"masked"`
	FieldsRemoved int            `json:"fields_removed"`
	Record        privacy.Record `json:"record"`
}

// BatchFilterRequest renders several records in one call.
type BatchFilterRequest struct {
	Items []FilterRequest `json:"items" binding:"required,min=1,max=100,dive"`
}

// BatchFilterResponse preserves the order of BatchFilterRequest.Items.
type BatchFilterResponse struct {
	Results []FilterResponse `json:"results"`
}

// ValidateRequest checks a value without using it.
type ValidateRequest struct {
	Value string `json:"value"`

	// Field names the value in error messages. Empty uses the kind's default.
	Field string `json:"field"`

	// Kind is "username", "endpoint" or "text". Empty means "text".
	Kind string `json:"kind" binding:"omitempty,oneof=username endpoint text"`
}

// ValidateResponse reports the outcome of a ValidateRequest.
type ValidateResponse struct {
	Valid      bool                        `json:"valid"`
	Error      string                      `json:"error,omitempty"`
	Violation  *validate.SecurityViolation `json:"violation,omitempty"`
	Violations []string                    `json:"violations,omitempty"`
}

// HealthResponse reports service state.
type HealthResponse struct {
	Status              string `json:"status"`
	PatternsVersion     string `json:"patterns_version"`
	PatternsFingerprint string `json:"patterns_fingerprint"`
	DefaultLevel        string `json:"default_level"`
	MaskingEnabled      bool   `json:"masking_enabled"`
}
