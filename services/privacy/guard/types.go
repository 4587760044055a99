// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package guard is the single entry point for turning stored records into
// client-visible views and for gating route parameters.
//
// A ViewGuard runs filter then mask in that order, and wraps each call with
// a request ID, an OpenTelemetry span, Prometheus counters and a structured
// audit log line. Parameter checks go through CheckParam so that every
// blocked identifier is counted and audited.
//
// Thread Safety:
//
//	All exported types are safe for concurrent use unless documented otherwise.
package guard

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/privacyguard/services/privacy"
)

// =============================================================================
// Sentinel Errors
// =============================================================================

// ErrAIAccessDenied is returned when an ai_safe view is requested for an
// owner who has not granted AI assistant access.
var ErrAIAccessDenied = errors.New("guard: ai assistant access not granted")

// =============================================================================
// Parameter Kinds
// =============================================================================

// ParamKind selects the validation applied by CheckParam.
type ParamKind int

const (
	// ParamUsername validates a username: dangerous patterns, format, length.
	ParamUsername ParamKind = iota

	// ParamEndpoint validates an endpoint name: dangerous patterns, format, length.
	ParamEndpoint

	// ParamText validates free text: emptiness and dangerous patterns only.
	ParamText
)

// String returns the name of the kind.
func (k ParamKind) String() string {
	switch k {
	case ParamUsername:
		return "username"
	case ParamEndpoint:
		return "endpoint"
	case ParamText:
		return "text"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// =============================================================================
// Requests and Decisions
// =============================================================================

// ViewRequest is one record to render for one audience.
type ViewRequest struct {
	// Record is the stored payload. Never modified.
	Record privacy.Record

	// Level is the raw requested level. Empty uses Config.DefaultLevel.
	Level string

	// Settings are the owner's privacy settings. May be nil.
	Settings *privacy.UserPrivacySettings

	// Authenticated is true only when the caller owns the record.
	Authenticated bool

	// Subject identifies the record owner for the audit log.
	Subject string

	// Resource names the rendered resource ("profile" or an endpoint name).
	Resource string

	// RequestID correlates the view with the inbound request. Empty
	// generates a new one.
	RequestID string
}

// ViewDecision is the audit record for one Render call.
//
// Thread Safety: Not safe for concurrent mutation. Each Render owns its
// decision until it returns.
type ViewDecision struct {
	RequestID      string
	Subject        string
	Resource       string
	RequestedLevel string
	EffectiveLevel privacy.Level
	Authenticated  bool
	Masked         bool
	FieldsIn       int
	FieldsOut      int
	ContentHash    string
	Timestamp      int64
	DurationMs     int64
}

// NewViewDecision creates a decision stamped with the current time.
// An empty requestID falls back to req.RequestID, then to a new UUID.
func NewViewDecision(requestID string, req ViewRequest) *ViewDecision {
	if requestID == "" {
		requestID = req.RequestID
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return &ViewDecision{
		RequestID:      requestID,
		Subject:        req.Subject,
		Resource:       req.Resource,
		RequestedLevel: req.Level,
		Authenticated:  req.Authenticated,
		Timestamp:      time.Now().UnixMilli(),
	}
}

// FieldsRemoved returns how many leaf values the view dropped.
func (d *ViewDecision) FieldsRemoved() int {
	if d.FieldsOut >= d.FieldsIn {
		return 0
	}
	return d.FieldsIn - d.FieldsOut
}

// EffectiveLevel resolves the level a request is actually served at.
//
// Description:
//
//	Empty uses defaultLevel. Unknown strings become public_full.
//	"none" without authentication becomes public_full. business_card_mode
//	forces business_card unless the owner asked for "none".
//
// Inputs:
//   - raw: The requested level string.
//   - defaultLevel: Level used for an empty request.
//   - settings: Owner settings. May be nil.
//   - authenticated: Whether the caller owns the record.
//
// Outputs:
//   - privacy.Level: The level the filter will apply.
func EffectiveLevel(raw string, defaultLevel privacy.Level, settings *privacy.UserPrivacySettings, authenticated bool) privacy.Level {
	level := defaultLevel
	if raw != "" {
		level = privacy.ParseLevel(raw)
	}
	if level == privacy.LevelNone {
		if authenticated {
			return privacy.LevelNone
		}
		level = privacy.LevelPublicFull
	}
	if settings != nil && settings.BusinessCardMode {
		return privacy.LevelBusinessCard
	}
	return level
}

// countLeaves counts the scalar values in a tree.
func countLeaves(v privacy.Value) int {
	switch node := v.(type) {
	case map[string]any:
		n := 0
		for _, child := range node {
			n += countLeaves(child)
		}
		return n
	case []any:
		n := 0
		for _, item := range node {
			n += countLeaves(item)
		}
		return n
	default:
		return 1
	}
}
