// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package guard

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/privacyguard/services/privacy/telemetry"
)

// ViewAuditor produces structured audit log entries for views and
// parameter checks.
//
// Description:
//
//	Never logs record content. A view entry carries the request ID, the
//	subject, requested and effective levels, field counts and, when
//	enabled, a SHA256 of the rendered output so a disclosure can be
//	verified later without storing it.
//
// Thread Safety: Safe for concurrent use (slog.Logger is concurrent-safe).
type ViewAuditor struct {
	logger      *slog.Logger
	enabled     bool
	hashContent bool
}

// NewViewAuditor creates a new auditor.
//
// Inputs:
//   - logger: The structured logger for audit output.
//   - enabled: Whether audit logging is active.
//   - hashContent: Whether to include SHA256 content hashes in log entries.
//
// Outputs:
//   - *ViewAuditor: Configured auditor.
func NewViewAuditor(logger *slog.Logger, enabled, hashContent bool) *ViewAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ViewAuditor{
		logger:      logger,
		enabled:     enabled,
		hashContent: hashContent,
	}
}

// LogView logs a rendered view.
func (a *ViewAuditor) LogView(ctx context.Context, decision *ViewDecision) {
	if !a.enabled || decision == nil {
		return
	}

	attrs := []any{
		slog.String("event", "privacy_view"),
		slog.String("request_id", decision.RequestID),
		slog.String("subject", decision.Subject),
		slog.String("resource", decision.Resource),
		slog.String("requested_level", decision.RequestedLevel),
		slog.String("effective_level", decision.EffectiveLevel.String()),
		slog.Bool("authenticated", decision.Authenticated),
		slog.Bool("masked", decision.Masked),
		slog.Int("fields_in", decision.FieldsIn),
		slog.Int("fields_out", decision.FieldsOut),
		slog.Int64("duration_ms", decision.DurationMs),
		slog.Int64("timestamp", decision.Timestamp),
	}
	if a.hashContent && decision.ContentHash != "" {
		attrs = append(attrs, slog.String("content_hash", decision.ContentHash))
	}

	a.loggerWithTrace(ctx).Info("privacy view", attrs...)
}

// LogDenied logs a refused view.
func (a *ViewAuditor) LogDenied(ctx context.Context, decision *ViewDecision, reason string) {
	if !a.enabled || decision == nil {
		return
	}

	a.loggerWithTrace(ctx).Warn("privacy view denied",
		slog.String("event", "privacy_view_denied"),
		slog.String("request_id", decision.RequestID),
		slog.String("subject", decision.Subject),
		slog.String("resource", decision.Resource),
		slog.String("requested_level", decision.RequestedLevel),
		slog.String("reason", reason),
		slog.Int64("timestamp", decision.Timestamp),
	)
}

// LogBlocked logs a rejected route parameter. The offending value itself
// is not logged, only its length and the matched pattern.
func (a *ViewAuditor) LogBlocked(ctx context.Context, kind ParamKind, field, pattern string, valueLen int, err error) {
	if !a.enabled {
		return
	}

	a.loggerWithTrace(ctx).Warn("privacy parameter blocked",
		slog.String("event", "privacy_param_blocked"),
		slog.String("kind", kind.String()),
		slog.String("field", field),
		slog.String("pattern", pattern),
		slog.Int("value_len", valueLen),
		slog.String("error", err.Error()),
		slog.Int64("timestamp", time.Now().UnixMilli()),
	)
}

// loggerWithTrace returns a logger enriched with trace context.
func (a *ViewAuditor) loggerWithTrace(ctx context.Context) *slog.Logger {
	return telemetry.LoggerWithTrace(ctx, a.logger)
}

// HashContent computes the SHA256 hex digest of content for audit purposes.
// Returns an empty string for empty input.
func HashContent(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	sum := sha256.Sum256(content)
	return fmt.Sprintf("%x", sum)
}
