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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/privacyguard/services/privacy"
	"github.com/AleutianAI/privacyguard/services/privacy/filter"
	"github.com/AleutianAI/privacyguard/services/privacy/masker"
	"github.com/AleutianAI/privacyguard/services/privacy/patterns"
	"github.com/AleutianAI/privacyguard/services/privacy/validate"
)

const tracerName = "aleutian.privacy.guard"

// ViewGuard composes the filter, masker and validator behind one API.
//
// Description:
//
//	Render always runs filter before mask. CheckParam always runs before
//	any lookup that uses the parameter. Both record metrics and audit
//	entries; neither ever logs record content or raw parameter values.
//
// Thread Safety: Safe for concurrent use (all components are concurrent-safe).
type ViewGuard struct {
	lib       *patterns.Library
	filter    *filter.PrivacyFilter
	masker    *masker.SensitiveDataMasker
	validator *validate.InputValidator
	auditor   *ViewAuditor
	cfg       Config
}

// New creates a ViewGuard.
//
// Inputs:
//   - lib: Compiled pattern tables shared by all components. Must not be nil.
//   - cfg: Guard configuration. Nil uses LoadConfig().
//   - logger: Audit logger. Nil uses slog.Default().
//
// Outputs:
//   - *ViewGuard: The guard.
func New(lib *patterns.Library, cfg *Config, logger *slog.Logger) *ViewGuard {
	if cfg == nil {
		cfg = LoadConfig()
	}
	return &ViewGuard{
		lib:       lib,
		filter:    filter.New(lib),
		masker:    masker.New(lib),
		validator: validate.New(lib),
		auditor:   NewViewAuditor(logger, cfg.AuditEnabled, cfg.AuditHashContent),
		cfg:       *cfg,
	}
}

// Config returns a copy of the guard configuration.
func (g *ViewGuard) Config() Config { return g.cfg }

// Library returns the shared pattern library.
func (g *ViewGuard) Library() *patterns.Library { return g.lib }

// Validator returns the input validator.
func (g *ViewGuard) Validator() *validate.InputValidator { return g.validator }

// Authorize checks whether a view may be rendered at all.
//
// Description:
//
//	An ai_safe request is refused when the owner's settings exist and do
//	not grant AI assistant access. The level is resolved like Render
//	resolves it, so an empty request level falls back to the configured
//	default. Refusals are counted and audited.
//
// Inputs:
//   - ctx: Context for tracing.
//   - req: The view request.
//
// Outputs:
//   - error: nil, or an error wrapping ErrAIAccessDenied.
func (g *ViewGuard) Authorize(ctx context.Context, req ViewRequest) error {
	// business_card_mode is not applied here; it must not turn a denied
	// ai_safe request into an allowed one.
	if EffectiveLevel(req.Level, g.cfg.DefaultLevel, nil, req.Authenticated) != privacy.LevelAISafe {
		return nil
	}
	if req.Settings == nil || req.Settings.AIAssistantAccess {
		return nil
	}

	decision := NewViewDecision("", req)
	RecordViewDenied(privacy.LevelAISafe.String(), "ai_access")
	g.auditor.LogDenied(ctx, decision, "ai_access")
	return fmt.Errorf("%s has not granted AI assistant access: %w", req.Subject, ErrAIAccessDenied)
}

// Render produces the client-visible view of a record.
//
// Description:
//
//	Resolves the effective level, filters, then masks (when enabled and
//	the level is not "none"). Records leaf counts, a content hash of the
//	output, the render duration, and an audit entry.
//
// Inputs:
//   - ctx: Context for tracing.
//   - req: The view request. req.Record is never modified.
//
// Outputs:
//   - privacy.Record: The view. Never nil.
//   - *ViewDecision: The audit record for this call.
func (g *ViewGuard) Render(ctx context.Context, req ViewRequest) (privacy.Record, *ViewDecision) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "guard.ViewGuard.Render",
		oteltrace.WithAttributes(
			attribute.String("privacy.subject", req.Subject),
			attribute.String("privacy.resource", req.Resource),
			attribute.String("privacy.requested_level", req.Level),
			attribute.Bool("privacy.authenticated", req.Authenticated),
		),
	)
	defer span.End()

	start := time.Now()
	decision := NewViewDecision("", req)
	level := EffectiveLevel(req.Level, g.cfg.DefaultLevel, req.Settings, req.Authenticated)
	decision.EffectiveLevel = level

	out := g.filter.Filter(req.Record, level, req.Settings, req.Authenticated)
	if g.cfg.MaskingEnabled && level != privacy.LevelNone {
		out = g.masker.Mask(out, level)
		decision.Masked = true
	}

	decision.FieldsIn = countLeaves(req.Record)
	decision.FieldsOut = countLeaves(out)
	if g.cfg.AuditHashContent {
		if data, err := privacy.EncodeRecord(out); err == nil {
			decision.ContentHash = HashContent(data)
		}
	}

	elapsed := time.Since(start)
	decision.DurationMs = elapsed.Milliseconds()

	RecordView(level.String(), decision.FieldsRemoved())
	recordRenderDuration(ctx, level.String(), elapsed)
	g.auditor.LogView(ctx, decision)

	span.SetAttributes(
		attribute.String("privacy.effective_level", level.String()),
		attribute.Int("privacy.fields_removed", decision.FieldsRemoved()),
		attribute.String("privacy.request_id", decision.RequestID),
	)
	span.SetStatus(codes.Ok, "")
	return out, decision
}

// CheckParam validates a route parameter before it is used for a lookup.
//
// Description:
//
//	ParamUsername and ParamEndpoint run the full identifier check.
//	ParamText runs only the emptiness and dangerous-pattern check. field
//	names the parameter in the error message; an empty field uses the
//	kind's default name.
//
// Inputs:
//   - ctx: Context for tracing.
//   - kind: Which validation to run.
//   - field: Parameter name for messages and metrics.
//   - value: The raw parameter.
//
// Outputs:
//   - error: nil, or a *validate.Error whose message is safe to return to
//     the client verbatim.
func (g *ViewGuard) CheckParam(ctx context.Context, kind ParamKind, field, value string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if field == "" {
		field = defaultField(kind)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "guard.ViewGuard.CheckParam",
		oteltrace.WithAttributes(
			attribute.String("privacy.param_kind", kind.String()),
			attribute.String("privacy.field", field),
		),
	)
	defer span.End()

	var err error
	switch kind {
	case ParamUsername, ParamEndpoint:
		err = g.validator.ValidateIdentifier(value, field)
	default:
		err = g.validator.Validate(value, field, false)
	}

	status := validationStatus(err)
	RecordValidation(kind, status)
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return nil
	}

	var pattern string
	var verr *validate.Error
	if errors.As(err, &verr) && verr.Violation != nil {
		pattern = verr.Violation.Pattern
		RecordBlockedPattern(kind, pattern)
	}
	g.auditor.LogBlocked(ctx, kind, field, pattern, len(value), err)

	span.SetAttributes(attribute.String("privacy.validation_status", status))
	span.SetStatus(codes.Error, status)
	return err
}

func defaultField(kind ParamKind) string {
	switch kind {
	case ParamUsername:
		return validate.FieldUsername
	case ParamEndpoint:
		return validate.FieldEndpoint
	default:
		return "value"
	}
}

// validationStatus maps a validator error to a metric label.
func validationStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, validate.ErrEmptyValue):
		return "empty"
	case errors.Is(err, validate.ErrDangerousPattern):
		return "dangerous"
	case errors.Is(err, validate.ErrFormatInvalid):
		return "format"
	case errors.Is(err, validate.ErrLengthExceeded):
		return "length"
	default:
		return "error"
	}
}
