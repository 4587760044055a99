// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/privacyguard/services/privacy"
	"github.com/AleutianAI/privacyguard/services/privacy/guard"
	"github.com/AleutianAI/privacyguard/services/privacy/store"
	"github.com/AleutianAI/privacyguard/services/privacy/validate"
)

// batchConcurrency bounds the goroutines rendering one batch request.
const batchConcurrency = 8

func init() {
	// Record bodies keep numbers as json.Number so they re-encode exactly.
	binding.EnableDecoderUseNumber = true
}

// Handlers serves the privacy HTTP API.
//
// Description:
//
//	The ViewGuard is held behind an atomic pointer so the pattern tables
//	can be swapped at runtime (see SetGuard) without blocking requests.
//	A request always uses the guard it loaded first.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	current atomic.Pointer[guard.ViewGuard]
	store   store.ProfileStore
	auth    Authenticator
	logger  *slog.Logger
}

// NewHandlers creates the API handlers.
//
// Inputs:
//   - g: The view guard. Must not be nil.
//   - s: Profile persistence. Must not be nil.
//   - auth: Caller identification. Nil treats every caller as anonymous.
//   - logger: Request logger. Nil uses slog.Default().
func NewHandlers(g *guard.ViewGuard, s store.ProfileStore, auth Authenticator, logger *slog.Logger) *Handlers {
	if auth == nil {
		auth = Anonymous{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{store: s, auth: auth, logger: logger}
	h.current.Store(g)
	return h
}

// SetGuard replaces the guard used by subsequent requests.
func (h *Handlers) SetGuard(g *guard.ViewGuard) {
	if g != nil {
		h.current.Store(g)
	}
}

// Guard returns the guard currently serving requests.
func (h *Handlers) Guard() *guard.ViewGuard { return h.current.Load() }

// HandleGetProfile handles GET /users/:username/profile.
//
// Query Parameters:
//
//	level: business_card, professional, public_full, ai_safe or none.
//	       Empty uses the configured default. "none" is honored only for
//	       the profile owner.
//
// Response:
//
//	200 OK: The filtered, masked profile
//	400 Bad Request: Invalid username or level
//	403 Forbidden: ai_safe requested without the owner's consent
//	404 Not Found: No such profile
func (h *Handlers) HandleGetProfile(c *gin.Context) {
	h.serveView(c, h.Guard(), "profile", func(ctx context.Context, username string) (privacy.Record, error) {
		return h.store.GetProfile(ctx, username)
	})
}

// HandleGetEndpoint handles GET /users/:username/endpoints/:endpoint.
// Responses match HandleGetProfile.
func (h *Handlers) HandleGetEndpoint(c *gin.Context) {
	g := h.Guard()
	endpoint := c.Param("endpoint")
	if err := g.CheckParam(c.Request.Context(), guard.ParamEndpoint, "", endpoint); err != nil {
		h.badParam(c, err)
		return
	}
	h.serveView(c, g, endpoint, func(ctx context.Context, username string) (privacy.Record, error) {
		return h.store.GetEndpoint(ctx, username, endpoint)
	})
}

// serveView runs one view request against g, the guard the handler loaded.
func (h *Handlers) serveView(c *gin.Context, g *guard.ViewGuard, resource string, load func(context.Context, string) (privacy.Record, error)) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With(slog.String("request_id", requestID), slog.String("resource", resource))
	ctx := c.Request.Context()

	username := c.Param("username")
	if err := g.CheckParam(ctx, guard.ParamUsername, "", username); err != nil {
		h.badParam(c, err)
		return
	}
	level := c.Query("level")
	if level != "" {
		if err := g.CheckParam(ctx, guard.ParamText, "level", level); err != nil {
			h.badParam(c, err)
			return
		}
	}

	rec, err := load(ctx, username)
	if err != nil {
		h.storeError(c, logger, err)
		return
	}
	settings, err := h.store.GetSettings(ctx, username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.storeError(c, logger, err)
		return
	}

	subject, ok := h.auth.Subject(c)
	req := guard.ViewRequest{
		Record:        rec,
		Level:         level,
		Settings:      settings,
		Authenticated: ok && subject == username,
		Subject:       username,
		Resource:      resource,
		RequestID:     requestID,
	}
	if err := g.Authorize(ctx, req); err != nil {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error: "the profile owner has not granted AI assistant access",
			Code:  CodeAIAccessDenied,
		})
		return
	}

	out, decision := g.Render(ctx, req)
	c.Header("X-Privacy-Level", decision.EffectiveLevel.String())
	c.JSON(http.StatusOK, out)
}

// HandlePutProfile handles PUT /users/:username/profile (owner only).
//
// Response:
//
//	204 No Content: Stored
//	400 Bad Request: Invalid username or body
//	401/403: Caller is not the owner
func (h *Handlers) HandlePutProfile(c *gin.Context) {
	username, ok := h.ownerParam(c, h.Guard())
	if !ok {
		return
	}
	rec, ok := h.recordBody(c)
	if !ok {
		return
	}
	if err := h.store.PutProfile(c.Request.Context(), username, rec); err != nil {
		h.storeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleDeleteProfile handles DELETE /users/:username/profile (owner only).
// The user's settings and endpoint payloads are removed with it.
func (h *Handlers) HandleDeleteProfile(c *gin.Context) {
	username, ok := h.ownerParam(c, h.Guard())
	if !ok {
		return
	}
	if err := h.store.DeleteProfile(c.Request.Context(), username); err != nil {
		h.storeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandlePutEndpoint handles PUT /users/:username/endpoints/:endpoint (owner only).
func (h *Handlers) HandlePutEndpoint(c *gin.Context) {
	g := h.Guard()
	username, ok := h.ownerParam(c, g)
	if !ok {
		return
	}
	endpoint := c.Param("endpoint")
	if err := g.CheckParam(c.Request.Context(), guard.ParamEndpoint, "", endpoint); err != nil {
		h.badParam(c, err)
		return
	}
	rec, ok := h.recordBody(c)
	if !ok {
		return
	}
	if err := h.store.PutEndpoint(c.Request.Context(), username, endpoint, rec); err != nil {
		h.storeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandlePutSettings handles PUT /users/:username/settings (owner only).
//
// Custom rule actions other than "hide" and "redact" are rejected here
// rather than silently ignored at filter time.
func (h *Handlers) HandlePutSettings(c *gin.Context) {
	username, ok := h.ownerParam(c, h.Guard())
	if !ok {
		return
	}

	var settings privacy.UserPrivacySettings
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid settings body", Code: CodeInvalidBody, Details: err.Error()})
		return
	}
	for path, action := range settings.CustomPrivacyRules {
		switch strings.ToLower(strings.TrimSpace(action)) {
		case privacy.RuleHide, privacy.RuleRedact:
		default:
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "custom privacy rule action must be hide or redact",
				Code:    CodeInvalidBody,
				Details: path,
			})
			return
		}
	}

	if err := h.store.PutSettings(c.Request.Context(), username, &settings); err != nil {
		h.storeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleFilter handles POST /privacy/filter.
//
// Renders an ad-hoc record. The caller never owns it, so level "none"
// degrades to public_full.
func (h *Handlers) HandleFilter(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	var req FilterRequest
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid filter request", Code: CodeInvalidBody, Details: err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.renderAdHoc(c.Request.Context(), h.Guard(), req, requestID))
}

// HandleFilterBatch handles POST /privacy/filter/batch.
//
// Items are rendered concurrently; results keep request order.
func (h *Handlers) HandleFilterBatch(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	var req BatchFilterRequest
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid batch request", Code: CodeInvalidBody, Details: err.Error()})
		return
	}

	g := h.Guard()
	results := make([]FilterResponse, len(req.Items))
	eg, ctx := errgroup.WithContext(c.Request.Context())
	eg.SetLimit(batchConcurrency)
	for i, item := range req.Items {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = h.renderAdHoc(ctx, g, item, requestID+"-"+strconv.Itoa(i))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		h.logger.Warn("batch filter aborted", slog.String("request_id", requestID), slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "request cancelled", Code: CodeInternal})
		return
	}
	c.JSON(http.StatusOK, BatchFilterResponse{Results: results})
}

func (h *Handlers) renderAdHoc(ctx context.Context, g *guard.ViewGuard, req FilterRequest, requestID string) FilterResponse {
	out, decision := g.Render(ctx, guard.ViewRequest{
		Record:    req.Record,
		Level:     req.Level,
		Settings:  req.Settings,
		Resource:  "adhoc",
		RequestID: requestID,
	})
	return FilterResponse{
		RequestID:     decision.RequestID,
		Level:         decision.EffectiveLevel.String(),
		Masked:        decision.Masked,
		FieldsRemoved: decision.FieldsRemoved(),
		Record:        out,
	}
}

// HandleValidate handles POST /privacy/validate.
//
// Always 200 for a well-formed request; Valid reports the outcome.
func (h *Handlers) HandleValidate(c *gin.Context) {
	var req ValidateRequest
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid validate request", Code: CodeInvalidBody, Details: err.Error()})
		return
	}

	kind := guard.ParamText
	switch req.Kind {
	case "username":
		kind = guard.ParamUsername
	case "endpoint":
		kind = guard.ParamEndpoint
	}

	g := h.Guard()
	err := g.CheckParam(c.Request.Context(), kind, req.Field, req.Value)
	resp := ValidateResponse{Valid: err == nil}
	if err != nil {
		resp.Error = err.Error()
		var verr *validate.Error
		if errors.As(err, &verr) {
			resp.Violation = verr.Violation
		}
		resp.Violations = g.Validator().FindViolations(req.Value)
	}
	c.JSON(http.StatusOK, resp)
}

// HandleHealth handles GET /privacy/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	g := h.Guard()
	cfg := g.Config()
	c.JSON(http.StatusOK, HealthResponse{
		Status:              "healthy",
		PatternsVersion:     g.Library().Version(),
		PatternsFingerprint: g.Library().Fingerprint(),
		DefaultLevel:        cfg.DefaultLevel.String(),
		MaskingEnabled:      cfg.MaskingEnabled,
	})
}

// ownerParam validates :username and requires the caller to own it.
// It writes the error response and returns false on failure.
func (h *Handlers) ownerParam(c *gin.Context, g *guard.ViewGuard) (string, bool) {
	username := c.Param("username")
	if err := g.CheckParam(c.Request.Context(), guard.ParamUsername, "", username); err != nil {
		h.badParam(c, err)
		return "", false
	}
	subject, ok := h.auth.Subject(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required", Code: CodeUnauthenticated})
		return "", false
	}
	if subject != username {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "only the profile owner may modify it", Code: CodeForbidden})
		return "", false
	}
	return username, true
}

func (h *Handlers) recordBody(c *gin.Context) (privacy.Record, bool) {
	rec, err := privacy.DecodeRecord(http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "body must be a JSON object", Code: CodeInvalidBody, Details: err.Error()})
		return nil, false
	}
	return rec, true
}

// badParam writes a 400 carrying the validator message verbatim.
func (h *Handlers) badParam(c *gin.Context, err error) {
	resp := ErrorResponse{Error: err.Error(), Code: CodeInvalidParameter}
	var verr *validate.Error
	if errors.As(err, &verr) && verr.Violation != nil {
		resp.Details = verr.Violation.Pattern
	}
	c.JSON(http.StatusBadRequest, resp)
}

// storeError maps store failures to 404 or a generic 500.
func (h *Handlers) storeError(c *gin.Context, logger *slog.Logger, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: CodeNotFound})
		return
	}
	logger.Error("store operation failed", slog.String("error", err.Error()))
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: CodeInternal})
}

// getOrCreateRequestID returns the inbound X-Request-ID or a new one, and
// echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	if id, ok := c.Get(requestIDKey); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" || len(requestID) > 128 {
		requestID = uuid.NewString()
	}
	c.Set(requestIDKey, requestID)
	c.Header("X-Request-ID", requestID)
	return requestID
}

const requestIDKey = "privacy.request_id"
