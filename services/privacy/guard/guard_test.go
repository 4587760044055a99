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
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AleutianAI/privacyguard/services/privacy"
	"github.com/AleutianAI/privacyguard/services/privacy/patterns"
	"github.com/AleutianAI/privacyguard/services/privacy/validate"
)

func testConfig() *Config {
	return &Config{
		DefaultLevel:     privacy.LevelBusinessCard,
		MaskingEnabled:   true,
		AuditEnabled:     true,
		AuditHashContent: true,
		RateLimitPerMin:  120,
	}
}

func newTestGuard(t *testing.T, cfg *Config, w io.Writer) *ViewGuard {
	t.Helper()
	if w == nil {
		w = io.Discard
	}
	lib, err := patterns.Default()
	require.NoError(t, err)
	return New(lib, cfg, slog.New(slog.NewJSONHandler(w, nil)))
}

func profile() privacy.Record {
	return privacy.Record{
		"name":  "Jane",
		"title": "CTO",
		"contact": map[string]any{
			"email":          "jane@co.com",
			"phone":          "555-0100",
			"personal_email": "jane@gmail.com",
		},
		"experience": []any{
			map[string]any{"company": "Co", "position": "CTO", "end_date": "Present"},
		},
		"api_key": "abcdefghijklmnopqrstuvwxyz0123456789",
	}
}

func TestRender_DefaultLevelFiltersThenMasks(t *testing.T) {
	g := newTestGuard(t, testConfig(), nil)

	out, decision := g.Render(context.Background(), ViewRequest{Record: profile(), Subject: "jane", Resource: "profile"})

	assert.Equal(t, privacy.LevelBusinessCard, decision.EffectiveLevel)
	assert.True(t, decision.Masked)
	assert.Equal(t, privacy.Record{
		"name":     "Jane",
		"title":    "CTO",
		"company":  "Co",
		"position": "CTO",
		"contact":  map[string]any{"email": "****@co.com"},
	}, out)
	assert.NotEmpty(t, decision.RequestID)
	assert.Len(t, decision.ContentHash, 64)
	assert.Greater(t, decision.FieldsRemoved(), 0)
}

func TestRender_MaskingDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.MaskingEnabled = false
	g := newTestGuard(t, cfg, nil)

	out, decision := g.Render(context.Background(), ViewRequest{Record: profile(), Level: "business_card"})

	assert.False(t, decision.Masked)
	assert.Equal(t, map[string]any{"email": "jane@co.com"}, out["contact"])
}

func TestRender_EscapeHatch(t *testing.T) {
	g := newTestGuard(t, testConfig(), nil)
	in := profile()

	out, decision := g.Render(context.Background(), ViewRequest{Record: in, Level: "none", Authenticated: true})
	assert.Equal(t, privacy.LevelNone, decision.EffectiveLevel)
	assert.False(t, decision.Masked)
	assert.Equal(t, in, out)

	_, decision = g.Render(context.Background(), ViewRequest{Record: in, Level: "none"})
	assert.Equal(t, privacy.LevelPublicFull, decision.EffectiveLevel)
}

func TestRender_DoesNotMutateInput(t *testing.T) {
	g := newTestGuard(t, testConfig(), nil)
	in := profile()
	snapshot := privacy.CloneRecord(in)

	for _, level := range []string{"business_card", "professional", "public_full", "ai_safe", "none", ""} {
		_, _ = g.Render(context.Background(), ViewRequest{Record: in, Level: level, Settings: &privacy.UserPrivacySettings{}})
	}
	assert.Equal(t, snapshot, in)
}

func TestRender_RecordsMetricsAndAudit(t *testing.T) {
	var buf bytes.Buffer
	g := newTestGuard(t, testConfig(), &buf)

	before := testutil.ToFloat64(viewsTotal.WithLabelValues("public_full"))
	_, _ = g.Render(context.Background(), ViewRequest{Record: profile(), Level: "public_full", Subject: "jane"})
	after := testutil.ToFloat64(viewsTotal.WithLabelValues("public_full"))

	assert.Equal(t, before+1, after)
	assert.Contains(t, buf.String(), `"event":"privacy_view"`)
	assert.NotContains(t, buf.String(), "jane@co.com", "audit log must not contain record content")
}

func TestRender_Span(t *testing.T) {
	g := newTestGuard(t, testConfig(), nil)

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, decision := g.Render(context.Background(), ViewRequest{Record: profile(), Level: "professional"})

	var spans []tracetest.SpanStub
	for _, s := range exporter.GetSpans() {
		if s.Name == "guard.ViewGuard.Render" {
			spans = append(spans, s)
		}
	}
	require.Len(t, spans, 1)

	found := false
	for _, attr := range spans[0].Attributes {
		if string(attr.Key) == "privacy.request_id" {
			found = true
			assert.Equal(t, decision.RequestID, attr.Value.AsString())
		}
	}
	assert.True(t, found, "span should carry the request id")
}

func TestAuthorize(t *testing.T) {
	var buf bytes.Buffer
	g := newTestGuard(t, testConfig(), &buf)
	ctx := context.Background()

	denied := &privacy.UserPrivacySettings{AIAssistantAccess: false}
	err := g.Authorize(ctx, ViewRequest{Level: "ai_safe", Settings: denied, Subject: "jane"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAIAccessDenied))
	assert.Contains(t, buf.String(), "privacy_view_denied")

	assert.NoError(t, g.Authorize(ctx, ViewRequest{Level: "AI_SAFE", Settings: privacy.ShowAll()}))
	assert.NoError(t, g.Authorize(ctx, ViewRequest{Level: "ai_safe"}), "no settings saved")
	assert.NoError(t, g.Authorize(ctx, ViewRequest{Level: "professional", Settings: denied}))
}

func TestCheckParam(t *testing.T) {
	var buf bytes.Buffer
	g := newTestGuard(t, testConfig(), &buf)
	ctx := context.Background()

	assert.NoError(t, g.CheckParam(ctx, ParamUsername, "", "jane_doe"))
	assert.NoError(t, g.CheckParam(ctx, ParamText, "q", "administration"))

	before := testutil.ToFloat64(blockedPatternsTotal.WithLabelValues("username", "../"))
	err := g.CheckParam(ctx, ParamUsername, "", "../admin")
	require.Error(t, err)
	assert.Equal(t, "Dangerous pattern detected in username: ../", err.Error())
	assert.Equal(t, before+1, testutil.ToFloat64(blockedPatternsTotal.WithLabelValues("username", "../")))
	assert.NotContains(t, buf.String(), "../admin", "raw value must not be logged")

	err = g.CheckParam(ctx, ParamEndpoint, "", "has space")
	assert.True(t, errors.Is(err, validate.ErrFormatInvalid))
	assert.True(t, strings.HasPrefix(err.Error(), "Invalid endpoint_name format"))

	err = g.CheckParam(ctx, ParamText, "q", "")
	assert.Equal(t, "q cannot be empty", err.Error())
}

func TestEffectiveLevel(t *testing.T) {
	cardMode := &privacy.UserPrivacySettings{BusinessCardMode: true}

	cases := []struct {
		raw      string
		settings *privacy.UserPrivacySettings
		auth     bool
		want     privacy.Level
	}{
		{"", nil, false, privacy.LevelProfessional},
		{"ai_safe", nil, false, privacy.LevelAISafe},
		{"bogus", nil, false, privacy.LevelPublicFull},
		{"none", nil, false, privacy.LevelPublicFull},
		{"none", nil, true, privacy.LevelNone},
		{"public_full", cardMode, false, privacy.LevelBusinessCard},
		{"none", cardMode, false, privacy.LevelBusinessCard},
		{"none", cardMode, true, privacy.LevelNone},
	}
	for _, tc := range cases {
		got := EffectiveLevel(tc.raw, privacy.LevelProfessional, tc.settings, tc.auth)
		assert.Equal(t, tc.want, got, "raw=%q auth=%v", tc.raw, tc.auth)
	}
}

func TestParamKindString(t *testing.T) {
	assert.Equal(t, "username", ParamUsername.String())
	assert.Equal(t, "text", ParamText.String())
	assert.Equal(t, "unknown(9)", ParamKind(9).String())
}

func TestRender_UsesCallerRequestID(t *testing.T) {
	g := newTestGuard(t, testConfig(), nil)

	_, decision := g.Render(context.Background(), ViewRequest{Record: profile(), RequestID: "req-42"})
	assert.Equal(t, "req-42", decision.RequestID)

	_, decision = g.Render(context.Background(), ViewRequest{Record: profile()})
	assert.Len(t, decision.RequestID, 36, "generated IDs are UUIDs")
}

func TestAuthorize_UsesDefaultLevel(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultLevel = privacy.LevelAISafe
	g := newTestGuard(t, cfg, nil)
	ctx := context.Background()

	denied := &privacy.UserPrivacySettings{AIAssistantAccess: false}
	err := g.Authorize(ctx, ViewRequest{Settings: denied})
	assert.ErrorIs(t, err, ErrAIAccessDenied, "empty level resolves to the ai_safe default")

	cardMode := &privacy.UserPrivacySettings{BusinessCardMode: true}
	assert.ErrorIs(t, g.Authorize(ctx, ViewRequest{Level: "ai_safe", Settings: cardMode}), ErrAIAccessDenied)

	assert.NoError(t, g.Authorize(ctx, ViewRequest{Level: "professional", Settings: denied}))
}

func TestCheckParam_MetricLabelsAreBounded(t *testing.T) {
	g := newTestGuard(t, testConfig(), nil)
	ctx := context.Background()

	validationSeries := testutil.CollectAndCount(validationTotal)
	blockedSeries := testutil.CollectAndCount(blockedPatternsTotal)

	for i := 0; i < 200; i++ {
		field := "caller-field-" + strconv.Itoa(i)
		assert.NoError(t, g.CheckParam(ctx, ParamText, field, "x"))
		err := g.CheckParam(ctx, ParamText, field, "eval(1)")
		require.Error(t, err)
		assert.Contains(t, err.Error(), field, "the field name stays in the message")
	}

	// At most text/ok and text/dangerous are new.
	assert.LessOrEqual(t, testutil.CollectAndCount(validationTotal), validationSeries+2)
	assert.LessOrEqual(t, testutil.CollectAndCount(blockedPatternsTotal), blockedSeries+1)
}
