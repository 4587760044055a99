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
	"log/slog"
	"strings"
	"testing"

	"github.com/AleutianAI/privacyguard/services/privacy"
)

func TestViewAuditor_LogView(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	auditor := NewViewAuditor(logger, true, true)
	decision := NewViewDecision("req-1", ViewRequest{Subject: "jane", Resource: "profile", Level: "professional"})
	decision.EffectiveLevel = privacy.LevelProfessional
	decision.ContentHash = "abc123"

	auditor.LogView(context.Background(), decision)

	output := buf.String()
	for _, want := range []string{"privacy_view", "req-1", "jane", "professional", "abc123"} {
		if !strings.Contains(output, want) {
			t.Errorf("output should contain %q, got %s", want, output)
		}
	}
}

func TestViewAuditor_LogView_NoHash(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	auditor := NewViewAuditor(logger, true, false)
	decision := NewViewDecision("req-1", ViewRequest{})
	decision.ContentHash = "abc123"

	auditor.LogView(context.Background(), decision)

	if strings.Contains(buf.String(), "abc123") {
		t.Error("output should NOT contain content_hash when hashContent=false")
	}
}

func TestViewAuditor_Disabled(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	auditor := NewViewAuditor(logger, false, true)
	auditor.LogView(context.Background(), NewViewDecision("req-1", ViewRequest{}))
	auditor.LogDenied(context.Background(), NewViewDecision("req-2", ViewRequest{}), "ai_access")
	auditor.LogBlocked(context.Background(), ParamUsername, "username", "../", 8, errors.New("blocked"))

	if buf.Len() != 0 {
		t.Errorf("disabled auditor should not log, got %s", buf.String())
	}
}

func TestViewAuditor_LogBlocked(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	auditor := NewViewAuditor(logger, true, true)
	auditor.LogBlocked(context.Background(), ParamEndpoint, "endpoint_name", "admin/", 12, errors.New("Dangerous pattern detected in endpoint_name: admin/"))

	output := buf.String()
	if !strings.Contains(output, "privacy_param_blocked") {
		t.Error("output should contain event name")
	}
	if !strings.Contains(output, `"level":"WARN"`) {
		t.Error("blocked parameters should log at WARN")
	}
	if !strings.Contains(output, `"kind":"endpoint"`) {
		t.Error("output should contain the parameter kind")
	}
}

func TestHashContent(t *testing.T) {
	if HashContent(nil) != "" {
		t.Error("empty input should hash to empty string")
	}
	h1 := HashContent([]byte(`{"name":"Jane"}`))
	h2 := HashContent([]byte(`{"name":"Jane"}`))
	if h1 != h2 || len(h1) != 64 {
		t.Errorf("hash should be deterministic 64 hex chars, got %q and %q", h1, h2)
	}
}
