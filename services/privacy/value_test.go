// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package privacy

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"business_card", LevelBusinessCard},
		{"PROFESSIONAL", LevelProfessional},
		{" public_full ", LevelPublicFull},
		{"ai_safe", LevelAISafe},
		{"none", LevelNone},
		{"", LevelPublicFull},
		{"everything", LevelPublicFull},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "ParseLevel(%q)", tt.in)
	}
}

func TestLevelKnown(t *testing.T) {
	assert.True(t, LevelAISafe.Known())
	assert.True(t, LevelNone.Known())
	assert.False(t, Level("secret_mode").Known())
}

func TestClone_DeepCopy(t *testing.T) {
	original := Record{
		"name": "Jane",
		"contact": map[string]any{
			"email": "jane@co.com",
		},
		"tags": []any{"a", map[string]any{"k": "v"}},
	}

	cloned := CloneRecord(original)
	cloned["contact"].(map[string]any)["email"] = "changed"
	cloned["tags"].([]any)[1].(map[string]any)["k"] = "changed"

	assert.Equal(t, "jane@co.com", original["contact"].(map[string]any)["email"])
	assert.Equal(t, "v", original["tags"].([]any)[1].(map[string]any)["k"])
}

func TestClone_NormalizesTypedContainers(t *testing.T) {
	cloned := Clone(map[string]any{
		"skills": []string{"go", "sql"},
		"links":  map[string]string{"github": "https://github.com/jane"},
	})

	rec := cloned.(map[string]any)
	assert.Equal(t, []any{"go", "sql"}, rec["skills"])
	assert.Equal(t, map[string]any{"github": "https://github.com/jane"}, rec["links"])
}

func TestCloneRecord_Nil(t *testing.T) {
	assert.Nil(t, CloneRecord(nil))
}

func TestDecodeRecordBytes(t *testing.T) {
	rec, err := DecodeRecordBytes([]byte(`{"id": 12345678901234567890, "name": "Jane"}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("12345678901234567890"), rec["id"])

	data, err := EncodeRecord(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": 12345678901234567890, "name": "Jane"}`, string(data))
}

func TestDecodeRecordBytes_NotObject(t *testing.T) {
	_, err := DecodeRecordBytes([]byte(`[1, 2, 3]`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotObject))

	_, err = DecodeRecordBytes([]byte(`{"broken":`))
	require.Error(t, err)
}
