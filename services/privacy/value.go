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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrNotObject is returned when decoded JSON is valid but is not an object.
var ErrNotObject = errors.New("privacy: record must be a JSON object")

// Clone returns a deep copy of v.
//
// Description:
//
//	Maps and slices are copied recursively; scalars are returned as-is.
//	Typed containers produced by callers that did not go through JSON
//	([]string, map[string]string) are normalized to []any / map[string]any
//	so that downstream transforms only ever see the JSON shapes.
//
// Inputs:
//   - v: Any Value. Cyclic structures are a contract violation.
//
// Outputs:
//   - Value: A structurally independent copy.
func Clone(v Value) Value {
	switch t := v.(type) {
	case map[string]any:
		return CloneRecord(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Clone(item)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = item
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = item
		}
		return out
	default:
		return v
	}
}

// CloneRecord returns a deep copy of r. A nil record clones to nil.
func CloneRecord(r Record) Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = Clone(v)
	}
	return out
}

// AsRecord returns v as a Record when it is a JSON object.
func AsRecord(v Value) (Record, bool) {
	r, ok := v.(map[string]any)
	return r, ok
}

// AsList returns v as a JSON array.
func AsList(v Value) ([]any, bool) {
	l, ok := v.([]any)
	return l, ok
}

// DecodeRecord reads a single JSON object from r.
//
// Description:
//
//	Numbers are decoded as json.Number so that large integers survive the
//	"none" escape hatch byte-for-byte when re-encoded.
//
// Outputs:
//   - Record: The decoded object.
//   - error: Non-nil on malformed JSON or a non-object top level value.
func DecodeRecord(r io.Reader) (Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	rec, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return rec, nil
}

// DecodeRecordBytes is DecodeRecord over a byte slice.
func DecodeRecordBytes(data []byte) (Record, error) {
	return DecodeRecord(bytes.NewReader(data))
}

// EncodeRecord serializes r as compact JSON. Map keys are sorted by
// encoding/json, so equal records always encode to equal bytes.
func EncodeRecord(r Record) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	return data, nil
}
