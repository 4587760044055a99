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
	"strings"

	"github.com/gin-gonic/gin"
)

// DefaultSubjectHeader carries the caller identity set by the
// authenticating proxy in front of the service.
const DefaultSubjectHeader = "X-Authenticated-User"

// Authenticator identifies the caller of a request.
//
// The API treats a caller as authenticated for a profile only when the
// returned subject equals the profile's username.
type Authenticator interface {
	// Subject returns the caller's username and true, or "" and false for
	// an anonymous caller.
	Subject(c *gin.Context) (string, bool)
}

// HeaderAuthenticator trusts a header set by an upstream proxy. It must
// only be used behind a proxy that strips the header from client input.
type HeaderAuthenticator struct {
	Header string
}

// Subject implements Authenticator.
func (a HeaderAuthenticator) Subject(c *gin.Context) (string, bool) {
	header := a.Header
	if header == "" {
		header = DefaultSubjectHeader
	}
	subject := strings.TrimSpace(c.GetHeader(header))
	return subject, subject != ""
}

// Anonymous treats every caller as unauthenticated.
type Anonymous struct{}

// Subject implements Authenticator.
func (Anonymous) Subject(*gin.Context) (string, bool) { return "", false }
