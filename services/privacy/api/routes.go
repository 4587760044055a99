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
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RegisterRoutes registers the privacy endpoints on rg.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	h - The handlers instance
//
// Example:
//
//	v1 := router.Group("/v1")
//	api.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	users := rg.Group("/users/:username")
	{
		users.GET("/profile", h.HandleGetProfile)
		users.PUT("/profile", h.HandlePutProfile)
		users.DELETE("/profile", h.HandleDeleteProfile)
		users.PUT("/settings", h.HandlePutSettings)
		users.GET("/endpoints/:endpoint", h.HandleGetEndpoint)
		users.PUT("/endpoints/:endpoint", h.HandlePutEndpoint)
	}

	privacyGroup := rg.Group("/privacy")
	{
		privacyGroup.POST("/filter", h.HandleFilter)
		privacyGroup.POST("/filter/batch", h.HandleFilterBatch)
		privacyGroup.POST("/validate", h.HandleValidate)
		privacyGroup.GET("/health", h.HandleHealth)
	}
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// ServiceName labels otelgin spans.
	ServiceName string

	// RateLimiter bounds per-client request rates. Nil disables limiting.
	RateLimiter *ClientRateLimiter

	// AccessLog enables gin's request logger.
	AccessLog bool
}

// NewRouter builds a gin engine with recovery, tracing, request IDs and
// rate limiting, with all routes mounted under /v1.
func NewRouter(h *Handlers, opts RouterOptions) *gin.Engine {
	if opts.ServiceName == "" {
		opts.ServiceName = "privacyguard"
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(opts.ServiceName))
	if opts.AccessLog {
		router.Use(gin.Logger())
	}
	router.Use(func(c *gin.Context) {
		getOrCreateRequestID(c)
		c.Next()
	})
	if opts.RateLimiter != nil {
		router.Use(RateLimitMiddleware(opts.RateLimiter, h.auth))
	}

	RegisterRoutes(router.Group("/v1"), h)
	return router
}
