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
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	// viewsTotal counts rendered views by effective level.
	viewsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "privacy",
		Name:      "views_total",
		Help:      "Total rendered views by effective privacy level",
	}, []string{"level"})

	// viewFieldsRemovedTotal counts leaf values removed by filtering and
	// masking, by effective level.
	viewFieldsRemovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "privacy",
		Name:      "view_fields_removed_total",
		Help:      "Total leaf values removed from rendered views by effective privacy level",
	}, []string{"level"})

	// viewsDeniedTotal counts refused views.
	// Labels: level, reason (ai_access)
	viewsDeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "privacy",
		Name:      "views_denied_total",
		Help:      "Total refused view requests by requested level and reason",
	}, []string{"level", "reason"})

	// validationTotal counts parameter validations.
	// Labels: kind (username, endpoint, text), status (ok, empty, dangerous, format, length)
	validationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "privacy",
		Name:      "validation_total",
		Help:      "Total parameter validations by parameter kind and outcome",
	}, []string{"kind", "status"})

	// blockedPatternsTotal counts dangerous-pattern hits by parameter kind
	// and pattern. Both label sets are closed; caller-supplied field names
	// never become labels.
	blockedPatternsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "privacy",
		Name:      "blocked_patterns_total",
		Help:      "Total dangerous-pattern blocks by parameter kind and matched pattern",
	}, []string{"kind", "pattern"})
)

// RecordView records a rendered view.
//
// Inputs:
//   - level: The effective level.
//   - removed: Number of leaf values removed.
func RecordView(level string, removed int) {
	viewsTotal.WithLabelValues(level).Inc()
	if removed > 0 {
		viewFieldsRemovedTotal.WithLabelValues(level).Add(float64(removed))
	}
}

// RecordViewDenied records a refused view.
func RecordViewDenied(level, reason string) {
	viewsDeniedTotal.WithLabelValues(level, reason).Inc()
}

// RecordValidation records one parameter validation outcome.
func RecordValidation(kind ParamKind, status string) {
	validationTotal.WithLabelValues(kind.String(), status).Inc()
}

// RecordBlockedPattern records a dangerous-pattern hit.
func RecordBlockedPattern(kind ParamKind, pattern string) {
	blockedPatternsTotal.WithLabelValues(kind.String(), pattern).Inc()
}

// =============================================================================
// OpenTelemetry Metrics
// =============================================================================

var (
	meter = otel.Meter("aleutian.privacy.guard")

	renderDuration metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the OTel instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		renderDuration, metricsErr = meter.Float64Histogram(
			"privacy.render.duration",
			metric.WithDescription("Duration of filter and mask for one view"),
			metric.WithUnit("s"),
		)
	})
	return metricsErr
}

func recordRenderDuration(ctx context.Context, level string, d time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	renderDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("level", level)))
}
