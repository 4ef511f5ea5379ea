/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package targetcalc computes the desired replica count for a service
// from its configured metric window and spec. It is modeled as a tagged
// union rather than one interface implementation per variant (Design
// Note §9): FromSpec picks a Kind tag, and Calculate dispatches on it to
// the free functions calculateQPS / calculateExternal / calculateFallback,
// which take the spec, window, time and current target as plain parameters.
package targetcalc

import (
	"context"
	"math"

	"github.com/skyfleet/autoscaler/internal/config"
	"github.com/skyfleet/autoscaler/internal/metricwindow"
)

// Kind identifies which variant a Calculator runs.
type Kind string

const (
	// KindQPS selects the request-rate-based variant.
	KindQPS Kind = "qps"
	// KindExternal selects the custom-gauge/rate variant.
	KindExternal Kind = "external"
	// KindFallback wraps KindExternal with an on-demand floor.
	KindFallback Kind = "fallback"
)

// RequestAggregator is the external collaborator the QPS variant calls
// once per tick: get_qps_total() in the external interface contract. The
// autoscaler does not otherwise interpret its internals.
type RequestAggregator interface {
	QPSTotal(ctx context.Context) (float64, error)
}

// FromSpec selects the variant a ServiceSpec configures. Construction
// errors (mutual exclusivity, missing metric, etc.) are caught earlier by
// config.ServiceSpec.Validate; FromSpec assumes a validated spec.
func FromSpec(spec config.ServiceSpec) Kind {
	if spec.AutoscalingMetric != nil && spec.BaseOndemandFallbackReplicas > 0 {
		return KindFallback
	}
	if spec.AutoscalingMetric != nil {
		return KindExternal
	}
	return KindQPS
}

// Calculate dispatches to the variant selected by spec and returns the
// desired replica count. currentTarget is the autoscaler's previous bare
// desired value (pre-overprovision), used for the external variant's
// fail-static behavior on stale/absent metrics. Callers must not pass an
// overprovision-inclusive value here, or fail-static would compound it
// every tick instead of holding steady.
func Calculate(
	ctx context.Context,
	spec config.ServiceSpec,
	window *metricwindow.Window,
	aggregator RequestAggregator,
	now float64,
	currentTarget int,
) (int, error) {
	switch FromSpec(spec) {
	case KindQPS:
		return calculateQPS(ctx, spec, aggregator)
	case KindExternal:
		return calculateExternal(spec, window, now, currentTarget), nil
	case KindFallback:
		return calculateFallback(spec, window, now, currentTarget), nil
	default:
		return spec.MinReplicas, nil
	}
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func ceilNonNegative(v float64) int {
	if v < 0 {
		v = 0
	}
	return int(math.Ceil(v))
}

// calculateQPS implements the QPSAutoscaler variant. "No QPS data has
// ever been observed" (the min_replicas fallback in the design spec) maps to no
// aggregator being wired yet; once an aggregator is present, every call
// -- including one reporting a genuine zero -- produces a real reading
// and ceil(0/target) already clamps to min_replicas on its own, so no
// separate "ever observed" bit needs to live in the autoscaler's dynamic
// state. An aggregator error is distinct from a genuine zero reading and
// must not be treated as "no load": it still falls back to the floor,
// but is propagated to the caller rather than silently swallowed.
func calculateQPS(ctx context.Context, spec config.ServiceSpec, aggregator RequestAggregator) (int, error) {
	// A validated spec always carries TargetQPSPerReplica when FromSpec
	// selects KindQPS; this guard only protects against a spec that
	// bypassed Validate.
	if spec.TargetQPSPerReplica == nil {
		return spec.MinReplicas, nil
	}
	if aggregator == nil {
		return spec.MinReplicas, nil
	}
	total, err := aggregator.QPSTotal(ctx)
	if err != nil {
		return spec.MinReplicas, err
	}
	desired := ceilNonNegative(total / *spec.TargetQPSPerReplica)
	return clamp(desired, spec.MinReplicas, spec.MaxReplicas), nil
}

func calculateExternal(spec config.ServiceSpec, window *metricwindow.Window, now float64, currentTarget int) int {
	m := *spec.AutoscalingMetric
	if window.IsStale(m, now) {
		return currentTarget // fail-static
	}
	v, ok := window.Aggregate(m, now)
	if !ok {
		return currentTarget // fail-static
	}
	desired := ceilNonNegative(v / m.TargetPerReplica)
	return clamp(desired, spec.MinReplicas, spec.MaxReplicas)
}

func calculateFallback(spec config.ServiceSpec, window *metricwindow.Window, now float64, currentTarget int) int {
	external := calculateExternal(spec, window, now, currentTarget)
	floor := spec.BaseOndemandFallbackReplicas
	if floor > external {
		return floor
	}
	return external
}
