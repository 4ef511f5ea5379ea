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

// Package config owns the parsed, validated shape of a service's
// autoscaling configuration. Loading the YAML bytes off disk or a
// ConfigMap is an external collaborator's job (spec.md treats "YAML
// configuration loading" as out of scope for the decision core); this
// package only owns decode + Validate.
package config

import (
	"gopkg.in/yaml.v3"

	"github.com/skyfleet/autoscaler/internal/metricwindow"
)

// ServiceSpec is the per-service autoscaling policy. Exactly one of
// TargetQPSPerReplica or AutoscalingMetric selects the active target
// calculator variant (§4.2); BaseOndemandFallbackReplicas additionally
// wraps the external-metric variant in a fallback floor.
type ServiceSpec struct {
	MinReplicas int `yaml:"min_replicas"`
	MaxReplicas int `yaml:"max_replicas"`

	TargetQPSPerReplica *float64           `yaml:"target_qps_per_replica,omitempty"`
	AutoscalingMetric   *metricwindow.Spec `yaml:"autoscaling_metric,omitempty"`

	NumOverprovision             int `yaml:"num_overprovision"`
	BaseOndemandFallbackReplicas int `yaml:"base_ondemand_fallback_replicas"`

	ReadinessPath          string  `yaml:"readiness_path"`
	InitialDelaySeconds    float64 `yaml:"initial_delay_seconds"`
	ReadinessTimeoutSeconds float64 `yaml:"readiness_timeout_seconds"`
}

// EffectiveCap returns max_replicas + num_overprovision, the hard ceiling
// used throughout §4.3.
func (s ServiceSpec) EffectiveCap() int {
	return s.MaxReplicas + s.NumOverprovision
}

// Parse decodes a YAML document into a ServiceSpec and validates it,
// normalizing the Kind/Aggregation enum strings to lower case on the way
// in per the external interface contract.
func Parse(doc []byte) (ServiceSpec, error) {
	var spec ServiceSpec
	if err := yaml.Unmarshal(doc, &spec); err != nil {
		return ServiceSpec{}, newConfigError("<document>", err.Error())
	}
	if spec.AutoscalingMetric != nil {
		if k, ok := metricwindow.ParseKind(string(spec.AutoscalingMetric.Kind)); ok {
			spec.AutoscalingMetric.Kind = k
		}
		if a, ok := metricwindow.ParseAggregation(string(spec.AutoscalingMetric.Aggregation)); ok {
			spec.AutoscalingMetric.Aggregation = a
		}
	}
	if err := spec.Validate(); err != nil {
		return ServiceSpec{}, err
	}
	return spec, nil
}

// Validate enforces every invariant named in the data model: bounds,
// mutual exclusivity of the two target-calculator selectors, and
// positivity of metric parameters.
func (s ServiceSpec) Validate() error {
	if s.MinReplicas < 0 {
		return newConfigError("min_replicas", "must be >= 0")
	}
	if s.MaxReplicas < s.MinReplicas {
		return newConfigError("max_replicas", "must be >= min_replicas")
	}
	if s.NumOverprovision < 0 {
		return newConfigError("num_overprovision", "must be >= 0")
	}
	if s.BaseOndemandFallbackReplicas < 0 {
		return newConfigError("base_ondemand_fallback_replicas", "must be >= 0")
	}

	if s.TargetQPSPerReplica == nil && s.AutoscalingMetric == nil {
		return newConfigError("target_qps_per_replica", "exactly one of target_qps_per_replica or autoscaling_metric must be set")
	}
	if s.TargetQPSPerReplica != nil && s.AutoscalingMetric != nil {
		return newConfigError("autoscaling_metric", "mutually exclusive with target_qps_per_replica")
	}
	if s.TargetQPSPerReplica != nil && *s.TargetQPSPerReplica <= 0 {
		return newConfigError("target_qps_per_replica", "must be > 0")
	}
	if s.AutoscalingMetric != nil {
		m := s.AutoscalingMetric
		if m.Name == "" {
			return newConfigError("autoscaling_metric.name", "must be set")
		}
		if m.TargetPerReplica <= 0 {
			return newConfigError("autoscaling_metric.target_per_replica", "must be > 0")
		}
		if m.Kind != metricwindow.KindGauge && m.Kind != metricwindow.KindRate {
			return newConfigError("autoscaling_metric.kind", "must be gauge or rate")
		}
		switch m.Aggregation {
		case metricwindow.AggregationSum, metricwindow.AggregationAvg, metricwindow.AggregationMax,
			metricwindow.AggregationMin, metricwindow.AggregationLatest:
		default:
			return newConfigError("autoscaling_metric.aggregation", "must be one of sum|avg|max|min|latest")
		}
		if m.WindowSeconds <= 0 {
			return newConfigError("autoscaling_metric.window_seconds", "must be > 0")
		}
		if m.StaleAfterSeconds <= 0 {
			return newConfigError("autoscaling_metric.stale_after_seconds", "must be > 0")
		}
	}
	return nil
}
