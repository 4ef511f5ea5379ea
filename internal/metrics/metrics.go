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

// Package metrics registers and emits the Prometheus series the control
// loop exposes for each service's autoscaler: desired/current replica
// gauges, a scaling-operation counter, and metric-window/decision-latency
// observability. Adapted from the teacher's MetricsEmitter, keyed by
// service_name instead of variant_name.
package metrics

import (
	"fmt"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ControllerInstanceEnvVar names the environment variable carrying an
// optional controller instance label, added to every emitted metric when
// set (distinguishes replicas of the autoscaler itself in a
// highly-available deployment).
const ControllerInstanceEnvVar = "CONTROLLER_INSTANCE"

const (
	labelServiceName        = "service_name"
	labelDirection          = "direction"
	labelReason             = "reason"
	labelControllerInstance = "controller_instance"
)

var (
	replicaScalingTotal      *prometheus.CounterVec
	desiredReplicas          *prometheus.GaugeVec
	currentReplicas          *prometheus.GaugeVec
	desiredRatio             *prometheus.GaugeVec
	metricWindowSamples      *prometheus.GaugeVec
	decisionGeneratorSeconds *prometheus.HistogramVec

	controllerInstance string

	initOnce sync.Once
	initErr  error
)

// GetControllerInstance returns the configured controller instance label
// value, or the empty string if unset.
func GetControllerInstance() string {
	return controllerInstance
}

// InitMetrics registers every series with registry. Thread-safe and
// idempotent: only the first call's registry takes effect.
func InitMetrics(registry prometheus.Registerer) error {
	initOnce.Do(func() {
		controllerInstance = os.Getenv(ControllerInstanceEnvVar)

		baseLabels := []string{labelServiceName}
		scalingLabels := []string{labelServiceName, labelDirection, labelReason}
		if controllerInstance != "" {
			baseLabels = append(baseLabels, labelControllerInstance)
			scalingLabels = append(scalingLabels, labelControllerInstance)
		}

		replicaScalingTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skyfleet_replica_scaling_total",
				Help: "Total number of replica scaling operations emitted by the decision generator",
			},
			scalingLabels,
		)
		desiredReplicas = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "skyfleet_desired_replicas",
				Help: "Desired replica count (target_num_replicas) for each service",
			},
			baseLabels,
		)
		currentReplicas = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "skyfleet_current_replicas",
				Help: "Current alive replica count for each service",
			},
			baseLabels,
		)
		desiredRatio = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "skyfleet_desired_ratio",
				Help: "Ratio of desired to current replica count for each service",
			},
			baseLabels,
		)
		metricWindowSamples = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "skyfleet_metric_window_samples",
				Help: "Number of samples currently buffered in a service's metric window",
			},
			baseLabels,
		)
		decisionGeneratorSeconds = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "skyfleet_decision_generator_duration_seconds",
				Help:    "Wall time spent in one Tick's decision generation step",
				Buckets: prometheus.DefBuckets,
			},
			[]string{labelServiceName},
		)

		for _, c := range []prometheus.Collector{
			replicaScalingTotal, desiredReplicas, currentReplicas,
			desiredRatio, metricWindowSamples, decisionGeneratorSeconds,
		} {
			if err := registry.Register(c); err != nil {
				initErr = fmt.Errorf("failed to register metric: %w", err)
				return
			}
		}
	})

	return initErr
}

// InitMetricsAndEmitter registers every series and returns a ready Emitter.
func InitMetricsAndEmitter(registry prometheus.Registerer) (*Emitter, error) {
	if err := InitMetrics(registry); err != nil {
		return nil, err
	}
	return NewEmitter(), nil
}

// Emitter emits metrics for one autoscaler process. Stateless: every
// method takes the values it needs, matching the teacher's MetricsEmitter
// shape.
type Emitter struct{}

// NewEmitter constructs an Emitter.
func NewEmitter() *Emitter {
	return &Emitter{}
}

func (e *Emitter) withInstance(labels prometheus.Labels) prometheus.Labels {
	if controllerInstance != "" {
		labels[labelControllerInstance] = controllerInstance
	}
	return labels
}

// EmitScaling increments the scaling-operation counter for one decision
// (direction and reason are caller-supplied label values; the control loop
// passes the decision operator, "SCALE_UP", "SCALE_DOWN" or "REPLACE", as
// direction and "tick" as reason).
func (e *Emitter) EmitScaling(serviceName, direction, reason string) error {
	if replicaScalingTotal == nil {
		return fmt.Errorf("replicaScalingTotal metric not initialized")
	}
	replicaScalingTotal.With(e.withInstance(prometheus.Labels{
		labelServiceName: serviceName,
		labelDirection:   direction,
		labelReason:      reason,
	})).Inc()
	return nil
}

// EmitReplicaMetrics sets the desired/current/ratio gauges for a service.
// Matches the teacher's zero-current convention: going 0 -> N sets the
// ratio to N rather than dividing by zero.
func (e *Emitter) EmitReplicaMetrics(serviceName string, current, desired int) error {
	if currentReplicas == nil || desiredReplicas == nil || desiredRatio == nil {
		return fmt.Errorf("replica metrics not initialized")
	}
	labels := e.withInstance(prometheus.Labels{labelServiceName: serviceName})
	currentReplicas.With(labels).Set(float64(current))
	desiredReplicas.With(labels).Set(float64(desired))

	if current == 0 {
		desiredRatio.With(labels).Set(float64(desired))
		return nil
	}
	desiredRatio.With(labels).Set(float64(desired) / float64(current))
	return nil
}

// EmitMetricWindowSamples reports a service's current buffered sample
// count for observability.
func (e *Emitter) EmitMetricWindowSamples(serviceName string, count int) error {
	if metricWindowSamples == nil {
		return fmt.Errorf("metricWindowSamples metric not initialized")
	}
	metricWindowSamples.With(e.withInstance(prometheus.Labels{labelServiceName: serviceName})).Set(float64(count))
	return nil
}

// ObserveDecisionGeneratorDuration records how long one Tick's decision
// generation step took.
func (e *Emitter) ObserveDecisionGeneratorDuration(serviceName string, seconds float64) error {
	if decisionGeneratorSeconds == nil {
		return fmt.Errorf("decisionGeneratorSeconds metric not initialized")
	}
	decisionGeneratorSeconds.WithLabelValues(serviceName).Observe(seconds)
	return nil
}
