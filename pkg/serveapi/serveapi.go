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

// Package serveapi holds the public Go contracts an embedding orchestrator
// implements to wire its own transport, provisioner, and request-metering
// layer into the autoscaler core. Everything in internal/ is reachable
// only through these interfaces plus internal/config for the YAML spec
// shape; no internal package is imported directly by an external module.
package serveapi

import (
	"context"

	"github.com/skyfleet/autoscaler/internal/decision"
	"github.com/skyfleet/autoscaler/internal/metricwindow"
	"github.com/skyfleet/autoscaler/internal/replicaview"
)

// RequestAggregator is the QPS-variant target calculator's one external
// collaborator: get_qps_total() from the external interface contract.
type RequestAggregator interface {
	QPSTotal(ctx context.Context) (float64, error)
}

// Provisioner applies one tick's ordered decision list against the real
// fleet. Errors are opaque (ProvisionerError, §7 of the design spec): the
// autoscaler core only logs and retries on the next tick, it never
// inspects provisioner-internal failure detail.
type Provisioner interface {
	Apply(ctx context.Context, decisions []decision.AutoscalerDecision) error
}

// ReplicaSource supplies the current replica snapshot every tick, owned
// by the same external system that implements Provisioner.
type ReplicaSource interface {
	Replicas(ctx context.Context) ([]replicaview.Info, error)
}

// Sample is the metric ingestion payload shape re-exported for external
// callers that decode wire bytes themselves before handing samples to a
// running Loop's Ingest method.
type Sample = metricwindow.Sample

// Decision is the provisioner contract entry re-exported for callers that
// only need the public type, not the generator itself.
type Decision = decision.AutoscalerDecision

// DecodeSamples parses an ingestion payload (single object or JSON array)
// into Samples; see internal/metricwindow for per-field validation
// behavior on Ingest.
func DecodeSamples(body []byte) ([]Sample, error) {
	return metricwindow.DecodeSamples(body)
}
