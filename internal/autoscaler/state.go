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

// Package autoscaler owns AutoscalerState: the per-service, long-lived
// object the control loop mutates every tick. It wires internal/targetcalc
// and internal/decision together (recomputing target_num_replicas with
// overprovision is this package's job, not decision's, since that step
// requires invoking the target calculator) and owns checkpoint
// serialization for restart recovery.
package autoscaler

import (
	"context"
	"sync"

	"github.com/skyfleet/autoscaler/internal/config"
	"github.com/skyfleet/autoscaler/internal/decision"
	"github.com/skyfleet/autoscaler/internal/metricwindow"
	"github.com/skyfleet/autoscaler/internal/replicaview"
	"github.com/skyfleet/autoscaler/internal/targetcalc"
)

// State is one service's autoscaler: its spec, its metric window, and the
// rolling-update bookkeeping the decision generator needs across ticks.
// Its target and version bookkeeping are changed by Tick, ObserveVersion
// and Load; Ingest and Dump are safe to call concurrently with Tick from
// the owning control loop's goroutines.
type State struct {
	ServiceName string
	Spec        config.ServiceSpec

	mu sync.Mutex
	// targetNumReplicas is the publicly reported target_num_replicas:
	// desired + num_overprovision. lastDesired is the bare, pre-overprovision
	// value the target calculator's fail-static path feeds back in on the
	// next tick (it must never see overprovision baked in, or a stale/absent
	// metric would compound it every tick instead of holding steady).
	targetNumReplicas      int
	lastDesired            int
	latestVersion          int
	latestVersionEverReady int

	window *metricwindow.Window
}

// New constructs a State from a validated ServiceSpec. target_num_replicas
// starts at min_replicas, matching "scale to zero is permitted (when
// min_replicas = 0)" read the other way: an autoscaler with no history yet
// holds at its floor until the first tick observes real load.
func New(serviceName string, spec config.ServiceSpec) (*State, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &State{
		ServiceName:       serviceName,
		Spec:              spec,
		targetNumReplicas: spec.MinReplicas,
		lastDesired:       spec.MinReplicas,
		window:            metricwindow.New(),
	}, nil
}

// Ingest admits metric samples into the window. Safe to call concurrently
// with Tick; the window's own RWMutex is the only lock touched.
func (s *State) Ingest(samples []metricwindow.Sample) []metricwindow.IngestionWarning {
	return s.window.Ingest(samples)
}

// TargetNumReplicas reports the autoscaler's current desired replica
// count, i.e. the value computed by the most recent Tick.
func (s *State) TargetNumReplicas() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetNumReplicas
}

// ObserveVersion records that a replica of the given version reached
// READY, advancing latest_version_ever_ready. The caller (the owning
// control loop, fed by the external provisioner's replica snapshot) is
// responsible for detecting READY transitions; State only tracks the
// high-water mark the rolling-update gate in §4.3 depends on.
func (s *State) ObserveVersion(version int, anyReady bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version > s.latestVersion {
		s.latestVersion = version
	}
	if anyReady && version == s.latestVersion && version > s.latestVersionEverReady {
		s.latestVersionEverReady = version
	}
}

// Tick runs one control-loop iteration: recompute target_num_replicas via
// the active target-calculator variant (including overprovision), then
// generate the ordered scaling decisions for the current replica set.
// strictMaxCapacity comes from the global config key serve.strict_max_capacity.
func (s *State) Tick(
	ctx context.Context,
	aggregator targetcalc.RequestAggregator,
	replicas []replicaview.Info,
	now float64,
	strictMaxCapacity bool,
	opts ...decision.Option,
) ([]decision.AutoscalerDecision, error) {
	s.mu.Lock()
	currentTarget := s.lastDesired
	latestVersion := s.latestVersion
	latestVersionEverReady := s.latestVersionEverReady
	s.mu.Unlock()

	desired, calcErr := targetcalc.Calculate(ctx, s.Spec, s.window, aggregator, now, currentTarget)
	target := desired + s.Spec.NumOverprovision

	s.mu.Lock()
	s.lastDesired = desired
	s.targetNumReplicas = target
	s.mu.Unlock()

	decisions := decision.Generate(decision.Inputs{
		Replicas:               replicas,
		TargetNumReplicas:      target,
		EffectiveCap:           s.Spec.EffectiveCap(),
		LatestVersion:          latestVersion,
		LatestVersionEverReady: latestVersionEverReady,
		StrictMaxCapacity:      strictMaxCapacity,
	}, opts...)

	return decisions, calcErr
}
