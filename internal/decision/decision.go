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

// Package decision reconciles a desired replica count against the current
// replica set into an ordered list of scaling decisions for an external
// provisioner to apply. It is pure: no I/O, no retries, no suspension
// points, bounded work in |replicas|.
package decision

import (
	"sort"

	"github.com/skyfleet/autoscaler/internal/replicaview"
)

// Operator is the action a Decision asks the provisioner to take.
type Operator string

const (
	ScaleUp   Operator = "SCALE_UP"
	ScaleDown Operator = "SCALE_DOWN"
	// Replace is the optional collapsed form of a paired SCALE_DOWN +
	// SCALE_UP, only ever produced when WithReplaceCollapsing is set.
	Replace Operator = "REPLACE"
)

// AutoscalerDecision is one entry of the provisioner contract. Target is
// nil for SCALE_UP (the provisioner allocates the id); it names a
// replica_id for SCALE_DOWN and REPLACE.
type AutoscalerDecision struct {
	Operator Operator
	Target   *int
}

func scaleDown(replicaID int) AutoscalerDecision {
	id := replicaID
	return AutoscalerDecision{Operator: ScaleDown, Target: &id}
}

// Inputs bundles everything the generator needs for one tick. TargetNumReplicas
// must already include overprovision (step 1 of the procedure happens in
// the caller -- see internal/autoscaler -- since it requires invoking the
// target calculator, which decision intentionally has no dependency on).
type Inputs struct {
	Replicas               []replicaview.Info
	TargetNumReplicas      int
	EffectiveCap           int // max_replicas + num_overprovision
	LatestVersion          int
	LatestVersionEverReady int
	StrictMaxCapacity      bool
}

// Option configures optional Generate behavior.
type Option func(*options)

type options struct {
	collapseReplace bool
}

// WithReplaceCollapsing enables the REPLACE collapsing described in the
// design spec's §4.3: each SCALE_DOWN(old replica) is paired with one of the
// SCALE_UP decisions already implied by the deficit into a single REPLACE
// entry, for as long as unpaired SCALE_UPs remain. Default false preserves
// the literal SCALE_DOWN/SCALE_UP contract.
func WithReplaceCollapsing(enabled bool) Option {
	return func(o *options) { o.collapseReplace = enabled }
}

// Generate implements the five-step procedure: classify replicas, emit
// terminal and excess SCALE_DOWN decisions (honoring the rolling-update
// gate), then emit SCALE_UP decisions for the remaining deficit (honoring
// strict_max_capacity). SCALE_DOWN decisions always precede SCALE_UP.
func Generate(in Inputs, opts ...Option) []AutoscalerDecision {
	var cfg options
	for _, opt := range opts {
		opt(&cfg)
	}

	gateOpen := in.LatestVersionEverReady == in.LatestVersion

	var terminalDecisions []AutoscalerDecision
	var alive []replicaview.Info
	for _, r := range in.Replicas {
		if r.IsTerminal {
			terminalDecisions = append(terminalDecisions, scaleDown(r.ReplicaID))
			continue
		}
		alive = append(alive, r)
	}

	var pruneCandidates []replicaview.Info
	var protected []replicaview.Info
	for _, r := range alive {
		isOld := r.Version < in.LatestVersion
		if isOld && !gateOpen {
			protected = append(protected, r)
			continue
		}
		pruneCandidates = append(pruneCandidates, r)
	}

	sort.SliceStable(pruneCandidates, func(i, j int) bool {
		a, b := pruneCandidates[i], pruneCandidates[j]
		if a.IsReady != b.IsReady {
			return !a.IsReady // not-ready before ready
		}
		if a.Version != b.Version {
			return a.Version < b.Version // older version before newer
		}
		return a.ReplicaID > b.ReplicaID // higher replica_id before lower
	})

	excess := len(alive) - in.TargetNumReplicas
	if excess < 0 {
		excess = 0
	}
	if excess > len(pruneCandidates) {
		excess = len(pruneCandidates)
	}

	var excessDecisions []AutoscalerDecision
	prunedIDs := make(map[int]bool, excess)
	for i := 0; i < excess; i++ {
		r := pruneCandidates[i]
		excessDecisions = append(excessDecisions, scaleDown(r.ReplicaID))
		prunedIDs[r.ReplicaID] = true
	}

	aliveAfterScaleDown := len(alive) - excess

	deficit := in.TargetNumReplicas - aliveAfterScaleDown
	if deficit < 0 {
		deficit = 0
	}
	if in.StrictMaxCapacity {
		room := in.EffectiveCap - aliveAfterScaleDown
		if room < 0 {
			room = 0
		}
		if deficit > room {
			deficit = room
		}
	}

	decisions := make([]AutoscalerDecision, 0, len(terminalDecisions)+len(excessDecisions)+deficit)
	decisions = append(decisions, terminalDecisions...)
	decisions = append(decisions, excessDecisions...)

	scaleUpDecisions := make([]AutoscalerDecision, deficit)
	for i := range scaleUpDecisions {
		scaleUpDecisions[i] = AutoscalerDecision{Operator: ScaleUp}
	}

	if cfg.collapseReplace {
		decisions, scaleUpDecisions = collapseReplacements(decisions, scaleUpDecisions, in.Replicas, in.LatestVersion)
	}

	decisions = append(decisions, scaleUpDecisions...)
	return decisions
}

// collapseReplacements rewrites each SCALE_DOWN(old replica) + pending
// SCALE_UP pair into a single REPLACE entry, in decision order until the
// pending SCALE_UPs run out, purely as a reporting
// convenience for the provisioner -- the alive-count arithmetic computed
// above is unaffected either way. Typical trigger: a terminal (e.g.
// FAILED) old-version replica is destroyed in the same tick a fresh
// replica is needed to hold the target count steady.
func collapseReplacements(
	decisions []AutoscalerDecision,
	scaleUps []AutoscalerDecision,
	replicas []replicaview.Info,
	latestVersion int,
) ([]AutoscalerDecision, []AutoscalerDecision) {
	if len(scaleUps) == 0 {
		return decisions, scaleUps
	}
	versionByID := make(map[int]int, len(replicas))
	for _, r := range replicas {
		versionByID[r.ReplicaID] = r.Version
	}

	collapsed := 0
	for i := range decisions {
		if decisions[i].Operator != ScaleDown || decisions[i].Target == nil {
			continue
		}
		version, ok := versionByID[*decisions[i].Target]
		if !ok || version >= latestVersion {
			continue
		}
		decisions[i].Operator = Replace
		collapsed++
		if collapsed >= len(scaleUps) {
			break
		}
	}
	if collapsed == 0 {
		return decisions, scaleUps
	}
	return decisions, scaleUps[collapsed:]
}
