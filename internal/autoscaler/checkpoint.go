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

package autoscaler

import "github.com/skyfleet/autoscaler/internal/metricwindow"

// Checkpoint is the key/value mapping persisted for restart recovery,
// matching §6's minimum field set plus the variant-specific dynamic_state
// (here, the metric window's buffered samples).
type Checkpoint struct {
	TargetNumReplicas      int                    `json:"target_num_replicas"`
	LatestVersion          int                    `json:"latest_version"`
	LatestVersionEverReady int                    `json:"latest_version_ever_ready"`
	DynamicState           CheckpointDynamicState `json:"dynamic_state"`
}

// CheckpointDynamicState is the variant-specific slice of the checkpoint:
// enough of the metric window's contents to resume aggregation/staleness
// decisions identically after a restart.
type CheckpointDynamicState struct {
	Samples map[string][]metricwindow.Sample `json:"samples"` // metric_name -> samples across all sources
}

// Dump produces a Checkpoint snapshot of s. Safe to call concurrently with
// Ingest; briefly holds s.mu and the window's read lock.
func (s *State) Dump() Checkpoint {
	s.mu.Lock()
	cp := Checkpoint{
		TargetNumReplicas:      s.targetNumReplicas,
		LatestVersion:          s.latestVersion,
		LatestVersionEverReady: s.latestVersionEverReady,
	}
	s.mu.Unlock()

	cp.DynamicState = CheckpointDynamicState{Samples: s.window.Snapshot()}
	return cp
}

// Load re-hydrates s from a Checkpoint produced by Dump, satisfying the
// round-trip requirement in §6: subsequent decisions are indistinguishable
// from what they would have been had the process never restarted, given
// the same inputs.
func (s *State) Load(cp Checkpoint) {
	s.mu.Lock()
	s.targetNumReplicas = cp.TargetNumReplicas
	// lastDesired isn't in the checkpoint's minimum field set; derive it by
	// reversing the overprovision addition so the next stale tick's
	// fail-static path holds rather than compounds.
	s.lastDesired = cp.TargetNumReplicas - s.Spec.NumOverprovision
	if s.lastDesired < 0 {
		s.lastDesired = 0
	}
	s.latestVersion = cp.LatestVersion
	s.latestVersionEverReady = cp.LatestVersionEverReady
	s.mu.Unlock()

	s.window = metricwindow.New()
	for _, samples := range cp.DynamicState.Samples {
		s.window.Ingest(samples)
	}
}
