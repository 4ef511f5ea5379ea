package decision

import (
	"testing"

	"github.com/skyfleet/autoscaler/internal/replicaview"
)

func r(id, version int, status replicaview.Status, ready bool) replicaview.Info {
	return replicaview.Info{
		ReplicaID:  id,
		Version:    version,
		Status:     status,
		IsReady:    ready,
		IsTerminal: status.IsTerminal(),
	}
}

func countOp(ds []AutoscalerDecision, op Operator) int {
	n := 0
	for _, d := range ds {
		if d.Operator == op {
			n++
		}
	}
	return n
}

func TestStrictCapAtCapacity(t *testing.T) {
	replicas := []replicaview.Info{
		r(1, 1, replicaview.Ready, true),
		r(2, 1, replicaview.Ready, true),
		r(3, 1, replicaview.Ready, true),
	}
	ds := Generate(Inputs{
		Replicas: replicas, TargetNumReplicas: 13, EffectiveCap: 3,
		LatestVersion: 1, LatestVersionEverReady: 1, StrictMaxCapacity: true,
	})
	// Target of 13 against 3 alive replicas and a cap of 3: no room at all.
	if got := countOp(ds, ScaleUp); got != 0 {
		t.Fatalf("expected scale-up capped to 0 at capacity, got %d", got)
	}
	if got := countOp(ds, ScaleDown); got != 0 {
		t.Fatalf("expected no scale-down when alive == target's clamp floor, got %d", got)
	}
}

func TestStrictCapBelowCapacity(t *testing.T) {
	replicas := []replicaview.Info{r(1, 1, replicaview.Ready, true)}
	ds := Generate(Inputs{
		Replicas: replicas, TargetNumReplicas: 13, EffectiveCap: 3,
		LatestVersion: 1, LatestVersionEverReady: 1, StrictMaxCapacity: true,
	})
	if got := countOp(ds, ScaleUp); got > 2 {
		t.Fatalf("expected at most 2 scale-up decisions to reach cap 3, got %d", got)
	}
	if got := countOp(ds, ScaleUp); got != 2 {
		t.Fatalf("expected exactly 2 scale-up decisions, got %d", got)
	}
}

func TestOverprovisionRaisesEffectiveCap(t *testing.T) {
	replicas := []replicaview.Info{
		r(1, 1, replicaview.Ready, true),
		r(2, 1, replicaview.Ready, true),
		r(3, 1, replicaview.Ready, true),
		r(4, 1, replicaview.Ready, true),
	}
	// max=3, num_overprovision=2 => effective cap=5; current alive=4 is
	// below cap, so exactly 1 scale-up is allowed even though the desired
	// target asks for more.
	ds := Generate(Inputs{
		Replicas: replicas, TargetNumReplicas: 10, EffectiveCap: 5,
		LatestVersion: 1, LatestVersionEverReady: 1, StrictMaxCapacity: true,
	})
	if got := countOp(ds, ScaleUp); got != 1 {
		t.Fatalf("expected exactly 1 scale-up under overprovisioned cap, got %d", got)
	}
}

func TestNonStrictCapAllowsExceedingCapacity(t *testing.T) {
	replicas := []replicaview.Info{r(1, 1, replicaview.Ready, true), r(2, 1, replicaview.Ready, true), r(3, 1, replicaview.Ready, true)}
	ds := Generate(Inputs{
		Replicas: replicas, TargetNumReplicas: 13, EffectiveCap: 3,
		LatestVersion: 1, LatestVersionEverReady: 1, StrictMaxCapacity: false,
	})
	if got := countOp(ds, ScaleUp); got != 10 {
		t.Fatalf("expected legacy uncapped behavior to emit 10 scale-ups, got %d", got)
	}
}

func TestTerminalReplicasAlwaysScaledDown(t *testing.T) {
	replicas := []replicaview.Info{
		r(1, 1, replicaview.Ready, true),
		r(2, 1, replicaview.Failed, false),
	}
	ds := Generate(Inputs{
		Replicas: replicas, TargetNumReplicas: 1, EffectiveCap: 3,
		LatestVersion: 1, LatestVersionEverReady: 1, StrictMaxCapacity: true,
	})
	if got := countOp(ds, ScaleDown); got != 1 {
		t.Fatalf("expected terminal replica scale-down, got %d decisions: %+v", got, ds)
	}
	if ds[0].Operator != ScaleDown || *ds[0].Target != 2 {
		t.Fatalf("expected the terminal replica (id 2) to be scaled down, got %+v", ds[0])
	}
}

func TestScaleDownOrdering_NotReadyThenOlderThenHigherID(t *testing.T) {
	replicas := []replicaview.Info{
		r(1, 2, replicaview.Ready, true),
		r(2, 2, replicaview.NotReady, false),
		r(3, 1, replicaview.Ready, true),
		r(4, 1, replicaview.Ready, true),
	}
	ds := Generate(Inputs{
		Replicas: replicas, TargetNumReplicas: 1, EffectiveCap: 10,
		LatestVersion: 2, LatestVersionEverReady: 2, StrictMaxCapacity: true,
	})
	var order []int
	for _, d := range ds {
		if d.Operator == ScaleDown {
			order = append(order, *d.Target)
		}
	}
	// replica 2 is not-ready: first. Then among ready ones, older version
	// (replica 3, 4 at v1) before newer (replica 1 at v2); among the v1
	// pair, higher replica_id (4) before lower (3).
	want := []int{2, 4, 3}
	if len(order) != len(want) {
		t.Fatalf("expected %d scale-downs, got %v", len(want), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected scale-down order %v, got %v", want, order)
		}
	}
}

func TestRollingUpdateGateBlocksOldScaleDown(t *testing.T) {
	replicas := []replicaview.Info{
		r(1, 1, replicaview.Ready, true),
		r(2, 1, replicaview.Ready, true),
		r(3, 1, replicaview.Ready, true),
		r(4, 2, replicaview.NotReady, false),
	}
	// latest_version_ever_ready=1 (not yet 2): no v1 replica may be
	// scaled down, even though desired=3 and 4 are alive.
	ds := Generate(Inputs{
		Replicas: replicas, TargetNumReplicas: 3, EffectiveCap: 10,
		LatestVersion: 2, LatestVersionEverReady: 1, StrictMaxCapacity: true,
	})
	if got := countOp(ds, ScaleDown); got != 0 {
		t.Fatalf("expected no scale-down of protected old replicas, got %d: %+v", got, ds)
	}
	// alive(4) is above target(3), so no scale-up is needed either.
	if got := countOp(ds, ScaleUp); got != 0 {
		t.Fatalf("expected no scale-up when already at or above target, got %d", got)
	}
}

func TestRollingUpdateGateScaleUpOnlyWhenBelowDesired(t *testing.T) {
	replicas := []replicaview.Info{
		r(1, 1, replicaview.Ready, true),
		r(2, 1, replicaview.Ready, true),
		r(3, 1, replicaview.Ready, true),
		r(4, 2, replicaview.NotReady, false),
	}
	ds := Generate(Inputs{
		Replicas: replicas, TargetNumReplicas: 5, EffectiveCap: 10,
		LatestVersion: 2, LatestVersionEverReady: 1, StrictMaxCapacity: true,
	})
	if got := countOp(ds, ScaleDown); got != 0 {
		t.Fatalf("expected no scale-down of protected old replicas, got %d", got)
	}
	if got := countOp(ds, ScaleUp); got != 1 {
		t.Fatalf("expected exactly 1 scale-up (5 desired - 4 alive), got %d", got)
	}
}

func TestRollingUpdateGateOpensOnceLatestEverReady(t *testing.T) {
	replicas := []replicaview.Info{
		r(1, 1, replicaview.Ready, true),
		r(2, 1, replicaview.Ready, true),
		r(3, 1, replicaview.Ready, true),
		r(4, 2, replicaview.Ready, true),
	}
	ds := Generate(Inputs{
		Replicas: replicas, TargetNumReplicas: 2, EffectiveCap: 10,
		LatestVersion: 2, LatestVersionEverReady: 2, StrictMaxCapacity: true,
	})
	if got := countOp(ds, ScaleDown); got != 2 {
		t.Fatalf("expected 2 old replicas scaled down once the gate opens, got %d: %+v", got, ds)
	}
}

func TestScaleDownAlwaysPrecedesScaleUp(t *testing.T) {
	replicas := []replicaview.Info{
		r(1, 1, replicaview.Ready, true),
		r(2, 1, replicaview.Failed, false),
	}
	ds := Generate(Inputs{
		Replicas: replicas, TargetNumReplicas: 3, EffectiveCap: 10,
		LatestVersion: 1, LatestVersionEverReady: 1, StrictMaxCapacity: true,
	})
	seenScaleUp := false
	for _, d := range ds {
		if d.Operator == ScaleUp {
			seenScaleUp = true
		}
		if d.Operator == ScaleDown && seenScaleUp {
			t.Fatalf("found SCALE_DOWN after SCALE_UP: %+v", ds)
		}
	}
}

func TestIdempotenceNoChurnWhenAtTarget(t *testing.T) {
	replicas := []replicaview.Info{
		r(1, 1, replicaview.Ready, true),
		r(2, 1, replicaview.Ready, true),
	}
	ds := Generate(Inputs{
		Replicas: replicas, TargetNumReplicas: 2, EffectiveCap: 10,
		LatestVersion: 1, LatestVersionEverReady: 1, StrictMaxCapacity: true,
	})
	if len(ds) != 0 {
		t.Fatalf("expected empty decision list at steady state, got %+v", ds)
	}
}

func TestReplaceCollapsing(t *testing.T) {
	// A terminal old-version replica is destroyed in the same tick a new
	// replica is needed to hold target steady: one SCALE_DOWN(old) paired
	// with one pending SCALE_UP collapses into a single REPLACE.
	replicas := []replicaview.Info{
		r(1, 1, replicaview.Failed, false),
		r(2, 2, replicaview.Ready, true),
	}
	ds := Generate(Inputs{
		Replicas: replicas, TargetNumReplicas: 2, EffectiveCap: 10,
		LatestVersion: 2, LatestVersionEverReady: 2, StrictMaxCapacity: true,
	}, WithReplaceCollapsing(true))
	if len(ds) != 1 || ds[0].Operator != Replace || *ds[0].Target != 1 {
		t.Fatalf("expected a single REPLACE(1) decision, got %+v", ds)
	}
}

func TestReplaceCollapsingDisabledByDefault(t *testing.T) {
	replicas := []replicaview.Info{
		r(1, 1, replicaview.Failed, false),
		r(2, 2, replicaview.Ready, true),
	}
	ds := Generate(Inputs{
		Replicas: replicas, TargetNumReplicas: 2, EffectiveCap: 10,
		LatestVersion: 2, LatestVersionEverReady: 2, StrictMaxCapacity: true,
	})
	if countOp(ds, Replace) != 0 {
		t.Fatalf("expected no REPLACE collapsing without the option, got %+v", ds)
	}
	if countOp(ds, ScaleDown) != 1 || countOp(ds, ScaleUp) != 1 {
		t.Fatalf("expected separate SCALE_DOWN/SCALE_UP, got %+v", ds)
	}
}
