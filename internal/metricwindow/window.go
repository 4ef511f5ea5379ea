package metricwindow

import (
	"math"
	"sort"
	"sync"
)

// maxSamplesPerSource bounds per-source storage independent of the time
// window, guarding against adversarial or runaway ingestion volume (Design
// Note: "Bounded by both count ... and time").
const maxSamplesPerSource = 4096

// source holds one (metric_name, source_id) pair's buffered samples, kept
// sorted ascending by timestamp so reads never need to re-sort the whole
// slice.
type source struct {
	samples       []Sample
	lastUpdatedAt float64
}

// insert places s in timestamp order. Samples arriving out of order are
// accepted; storage remains sortable (here, sorted on insert via binary
// search for the insertion point).
func (b *source) insert(s Sample) {
	i := sort.Search(len(b.samples), func(i int) bool {
		return b.samples[i].Timestamp > s.Timestamp
	})
	b.samples = append(b.samples, Sample{})
	copy(b.samples[i+1:], b.samples[i:])
	b.samples[i] = s

	if len(b.samples) > maxSamplesPerSource {
		b.samples = b.samples[len(b.samples)-maxSamplesPerSource:]
	}
	if s.Timestamp > b.lastUpdatedAt {
		b.lastUpdatedAt = s.Timestamp
	}
}

// pruneBefore drops samples older than cutoff.
func (b *source) pruneBefore(cutoff float64) {
	i := sort.Search(len(b.samples), func(i int) bool {
		return b.samples[i].Timestamp >= cutoff
	})
	if i > 0 {
		b.samples = b.samples[i:]
	}
}

// Window buffers recent telemetry samples per (metric_name, source_id). A
// single RWMutex guards all per-source state: Ingest takes the write lock
// only for append + timestamp bookkeeping; reads (Aggregate, IsStale,
// Prune) take it for the duration of their snapshot, per the concurrency
// discipline in the design spec.
type Window struct {
	mu      sync.RWMutex
	metrics map[string]map[string]*source // metric_name -> source_id -> source
}

// New returns an empty Window.
func New() *Window {
	return &Window{metrics: make(map[string]map[string]*source)}
}

// Ingest admits samples, normalizing source_id per the legacy proxy_id
// alias chain. Malformed samples are rejected individually and reported
// as warnings; the rest of the batch is still admitted.
func (w *Window) Ingest(samples []Sample) []IngestionWarning {
	var warnings []IngestionWarning

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, s := range samples {
		if err := s.Validate(); err != nil {
			warnings = append(warnings, IngestionWarning{Sample: s, Err: err})
			continue
		}
		sourceID := s.resolvedSourceID()
		s.SourceID = sourceID
		s.ProxyID = ""

		bySource, ok := w.metrics[s.Name]
		if !ok {
			bySource = make(map[string]*source)
			w.metrics[s.Name] = bySource
		}
		b, ok := bySource[sourceID]
		if !ok {
			b = &source{}
			bySource[sourceID] = b
		}
		b.insert(s)
	}

	return warnings
}

// Prune drops samples older than now-window_seconds for the named metric,
// and drops entire sources whose last update predates now-source_ttl.
func (w *Window) Prune(spec Spec, now float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(spec, now)
}

func (w *Window) pruneLocked(spec Spec, now float64) {
	bySource, ok := w.metrics[spec.Name]
	if !ok {
		return
	}
	cutoff := now - spec.WindowSeconds
	ttlCutoff := now - spec.EffectiveSourceTTL()
	for id, b := range bySource {
		if b.lastUpdatedAt < ttlCutoff {
			delete(bySource, id)
			continue
		}
		b.pruneBefore(cutoff)
	}
	if len(bySource) == 0 {
		delete(w.metrics, spec.Name)
	}
}

// perSourceValue reduces one source's in-window samples to a single value
// per spec.Kind. gauge: newest sample's value. rate: (newest-oldest)/(dt),
// clamped to >= 0 per the adopted contract for counter resets; a source
// with fewer than two samples, or with newest.Timestamp == oldest.Timestamp,
// contributes nothing.
func perSourceValue(spec Spec, b *source, cutoff float64) (value float64, ts float64, ok bool) {
	// samples are sorted ascending; find the in-window slice without
	// mutating storage (pruning is a separate, explicit step).
	start := sort.Search(len(b.samples), func(i int) bool {
		return b.samples[i].Timestamp >= cutoff
	})
	inWindow := b.samples[start:]
	if len(inWindow) == 0 {
		return 0, 0, false
	}

	switch spec.Kind {
	case KindRate:
		if len(inWindow) < 2 {
			return 0, 0, false
		}
		oldest := inWindow[0]
		newest := inWindow[len(inWindow)-1]
		dt := newest.Timestamp - oldest.Timestamp
		if dt == 0 {
			return 0, 0, false
		}
		rate := (newest.Value - oldest.Value) / dt
		if rate < 0 {
			rate = 0 // counter reset: adopted contract clamps to zero
		}
		return rate, newest.Timestamp, true
	default: // KindGauge
		newest := inWindow[len(inWindow)-1]
		return newest.Value, newest.Timestamp, true
	}
}

// Aggregate computes the cross-source value for spec at time now, or
// reports absence when no in-window samples exist for any source.
func (w *Window) Aggregate(spec Spec, now float64) (float64, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	bySource, ok := w.metrics[spec.Name]
	if !ok {
		return 0, false
	}
	cutoff := now - spec.WindowSeconds

	type contribution struct {
		sourceID string
		value    float64
		ts       float64
	}
	var values []contribution
	for id, b := range bySource {
		v, ts, ok := perSourceValue(spec, b, cutoff)
		if !ok {
			continue
		}
		values = append(values, contribution{sourceID: id, value: v, ts: ts})
	}
	if len(values) == 0 {
		return 0, false
	}

	// Stable ordering by source_id keeps "latest" tie-breaks and any
	// future deterministic summaries independent of map iteration order.
	sort.Slice(values, func(i, j int) bool { return values[i].sourceID < values[j].sourceID })

	switch spec.Aggregation {
	case AggregationSum:
		var sum float64
		for _, c := range values {
			sum += c.value
		}
		return sum, true
	case AggregationAvg:
		var sum float64
		for _, c := range values {
			sum += c.value
		}
		return sum / float64(len(values)), true
	case AggregationMax:
		best := values[0].value
		for _, c := range values[1:] {
			if c.value > best {
				best = c.value
			}
		}
		return best, true
	case AggregationMin:
		best := values[0].value
		for _, c := range values[1:] {
			if c.value < best {
				best = c.value
			}
		}
		return best, true
	case AggregationLatest:
		best := values[0]
		for _, c := range values[1:] {
			// Greatest timestamp wins; ties break by lexicographic
			// source_id (values is already sorted by source_id, so the
			// first equal-timestamp contender encountered is kept) -
			// Open Question in the design notes, resolved this way for
			// determinism.
			if c.ts > best.ts {
				best = c
			}
		}
		return best.value, true
	default:
		return 0, false
	}
}

// IsStale reports whether the newest sample across all sources for spec
// predates now-stale_after_seconds, or no samples exist at all.
func (w *Window) IsStale(spec Spec, now float64) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	bySource, ok := w.metrics[spec.Name]
	if !ok {
		return true
	}
	newest := math.Inf(-1)
	for _, b := range bySource {
		if len(b.samples) == 0 {
			continue
		}
		t := b.samples[len(b.samples)-1].Timestamp
		if t > newest {
			newest = t
		}
	}
	if math.IsInf(newest, -1) {
		return true
	}
	return newest < now-spec.StaleAfterSeconds
}

// SourceCount returns the number of distinct sources currently buffered
// for the named metric, for observability (internal/metrics gauge).
func (w *Window) SourceCount(metricName string) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.metrics[metricName])
}

// SampleCount returns the total number of buffered samples across all
// metrics and sources, for observability.
func (w *Window) SampleCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	n := 0
	for _, bySource := range w.metrics {
		for _, b := range bySource {
			n += len(b.samples)
		}
	}
	return n
}

// Snapshot copies every buffered sample, grouped by metric name, for
// checkpoint persistence (§6 dynamic_state). The copy is independent of
// the live window: further ingestion or pruning does not affect it.
func (w *Window) Snapshot() map[string][]Sample {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make(map[string][]Sample, len(w.metrics))
	for name, bySource := range w.metrics {
		var all []Sample
		for _, b := range bySource {
			all = append(all, b.samples...)
		}
		out[name] = all
	}
	return out
}
