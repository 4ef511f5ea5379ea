package metricwindow

import "strings"

// Kind selects how a metric's raw values are interpreted.
type Kind string

const (
	KindGauge Kind = "gauge"
	KindRate  Kind = "rate"
)

// Aggregation selects how per-source values are combined across sources.
type Aggregation string

const (
	AggregationSum    Aggregation = "sum"
	AggregationAvg    Aggregation = "avg"
	AggregationMax    Aggregation = "max"
	AggregationMin    Aggregation = "min"
	AggregationLatest Aggregation = "latest"
)

// ParseKind normalizes a user-supplied kind string (case-insensitive on
// input, per the external interface contract).
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(s)) {
	case KindGauge:
		return KindGauge, true
	case KindRate:
		return KindRate, true
	default:
		return "", false
	}
}

// ParseAggregation normalizes a user-supplied aggregation string.
func ParseAggregation(s string) (Aggregation, bool) {
	switch Aggregation(strings.ToLower(s)) {
	case AggregationSum, AggregationAvg, AggregationMax, AggregationMin, AggregationLatest:
		return Aggregation(strings.ToLower(s)), true
	default:
		return "", false
	}
}

// Spec configures one metric's window behavior and aggregation, matching
// ServiceSpec.autoscaling_metric in the data model.
type Spec struct {
	Name              string      `json:"name" yaml:"name"`
	TargetPerReplica  float64     `json:"target_per_replica" yaml:"target_per_replica"`
	Kind              Kind        `json:"kind" yaml:"kind"`
	Aggregation       Aggregation `json:"aggregation" yaml:"aggregation"`
	WindowSeconds     float64     `json:"window_seconds" yaml:"window_seconds"`
	StaleAfterSeconds float64     `json:"stale_after_seconds" yaml:"stale_after_seconds"`
	// SourceTTLSeconds defaults to WindowSeconds when zero; tests may
	// shrink it below the window per the lifecycle note in the data model.
	SourceTTLSeconds float64 `json:"-" yaml:"-"`
}

// EffectiveSourceTTL returns SourceTTLSeconds, defaulting to WindowSeconds.
func (s Spec) EffectiveSourceTTL() float64 {
	if s.SourceTTLSeconds > 0 {
		return s.SourceTTLSeconds
	}
	return s.WindowSeconds
}
