package metricwindow

import "errors"

// ErrMalformedSample is the sentinel wrapped by every IngestionWarning.
// Callers can test for it with errors.Is.
var ErrMalformedSample = errors.New("malformed metric sample")

// IngestionWarning reports that a single sample was rejected during
// Ingest. It is never fatal: the remaining samples in the batch are still
// admitted. It is not a StaleMetricsCondition, which is not an error at
// all (see internal/targetcalc).
type IngestionWarning struct {
	Sample Sample
	Err    error
}

func (w *IngestionWarning) Error() string {
	return "rejected sample " + w.Sample.Name + ": " + w.Err.Error()
}

func (w *IngestionWarning) Unwrap() error { return w.Err }
