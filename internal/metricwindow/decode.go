package metricwindow

import "encoding/json"

// DecodeSamples parses the external metric-ingestion payload (a single
// object or a JSON array of objects) into Samples. Malformed JSON is a
// hard decode error, and so is a field of the wrong JSON type (for
// example a string "value"): either one fails the whole payload, not just
// the offending sample. Well-typed but incomplete samples (missing name or
// timestamp) decode fine and are rejected later, one by one, by
// Window.Ingest as IngestionWarnings.
func DecodeSamples(body []byte) ([]Sample, error) {
	trimmed := trimLeadingSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var samples []Sample
		if err := json.Unmarshal(body, &samples); err != nil {
			return nil, err
		}
		return samples, nil
	}
	var single Sample
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, err
	}
	return []Sample{single}, nil
}

func trimLeadingSpace(b []byte) []byte {
	i := 0
	for i < len(b) {
		switch b[i] {
		case ' ', '\t', '\n', '\r':
			i++
			continue
		}
		break
	}
	return b[i:]
}
