// Package session holds the in-memory shapes of one recording session: the
// sensor stream, its text markers, the trial log and the merged table built
// from them. Values are constructed fresh per session and never shared.
package session

import "math"

// Variant identifies which eye sample event kind a container recorded.
type Variant int

const (
	// Binocular streams carry left and right eye samples.
	Binocular Variant = iota
	// Monocular streams carry a single eye, or mouse-simulated gaze.
	Monocular
)

func (v Variant) String() string {
	switch v {
	case Binocular:
		return "binocular"
	case Monocular:
		return "monocular"
	default:
		return "unknown"
	}
}

// Sample is one row of the sensor stream.
type Sample struct {
	Time float64
	// Values aligns with Stream.Columns. Missing readings are NaN.
	Values     []float64
	Message    string
	HasMessage bool
}

// Stream is an ordered sequence of samples. Times must be non-decreasing;
// nothing in this module re-sorts a stream.
type Stream struct {
	Variant Variant
	Columns []string
	Samples []Sample
}

// Times returns the sample timestamps in stream order.
func (s *Stream) Times() []float64 {
	times := make([]float64, len(s.Samples))
	for i, smp := range s.Samples {
		times[i] = smp.Time
	}
	return times
}

// Marker is a timestamped text event recorded alongside the samples.
type Marker struct {
	Time float64
	Text string
}

// TrialRow is one row of the trial log. Only rows with HasStart describe a
// trial that actually ran.
type TrialRow struct {
	StartTime float64
	HasStart  bool
	Fields    map[string]string
}

// TrialLog is the parsed per-trial table.
type TrialLog struct {
	Source  string
	Columns []string
	Rows    []TrialRow
}

// HasColumn reports whether the log header contains name.
func (l *TrialLog) HasColumn(name string) bool {
	for _, c := range l.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Eligible returns the rows with a present start time, in file order.
func (l *TrialLog) Eligible() []TrialRow {
	var out []TrialRow
	for _, r := range l.Rows {
		if r.HasStart {
			out = append(out, r)
		}
	}
	return out
}

// MergedRow is a sample carrying its injected trial metadata, if any.
type MergedRow struct {
	Sample
	// Metadata aligns with Merged.Fields and is nil unless HasMetadata.
	Metadata    []string
	HasMetadata bool
}

// Merged is the output table: the sensor stream plus a message column and one
// column per metadata field.
type Merged struct {
	Variant Variant
	Columns []string
	Fields  FieldSet
	Rows    []MergedRow
}

// AnnotatedRows counts rows that received trial metadata.
func (m *Merged) AnnotatedRows() int {
	n := 0
	for _, r := range m.Rows {
		if r.HasMetadata {
			n++
		}
	}
	return n
}

// IsMissing reports whether a sensor value is absent.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}
