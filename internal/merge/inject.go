package merge

import (
	"fmt"

	"github.com/banshee-data/trialmerge/internal/align"
	"github.com/banshee-data/trialmerge/internal/session"
)

// InjectMarkers writes each marker's text onto the sample nearest in time and
// returns the chosen sample index per marker. Both sequences must share one
// clock, so injection runs before any offset correction.
//
// Markers are applied in the order given; when two land on the same sample
// the later one overwrites the earlier. There is no accumulation of several
// messages on one row.
func InjectMarkers(stream *session.Stream, markers []session.Marker) ([]int, error) {
	if len(markers) == 0 {
		return nil, nil
	}
	times := stream.Times()
	assigned := make([]int, len(markers))
	for i, mk := range markers {
		idx, err := align.NearestIndex(times, mk.Time)
		if err != nil {
			return nil, fmt.Errorf("inject marker %q at %.6f: %w", mk.Text, mk.Time, err)
		}
		stream.Samples[idx].Message = mk.Text
		stream.Samples[idx].HasMessage = true
		assigned[i] = idx
	}
	return assigned, nil
}
