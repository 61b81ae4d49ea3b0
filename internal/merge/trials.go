package merge

import (
	"github.com/banshee-data/trialmerge/internal/session"
)

// MergeTrials copies trial metadata into the sensor stream. The k-th
// trial-start anchor receives the fields of the k-th trial with a start time.
// Pairing is strictly ordinal, so a count mismatch is returned as a
// TrialCountMismatchError and nothing is merged.
//
// stream is expected to carry injected markers and corrected timestamps. The
// returned table shares no slices with stream.
func MergeTrials(stream *session.Stream, log *session.TrialLog, fields session.FieldSet, matcher *AnchorMatcher) (*session.Merged, error) {
	anchors := matcher.FindAnchors(stream.Samples)
	trials := log.Eligible()
	if len(anchors) != len(trials) {
		return nil, &TrialCountMismatchError{Anchors: len(anchors), Trials: len(trials)}
	}
	return mergeAt(stream, anchors, trials, fields), nil
}

func mergeAt(stream *session.Stream, anchors []int, trials []session.TrialRow, fields session.FieldSet) *session.Merged {
	out := &session.Merged{
		Variant: stream.Variant,
		Columns: append([]string(nil), stream.Columns...),
		Fields:  fields.Clone(),
		Rows:    make([]session.MergedRow, len(stream.Samples)),
	}
	for i, s := range stream.Samples {
		s.Values = append([]float64(nil), s.Values...)
		out.Rows[i] = session.MergedRow{Sample: s}
	}

	for k, idx := range anchors {
		meta := make([]string, len(fields))
		for j, name := range fields {
			meta[j] = trials[k].Fields[name]
		}
		out.Rows[idx].Metadata = meta
		out.Rows[idx].HasMetadata = true
	}
	return out
}
