// Package merge aligns a sensor stream with its trial log: markers are
// injected onto their nearest samples, the clock offset is estimated from the
// trial-start markers and trial metadata is copied onto those anchor rows.
package merge

import (
	"fmt"

	"github.com/banshee-data/trialmerge/internal/align"
	"github.com/banshee-data/trialmerge/internal/monitoring"
	"github.com/banshee-data/trialmerge/internal/session"
	"github.com/banshee-data/trialmerge/internal/triallog"
)

// Input is everything one session needs, already loaded into memory.
type Input struct {
	Stream  *session.Stream
	Markers []session.Marker
	Log     *session.TrialLog
}

// Result is the outcome of a merged session.
type Result struct {
	Merged *session.Merged
	Offset align.Offset
	// AnchorTimes are the anchor sample times before correction.
	AnchorTimes []float64
	// ReferenceTimes are the trial log start times paired with each anchor.
	ReferenceTimes []float64
	// Residuals are corrected anchor time minus reference time per trial.
	Residuals   []float64
	MarkerCount int
}

// Session merges one recording. The zero value is not usable; use
// NewSession.
type Session struct {
	Fields      session.FieldSet
	StartColumn string
	Matcher     *AnchorMatcher
	Logf        monitoring.LogFunc
}

// NewSession returns a Session with the default field set, start column and
// trial start pattern.
func NewSession() *Session {
	return &Session{
		Fields:      session.DefaultFieldSet.Clone(),
		StartColumn: session.DefaultStartColumn,
		Matcher:     MustAnchorMatcher(DefaultTrialStartPattern),
	}
}

// Run merges in. It takes ownership of in.Stream: markers are written into it
// and its timestamps are shifted onto the trial log clock.
func (s *Session) Run(in Input) (*Result, error) {
	logf := monitoring.OrDefault(s.Logf)

	if err := triallog.Validate(in.Log, s.Fields.Required(s.StartColumn)); err != nil {
		return nil, err
	}

	if _, err := InjectMarkers(in.Stream, in.Markers); err != nil {
		return nil, err
	}

	anchors := s.Matcher.FindAnchors(in.Stream.Samples)
	trials := in.Log.Eligible()
	if len(anchors) == 0 || len(trials) == 0 {
		return nil, &align.InsufficientAnchorsError{Reference: len(trials), Drifted: len(anchors)}
	}
	if len(anchors) != len(trials) {
		return nil, &TrialCountMismatchError{Anchors: len(anchors), Trials: len(trials)}
	}

	anchorTimes := make([]float64, len(anchors))
	for k, idx := range anchors {
		anchorTimes[k] = in.Stream.Samples[idx].Time
	}
	refTimes := make([]float64, len(trials))
	for k, tr := range trials {
		refTimes[k] = tr.StartTime
	}

	offset, err := align.EstimateOffset(refTimes, anchorTimes)
	if err != nil {
		return nil, err
	}
	for i := range in.Stream.Samples {
		in.Stream.Samples[i].Time = offset.Apply(in.Stream.Samples[i].Time)
	}

	residuals, err := align.Residuals(refTimes, offset.ApplyAll(anchorTimes))
	if err != nil {
		return nil, fmt.Errorf("anchor residuals: %w", err)
	}

	logf("%d markers, %d trial anchors, clock offset %.6f", len(in.Markers), len(anchors), float64(offset))

	return &Result{
		Merged:         mergeAt(in.Stream, anchors, trials, s.Fields),
		Offset:         offset,
		AnchorTimes:    anchorTimes,
		ReferenceTimes: refTimes,
		Residuals:      residuals,
		MarkerCount:    len(in.Markers),
	}, nil
}
