package merge

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/banshee-data/trialmerge/internal/session"
)

// DefaultTrialStartPattern matches the message the experiment sends when a
// trial begins, e.g. "exp1 trial 12 start".
const DefaultTrialStartPattern = `exp1 trial \d+ start`

// AnchorMatcher recognises trial-start markers.
type AnchorMatcher struct {
	re *regexp.Regexp
}

// NewAnchorMatcher compiles pattern. Every alternative of the pattern is
// anchored at the start of a message; trailing text is allowed.
func NewAnchorMatcher(pattern string) (*AnchorMatcher, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("trial start pattern is empty")
	}
	re, err := regexp.Compile("^(?:" + pattern + ")")
	if err != nil {
		return nil, fmt.Errorf("compile trial start pattern: %w", err)
	}
	return &AnchorMatcher{re: re}, nil
}

// MustAnchorMatcher is NewAnchorMatcher for patterns known to be valid.
func MustAnchorMatcher(pattern string) *AnchorMatcher {
	m, err := NewAnchorMatcher(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

// Match reports whether text marks a trial start.
func (m *AnchorMatcher) Match(text string) bool {
	return m.re.MatchString(text)
}

// String returns the effective expression.
func (m *AnchorMatcher) String() string {
	return m.re.String()
}

// FindAnchors returns the indices of samples whose message marks a trial
// start, ascending.
func (m *AnchorMatcher) FindAnchors(samples []session.Sample) []int {
	var idx []int
	for i, s := range samples {
		if s.HasMessage && m.Match(s.Message) {
			idx = append(idx, i)
		}
	}
	return idx
}
