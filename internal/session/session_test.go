package session

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamTimes(t *testing.T) {
	s := &Stream{Samples: []Sample{{Time: 0.5}, {Time: 1.5}, {Time: 1.5}}}
	assert.Equal(t, []float64{0.5, 1.5, 1.5}, s.Times())
}

func TestTrialLogEligible(t *testing.T) {
	l := &TrialLog{Rows: []TrialRow{
		{StartTime: 1, HasStart: true, Fields: map[string]string{"a": "1"}},
		{},
		{StartTime: 3, HasStart: true, Fields: map[string]string{"a": "3"}},
	}}
	got := l.Eligible()
	if assert.Len(t, got, 2) {
		assert.Equal(t, "1", got[0].Fields["a"])
		assert.Equal(t, "3", got[1].Fields["a"])
	}
}

func TestFieldSetRequired(t *testing.T) {
	f := FieldSet{"audio_volume", "audio_filepath"}
	assert.Equal(t, []string{"audio_volume", "audio_filepath", "trial_start_time"}, f.Required("trial_start_time"))
	assert.Len(t, f, 2, "Required must not grow the receiver")
	assert.Len(t, DefaultFieldSet.Required(DefaultStartColumn), 32)
}

func TestVariantString(t *testing.T) {
	assert.Equal(t, "binocular", Binocular.String())
	assert.Equal(t, "monocular", Monocular.String())
	assert.Equal(t, "unknown", Variant(7).String())
}

func TestMergedAnnotatedRows(t *testing.T) {
	m := &Merged{Rows: []MergedRow{{HasMetadata: true}, {}, {HasMetadata: true}}}
	assert.Equal(t, 2, m.AnnotatedRows())
	assert.True(t, IsMissing(math.NaN()))
	assert.False(t, IsMissing(0))
}
