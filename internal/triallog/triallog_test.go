package triallog

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trialmerge/internal/fsutil"
	"github.com/banshee-data/trialmerge/internal/session"
)

const sample = "\ufefftrial_start_time,audio_volume,audio_filepath\n" +
	"100.0,0.5,sounds/a.wav\n" +
	",0.9,sounds/skipped.wav\n" +
	"103.0,0.8,sounds/b.wav\n" +
	"nan,0.1,\n"

func TestRead(t *testing.T) {
	log, err := Read(strings.NewReader(sample), "run1.csv", "trial_start_time")
	require.NoError(t, err)

	assert.Equal(t, "run1.csv", log.Source)
	assert.Equal(t, []string{"trial_start_time", "audio_volume", "audio_filepath"}, log.Columns)
	require.Len(t, log.Rows, 4)

	assert.True(t, log.Rows[0].HasStart)
	assert.Equal(t, 100.0, log.Rows[0].StartTime)
	assert.Equal(t, "0.5", log.Rows[0].Fields["audio_volume"])
	assert.False(t, log.Rows[1].HasStart)
	assert.True(t, log.Rows[2].HasStart)
	assert.False(t, log.Rows[3].HasStart)
	assert.Equal(t, "", log.Rows[3].Fields["audio_filepath"])

	eligible := log.Eligible()
	require.Len(t, eligible, 2)
	assert.Equal(t, "sounds/b.wav", eligible[1].Fields["audio_filepath"])
}

func TestRead_Empty(t *testing.T) {
	log, err := Read(strings.NewReader(""), "empty.csv", "trial_start_time")
	require.NoError(t, err)
	assert.Empty(t, log.Columns)
	assert.Empty(t, log.Rows)
}

func TestRead_BadStartTime(t *testing.T) {
	_, err := Read(strings.NewReader("trial_start_time\nabc\n"), "bad.csv", "trial_start_time")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.csv")
	assert.Contains(t, err.Error(), "line 2")
}

func TestRead_ShortRecord(t *testing.T) {
	log, err := Read(strings.NewReader("a,trial_start_time\n1\n"), "short.csv", "trial_start_time")
	require.NoError(t, err)
	require.Len(t, log.Rows, 1)
	assert.False(t, log.Rows[0].HasStart)
	assert.Equal(t, "1", log.Rows[0].Fields["a"])
}

func TestRead_DuplicateHeaderFirstWins(t *testing.T) {
	in := "trial_start_time,audio_volume,trial_start_time,audio_volume\n" +
		"100.0,0.5,,0.9\n"
	log, err := Read(strings.NewReader(in), "dup.csv", "trial_start_time")
	require.NoError(t, err)
	require.Len(t, log.Rows, 1)
	assert.True(t, log.Rows[0].HasStart)
	assert.Equal(t, 100.0, log.Rows[0].StartTime)
	assert.Equal(t, "100.0", log.Rows[0].Fields["trial_start_time"])
	assert.Equal(t, "0.5", log.Rows[0].Fields["audio_volume"])
}

func TestValidate(t *testing.T) {
	log, err := Read(strings.NewReader(sample), "run1.csv", "trial_start_time")
	require.NoError(t, err)

	assert.NoError(t, Validate(log, session.FieldSet{"audio_volume"}.Required("trial_start_time")))

	err = Validate(log, session.FieldSet{"audio_volume", "visual_onset_time"}.Required("trial_start_time"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumn))

	var mc *MissingColumnError
	require.ErrorAs(t, err, &mc)
	assert.Equal(t, "visual_onset_time", mc.Field)
	assert.Equal(t, "run1.csv", mc.File)
	assert.Contains(t, mc.Error(), "visual_onset_time")
}

func TestLoad(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("/data/run1.csv", []byte(sample), 0644))

	log, err := Load(mfs, "/data/run1.csv", "trial_start_time")
	require.NoError(t, err)
	assert.Len(t, log.Rows, 4)

	_, err = Load(mfs, "/data/missing.csv", "trial_start_time")
	assert.Error(t, err)
}
