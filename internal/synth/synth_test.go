package synth

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trialmerge/internal/fsutil"
	"github.com/banshee-data/trialmerge/internal/merge"
	"github.com/banshee-data/trialmerge/internal/monitoring"
	"github.com/banshee-data/trialmerge/internal/session"
	"github.com/banshee-data/trialmerge/internal/stream"
	"github.com/banshee-data/trialmerge/internal/triallog"
)

func init() {
	monitoring.SetLogger(nil)
}

func TestGenerate(t *testing.T) {
	g := NewGenerator(1)
	g.Trials = 6
	g.SkipEvery = 3

	rec, err := g.Generate()
	require.NoError(t, err)
	assert.Len(t, rec.Log.Rows, 6)
	assert.Equal(t, 4, rec.Eligible)
	assert.Len(t, rec.Log.Eligible(), 4)
	assert.Len(t, rec.Markers, 8)
	assert.False(t, rec.Log.Rows[2].HasStart)

	times := rec.Stream.Times()
	for i := 1; i < len(times); i++ {
		require.GreaterOrEqual(t, times[i], times[i-1])
	}
}

func TestGenerate_Invalid(t *testing.T) {
	g := NewGenerator(1)
	g.Trials = 0
	_, err := g.Generate()
	assert.Error(t, err)

	g = NewGenerator(1)
	g.Jitter = 1
	_, err = g.Generate()
	assert.Error(t, err)
}

// The generated recording merges with the configured offset recovered.
func TestGenerate_Merges(t *testing.T) {
	g := NewGenerator(7)
	g.Variant = session.Monocular
	g.SkipEvery = 4
	rec, err := g.Generate()
	require.NoError(t, err)

	res, err := merge.NewSession().Run(merge.Input{Stream: rec.Stream, Markers: rec.Markers, Log: rec.Log})
	require.NoError(t, err)
	assert.InDelta(t, g.Offset, float64(res.Offset), 1/g.SampleRate)
	assert.Equal(t, rec.Eligible, res.Merged.AnnotatedRows())
}

func TestWriteTrialLog_ReadBack(t *testing.T) {
	g := NewGenerator(3)
	g.Trials = 3
	g.SkipEvery = 2
	rec, err := g.Generate()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteTrialLog(&buf, rec.Log))
	got, err := triallog.Read(&buf, "x.csv", g.StartColumn)
	require.NoError(t, err)
	assert.Equal(t, rec.Log.Columns, got.Columns)
	require.Len(t, got.Rows, 3)
	assert.False(t, got.Rows[1].HasStart)
	assert.Equal(t, rec.Log.Rows[2].StartTime, got.Rows[2].StartTime)
	for _, f := range g.Fields {
		assert.Equal(t, rec.Log.Rows[2].Fields[f], got.Rows[2].Fields[f], f)
	}
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(5)
	g.Trials = 2
	rec, err := g.Generate()
	require.NoError(t, err)

	ctx := context.Background()
	logPath, streamPath, err := Write(ctx, fsutil.OSFileSystem{}, dir, "p01", rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "p01.csv"), logPath)

	c, err := stream.Open(ctx, streamPath)
	require.NoError(t, err)
	defer c.Close()
	s, err := c.Samples(ctx)
	require.NoError(t, err)
	assert.Len(t, s.Samples, len(rec.Stream.Samples))
	markers, err := c.Markers(ctx)
	require.NoError(t, err)
	assert.Len(t, markers, len(rec.Markers))
}
