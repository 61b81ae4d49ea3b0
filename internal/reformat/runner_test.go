package reformat

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trialmerge/internal/config"
	"github.com/banshee-data/trialmerge/internal/fsutil"
	"github.com/banshee-data/trialmerge/internal/manifest"
	"github.com/banshee-data/trialmerge/internal/merge"
	"github.com/banshee-data/trialmerge/internal/monitoring"
	"github.com/banshee-data/trialmerge/internal/pairing"
	"github.com/banshee-data/trialmerge/internal/session"
	"github.com/banshee-data/trialmerge/internal/stream"
	"github.com/banshee-data/trialmerge/internal/synth"
	"github.com/banshee-data/trialmerge/internal/timeutil"
)

func init() {
	monitoring.SetLogger(nil)
}

type fakeSource struct {
	rec    *synth.Recording
	closed *atomic.Int32
}

func (f *fakeSource) Samples(context.Context) (*session.Stream, error) { return f.rec.Stream, nil }
func (f *fakeSource) Markers(context.Context) ([]session.Marker, error) {
	return f.rec.Markers, nil
}
func (f *fakeSource) Close() error {
	f.closed.Add(1)
	return nil
}

type memBatch struct {
	fs     *fsutil.MemoryFileSystem
	recs   map[string]*synth.Recording
	closed atomic.Int32
}

// newMemBatch lays out n sessions under /in. Sessions listed in broken lose
// their first trial-start marker.
func newMemBatch(t *testing.T, n int, broken ...int) *memBatch {
	t.Helper()
	b := &memBatch{fs: fsutil.NewMemoryFileSystem(), recs: map[string]*synth.Recording{}}
	require.NoError(t, b.fs.MkdirAll("/in", 0755))
	for i := 1; i <= n; i++ {
		g := synth.NewGenerator(int64(i))
		g.Trials = 4
		rec, err := g.Generate()
		require.NoError(t, err)
		for _, k := range broken {
			if k == i {
				rec.Markers = rec.Markers[1:]
			}
		}
		var buf bytes.Buffer
		require.NoError(t, synth.WriteTrialLog(&buf, rec.Log))
		name := fmt.Sprintf("p%02d", i)
		require.NoError(t, b.fs.WriteFile("/in/"+name+".csv", buf.Bytes(), 0644))
		require.NoError(t, b.fs.WriteFile("/in/"+name+".sqlite", []byte("stub"), 0644))
		b.recs["/in/"+name+".sqlite"] = rec
	}
	return b
}

func (b *memBatch) runner(t *testing.T, cfgJSON string) *Runner {
	t.Helper()
	cfg, err := config.Parse([]byte(cfgJSON))
	require.NoError(t, err)
	return &Runner{
		FS: b.fs,
		Open: func(_ context.Context, path string) (stream.Source, error) {
			rec, ok := b.recs[path]
			if !ok {
				return nil, fmt.Errorf("no recording for %s", path)
			}
			return &fakeSource{rec: rec, closed: &b.closed}, nil
		},
		Config: cfg,
		Clock:  timeutil.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
}

func TestRun_AllSessions(t *testing.T) {
	b := newMemBatch(t, 3)
	m, err := b.runner(t, `{"workers": 3}`).Run(context.Background(), "/in", "/out")
	require.NoError(t, err)

	require.Len(t, m.Entries, 3)
	for i, e := range m.Entries {
		assert.Equal(t, fmt.Sprintf("p%02d", i+1), e.Session, "manifest keeps pairing order")
		assert.True(t, e.OK())
		assert.Equal(t, 4, e.Anchors)
		assert.InDelta(t, -1200, e.Offset, 0.02)
		assert.True(t, b.fs.Exists(e.Output), e.Output)
	}
	assert.Equal(t, int32(3), b.closed.Load())
	assert.True(t, b.fs.Exists("/out/"+manifest.FileName))
	assert.NotEmpty(t, m.Digest)
}

func TestRun_AbortsOnFirstFailure(t *testing.T) {
	b := newMemBatch(t, 3, 2)
	m, err := b.runner(t, `{}`).Run(context.Background(), "/in", "/out")
	require.Error(t, err)

	var mismatch *merge.TrialCountMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 3, mismatch.Anchors)
	assert.Equal(t, 4, mismatch.Trials)
	assert.Contains(t, err.Error(), "p02.csv")

	require.Len(t, m.Entries, 2)
	assert.True(t, m.Entries[0].OK())
	assert.False(t, m.Entries[1].OK())
	assert.True(t, b.fs.Exists("/out/p01_combined.csv"))
	assert.False(t, b.fs.Exists("/out/p02_combined.csv"))
	assert.False(t, b.fs.Exists("/out/p03_combined.csv"))
	assert.True(t, b.fs.Exists("/out/"+manifest.FileName), "failures are still recorded")
	assert.Equal(t, int32(2), b.closed.Load())
}

func TestRun_ContinueOnError(t *testing.T) {
	b := newMemBatch(t, 3, 2)
	m, err := b.runner(t, `{"continue_on_error": true, "manifest": false}`).Run(context.Background(), "/in", "/out")
	require.Error(t, err)
	assert.True(t, errors.Is(err, merge.ErrTrialCountMismatch))

	require.Len(t, m.Entries, 3)
	assert.Equal(t, 1, m.Failed())
	assert.True(t, b.fs.Exists("/out/p03_combined.csv"))
	assert.False(t, b.fs.Exists("/out/"+manifest.FileName))
}

func TestRun_Reports(t *testing.T) {
	b := newMemBatch(t, 1)
	m, err := b.runner(t, `{"report_png": true, "report_html": true, "output_suffix": "_merged"}`).Run(context.Background(), "/in", "/out")
	require.NoError(t, err)
	require.Len(t, m.Entries, 1)
	assert.Equal(t, "/out/p01_merged.csv", m.Entries[0].Output)
	assert.Equal(t, []string{"/out/p01_alignment.png", "/out/p01_alignment.html"}, m.Entries[0].Reports)
}

func TestRun_PairingFailsFast(t *testing.T) {
	b := newMemBatch(t, 2)
	require.NoError(t, b.fs.WriteFile("/in/p03.csv", []byte("x\n"), 0644))

	m, err := b.runner(t, `{}`).Run(context.Background(), "/in", "/out")
	assert.Nil(t, m)
	assert.ErrorIs(t, err, pairing.ErrMissingFiles)
	assert.Equal(t, int32(0), b.closed.Load())
	assert.False(t, b.fs.Exists("/out"))
}

func TestRun_SameDirectory(t *testing.T) {
	b := newMemBatch(t, 1)
	_, err := b.runner(t, `{}`).Run(context.Background(), "/in", "/in/")
	assert.ErrorIs(t, err, ErrSameDirectory)
}

func TestRun_Cancelled(t *testing.T) {
	b := newMemBatch(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m, err := b.runner(t, `{}`).Run(ctx, "/in", "/out")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, m.Entries)
}

// Real containers and files on disk, as the command runs it.
func TestRun_OnDisk(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	ctx := context.Background()
	for i, variant := range []session.Variant{session.Binocular, session.Monocular} {
		g := synth.NewGenerator(int64(i + 10))
		g.Trials = 5
		g.SkipEvery = 3
		g.Variant = variant
		rec, err := g.Generate()
		require.NoError(t, err)
		_, _, err = synth.Write(ctx, fsutil.OSFileSystem{}, in, fmt.Sprintf("s%d", i+1), rec)
		require.NoError(t, err)
	}

	r := NewRunner(config.Empty())
	m, err := r.Run(ctx, in, out)
	require.NoError(t, err)
	require.Len(t, m.Entries, 2)
	assert.Equal(t, "binocular", m.Entries[0].Variant)
	assert.Equal(t, "monocular", m.Entries[1].Variant)

	data, err := fsutil.OSFileSystem{}.ReadFile(filepath.Join(out, "s1_combined.csv"))
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	header := records[0]
	assert.Equal(t, "time", header[0])
	assert.Equal(t, session.DefaultFieldSet[len(session.DefaultFieldSet)-1], header[len(header)-1])

	annotated := 0
	for _, rec := range records[1:] {
		if rec[len(rec)-1] != "" {
			annotated++
		}
	}
	assert.Equal(t, 4, annotated)
}
