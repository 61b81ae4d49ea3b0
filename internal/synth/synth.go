// Package synth generates synthetic recording sessions for tests, demos and
// the gen-session command: a sensor stream whose clock runs at a fixed
// offset from the trial log clock, its trial-start markers, and the log.
package synth

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"path/filepath"
	"strconv"

	"github.com/banshee-data/trialmerge/internal/fsutil"
	"github.com/banshee-data/trialmerge/internal/session"
	"github.com/banshee-data/trialmerge/internal/stream"
)

// Generator describes the session to build. NewGenerator fills in
// defaults; adjust fields before calling Generate.
type Generator struct {
	Trials        int     // trials in the log
	SampleRate    float64 // samples per second
	Offset        float64 // stream clock minus log clock, seconds
	TrialDuration float64 // seconds per trial
	LogStart      float64 // log time of the first trial
	Jitter        float64 // max marker displacement from the true start, seconds
	SkipEvery     int     // every Nth log row has no start time and no marker; 0 disables
	Variant       session.Variant
	Fields        session.FieldSet
	StartColumn   string

	rng *rand.Rand
}

// Recording is one generated session.
type Recording struct {
	Stream  *session.Stream
	Markers []session.Marker
	Log     *session.TrialLog
	// Eligible counts log rows with a start time, which equals the number
	// of trial-start markers.
	Eligible int
}

// NewGenerator returns a generator seeded for reproducible output.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		Trials:        10,
		SampleRate:    60,
		Offset:        -1200,
		TrialDuration: 2,
		LogStart:      1300,
		Variant:       session.Binocular,
		Fields:        session.DefaultFieldSet.Clone(),
		StartColumn:   session.DefaultStartColumn,
		rng:           rand.New(rand.NewSource(seed)),
	}
}

// Generate builds a recording.
func (g *Generator) Generate() (*Recording, error) {
	if g.Trials < 1 {
		return nil, fmt.Errorf("trials must be >= 1, got %d", g.Trials)
	}
	if g.SampleRate <= 0 || g.TrialDuration <= 0 {
		return nil, fmt.Errorf("sample rate and trial duration must be positive")
	}
	period := 1 / g.SampleRate
	if g.Jitter < 0 || g.Jitter >= period/2 {
		return nil, fmt.Errorf("jitter %g must be in [0, %g)", g.Jitter, period/2)
	}

	rec := &Recording{Log: &session.TrialLog{
		Source:  "synthetic",
		Columns: append([]string{g.StartColumn}, g.Fields...),
	}}

	for i := 0; i < g.Trials; i++ {
		row := session.TrialRow{Fields: make(map[string]string, len(g.Fields))}
		for _, f := range g.Fields {
			row.Fields[f] = fmt.Sprintf("%s_%d", f, i+1)
		}
		if g.SkipEvery > 0 && (i+1)%g.SkipEvery == 0 {
			rec.Log.Rows = append(rec.Log.Rows, row)
			continue
		}
		start := g.LogStart + float64(i)*g.TrialDuration
		row.StartTime, row.HasStart = start, true
		rec.Log.Rows = append(rec.Log.Rows, row)
		rec.Eligible++

		at := start + g.Offset + (g.rng.Float64()*2-1)*g.Jitter
		rec.Markers = append(rec.Markers,
			session.Marker{Time: at, Text: fmt.Sprintf("exp1 trial %d start", i+1)},
			session.Marker{Time: at + g.TrialDuration/2, Text: fmt.Sprintf("exp1 trial %d end", i+1)},
		)
	}

	cols := stream.VariantColumns(g.Variant)
	rec.Stream = &session.Stream{Variant: g.Variant, Columns: cols}
	first := g.LogStart + g.Offset - g.TrialDuration
	n := int(math.Ceil((float64(g.Trials)+2)*g.TrialDuration*g.SampleRate)) + 1
	rec.Stream.Samples = make([]session.Sample, 0, n)
	for i := 0; i < n; i++ {
		t := first + float64(i)*period
		values := make([]float64, len(cols))
		for c := range values {
			values[c] = g.value(c, t)
		}
		rec.Stream.Samples = append(rec.Stream.Samples, session.Sample{Time: t, Values: values})
	}
	return rec, nil
}

// value produces a smooth trace per column with occasional dropouts.
func (g *Generator) value(col int, t float64) float64 {
	if g.rng.Float64() < 0.01 {
		return math.NaN()
	}
	return 400*math.Sin(t*0.7+float64(col)) + 10*g.rng.NormFloat64()
}

// Write stores rec as <name>.sqlite and <name>.csv in dir, returning both
// paths. The container always goes to the OS filesystem; the trial log goes
// through fsys.
func Write(ctx context.Context, fsys fsutil.FileSystem, dir, name string, rec *Recording) (logPath, streamPath string, err error) {
	streamPath = filepath.Join(dir, name+".sqlite")
	logPath = filepath.Join(dir, name+".csv")

	w, err := stream.Create(ctx, streamPath, rec.Stream.Variant)
	if err != nil {
		return "", "", err
	}
	if err := w.WriteSamples(ctx, rec.Stream.Samples); err != nil {
		_ = w.Close()
		return "", "", err
	}
	if err := w.WriteMarkers(ctx, rec.Markers); err != nil {
		_ = w.Close()
		return "", "", err
	}
	if err := w.Close(); err != nil {
		return "", "", err
	}

	f, err := fsys.Create(logPath)
	if err != nil {
		return "", "", fmt.Errorf("create %s: %w", logPath, err)
	}
	if err := WriteTrialLog(f, rec.Log); err != nil {
		_ = f.Close()
		return "", "", fmt.Errorf("write %s: %w", logPath, err)
	}
	if err := f.Close(); err != nil {
		return "", "", err
	}
	return logPath, streamPath, nil
}

// WriteTrialLog writes log as CSV; the first column holds the start time
// and is blank for rows without one.
func WriteTrialLog(w io.Writer, log *session.TrialLog) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(log.Columns); err != nil {
		return err
	}
	record := make([]string, len(log.Columns))
	for _, row := range log.Rows {
		record[0] = ""
		if row.HasStart {
			record[0] = strconv.FormatFloat(row.StartTime, 'f', -1, 64)
		}
		for i, col := range log.Columns[1:] {
			record[i+1] = row.Fields[col]
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
