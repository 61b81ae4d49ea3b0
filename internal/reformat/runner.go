// Package reformat runs the merge over a directory of recording sessions:
// pair the files, merge each session, write the combined tables, optional
// alignment reports and a run manifest.
package reformat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/trialmerge/internal/config"
	"github.com/banshee-data/trialmerge/internal/export"
	"github.com/banshee-data/trialmerge/internal/fsutil"
	"github.com/banshee-data/trialmerge/internal/manifest"
	"github.com/banshee-data/trialmerge/internal/merge"
	"github.com/banshee-data/trialmerge/internal/monitoring"
	"github.com/banshee-data/trialmerge/internal/pairing"
	"github.com/banshee-data/trialmerge/internal/report"
	"github.com/banshee-data/trialmerge/internal/stream"
	"github.com/banshee-data/trialmerge/internal/timeutil"
	"github.com/banshee-data/trialmerge/internal/triallog"
)

// ErrSameDirectory is returned when output would overwrite the inputs.
var ErrSameDirectory = errors.New("output directory must differ from input directory")

// OpenFunc opens a sensor stream container.
type OpenFunc func(ctx context.Context, path string) (stream.Source, error)

// OpenContainer opens an SQLite session container.
func OpenContainer(ctx context.Context, path string) (stream.Source, error) {
	c, err := stream.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Runner processes one batch. Zero-valued fields fall back to the OS
// filesystem, SQLite containers, the default config, wall time and the
// package logger.
type Runner struct {
	FS     fsutil.FileSystem
	Open   OpenFunc
	Config *config.Config
	Clock  timeutil.Clock
	Logf   monitoring.LogFunc
}

// NewRunner returns a Runner for cfg with default dependencies.
func NewRunner(cfg *config.Config) *Runner {
	return &Runner{
		FS:     fsutil.OSFileSystem{},
		Open:   OpenContainer,
		Config: cfg,
		Clock:  timeutil.RealClock{},
	}
}

func (r *Runner) defaults() {
	if r.FS == nil {
		r.FS = fsutil.OSFileSystem{}
	}
	if r.Open == nil {
		r.Open = OpenContainer
	}
	if r.Config == nil {
		r.Config = config.Empty()
	}
	if r.Clock == nil {
		r.Clock = timeutil.RealClock{}
	}
}

// Run merges every session in inDir into outDir and returns the manifest.
// Pairing failures abort before any session runs. A session failure aborts
// the batch unless continue_on_error is set; either way the failure is
// recorded in the manifest, which is written when enabled.
func (r *Runner) Run(ctx context.Context, inDir, outDir string) (*manifest.Manifest, error) {
	r.defaults()
	cfg := r.Config
	logf := monitoring.OrDefault(r.Logf)

	if sameDir(inDir, outDir) {
		return nil, fmt.Errorf("%w: %s", ErrSameDirectory, inDir)
	}
	matcher, err := merge.NewAnchorMatcher(cfg.GetTrialStartPattern())
	if err != nil {
		return nil, err
	}
	pairs, err := pairing.Find(r.FS, inDir, cfg.GetTrialLogExt(), cfg.GetStreamExt())
	if err != nil {
		return nil, err
	}
	if err := r.FS.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	m := manifest.New(r.Clock)
	logf("run %s: %d sessions from %s", m.RunID, len(pairs), inDir)

	entries := make([]manifest.Entry, len(pairs))
	errs := make([]error, len(pairs))
	started := make([]bool, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.GetWorkers())
	for i, p := range pairs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			started[i] = true
			entries[i], errs[i] = r.process(gctx, p, outDir, matcher)
			if errs[i] != nil {
				logf("session %s failed: %v", p.Name(), errs[i])
				if !cfg.GetContinueOnError() {
					return errs[i]
				}
			}
			return nil
		})
	}
	runErr := g.Wait()

	var failed []error
	for i := range pairs {
		if !started[i] {
			continue
		}
		m.Add(entries[i])
		if errs[i] != nil {
			failed = append(failed, errs[i])
		}
	}
	if runErr == nil && len(failed) > 0 {
		runErr = fmt.Errorf("%d of %d sessions failed: %w", len(failed), len(pairs), errors.Join(failed...))
	}

	if err := m.Finish(); err != nil {
		return m, errors.Join(runErr, err)
	}
	if cfg.GetManifest() {
		path := filepath.Join(outDir, manifest.FileName)
		if err := m.Write(r.FS, path); err != nil {
			return m, errors.Join(runErr, err)
		}
		logf("manifest written to %s", path)
	}
	return m, runErr
}

// process merges one pair. The returned entry is filled in as far as the
// session got, with Error set on failure.
func (r *Runner) process(ctx context.Context, p pairing.Pair, outDir string, matcher *merge.AnchorMatcher) (entry manifest.Entry, err error) {
	cfg := r.Config
	name := p.Name()
	logf := monitoring.WithPrefix(r.Logf, name)
	start := r.Clock.Now()

	entry = manifest.Entry{Session: name, TrialLog: p.TrialLog, Stream: p.Stream}
	defer func() {
		if err != nil {
			err = fmt.Errorf("session %s (%s, %s): %w", name, filepath.Base(p.TrialLog), filepath.Base(p.Stream), err)
			entry.Error = err.Error()
		}
	}()

	src, err := r.Open(ctx, p.Stream)
	if err != nil {
		return entry, err
	}
	defer src.Close()

	st, err := src.Samples(ctx)
	if err != nil {
		return entry, err
	}
	entry.Variant = st.Variant.String()
	markers, err := src.Markers(ctx)
	if err != nil {
		return entry, err
	}
	trials, err := triallog.Load(r.FS, p.TrialLog, cfg.GetTrialStartColumn())
	if err != nil {
		return entry, err
	}

	sess := &merge.Session{
		Fields:      cfg.GetMetadataFields(),
		StartColumn: cfg.GetTrialStartColumn(),
		Matcher:     matcher,
		Logf:        logf,
	}
	res, err := sess.Run(merge.Input{Stream: st, Markers: markers, Log: trials})
	if err != nil {
		return entry, err
	}
	entry.Offset = float64(res.Offset)
	entry.Anchors = len(res.AnchorTimes)
	entry.Markers = res.MarkerCount
	entry.Rows = len(res.Merged.Rows)

	out, err := export.WriteFile(r.FS, outDir, export.OutputName(p.TrialLog, cfg.GetOutputSuffix()), res.Merged)
	if err != nil {
		return entry, err
	}
	entry.Output = out

	alignment := report.FromResult(name, res)
	entry.MaxResidual = alignment.MaxAbsResidual()
	if limit := cfg.GetMaxAnchorResidual(); entry.MaxResidual > limit {
		logf("warning: max anchor residual %.6f exceeds %.6f", entry.MaxResidual, limit)
	}
	if cfg.GetReportPNG() || cfg.GetReportHTML() {
		entry.Reports, err = alignment.Save(r.FS, outDir, cfg.GetReportPNG(), cfg.GetReportHTML())
		if err != nil {
			return entry, err
		}
	}

	logf("wrote %s (%d rows, %d trials) in %s", out, entry.Rows, entry.Anchors, r.Clock.Since(start))
	return entry, nil
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
