// Package report renders per-session alignment diagnostics: how far each
// trial-start anchor lands from its trial log start time once the clock
// offset is applied. Reports never change merged output.
package report

import (
	"fmt"
	"io"
	"math"
	"path/filepath"

	"github.com/banshee-data/trialmerge/internal/fsutil"
	"github.com/banshee-data/trialmerge/internal/merge"
	"github.com/banshee-data/trialmerge/internal/security"
)

// Point is one trial's alignment.
type Point struct {
	Trial     int     `json:"trial"`
	Reference float64 `json:"reference"`
	Anchor    float64 `json:"anchor"`
	Corrected float64 `json:"corrected"`
	Residual  float64 `json:"residual"`
}

// Alignment summarises one session.
type Alignment struct {
	Session string  `json:"session"`
	Offset  float64 `json:"offset"`
	Points  []Point `json:"points"`
}

// FromResult builds the alignment summary of a merged session.
func FromResult(sessionName string, res *merge.Result) Alignment {
	a := Alignment{Session: sessionName, Offset: float64(res.Offset)}
	for k := range res.AnchorTimes {
		a.Points = append(a.Points, Point{
			Trial:     k + 1,
			Reference: res.ReferenceTimes[k],
			Anchor:    res.AnchorTimes[k],
			Corrected: res.Offset.Apply(res.AnchorTimes[k]),
			Residual:  res.Residuals[k],
		})
	}
	return a
}

// MaxAbsResidual returns the largest absolute residual, or 0 without points.
func (a Alignment) MaxAbsResidual() float64 {
	m := 0.0
	for _, p := range a.Points {
		m = math.Max(m, math.Abs(p.Residual))
	}
	return m
}

// Save writes the enabled report formats to dir, named after the session,
// and returns the paths written.
func (a Alignment) Save(fsys fsutil.FileSystem, dir string, png, html bool) ([]string, error) {
	base := security.SanitizeFilename(a.Session) + "_alignment"
	var written []string
	if png {
		p, err := saveWith(fsys, dir, base+".png", a.WritePNG)
		if err != nil {
			return written, err
		}
		written = append(written, p)
	}
	if html {
		p, err := saveWith(fsys, dir, base+".html", a.RenderHTML)
		if err != nil {
			return written, err
		}
		written = append(written, p)
	}
	return written, nil
}

func saveWith(fsys fsutil.FileSystem, dir, name string, render func(io.Writer) error) (string, error) {
	path := filepath.Join(dir, name)
	if err := security.ValidateWithinDirectory(path, dir); err != nil {
		return "", err
	}
	f, err := fsys.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := render(f); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("render %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
