// Package export writes merged sessions as CSV tables.
package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/trialmerge/internal/fsutil"
	"github.com/banshee-data/trialmerge/internal/security"
	"github.com/banshee-data/trialmerge/internal/session"
)

// DefaultSuffix is inserted before the trial log's extension to name the
// combined output.
const DefaultSuffix = "_combined"

// Column names the export adds around the sensor columns.
const (
	TimeColumn    = "time"
	MessageColumn = "message"
)

// OutputName derives the output file name from the trial log name, e.g.
// "p01_exp.csv" becomes "p01_exp_combined.csv". The output is always CSV.
func OutputName(trialLog, suffix string) string {
	base := filepath.Base(trialLog)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem + suffix + ".csv"
}

// Header returns the column names WriteCSV emits for m.
func Header(m *session.Merged) []string {
	h := make([]string, 0, len(m.Columns)+len(m.Fields)+2)
	h = append(h, TimeColumn)
	h = append(h, m.Columns...)
	h = append(h, MessageColumn)
	return append(h, m.Fields...)
}

// WriteCSV writes m with a header row. Missing sensor readings, absent
// messages and rows without trial metadata are written as empty cells.
func WriteCSV(w io.Writer, m *session.Merged) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(m)); err != nil {
		return err
	}

	rec := make([]string, 0, len(m.Columns)+len(m.Fields)+2)
	for i, row := range m.Rows {
		rec = rec[:0]
		rec = append(rec, FormatFloat(row.Time))
		for _, v := range row.Values {
			rec = append(rec, FormatFloat(v))
		}
		if row.HasMessage {
			rec = append(rec, row.Message)
		} else {
			rec = append(rec, "")
		}
		if row.HasMetadata {
			rec = append(rec, row.Metadata...)
		} else {
			for range m.Fields {
				rec = append(rec, "")
			}
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatFloat renders v in the shortest form that round-trips; NaN is empty.
func FormatFloat(v float64) string {
	if session.IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteFile writes m to outDir/name through fsys and returns the full path.
func WriteFile(fsys fsutil.FileSystem, outDir, name string, m *session.Merged) (string, error) {
	path := filepath.Join(outDir, name)
	if err := security.ValidateWithinDirectory(path, outDir); err != nil {
		return "", fmt.Errorf("invalid output name %q: %w", name, err)
	}

	f, err := fsys.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	if err := WriteCSV(bw, m); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
