// Package triallog reads the per-trial CSV written by the stimulus software
// and checks it carries every column the merge needs.
package triallog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/trialmerge/internal/fsutil"
	"github.com/banshee-data/trialmerge/internal/session"
)

// ErrMissingColumn is the sentinel behind MissingColumnError.
var ErrMissingColumn = errors.New("missing column")

// MissingColumnError names a required column absent from a trial log.
type MissingColumnError struct {
	Field string
	File  string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing column in trial log %q: could not find required column %q", e.File, e.Field)
}

func (e *MissingColumnError) Unwrap() error { return ErrMissingColumn }

// Validate returns a MissingColumnError for the first name in required that
// log lacks.
func Validate(log *session.TrialLog, required []string) error {
	for _, name := range required {
		if !log.HasColumn(name) {
			return &MissingColumnError{Field: name, File: log.Source}
		}
	}
	return nil
}

// Load opens path through fsys and parses it with Read.
func Load(fsys fsutil.FileSystem, path, startColumn string) (*session.TrialLog, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trial log: %w", err)
	}
	defer f.Close()
	return Read(f, path, startColumn)
}

// Read parses a trial log. The first record is the header. A start time cell
// that is empty or NaN marks a trial that never ran. When the header lacks
// startColumn every row is treated as not started; Validate reports the
// missing column.
func Read(r io.Reader, source, startColumn string) (*session.TrialLog, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return &session.TrialLog{Source: source}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read trial log %q header: %w", source, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	log := &session.TrialLog{Source: source, Columns: header}
	startIdx := -1
	for i, name := range header {
		if name == startColumn {
			startIdx = i
			break
		}
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read trial log %q: %w", source, err)
		}

		row := session.TrialRow{Fields: make(map[string]string, len(header))}
		for i, name := range header {
			if _, dup := row.Fields[name]; dup {
				continue
			}
			if i < len(rec) {
				row.Fields[name] = rec[i]
			}
		}
		if startIdx >= 0 && startIdx < len(rec) {
			start, ok, err := parseOptionalFloat(rec[startIdx])
			if err != nil {
				return nil, fmt.Errorf("trial log %q line %d column %q: %w", source, line, startColumn, err)
			}
			row.StartTime, row.HasStart = start, ok
		}
		log.Rows = append(log.Rows, row)
	}
	return log, nil
}

func parseOptionalFloat(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "none":
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}
