// Package pairing matches trial logs with sensor stream containers in an
// input directory.
package pairing

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banshee-data/trialmerge/internal/fsutil"
)

// ErrMissingFiles is the sentinel behind MissingFilesError.
var ErrMissingFiles = errors.New("missing files")

// MissingFilesError reports an input directory that does not hold one sensor
// stream per trial log.
type MissingFilesError struct {
	Dir     string
	Logs    int
	Streams int
}

func (e *MissingFilesError) Error() string {
	if e.Logs == 0 || e.Streams == 0 {
		return fmt.Sprintf("the data directory %q doesn't contain both trial logs and sensor stream files (%d trial logs, %d streams); check that the correct directory was selected", e.Dir, e.Logs, e.Streams)
	}
	return fmt.Sprintf("the data directory %q contains %d trial logs but %d sensor stream files; "+
		"at least one session is incomplete, most likely because it was aborted before the stream was saved. "+
		"Move incomplete sessions to a separate directory and run again", e.Dir, e.Logs, e.Streams)
}

func (e *MissingFilesError) Unwrap() error { return ErrMissingFiles }

// Pair is one session's trial log and sensor stream, as full paths.
type Pair struct {
	TrialLog string
	Stream   string
}

// Name is the trial log's base name without extension, used to label the
// session in logs and reports.
func (p Pair) Name() string {
	base := filepath.Base(p.TrialLog)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Find lists dir and pairs files by sorted name: the i-th trial log (logExt)
// with the i-th stream (streamExt). Hidden files and directories are ignored.
func Find(fsys fsutil.FileSystem, dir, logExt, streamExt string) ([]Pair, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list input directory: %w", err)
	}

	var logs, streams []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		switch {
		case strings.HasSuffix(name, logExt):
			logs = append(logs, name)
		case strings.HasSuffix(name, streamExt):
			streams = append(streams, name)
		}
	}

	if len(logs) == 0 || len(streams) == 0 || len(logs) != len(streams) {
		return nil, &MissingFilesError{Dir: dir, Logs: len(logs), Streams: len(streams)}
	}

	sort.Strings(logs)
	sort.Strings(streams)

	pairs := make([]Pair, len(logs))
	for i := range logs {
		pairs[i] = Pair{
			TrialLog: filepath.Join(dir, logs[i]),
			Stream:   filepath.Join(dir, streams[i]),
		}
	}
	return pairs, nil
}
