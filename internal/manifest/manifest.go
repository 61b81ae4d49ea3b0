// Package manifest records the outcome of a batch run: which pairs were
// processed, what they produced and how they aligned.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"github.com/banshee-data/trialmerge/internal/fsutil"
	"github.com/banshee-data/trialmerge/internal/timeutil"
	"github.com/banshee-data/trialmerge/internal/version"
)

// FileName is the manifest written into the output directory.
const FileName = "manifest.json"

// Entry is one session's outcome. Error is empty on success.
type Entry struct {
	Session     string   `json:"session"`
	TrialLog    string   `json:"trial_log"`
	Stream      string   `json:"stream"`
	Variant     string   `json:"variant,omitempty"`
	Output      string   `json:"output,omitempty"`
	Reports     []string `json:"reports,omitempty"`
	Offset      float64  `json:"offset"`
	Anchors     int      `json:"anchors"`
	Markers     int      `json:"markers"`
	Rows        int      `json:"rows"`
	MaxResidual float64  `json:"max_residual"`
	Error       string   `json:"error,omitempty"`
}

// OK reports whether the session merged.
func (e Entry) OK() bool { return e.Error == "" }

// Manifest is safe for concurrent Add calls.
type Manifest struct {
	RunID      string    `json:"run_id"`
	Version    string    `json:"version"`
	GitSHA     string    `json:"git_sha"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Digest     string    `json:"entries_sha256,omitempty"`
	Entries    []Entry   `json:"entries"`

	mu    sync.Mutex
	clock timeutil.Clock
}

// New starts a manifest. A nil clock uses wall time.
func New(clock timeutil.Clock) *Manifest {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Manifest{
		RunID:     uuid.NewString(),
		Version:   version.Version,
		GitSHA:    version.GitSHA,
		StartedAt: clock.Now().UTC(),
		Entries:   []Entry{},
		clock:     clock,
	}
}

// Add appends an entry.
func (m *Manifest) Add(e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, e)
}

// Failed counts entries with an error.
func (m *Manifest) Failed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Entries {
		if !e.OK() {
			n++
		}
	}
	return n
}

// Finish stamps the end time and the entries digest.
func (m *Manifest) Finish() error {
	digest, err := m.EntriesDigest()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FinishedAt = m.clock.Now().UTC()
	m.Digest = digest
	return nil
}

// EntriesDigest is the hex sha256 of the RFC 8785 canonical JSON of the
// entries. It does not depend on run id or timestamps, so identical batches
// produce identical digests.
func (m *Manifest) EntriesDigest() (string, error) {
	m.mu.Lock()
	raw, err := json.Marshal(m.Entries)
	m.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("marshal entries: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize entries: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Write stores the manifest as indented JSON.
func (m *Manifest) Write(fsys fsutil.FileSystem, path string) error {
	m.mu.Lock()
	data, err := json.MarshalIndent(m, "", "  ")
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := fsys.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write manifest %s: %w", path, err)
	}
	return nil
}
