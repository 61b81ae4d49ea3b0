// Package stream stores sensor stream recordings in SQLite session
// containers. A container holds one eye sample table, binocular or
// monocular, and a table of text message events sent by the experiment.
package stream

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"unicode/utf8"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/trialmerge/internal/session"
)

// Table names inside a session container.
const (
	BinocularTable = "binocular_eye_sample_event"
	MonocularTable = "monocular_eye_sample_event"
	MessageTable   = "message_event"
	InfoTable      = "container_info"
	TimeColumn     = "time"
)

// Source is a readable sensor stream. Container implements it; tests may
// substitute their own.
type Source interface {
	Samples(ctx context.Context) (*session.Stream, error)
	Markers(ctx context.Context) ([]session.Marker, error)
	Close() error
}

// Container is an open session container.
type Container struct {
	path   string
	db     *sql.DB
	tables map[string]bool
}

// Open opens the container at path for reading. The caller must Close it.
func Open(ctx context.Context, path string) (*Container, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, corrupt(path, "cannot open file", err)
	}
	if info.IsDir() {
		return nil, corrupt(path, "path is a directory", nil)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, corrupt(path, "cannot open database", err)
	}
	c := &Container{path: path, db: db}
	if err := c.loadTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// Close releases the database handle.
func (c *Container) Close() error {
	return c.db.Close()
}

// Path returns the file the container was opened from.
func (c *Container) Path() string { return c.path }

func (c *Container) loadTables(ctx context.Context) error {
	rows, err := c.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return c.readErr(ctx, "cannot list tables", err)
	}
	defer rows.Close()

	c.tables = make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return c.readErr(ctx, "cannot list tables", err)
		}
		c.tables[name] = true
	}
	if err := rows.Err(); err != nil {
		return c.readErr(ctx, "cannot list tables", err)
	}
	return nil
}

// Variant selects the eye sample event kind. Binocular data wins when both
// are present; mouse-simulated sessions only record monocular events.
func (c *Container) Variant() (session.Variant, error) {
	switch {
	case c.tables[BinocularTable]:
		return session.Binocular, nil
	case c.tables[MonocularTable]:
		return session.Monocular, nil
	default:
		return 0, corrupt(c.path, "no binocular or monocular eye sample events", nil)
	}
}

// Samples reads the eye sample table in storage order.
func (c *Container) Samples(ctx context.Context) (*session.Stream, error) {
	variant, err := c.Variant()
	if err != nil {
		return nil, err
	}
	table := SampleTable(variant)

	cols, err := c.columns(ctx, table)
	if err != nil {
		return nil, err
	}
	timeIdx := -1
	var sensorCols []string
	for i, name := range cols {
		if name == TimeColumn {
			timeIdx = i
			continue
		}
		sensorCols = append(sensorCols, name)
	}
	if timeIdx < 0 {
		return nil, corrupt(c.path, fmt.Sprintf("table %s has no %s column", table, TimeColumn), nil)
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", quoteList(cols), quoteIdent(table))
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, c.readErr(ctx, "cannot read eye samples", err)
	}
	defer rows.Close()

	out := &session.Stream{Variant: variant, Columns: sensorCols}
	vals := make([]sql.NullFloat64, len(cols))
	dest := make([]any, len(cols))
	for i := range vals {
		dest[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, c.readErr(ctx, fmt.Sprintf("eye sample %d", len(out.Samples)+1), err)
		}
		if !vals[timeIdx].Valid {
			return nil, corrupt(c.path, fmt.Sprintf("eye sample %d has no time", len(out.Samples)+1), nil)
		}
		smp := session.Sample{Time: vals[timeIdx].Float64, Values: make([]float64, 0, len(sensorCols))}
		for i, v := range vals {
			if i == timeIdx {
				continue
			}
			smp.Values = append(smp.Values, nullToNaN(v))
		}
		out.Samples = append(out.Samples, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, c.readErr(ctx, "cannot read eye samples", err)
	}
	if len(out.Samples) == 0 {
		return nil, corrupt(c.path, fmt.Sprintf("table %s has no eye samples", table), nil)
	}
	return out, nil
}

// Markers reads the message events in storage order, decoding each text
// from UTF-8 bytes.
func (c *Container) Markers(ctx context.Context) ([]session.Marker, error) {
	if !c.tables[MessageTable] {
		return nil, corrupt(c.path, "no message events", nil)
	}
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("SELECT time, text FROM %s ORDER BY rowid", quoteIdent(MessageTable)))
	if err != nil {
		return nil, c.readErr(ctx, "cannot read message events", err)
	}
	defer rows.Close()

	var out []session.Marker
	for rows.Next() {
		var t sql.NullFloat64
		var raw []byte
		if err := rows.Scan(&t, &raw); err != nil {
			return nil, c.readErr(ctx, fmt.Sprintf("message event %d", len(out)+1), err)
		}
		if !t.Valid {
			return nil, corrupt(c.path, fmt.Sprintf("message event %d has no time", len(out)+1), nil)
		}
		text, err := DecodeText(raw)
		if err != nil {
			return nil, c.readErr(ctx, fmt.Sprintf("message event %d", len(out)+1), err)
		}
		out = append(out, session.Marker{Time: t.Float64, Text: text})
	}
	if err := rows.Err(); err != nil {
		return nil, c.readErr(ctx, "cannot read message events", err)
	}
	return out, nil
}

func (c *Container) columns(ctx context.Context, table string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, c.readErr(ctx, "cannot describe "+table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, c.readErr(ctx, "cannot describe "+table, err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, c.readErr(ctx, "cannot describe "+table, err)
	}
	return cols, nil
}

// DecodeText turns a stored message into a string. Fixed-width writers pad
// with NUL bytes, which are dropped.
func DecodeText(raw []byte) (string, error) {
	raw = bytes.TrimRight(raw, "\x00")
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("message text is not valid UTF-8")
	}
	return string(raw), nil
}

// SampleTable returns the table name for a variant.
func SampleTable(v session.Variant) string {
	if v == session.Monocular {
		return MonocularTable
	}
	return BinocularTable
}

// readErr classifies a failed read. Cancellation is reported as such rather
// than as a damaged file.
func (c *Container) readErr(ctx context.Context, reason string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("read %s: %w", c.path, ctxErr)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("read %s: %w", c.path, err)
	}
	return corrupt(c.path, reason, err)
}

func nullToNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}
