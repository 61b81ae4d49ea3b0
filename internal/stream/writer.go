package stream

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/banshee-data/trialmerge/internal/monitoring"
	"github.com/banshee-data/trialmerge/internal/session"
	"github.com/banshee-data/trialmerge/internal/version"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// BinocularColumns are the sensor columns of a binocular sample table, after
// the time column.
var BinocularColumns = []string{
	"left_gaze_x", "left_gaze_y", "left_pupil_measure1",
	"right_gaze_x", "right_gaze_y", "right_pupil_measure1",
	"status",
}

// MonocularColumns are the sensor columns of a monocular sample table, after
// the time column.
var MonocularColumns = []string{"gaze_x", "gaze_y", "pupil_measure1", "status"}

// VariantColumns returns the sensor columns a writer creates for v.
func VariantColumns(v session.Variant) []string {
	if v == session.Monocular {
		return append([]string(nil), MonocularColumns...)
	}
	return append([]string(nil), BinocularColumns...)
}

// Writer appends samples and messages to a new session container.
type Writer struct {
	path    string
	db      *sql.DB
	variant session.Variant
	columns []string
}

// Create makes a new container at path for the given variant. The file must
// not exist yet.
func Create(ctx context.Context, path string, variant session.Variant) (*Writer, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("create container %q: file already exists", path)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("create container %q: %w", path, err)
	}
	w := &Writer{path: path, db: db, variant: variant, columns: VariantColumns(variant)}
	if err := w.init(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create container %q: %w", path, err)
	}
	return w, nil
}

func (w *Writer) init(ctx context.Context) error {
	if err := migrateUp(w.db); err != nil {
		return err
	}

	defs := make([]string, 0, len(w.columns)+1)
	defs = append(defs, quoteIdent(TimeColumn)+" DOUBLE NOT NULL")
	for _, c := range w.columns {
		defs = append(defs, quoteIdent(c)+" DOUBLE")
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(SampleTable(w.variant)), strings.Join(defs, ", "))
	if _, err := w.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create sample table: %w", err)
	}

	_, err := w.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO container_info (key, value) VALUES ('variant', ?), ('writer_version', ?)`,
		w.variant.String(), version.Version,
	)
	if err != nil {
		return fmt.Errorf("write container info: %w", err)
	}
	return nil
}

// WriteSamples appends samples in order. Each sample must carry one value per
// variant column.
func (w *Writer) WriteSamples(ctx context.Context, samples []session.Sample) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(w.columns)+1), ", ")
	cols := append([]string{TimeColumn}, w.columns...)
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(SampleTable(w.variant)), quoteList(cols), placeholders)

	return w.inTx(ctx, query, len(samples), func(i int) ([]any, error) {
		s := samples[i]
		if len(s.Values) != len(w.columns) {
			return nil, fmt.Errorf("sample %d has %d values, want %d", i, len(s.Values), len(w.columns))
		}
		args := make([]any, 0, len(cols))
		args = append(args, s.Time)
		for _, v := range s.Values {
			if session.IsMissing(v) {
				args = append(args, nil)
			} else {
				args = append(args, v)
			}
		}
		return args, nil
	})
}

// WriteMarkers appends message events in order, storing text as UTF-8 bytes.
func (w *Writer) WriteMarkers(ctx context.Context, markers []session.Marker) error {
	query := fmt.Sprintf("INSERT INTO %s (time, text) VALUES (?, ?)", quoteIdent(MessageTable))
	return w.inTx(ctx, query, len(markers), func(i int) ([]any, error) {
		return []any{markers[i].Time, []byte(markers[i].Text)}, nil
	})
}

func (w *Writer) inTx(ctx context.Context, query string, n int, args func(int) ([]any, error)) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		a, err := args(i)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, a...); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Close releases the database handle.
func (w *Writer) Close() error {
	return w.db.Close()
}

// migrateUp applies the embedded schema migrations.
func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Not closed: closing m would close db as well.
	m.Log = &migrateLogger{}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// migrateLogger implements migrate.Logger on top of monitoring.Logf.
type migrateLogger struct{}

var migrateLogf = monitoring.Prefixed("migrate")

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	migrateLogf(format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}
