package storage

// sqlite.go — journal persistente de carreras.
//
// Estrategia:
//   - `runs`: un snapshot por Run (UPSERT). Los caballos y balances van
//     como JSON: se leen siempre como documento completo, no hay queries
//     parciales que justifiquen normalizarlos.
//   - `events`: append-only, un registro por evento terminal emitido.
//   - Los Runs terminados no se borran nunca: son el histórico consultable.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alejandrodnm/hipodromo/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id              INTEGER PRIMARY KEY,
    started_at      DATETIME NOT NULL,
    bidding_ends_at DATETIME NOT NULL,
    status          TEXT     NOT NULL,
    winner          TEXT     NOT NULL DEFAULT '',
    horses          TEXT     NOT NULL,
    bidders         TEXT     NOT NULL,
    updated_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
    seq     INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id  INTEGER  NOT NULL,
    kind    TEXT     NOT NULL,
    payload TEXT     NOT NULL,
    at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_events_run  ON events(run_id);
`

// SQLiteStore implementa ports.RunStore usando SQLite (pure Go, sin CGo).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore abre (o crea) la base de datos en la ruta dada y aplica
// el schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// SaveRun inserta o reemplaza el snapshot del Run.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *domain.Run) error {
	horses, err := json.Marshal(run.Horses)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: marshal horses: %w", err)
	}
	bidders, err := json.Marshal(run.Bidders)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: marshal bidders: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, bidding_ends_at, status, winner, horses, bidders, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status     = excluded.status,
			winner     = excluded.winner,
			horses     = excluded.horses,
			bidders    = excluded.bidders,
			updated_at = excluded.updated_at`,
		run.ID, run.StartedAt.UTC(), run.BiddingEndsAt.UTC(),
		string(run.Status), run.Winner, string(horses), string(bidders),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: upsert run %d: %w", run.ID, err)
	}
	return nil
}

// GetRun devuelve el Run con el id dado, o domain.ErrNotFound.
func (s *SQLiteStore) GetRun(ctx context.Context, id uint64) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, bidding_ends_at, status, winner, horses, bidders
		FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("storage.GetRun: run %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage.GetRun: %w", err)
	}
	return run, nil
}

// ListRuns devuelve todos los Runs ordenados por id ascendente.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]*domain.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, bidding_ends_at, status, winner, horses, bidders
		FROM runs ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage.ListRuns: query: %w", err)
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListRuns: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage.ListRuns: rows: %w", err)
	}
	return runs, nil
}

// AppendEvent añade un evento terminal al journal.
func (s *SQLiteStore) AppendEvent(ctx context.Context, runID uint64, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("storage.AppendEvent: marshal %s: %w", ev.Kind(), err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (run_id, kind, payload, at) VALUES (?, ?, ?, ?)`,
		runID, ev.Kind(), string(payload), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.AppendEvent: insert %s: %w", ev.Kind(), err)
	}
	return nil
}

// EventKinds devuelve los kinds registrados para un Run, en orden de
// emisión. Pensado para inspección y tests.
func (s *SQLiteStore) EventKinds(ctx context.Context, runID uint64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind FROM events WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("storage.EventKinds: query: %w", err)
	}
	defer rows.Close()

	var kinds []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("storage.EventKinds: scan: %w", err)
		}
		kinds = append(kinds, k)
	}
	return kinds, rows.Err()
}

// Close cierra la conexión limpiamente.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*domain.Run, error) {
	var (
		run         domain.Run
		status      string
		horsesJSON  string
		biddersJSON string
	)
	if err := row.Scan(&run.ID, &run.StartedAt, &run.BiddingEndsAt, &status, &run.Winner, &horsesJSON, &biddersJSON); err != nil {
		return nil, err
	}
	run.Status = domain.Stage(status)

	if err := json.Unmarshal([]byte(horsesJSON), &run.Horses); err != nil {
		return nil, fmt.Errorf("unmarshal horses: %w", err)
	}
	if err := json.Unmarshal([]byte(biddersJSON), &run.Bidders); err != nil {
		return nil, fmt.Errorf("unmarshal bidders: %w", err)
	}
	return &run, nil
}
