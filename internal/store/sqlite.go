package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local runs
// without a Postgres instance. json_patch merges enrichment keys the way
// the jsonb concatenation does on Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS plots (
	id              TEXT PRIMARY KEY,
	latitude        REAL NOT NULL,
	longitude       REAL NOT NULL,
	real_latitude   REAL,
	real_longitude  REAL,
	municipality_id TEXT,
	enrichment_data TEXT NOT NULL DEFAULT '{}',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_plots_municipality ON plots(municipality_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return eris.Wrap(s.db.Close(), "sqlite: close")
}

func (s *SQLiteStore) UpsertEnrichment(ctx context.Context, plotID string, lat, lng float64, data map[string]json.RawMessage, coords *RealCoords) error {
	if data == nil {
		data = map[string]json.RawMessage{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal enrichment data")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plots (id, latitude, longitude, enrichment_data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			enrichment_data = json_patch(COALESCE(plots.enrichment_data, '{}'), excluded.enrichment_data),
			updated_at = datetime('now')`,
		plotID, lat, lng, string(payload),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: upsert enrichment")
	}

	if coords != nil {
		_, err = s.db.ExecContext(ctx, `
			UPDATE plots SET real_latitude = ?, real_longitude = ?, updated_at = datetime('now')
			WHERE id = ? AND (real_latitude IS NOT ? OR real_longitude IS NOT ?)`,
			coords.Latitude, coords.Longitude, plotID, coords.Latitude, coords.Longitude,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: update real coords")
		}
	}
	return nil
}

func (s *SQLiteStore) GetPlot(ctx context.Context, id string) (*Plot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, latitude, longitude, real_latitude, real_longitude, municipality_id, enrichment_data, updated_at
		FROM plots WHERE id = ?`, id)
	p, err := scanSQLitePlot(row.Scan)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(err, "sqlite: plot %s not found", id)
		}
		return nil, eris.Wrap(err, "sqlite: get plot")
	}
	return p, nil
}

func (s *SQLiteStore) ListPlots(ctx context.Context, limit, offset int) ([]Plot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, latitude, longitude, real_latitude, real_longitude, municipality_id, enrichment_data, updated_at
		FROM plots ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list plots")
	}
	defer rows.Close()

	var plots []Plot
	for rows.Next() {
		p, err := scanSQLitePlot(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan plot")
		}
		plots = append(plots, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate plots")
	}
	return plots, nil
}

func scanSQLitePlot(scan func(dest ...any) error) (*Plot, error) {
	var (
		p         Plot
		realLat   sql.NullFloat64
		realLng   sql.NullFloat64
		municID   sql.NullString
		raw       string
		updatedAt string
	)
	if err := scan(&p.ID, &p.Latitude, &p.Longitude, &realLat, &realLng, &municID, &raw, &updatedAt); err != nil {
		return nil, err
	}
	if realLat.Valid {
		p.RealLatitude = &realLat.Float64
	}
	if realLng.Valid {
		p.RealLongitude = &realLng.Float64
	}
	if municID.Valid {
		p.MunicipalityID = &municID.String
	}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.EnrichmentData); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal enrichment data")
		}
	}
	if t, err := time.Parse("2006-01-02 15:04:05", updatedAt); err == nil {
		p.UpdatedAt = t
	}
	return &p, nil
}
