package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/terrafind/enrich-cli/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	upsertEnrichmentSQL = `
		INSERT INTO plots (id, latitude, longitude, enrichment_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			enrichment_data = COALESCE(plots.enrichment_data, '{}'::jsonb) || EXCLUDED.enrichment_data,
			updated_at = now()`

	updateRealCoordsSQL = `
		UPDATE plots SET real_latitude = $2, real_longitude = $3, updated_at = now()
		WHERE id = $1
		  AND (real_latitude IS DISTINCT FROM $2 OR real_longitude IS DISTINCT FROM $3)`

	getPlotSQL = `
		SELECT id, latitude, longitude, real_latitude, real_longitude, municipality_id, enrichment_data, updated_at
		FROM plots WHERE id = $1`

	listPlotsSQL = `
		SELECT id, latitude, longitude, real_latitude, real_longitude, municipality_id, enrichment_data, updated_at
		FROM plots ORDER BY id LIMIT $1 OFFSET $2`
)

// preparedStatements lists queries to prepare on each new connection; batch
// enrichment hits the upsert for every plot.
var preparedStatements = map[string]string{
	"upsert_enrichment":  upsertEnrichmentSQL,
	"update_real_coords": updateRealCoordsSQL,
	"get_plot":           getPlotSQL,
	"list_plots":         listPlotsSQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., the boundary loader).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS plots (
	id              TEXT PRIMARY KEY,
	latitude        DOUBLE PRECISION NOT NULL,
	longitude       DOUBLE PRECISION NOT NULL,
	real_latitude   DOUBLE PRECISION,
	real_longitude  DOUBLE PRECISION,
	municipality_id TEXT,
	enrichment_data JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_plots_municipality ON plots(municipality_id);

CREATE SCHEMA IF NOT EXISTS geo;

CREATE TABLE IF NOT EXISTS geo.caop_boundaries (
	id        TEXT PRIMARY KEY,
	level     TEXT NOT NULL,
	name      TEXT NOT NULL,
	district  TEXT,
	geom_ewkb BYTEA NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_caop_boundaries_level ON geo.caop_boundaries(level);
CREATE INDEX IF NOT EXISTS idx_caop_boundaries_name ON geo.caop_boundaries(name);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertEnrichment(ctx context.Context, plotID string, lat, lng float64, data map[string]json.RawMessage, coords *RealCoords) error {
	if data == nil {
		// jsonb concatenation rejects a null operand.
		data = map[string]json.RawMessage{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal enrichment data")
	}

	if _, err := s.pool.Exec(ctx, upsertEnrichmentSQL, plotID, lat, lng, payload); err != nil {
		return eris.Wrap(err, "postgres: upsert enrichment")
	}

	if coords != nil {
		if _, err := s.pool.Exec(ctx, updateRealCoordsSQL, plotID, coords.Latitude, coords.Longitude); err != nil {
			return eris.Wrap(err, "postgres: update real coords")
		}
	}
	return nil
}

func (s *PostgresStore) GetPlot(ctx context.Context, id string) (*Plot, error) {
	row := s.pool.QueryRow(ctx, getPlotSQL, id)
	p, err := scanPlot(row)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(err, "postgres: plot %s not found", id)
		}
		return nil, eris.Wrap(err, "postgres: get plot")
	}
	return p, nil
}

func (s *PostgresStore) ListPlots(ctx context.Context, limit, offset int) ([]Plot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, listPlotsSQL, limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list plots")
	}
	defer rows.Close()

	var plots []Plot
	for rows.Next() {
		p, err := scanPlot(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan plot")
		}
		plots = append(plots, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate plots")
	}
	return plots, nil
}

func scanPlot(row pgx.Row) (*Plot, error) {
	var (
		p   Plot
		raw []byte
	)
	if err := row.Scan(&p.ID, &p.Latitude, &p.Longitude, &p.RealLatitude, &p.RealLongitude, &p.MunicipalityID, &raw, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p.EnrichmentData); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal enrichment data")
		}
	}
	return &p, nil
}
