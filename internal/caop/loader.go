package caop

import (
	"context"

	"go.uber.org/zap"

	"github.com/terrafind/enrich-cli/internal/db"
)

const defaultBatchSize = 10_000

var loadColumns = []string{"id", "level", "name", "district", "geom_ewkb"}

// BulkLoad upserts boundaries into geo.caop_boundaries in batches, COPYing
// through a temp table so reloading a newer CAOP release replaces rows
// instead of violating the primary key. batchSize <= 0 uses the default.
func BulkLoad(ctx context.Context, pool db.Pool, boundaries []Boundary, batchSize int) (int64, error) {
	if len(boundaries) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	log := zap.L().With(
		zap.String("component", "caop.loader"),
		zap.Int("total_rows", len(boundaries)))

	var total int64
	for i := 0; i < len(boundaries); i += batchSize {
		end := i + batchSize
		if end > len(boundaries) {
			end = len(boundaries)
		}

		rows := make([][]any, 0, end-i)
		for _, b := range boundaries[i:end] {
			rows = append(rows, []any{b.ID, string(b.Level), b.Name, b.District, b.GeomEWKB})
		}

		n, err := db.BulkUpsert(ctx, pool, db.UpsertConfig{
			Table:        "geo.caop_boundaries",
			Columns:      loadColumns,
			ConflictKeys: []string{"id"},
		}, rows)
		if err != nil {
			return total, err
		}
		total += n

		log.Debug("batch loaded", zap.Int("batch_start", i), zap.Int64("batch_rows", n))
	}
	return total, nil
}
