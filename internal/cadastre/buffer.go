package cadastre

import (
	"context"

	"go.uber.org/zap"

	"github.com/terrafind/enrich-cli/pkg/ogc"
)

// DefaultBuffers is the progressive search schedule in degrees: roughly
// 100 m, 500 m, and 1 km at Iberian latitudes. A parcel missed by the tight
// box (edge effects, registration lag) is usually picked up by the next one.
var DefaultBuffers = []float64{0.001, 0.005, 0.01}

// fetchFunc queries one buffer size and returns the features found there.
// Transport retries happen inside the fetch (registry policy).
type fetchFunc func(ctx context.Context, delta float64) ([]ogc.Feature, error)

// queryWithBuffers tries each buffer in increasing order and stops at the
// first that yields at least one feature. A failed buffer attempt is logged
// and the search escalates to the next size; the search never widens past
// the last configured buffer. Empty result with nil error means "no data
// here".
func queryWithBuffers(ctx context.Context, source string, buffers []float64, fetch fetchFunc) ([]ogc.Feature, error) {
	if len(buffers) == 0 {
		buffers = DefaultBuffers
	}

	var lastErr error
	succeeded := false
	for _, delta := range buffers {
		feats, err := fetch(ctx, delta)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, lastErr
			}
			zap.L().Warn("buffer query failed, widening",
				zap.String("source", source),
				zap.Float64("buffer_deg", delta),
				zap.Error(err),
			)
			continue
		}
		succeeded = true
		if len(feats) > 0 {
			return feats, nil
		}
	}

	// Legitimate no-data only when at least one buffer answered cleanly;
	// otherwise surface the transport failure.
	if !succeeded && lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}
