package main

import (
	"context"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/terrafind/enrich-cli/internal/enrich"
	"github.com/terrafind/enrich-cli/internal/store"
)

var (
	batchLimit       int
	batchOffset      int
	batchConcurrency int
	batchDelayMs     int
	batchTranslate   bool
	batchLanguage    string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Enrich stored plots in bulk",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		plots, err := env.Store.ListPlots(ctx, batchLimit, batchOffset)
		if err != nil {
			return eris.Wrap(err, "list plots")
		}
		if len(plots) == 0 {
			zap.L().Info("no plots to enrich")
			return nil
		}

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.Concurrency
		}
		delayMs := batchDelayMs
		if delayMs < 0 {
			delayMs = cfg.Batch.DelayMs
		}

		processed, failed := processBatch(ctx, env.Service, plots, concurrency,
			time.Duration(delayMs)*time.Millisecond, batchTranslate, batchLanguage)

		zap.L().Info("batch finished",
			zap.Int("processed", processed),
			zap.Int("failed", failed),
			zap.Int("total", len(plots)))
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 100, "max number of plots to process")
	batchCmd.Flags().IntVar(&batchOffset, "offset", 0, "number of plots to skip")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "worker pool size (default from config)")
	batchCmd.Flags().IntVar(&batchDelayMs, "delay", -1, "delay between plot launches in milliseconds (default from config)")
	batchCmd.Flags().BoolVar(&batchTranslate, "translate", false, "translate zoning labels")
	batchCmd.Flags().StringVar(&batchLanguage, "language", "en", "translation target language")
	rootCmd.AddCommand(batchCmd)
}

// enricher is the slice of the enrichment service batch processing needs.
type enricher interface {
	EnrichLocation(ctx context.Context, req enrich.Request) (*enrich.Response, error)
}

// processBatch enriches plots with bounded concurrency and a launch delay
// that keeps the public upstream services happy. A failed plot is counted
// and logged, never fatal for the batch.
func processBatch(ctx context.Context, svc enricher, plots []store.Plot, concurrency int, delay time.Duration, translateLabels bool, language string) (processed, failed int) {
	if concurrency <= 0 {
		concurrency = 2
	}

	var okCount, failCount atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, plot := range plots {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
		}

		plot := plot
		g.Go(func() error {
			resp, err := svc.EnrichLocation(ctx, enrich.Request{
				Latitude:       plot.Latitude,
				Longitude:      plot.Longitude,
				PlotID:         plot.ID,
				StoreResults:   true,
				Translate:      translateLabels,
				TargetLanguage: language,
			})
			if err != nil {
				failCount.Add(1)
				zap.L().Warn("plot enrichment failed", zap.String("plot_id", plot.ID), zap.Error(err))
				return nil
			}
			okCount.Add(1)
			zap.L().Info("plot enriched",
				zap.String("plot_id", plot.ID),
				zap.String("run_id", resp.RunID),
				zap.Strings("failed_stages", resp.EnrichmentsFailed))
			return nil
		})
	}

	_ = g.Wait()
	return int(okCount.Load()), int(failCount.Load())
}
