package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terrafind/enrich-cli/internal/caop"
	"github.com/terrafind/enrich-cli/internal/store"
)

var (
	caopFile      string
	caopLevel     string
	caopBatchSize int
)

var caoploadCmd = &cobra.Command{
	Use:   "caopload",
	Short: "Load a CAOP administrative boundary shapefile into Postgres",
	Long: `Parses one shapefile from the Carta Administrativa Oficial de Portugal and
bulk-loads its polygons into geo.caop_boundaries, so admin lookups can run
against a local mirror instead of the public WFS.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		ps, ok := st.(*store.PostgresStore)
		if !ok {
			return eris.New("caopload requires the postgres store driver")
		}
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		boundaries, err := caop.ParseShapefile(caopFile, caop.Level(caopLevel))
		if err != nil {
			return err
		}
		if len(boundaries) == 0 {
			return eris.Errorf("no usable records in %s", caopFile)
		}

		n, err := caop.BulkLoad(ctx, ps.Pool(), boundaries, caopBatchSize)
		if err != nil {
			return eris.Wrap(err, "bulk load boundaries")
		}

		zap.L().Info("caop shapefile loaded",
			zap.String("file", caopFile),
			zap.String("level", caopLevel),
			zap.Int64("rows", n))
		return nil
	},
}

func init() {
	caoploadCmd.Flags().StringVar(&caopFile, "file", "", "path to the .shp file (required)")
	caoploadCmd.Flags().StringVar(&caopLevel, "level", "parish", "boundary level: district, municipality, or parish")
	caoploadCmd.Flags().IntVar(&caopBatchSize, "batch-size", 0, "rows per COPY batch (default 10000)")
	_ = caoploadCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(caoploadCmd)
}
