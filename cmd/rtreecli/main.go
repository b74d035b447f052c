// Command rtreecli is a thin wrapper around package rtreedb: one
// subcommand per engine operation, a shared --tree/--record file pair,
// and structured logging of every mutation.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jakubkucera/rtreedb"
)

var (
	logger *zap.Logger
	cfg    rtreedb.Config
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rtreecli",
		Short: "Inspect and mutate an rtreedb tree/record file pair",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initLogger()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("tree", "rtree.db", "path to the tree file")
	flags.String("record", "rtree.records", "path to the record file")
	flags.Int("dimensions", rtreedb.DefaultDimensions, "number of dimensions")
	flags.Int("page-size", rtreedb.DefaultPageSize, "tree file page size in bytes")
	flags.Int("id-size", rtreedb.DefaultIDSize, "width in bytes of node ids")
	flags.Int("coord-size", rtreedb.DefaultCoordSize, "width in bytes of one coordinate")
	flags.Float64("min-fill", rtreedb.DefaultMinFill, "minimum-fill fraction used by split distribution")
	flags.Int("cache-budget", rtreedb.DefaultCacheBudget, "node cache variable-region byte budget")
	flags.Bool("override", false, "delete any existing tree/record files before opening")

	v := viper.New()
	v.SetEnvPrefix("RTREEDB")
	v.AutomaticEnv()
	_ = v.BindPFlags(flags)

	cobra.OnInitialize(func() {
		cfg = rtreedb.Config{
			TreePath:    v.GetString("tree"),
			RecordPath:  v.GetString("record"),
			Dimensions:  v.GetInt("dimensions"),
			PageSize:    v.GetInt("page-size"),
			IDSize:      v.GetInt("id-size"),
			CoordSize:   v.GetInt("coord-size"),
			MinFill:     v.GetFloat64("min-fill"),
			CacheBudget: v.GetInt("cache-budget"),
			Override:    v.GetBool("override"),
		}
	})

	cmd.AddCommand(
		newInsertCmd(),
		newPointCmd(),
		newWindowCmd(),
		newKNNCmd(),
		newDeleteCmd(),
		newRebuildCmd(),
		newStatCmd(),
	)
	return cmd
}

func initLogger() error {
	l, err := zap.NewProduction()
	if err != nil {
		return err
	}
	logger = l
	return nil
}

func openEngine() (*rtreedb.Engine, error) {
	e, err := rtreedb.Open(cfg)
	if err != nil {
		logger.Error("open failed", zap.String("tree", cfg.TreePath), zap.Error(err))
		return nil, err
	}
	return e, nil
}

func printRecord(r *rtreedb.Record) {
	if r == nil {
		fmt.Println("not found")
		return
	}
	fmt.Printf("%v -> %q\n", r.Coordinates, string(r.Payload))
}
