package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func parseCoords(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	coords := make([]int64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid coordinate %q: %w", p, err)
		}
		coords[i] = v
	}
	return coords, nil
}

func newInsertCmd() *cobra.Command {
	var payload string
	cmd := &cobra.Command{
		Use:   "insert <coords>",
		Short: "Insert a point (comma-separated coordinates) with a payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coords, err := parseCoords(args[0])
			if err != nil {
				return err
			}
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.Insert(coords, []byte(payload)); err != nil {
				logger.Error("insert failed", zap.Int64s("coords", coords), zap.Error(err))
				return err
			}
			logger.Info("inserted", zap.Int64s("coords", coords))
			return nil
		},
	}
	cmd.Flags().StringVar(&payload, "payload", "", "opaque payload to store with the point")
	return cmd
}

func newPointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "point <coords>",
		Short: "Look up the first live record at a point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coords, err := parseCoords(args[0])
			if err != nil {
				return err
			}
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			rec, err := e.SearchPoint(coords)
			if err != nil {
				return err
			}
			printRecord(rec)
			return nil
		},
	}
	return cmd
}

func newWindowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "window <lo> <hi>",
		Short: "List every live record inside a closed box",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lo, err := parseCoords(args[0])
			if err != nil {
				return err
			}
			hi, err := parseCoords(args[1])
			if err != nil {
				return err
			}
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			results, err := e.SearchWindow(lo, hi)
			if err != nil {
				return err
			}
			for _, r := range results {
				printRecord(r)
			}
			fmt.Printf("%d record(s)\n", len(results))
			return nil
		},
	}
	return cmd
}

func newKNNCmd() *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "knn <coords>",
		Short: "Find the k nearest live records to a point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coords, err := parseCoords(args[0])
			if err != nil {
				return err
			}
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			results, err := e.SearchKNN(k, coords)
			if err != nil {
				return err
			}
			for _, r := range results {
				printRecord(r)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&k, "k", 1, "number of neighbours to return")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <coords>",
		Short: "Delete the first live record at a point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coords, err := parseCoords(args[0])
			if err != nil {
				return err
			}
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			deleted, err := e.Delete(coords)
			if err != nil {
				logger.Error("delete failed", zap.Int64s("coords", coords), zap.Error(err))
				return err
			}
			logger.Info("delete", zap.Int64s("coords", coords), zap.Bool("deleted", deleted))
			fmt.Println(deleted)
			return nil
		},
	}
	return cmd
}

func newRebuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Tear down and recreate the tree/record files from live data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.Rebuild(); err != nil {
				logger.Error("rebuild failed", zap.Error(err))
				return err
			}
			logger.Info("rebuild complete")
			return nil
		},
	}
	return cmd
}

func newStatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stat",
		Short: "Print the current shape of the tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			s := e.Stat()
			fmt.Printf("dimensions=%d fanOut=%d depth=%d rootID=%d highestID=%d minFill=%.2f cacheBudget=%d\n",
				s.Dimensions, s.FanOut, s.TreeDepth, s.RootID, s.HighestID, s.MinFill, s.CacheBudget)
			return nil
		},
	}
	return cmd
}
