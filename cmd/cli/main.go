package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"timecourse/adapters/excel"
	"timecourse/adapters/postgres"
	"timecourse/adapters/spline"
	"timecourse/app"
	"timecourse/domain/core"
	"timecourse/domain/interval"
	"timecourse/internal"
	"timecourse/internal/config"
	"timecourse/internal/rng"
	"timecourse/ports"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "timecourse",
		Short: "Detects time intervals of differential abundance between two groups",
	}

	rootCmd.AddCommand(newAnalyzeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newAnalyzeCmd() *cobra.Command {
	var (
		permutations int
		seed         int64
		workers      int
		threshold    float64
		feature      string
		save         bool
	)

	cmd := &cobra.Command{
		Use:   "analyze [table-file]",
		Short: "Run the differential-interval analysis on a long-format table",
		Long: `Fit the between-group difference curve over time, extract candidate
intervals from its confidence band, and validate each interval with a
subject-block label-permutation test.

The table (csv or xlsx) needs value, group, time and subject columns.

Example: timecourse analyze abundances.csv --permutations 999 --seed 42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil {
				internal.DefaultLogger.Debug("no .env file loaded: %v", err)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			params := app.ParamsFromConfig(cfg.Analysis)
			if cmd.Flags().Changed("permutations") {
				params.Permutations = permutations
			}
			if cmd.Flags().Changed("seed") {
				params.Seed = seed
			}
			if cmd.Flags().Changed("workers") {
				params.Workers = workers
			}
			if cmd.Flags().Changed("threshold") {
				params.Threshold = threshold
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ds, err := excel.NewObservationReader(args[0]).ReadDataset()
			if err != nil {
				return err
			}

			pipeline := app.NewPipeline(spline.NewFitter(), rng.New())
			pipeline.SetProgress(ports.ProgressFunc(func(done, total int) {
				fmt.Fprintf(os.Stderr, "permutations: %d/%d\n", done, total)
			}))

			result, err := pipeline.Run(ctx, ds, params)
			if err != nil {
				return err
			}

			printResult(result)

			if save && cfg.Database.URL != "" {
				db, err := postgres.Connect(ctx, cfg.Database.URL)
				if err != nil {
					return err
				}
				defer db.Close()
				repo := postgres.NewResultRepository(db)
				if err := repo.EnsureSchema(ctx); err != nil {
					return err
				}
				if err := repo.SaveResult(ctx, core.FeatureKey(feature), result); err != nil {
					return err
				}
				fmt.Printf("saved run %s\n", result.RunID)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&permutations, "permutations", 999, "number of label permutations")
	cmd.Flags().Int64Var(&seed, "seed", 42, "random seed for reproducible p-values")
	cmd.Flags().IntVar(&workers, "workers", 0, "permutation worker pool size (0 = all CPUs)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "minimum band magnitude for detection")
	cmd.Flags().StringVar(&feature, "feature", "feature", "feature key stored with saved results")
	cmd.Flags().BoolVar(&save, "save", false, "persist the result to DATABASE_URL")

	return cmd
}

func printResult(result *interval.Result) {
	if !result.HasIntervals() {
		fmt.Println("no significant intervals detected")
		return
	}

	fmt.Printf("run %s (%d permutations)\n", result.RunID, result.Permutations)
	fmt.Printf("%-10s %-10s %-12s %-10s\n", "start", "end", "area", "p-value")
	for _, c := range result.Intervals {
		p := "n/a"
		if !math.IsNaN(c.PValue) {
			p = fmt.Sprintf("%.4f", c.PValue)
		}
		fmt.Printf("%-10.2f %-10.2f %-12.4f %-10s\n", c.Start, c.End, c.Area, p)
	}
	if sig := result.SignificantAt(0.05); len(sig) > 0 {
		fmt.Printf("%d interval(s) significant at p < 0.05\n", len(sig))
	}
}
