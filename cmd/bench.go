package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rosettalab/xlate/internal/bench"
	"github.com/rosettalab/xlate/internal/benchstore"
)

var (
	benchIterations int
	benchJSON       bool
	benchNoRecord   bool
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run the reference algorithm benchmarks",
	Long: `Time the reference algorithms used as translation fixtures and record
the run in the benchmark database. Recorded runs give performance
verification a baseline to compare translated output against.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h := &bench.Harness{Iterations: benchIterations}
		results := h.Run()

		if benchJSON {
			doc, err := bench.MarshalResults(results)
			if err != nil {
				return err
			}
			fmt.Fprintln(ui.Out, doc)
		} else {
			table := ui.Table([]string{"ALGORITHM", "LANG", "ITERS", "NS/OP"})
			for _, r := range results {
				table.Append([]string{
					r.Algorithm,
					r.Language,
					fmt.Sprintf("%d", r.Iterations),
					fmt.Sprintf("%d", r.NsPerOp),
				})
			}
			if err := table.Render(); err != nil {
				return err
			}
		}

		if benchNoRecord {
			return nil
		}

		s, err := benchstore.New(viper.GetString("bench.db_path"))
		if err != nil {
			return fmt.Errorf("open bench database: %w", err)
		}
		defer s.Close()

		if err := s.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("migrate bench database: %w", err)
		}

		runID, err := s.RecordRun(cmd.Context(), results)
		if err != nil {
			return fmt.Errorf("record run: %w", err)
		}
		ui.Success("Recorded run %s", runID)
		return nil
	},
}

var benchRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded benchmark runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := benchstore.New(viper.GetString("bench.db_path"))
		if err != nil {
			return fmt.Errorf("open bench database: %w", err)
		}
		defer s.Close()

		if err := s.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("migrate bench database: %w", err)
		}

		runs, err := s.ListRuns(cmd.Context(), 20)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			ui.Info("No recorded runs")
			return nil
		}

		table := ui.Table([]string{"RUN", "RECORDED"})
		for _, r := range runs {
			table.Append([]string{r.ID, r.CreatedAt.Format("2006-01-02 15:04:05")})
		}
		return table.Render()
	},
}

func init() {
	benchCmd.Flags().IntVarP(&benchIterations, "iterations", "i", 100, "Iterations per algorithm")
	benchCmd.Flags().BoolVar(&benchJSON, "json", false, "Emit results as JSON")
	benchCmd.Flags().BoolVar(&benchNoRecord, "no-record", false, "Skip recording the run")
	benchCmd.AddCommand(benchRunsCmd)
	rootCmd.AddCommand(benchCmd)
}
