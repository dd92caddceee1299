package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/anime-shed/capture-inspector-go/internal/repository"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and move stored analysis results",
	}
	cmd.AddCommand(newHistoryListCmd(), newHistoryExportCmd(), newHistoryImportCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var filter repository.HistoryFilter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored analysis results, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			history, closeFn, err := openHistory()
			if err != nil {
				return err
			}
			defer closeFn()

			results, err := history.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{
					r.ID,
					r.SceneID,
					r.SessionID,
					string(r.RiskAssessment.Level),
					strconv.FormatBool(r.RequiresManualReview),
					r.Timestamp.Format("2006-01-02 15:04:05"),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Scene", "Session", "Risk", "Review", "Time"},
				rows,
				nil,
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.SceneID, "scene", "", "Only results for this scene")
	cmd.Flags().StringVar(&filter.SessionID, "session", "", "Only results for this session")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "Maximum results to list")

	return cmd
}

func newHistoryExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every stored result as a JSON array",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			history, closeFn, err := openHistory()
			if err != nil {
				return err
			}
			defer closeFn()

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			n, err := history.Export(cmd.Context(), w)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d results\n", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "Output file (defaults to stdout)")

	return cmd
}

func newHistoryImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Load results from a JSON export, skipping ones already stored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, closeFn, err := openHistory()
			if err != nil {
				return err
			}
			defer closeFn()

			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			n, err := history.Import(cmd.Context(), r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d results\n", n)
			return nil
		},
	}
}

// openHistory opens the configured history database directly, skipping the
// rest of the application graph
func openHistory() (repository.HistoryRepository, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.HistoryDBPath == "" {
		return nil, nil, fmt.Errorf("history is disabled (set HISTORY_DB_PATH)")
	}
	history, err := repository.OpenSQLiteHistory(cfg.HistoryDBPath)
	if err != nil {
		return nil, nil, err
	}
	return history, func() { _ = history.Close() }, nil
}
