package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dupelens/internal/scanlog"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past scan runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			history, err := scanlog.Open(cfg.Paths.HistoryFile)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer history.Close()

			runs, err := history.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recorded runs.")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortID(run.ID),
					run.StartedAt.Local().Format("2006-01-02 15:04"),
					run.Quality,
					strconv.Itoa(run.FilesScanned),
					strconv.Itoa(run.GroupsFound),
					humanize.IBytes(uint64(run.BytesReclaimable)),
					run.Status,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"RUN", "STARTED", "QUALITY", "FILES", "GROUPS", "RECLAIM", "STATUS"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newReportCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "report [run-id]",
		Short: "Show the duplicate groups from a recorded run (latest by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			history, err := scanlog.Open(cfg.Paths.HistoryFile)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer history.Close()

			var run scanlog.Run
			if len(args) == 1 {
				run, err = findRun(cmd, history, args[0])
				if err != nil {
					return err
				}
			} else {
				latest, ok, err := history.LatestRun(cmd.Context())
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "No recorded runs.")
					return nil
				}
				run = latest
			}

			groups, err := history.GroupsForRun(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, struct {
					Run    scanlog.Run           `json:"run"`
					Groups []scanlog.GroupRecord `json:"groups"`
				}{Run: run, Groups: groups})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s (%s, %s): %d files, %d groups, %s reclaimable\n",
				shortID(run.ID), run.StartedAt.Local().Format("2006-01-02 15:04"), run.Quality,
				run.FilesScanned, run.GroupsFound, humanize.IBytes(uint64(run.BytesReclaimable)))
			if len(groups) == 0 {
				fmt.Fprintln(out, "No duplicate groups recorded.")
				return nil
			}

			rows := make([][]string, 0, len(groups))
			for _, group := range groups {
				score := "-"
				if group.Method == "hash" {
					score = "exact"
				} else if group.Score > 0 {
					score = fmt.Sprintf("%.2f", group.Score)
				}
				rows = append(rows, []string{
					group.Method,
					score,
					group.KeepPath,
					strings.Join(group.LoserPaths, "\n"),
					humanize.IBytes(uint64(group.LoserBytes)),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"METHOD", "SCORE", "KEEP", "DUPLICATES", "RECLAIM"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

// findRun resolves a full or shortened run id.
func findRun(cmd *cobra.Command, history *scanlog.Store, arg string) (scanlog.Run, error) {
	arg = strings.TrimSpace(arg)
	runs, err := history.ListRuns(cmd.Context(), 0)
	if err != nil {
		return scanlog.Run{}, err
	}
	var matches []scanlog.Run
	for _, run := range runs {
		if run.ID == arg || strings.HasPrefix(run.ID, arg) {
			matches = append(matches, run)
		}
	}
	switch len(matches) {
	case 0:
		return scanlog.Run{}, fmt.Errorf("no run matches %q", arg)
	case 1:
		return matches[0], nil
	default:
		return scanlog.Run{}, fmt.Errorf("run id %q is ambiguous (%d matches)", arg, len(matches))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
