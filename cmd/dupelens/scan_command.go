package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"dupelens/internal/dupegroup"
	"dupelens/internal/fileutil"
	"dupelens/internal/fpcache"
	"dupelens/internal/phash"
	"dupelens/internal/pipeline"
	"dupelens/internal/probe"
	"dupelens/internal/scanlog"
)

type scanGroupView struct {
	Method string   `json:"method"`
	Score  *float64 `json:"score,omitempty"`
	Keep   string   `json:"keep"`
	Losers []string `json:"losers"`
	Bytes  int64    `json:"reclaimable_bytes"`
}

type scanReportView struct {
	RunID            string          `json:"run_id"`
	FilesScanned     int             `json:"files_scanned"`
	Groups           []scanGroupView `json:"groups"`
	BytesReclaimable int64           `json:"bytes_reclaimable"`
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var quality string
	var workers int
	var jsonOutput bool
	var noPerceptual bool

	cmd := &cobra.Command{
		Use:   "scan <root>...",
		Short: "Scan one or more library roots for duplicate videos",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(quality) != "" {
				cfg.Scan.Quality = strings.ToLower(strings.TrimSpace(quality))
			}
			if workers > 0 {
				cfg.Scan.Workers = workers
			}

			logger, err := ctx.newLogger(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cache, err := fpcache.Open(cfg.Paths.CacheFile, logger)
			if err != nil {
				return fmt.Errorf("open fingerprint cache: %w", err)
			}
			defer cache.Close()
			cache.Load()

			history, err := scanlog.Open(cfg.Paths.HistoryFile)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "history unavailable: %v\n", err)
				history = nil
			} else {
				defer history.Close()
			}

			files, err := fileutil.CollectFiles(args, cfg.IsVideoPath, logger)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No video files found.")
				return nil
			}

			prober := probe.NewFFprobe(cfg.Tools.FFprobe, pipeline.ProbeTimeout(cfg), logger)
			var extractor phash.FrameExtractor
			if !noPerceptual {
				extractor = phash.NewFFmpegExtractor(cfg.Tools.FFmpeg, pipeline.ExtractTimeout(cfg),
					cfg.Tools.ThumbnailSize, cfg.Tools.HardwareDecode, logger)
			}

			pipe := pipeline.New(cfg, cache, prober, extractor, logger)
			if !jsonOutput && stdoutIsTerminal() {
				pipe.SetProgress(newProgressRenderer(cmd.ErrOrStderr()))
			}

			var runID string
			if history != nil {
				if runID, err = history.BeginRun(runCtx, args, cfg.Scan.Quality); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "history not recording: %v\n", err)
					history = nil
				}
			}

			result, err := pipe.Run(runCtx, files)
			if err != nil {
				if history != nil {
					_ = history.FinishRun(context.Background(), runID, len(files), 0, 0, scanlog.StatusCancelled)
				}
				return err
			}

			if history != nil {
				for _, group := range result.Groups {
					rec := scanlog.GroupRecord{
						RunID:    runID,
						Method:   string(group.Method),
						KeepPath: group.Keep.Path,
					}
					if group.Score != nil {
						rec.Score = group.Score.Score
					}
					for _, loser := range group.Losers {
						rec.LoserPaths = append(rec.LoserPaths, loser.Path)
						rec.LoserBytes += loser.Size
					}
					if err := history.RecordGroup(runCtx, rec); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "history not recording: %v\n", err)
						break
					}
				}
				_ = history.FinishRun(runCtx, runID, result.FilesScanned, len(result.Groups),
					result.BytesReclaimable, scanlog.StatusCompleted)
			}

			if jsonOutput {
				return writeJSON(cmd, scanView(result))
			}
			renderScanResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&quality, "quality", "q", "", "Sampling quality: fast, balanced, or thorough")
	cmd.Flags().IntVar(&workers, "workers", 0, "Per-stage worker count (0 = one per CPU)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	cmd.Flags().BoolVar(&noPerceptual, "no-perceptual", false, "Skip frame extraction and perceptual matching")
	return cmd
}

func scanView(result *pipeline.Result) scanReportView {
	view := scanReportView{
		RunID:            result.RunID,
		FilesScanned:     result.FilesScanned,
		BytesReclaimable: result.BytesReclaimable,
		Groups:           make([]scanGroupView, 0, len(result.Groups)),
	}
	for _, group := range result.Groups {
		gv := scanGroupView{
			Method: string(group.Method),
			Keep:   group.Keep.Path,
			Losers: make([]string, 0, len(group.Losers)),
		}
		if group.Score != nil {
			score := group.Score.Score
			gv.Score = &score
		}
		for _, loser := range group.Losers {
			gv.Losers = append(gv.Losers, loser.Path)
			gv.Bytes += loser.Size
		}
		view.Groups = append(view.Groups, gv)
	}
	return view
}

func renderScanResult(cmd *cobra.Command, result *pipeline.Result) {
	out := cmd.OutOrStdout()
	if len(result.Groups) == 0 {
		fmt.Fprintf(out, "Scanned %d files; no duplicates found.\n", result.FilesScanned)
		return
	}

	rows := make([][]string, 0, len(result.Groups))
	for _, group := range result.Groups {
		var bytes int64
		losers := make([]string, 0, len(group.Losers))
		for _, loser := range group.Losers {
			losers = append(losers, loser.Path)
			bytes += loser.Size
		}
		rows = append(rows, []string{
			string(group.Method),
			formatScore(group),
			group.Keep.Path,
			strings.Join(losers, "\n"),
			humanize.IBytes(uint64(bytes)),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"METHOD", "SCORE", "KEEP", "DUPLICATES", "RECLAIM"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight},
	))
	fmt.Fprintf(out, "Scanned %d files: %d duplicate groups, %s reclaimable.\n",
		result.FilesScanned, len(result.Groups), humanize.IBytes(uint64(result.BytesReclaimable)))
}

func formatScore(group dupegroup.DuplicateGroup) string {
	if group.Method == dupegroup.MethodHash {
		return "exact"
	}
	if group.Score == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", group.Score.Score)
}

// newProgressRenderer keeps one bar per stage, replacing it when the
// pipeline moves on. Callbacks arrive from worker goroutines.
func newProgressRenderer(out interface{ Write([]byte) (int, error) }) pipeline.ProgressFunc {
	var mu sync.Mutex
	var stage string
	var bar *progressbar.ProgressBar

	return func(name string, done, total int) {
		mu.Lock()
		defer mu.Unlock()
		if name != stage {
			if bar != nil {
				_ = bar.Finish()
			}
			stage = name
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(out),
				progressbar.OptionSetDescription(name),
				progressbar.OptionClearOnFinish(),
				progressbar.OptionShowCount(),
			)
		}
		if bar != nil {
			_ = bar.Set(done)
		}
	}
}
