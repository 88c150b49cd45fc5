package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"repomesh/internal/adapter/watch"
	"repomesh/internal/usecase"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rescan whenever a repository's head commit moves",
	Long: `Watch runs an incremental scan, then watches each repository's git
directory and rescans whenever a head commit moves (commit, checkout, pull).
Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "quiet period before a change is reported")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	env, err := openScanEnv(cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scanUC := usecase.NewScanUseCase(cfg, env.index, env.cache)
	opts := usecase.ScanOptions{Incremental: true, Enhance: cfg.Enhance.Enabled}

	res, err := scanUC.Scan(ctx, opts)
	if err != nil {
		return fmt.Errorf("initial scan failed: %w", err)
	}
	printWatchSummary(res)

	snap := scanUC.Snapshot()
	targets := make([]watch.Target, 0, len(snap.Order))
	for _, id := range snap.Order {
		targets = append(targets, watch.Target{RepoID: id, Path: snap.Repos[id].Path})
	}

	w, err := watch.NewWatcher(targets, watchDebounce)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Stop()

	fmt.Printf("Watching %d repositories. Press Ctrl-C to stop.\n", w.Watching())

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nStopped.")
			return nil
		case ids, ok := <-w.Changes:
			if !ok {
				return nil
			}
			slog.Info("watch.changed", "repos", ids)
			res, err := scanUC.Scan(ctx, opts)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
				continue
			}
			printWatchSummary(res)
		}
	}
}

func printWatchSummary(res *usecase.ScanResult) {
	s := res.Summary
	fmt.Printf("[%s] scanned %d/%d repositories, %d endpoints, %d usages, %d edges (%s)\n",
		time.Now().Format("15:04:05"),
		s.ReposScanned, s.ReposDiscovered,
		s.EndpointsFound, s.UsagesFound, len(res.Index.Edges),
		formatDuration(time.Duration(s.DurationMs)*time.Millisecond),
	)
	for _, w := range s.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}
