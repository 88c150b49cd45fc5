package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"repomesh/config"
	"repomesh/internal/adapter/cache"
	"repomesh/internal/adapter/store"
	"repomesh/internal/port"
	"repomesh/internal/usecase"
)

var (
	scanFull bool
	scanJSON bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan repositories and rebuild the dependency graph",
	Long: `Scan discovers the configured repositories, extracts endpoints and
outbound HTTP usages, resolves cross-repository edges and saves the index.

By default only repositories whose head commit moved since the last scan
are re-walked. The index is stored at index_path (.repomesh/index.json).

Examples:
  repomesh scan             # Incremental scan
  repomesh scan --full      # Rescan every repository
  repomesh scan --json      # Print the summary as JSON`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().BoolVar(&scanFull, "full", false, "rescan every repository")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "output summary as JSON")
}

// scanEnv is the set of stores one command works against.
type scanEnv struct {
	index *store.JSONIndexStore
	cache port.ExtractionCache
}

func (e *scanEnv) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// openScanEnv validates cfg and opens the index and extraction cache. A cache
// that cannot be opened is reported and scanning continues without it.
func openScanEnv(cfg *config.Config) (*scanEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureStateDir(); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	env := &scanEnv{index: store.NewJSONIndexStore(cfg.IndexPath)}
	if !cfg.Cache.Enabled {
		return env, nil
	}

	bolt, err := store.NewBoltStore(cfg.Cache.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: extraction cache disabled: %v\n", err)
		return env, nil
	}
	reason, err := bolt.Prepare(cfg.Hash())
	if err != nil {
		bolt.Close()
		fmt.Fprintf(os.Stderr, "Warning: extraction cache disabled: %v\n", err)
		return env, nil
	}
	if reason != "" && !scanJSON {
		fmt.Printf("Extraction cache cleared: %s\n", reason)
	}

	ec, err := cache.NewExtractionCache(cfg.Cache.MemoryEntries, bolt)
	if err != nil {
		bolt.Close()
		return nil, fmt.Errorf("failed to create extraction cache: %w", err)
	}
	env.cache = ec
	return env, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	env, err := openScanEnv(cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scanUC := usecase.NewScanUseCase(cfg, env.index, env.cache)

	opts := usecase.ScanOptions{
		Incremental: !scanFull,
		Enhance:     cfg.Enhance.Enabled,
	}
	if !scanJSON {
		fmt.Printf("Scanning workspace %s...\n", cfg.BaseDir())
		opts.Progress = newProgress("Scanning")
	}

	result, err := scanUC.Scan(ctx, opts)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return fmt.Errorf("scan cancelled; previous index left unchanged")
		}
		return fmt.Errorf("scan failed: %w", err)
	}

	if scanJSON {
		out, err := json.MarshalIndent(result.Summary, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal summary: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	s := result.Summary
	fmt.Printf("\nScan complete:\n")
	fmt.Printf("  Repositories:   %d discovered, %d scanned\n", s.ReposDiscovered, s.ReposScanned)
	fmt.Printf("  Files scanned:  %d\n", s.FilesScanned)
	fmt.Printf("  Endpoints:      %d\n", s.EndpointsFound)
	fmt.Printf("  Usages:         %d\n", s.UsagesFound)
	fmt.Printf("  Edges:          %d\n", len(result.Index.Edges))
	fmt.Printf("  Duration:       %s\n", formatDuration(time.Duration(s.DurationMs)*time.Millisecond))
	if len(s.ChangedRepos) > 0 {
		fmt.Printf("  Changed:        %v\n", s.ChangedRepos)
	}

	if len(s.Warnings) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, w := range s.Warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nIndex stored at: %s\n", env.index.Path())
	return nil
}

// newProgress returns a scan progress callback drawing a bar over
// repositories. The bar is created on the first call, once the total is known.
func newProgress(label string) func(done, total int, repoID string) {
	var (
		bar       *progressbar.ProgressBar
		mu        sync.Mutex
		startTime time.Time
	)

	return func(done, total int, repoID string) {
		mu.Lock()
		defer mu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]"+label+"[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		bar.Set(done)

		if done > 0 && done < total {
			elapsed := time.Since(startTime)
			rate := float64(done) / elapsed.Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]%s[reset] %s ETA: %s", label, repoID, formatDuration(eta)))
			}
		}
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
