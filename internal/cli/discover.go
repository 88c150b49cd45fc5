package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"repomesh/internal/adapter/store"
	"repomesh/internal/domain"
	"repomesh/internal/usecase"
)

var discoverJSON bool

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Show the repositories a scan would cover",
	Long: `Run repository discovery without scanning. With auto-discovery enabled
the scored project candidates are listed as well.`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

var changesJSON bool

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Compare repository heads with the last scan",
	Args:  cobra.NoArgs,
	RunE:  runChanges,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(changesCmd)
	discoverCmd.Flags().BoolVar(&discoverJSON, "json", false, "output as JSON")
	changesCmd.Flags().BoolVar(&changesJSON, "json", false, "output as JSON")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	snap := usecase.NewScanUseCase(cfg, nil, nil).Snapshot()

	if discoverJSON {
		type discovered struct {
			domain.Repository
			Source string `json:"source"`
		}
		repos := make([]discovered, 0, len(snap.Order))
		for _, id := range snap.Order {
			repos = append(repos, discovered{Repository: snap.Repos[id], Source: targetSource(snap.Targets[id])})
		}
		return printJSON(map[string]any{
			"repos":    repos,
			"projects": snap.Projects,
			"warnings": snap.Warnings,
		})
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSOURCE\tBRANCH\tHEAD\tPATH")
	for _, id := range snap.Order {
		r := snap.Repos[id]
		head := r.HeadCommit
		if len(head) > 12 {
			head = head[:12]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, targetSource(snap.Targets[id]), r.Branch, head, r.Path)
	}
	tw.Flush()

	if len(snap.Projects) > 0 {
		fmt.Printf("\nProject candidates:\n")
		for _, p := range snap.Projects {
			note := ""
			if !p.IsGitRepo {
				note = " (not a git repository)"
			}
			fmt.Printf("  %5.1f  %s %v%s\n", p.Confidence, p.Path, p.Types, note)
		}
	}

	for _, w := range snap.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}
	return nil
}

// targetSource describes how discovery found a repository.
func targetSource(t domain.RepoTarget) string {
	switch {
	case t.Explicit:
		return "config"
	case t.Confidence > 0:
		return fmt.Sprintf("auto (%.0f)", t.Confidence)
	default:
		return "root"
	}
}

func runChanges(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	res, warnings := usecase.NewScanUseCase(cfg, store.NewJSONIndexStore(cfg.IndexPath), nil).Changes()

	if changesJSON {
		return printJSON(res)
	}

	if !res.HasChanges {
		fmt.Println("No changes since the last scan.")
	}
	for _, d := range res.ChangeDetails {
		fmt.Printf("  %-9s %s %s\n", d.ChangeType, d.RepoID, commitRange(d.OldCommit, d.NewCommit))
	}
	for _, w := range warnings {
		fmt.Printf("Warning: %s\n", w)
	}
	return nil
}

func commitRange(oldCommit, newCommit string) string {
	short := func(s string) string {
		if len(s) > 7 {
			return s[:7]
		}
		if s == "" {
			return "-"
		}
		return s
	}
	return short(oldCommit) + ".." + short(newCommit)
}
