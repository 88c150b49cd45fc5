package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"repomesh/config"
	"repomesh/internal/adapter/store"
	"repomesh/internal/domain"
)

var (
	queryRepo string
	queryJSON bool
)

var endpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "List endpoints from the last scan",
	Long: `List the HTTP endpoints recorded by the last scan.

Examples:
  repomesh endpoints
  repomesh endpoints --repo orders --json`,
	Args: cobra.NoArgs,
	RunE: runEndpoints,
}

var usagesCmd = &cobra.Command{
	Use:   "usages",
	Short: "List outbound HTTP usages from the last scan",
	Args:  cobra.NoArgs,
	RunE:  runUsages,
}

var edgesCmd = &cobra.Command{
	Use:   "edges",
	Short: "List cross-repository edges from the last scan",
	Args:  cobra.NoArgs,
	RunE:  runEdges,
}

func init() {
	for _, c := range []*cobra.Command{endpointsCmd, usagesCmd, edgesCmd} {
		rootCmd.AddCommand(c)
		c.Flags().StringVar(&queryRepo, "repo", "", "only show records of this repository id")
		c.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	}
}

// loadIndex reads the persisted index, failing when no scan has run yet.
func loadIndex(cfg *config.Config) (*domain.Index, error) {
	ix, err := store.NewJSONIndexStore(cfg.IndexPath).Load()
	if err != nil {
		return nil, err
	}
	if ix == nil {
		return nil, fmt.Errorf("no index found at %s. Run 'repomesh scan' first", cfg.IndexPath)
	}
	return ix, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func runEndpoints(cmd *cobra.Command, args []string) error {
	ix, err := loadIndex(GetConfig())
	if err != nil {
		return err
	}

	var eps []domain.Endpoint
	for _, ep := range ix.Endpoints {
		if queryRepo == "" || ep.RepoID == queryRepo {
			eps = append(eps, ep)
		}
	}
	sort.Slice(eps, func(i, j int) bool {
		a, b := eps[i], eps[j]
		if a.RepoID != b.RepoID {
			return a.RepoID < b.RepoID
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Method < b.Method
	})

	if queryJSON {
		if eps == nil {
			eps = []domain.Endpoint{}
		}
		return printJSON(eps)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REPO\tMETHOD\tPATH\tFRAMEWORK\tLOCATION")
	for _, ep := range eps {
		path := ep.Path
		if ep.Feature != "" {
			path += " [" + ep.Feature + "]"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s:%d\n", ep.RepoID, ep.Method, path, ep.Framework, ep.RelFile, ep.Line)
	}
	tw.Flush()
	fmt.Printf("\n%d endpoints\n", len(eps))
	return nil
}

func runUsages(cmd *cobra.Command, args []string) error {
	ix, err := loadIndex(GetConfig())
	if err != nil {
		return err
	}

	var us []domain.Usage
	for _, u := range ix.Usages {
		if queryRepo == "" || u.RepoID == queryRepo {
			us = append(us, u)
		}
	}
	sort.Slice(us, func(i, j int) bool {
		a, b := us[i], us[j]
		if a.RepoID != b.RepoID {
			return a.RepoID < b.RepoID
		}
		if a.RelFile != b.RelFile {
			return a.RelFile < b.RelFile
		}
		return a.Line < b.Line
	})

	if queryJSON {
		if us == nil {
			us = []domain.Usage{}
		}
		return printJSON(us)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REPO\tMETHOD\tTARGET\tTOOL\tLOCATION")
	for _, u := range us {
		method := u.Method
		if method == "" {
			method = "?"
		}
		target := u.URL
		if target == "" {
			target = u.EndpointPath
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s:%d\n", u.RepoID, method, target, u.Tool, u.RelFile, u.Line)
	}
	tw.Flush()
	fmt.Printf("\n%d usages\n", len(us))
	return nil
}

func runEdges(cmd *cobra.Command, args []string) error {
	ix, err := loadIndex(GetConfig())
	if err != nil {
		return err
	}

	edges := []domain.CrossRepoEdge{}
	for _, e := range ix.Edges {
		if queryRepo == "" || e.FromRepoID == queryRepo || e.ToRepoID == queryRepo {
			edges = append(edges, e)
		}
	}

	if queryJSON {
		return printJSON(edges)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tTO\tLABEL\tCOUNT")
	for _, e := range edges {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", e.FromRepoID, e.ToRepoID, e.Label, e.Count)
	}
	tw.Flush()
	fmt.Printf("\n%d edges\n", len(edges))
	return nil
}
