package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"repomesh/internal/adapter/graph"
)

var (
	graphFormat string
	graphOutput string
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the dependency graph",
	Long: `Export the cross-repository dependency graph of the last scan as
Mermaid or Graphviz DOT.

Examples:
  repomesh graph                      # Mermaid to stdout
  repomesh graph --format dot -o deps.dot`,
	Args: cobra.NoArgs,
	RunE: runGraph,
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringVar(&graphFormat, "format", "", "output format: mermaid or dot (default from config)")
	graphCmd.Flags().StringVarP(&graphOutput, "output", "o", "", "output file (default: stdout)")
}

func runGraph(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	ix, err := loadIndex(cfg)
	if err != nil {
		return err
	}

	format := cfg.Graph.Format
	if graphFormat != "" {
		format = graphFormat
	}
	out, err := graph.Render(ix, format)
	if err != nil {
		return err
	}

	if graphOutput != "" {
		if err := os.WriteFile(graphOutput, []byte(out), 0644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		fmt.Printf("Graph written to %s (%d repositories, %d edges)\n", graphOutput, len(ix.Repos), len(ix.Edges))
		return nil
	}

	fmt.Print(out)
	return nil
}
