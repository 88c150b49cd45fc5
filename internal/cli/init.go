package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"repomesh/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default repomesh.yaml",
	Long: `Write repomesh.yaml with the default settings into the workspace
directory. Edit repos, roots or auto_discovery before the first scan.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing repomesh.yaml")
}

func runInit(cmd *cobra.Command, args []string) error {
	path, err := writeDefaultConfig(rootDir, initForce)
	if err != nil {
		return err
	}
	fmt.Printf("Config written to %s\n", path)
	return nil
}

// writeDefaultConfig saves the default configuration as dir/repomesh.yaml.
func writeDefaultConfig(dir string, force bool) (string, error) {
	path := filepath.Join(dir, "repomesh.yaml")
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	return path, nil
}
