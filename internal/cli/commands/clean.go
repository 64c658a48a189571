package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/schemalens/schemalens/internal/cli/config"
	"github.com/schemalens/schemalens/internal/diag"
	"github.com/schemalens/schemalens/internal/staging"
)

var cleanAll bool

// NewCleanCommand creates the clean command
func NewCleanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean [staging-directory]",
		Short: "Remove staged entity copies",
		Long: `Remove staging directories created by analyze --stage.

With a path, removes that one staging directory. With --all, removes
every staging directory under the configured staging base. Only
directories with the staging name prefix are touched.`,
		Example: `  # Remove one staging directory
  schemalens clean staging/processed_entities_3f2a91cb

  # Remove every staging directory under the staging base
  schemalens clean --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: runClean,
	}

	cmd.Flags().BoolVar(&cleanAll, "all", false, "Remove every staging directory under the staging base")

	return cmd
}

func runClean(cmd *cobra.Command, args []string) error {
	if cleanAll && len(args) > 0 {
		return fmt.Errorf("--all does not take a path")
	}
	if !cleanAll && len(args) == 0 {
		return fmt.Errorf("specify a staging directory or --all")
	}

	infoColor := color.New(color.FgCyan)
	warningColor := color.New(color.FgYellow)

	diags := diag.NewCollector()
	var removed []string

	if cleanAll {
		base := "staging"
		if cfg, err := config.Load(); err == nil && cfg.Staging.Dir != "" {
			base = cfg.Staging.Dir
		}

		entries, err := os.ReadDir(base)
		if os.IsNotExist(err) {
			infoColor.Println("Nothing to clean.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read staging base %s: %w", base, err)
		}

		for _, entry := range entries {
			if !entry.IsDir() || !strings.HasPrefix(entry.Name(), staging.Prefix) {
				continue
			}
			path := filepath.Join(base, entry.Name())
			staging.Cleanup(path, diags)
			removed = append(removed, path)
		}
	} else {
		path := args[0]
		if !strings.HasPrefix(filepath.Base(path), staging.Prefix) {
			return fmt.Errorf("%s does not look like a staging directory (expected a %s* name)", path, staging.Prefix)
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("%s does not exist", path)
		}
		staging.Cleanup(path, diags)
		removed = append(removed, path)
	}

	for _, d := range diags.All() {
		warningColor.Printf("  %s\n", d.String())
	}

	if len(removed) == 0 {
		infoColor.Println("Nothing to clean.")
		return nil
	}

	if diags.Count() > 0 {
		return fmt.Errorf("cleanup left %d path(s) behind", diags.Count())
	}

	successColor := color.New(color.FgGreen, color.Bold)
	if len(removed) == 1 {
		successColor.Printf("✓ Removed %s\n", removed[0])
	} else {
		successColor.Printf("✓ Removed %d staging directories\n", len(removed))
	}
	return nil
}
