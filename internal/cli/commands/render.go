package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/schemalens/schemalens/internal/render"
	"github.com/schemalens/schemalens/internal/schema"
)

var renderOutput string

// NewRenderCommand creates the render command
func NewRenderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <document.json>",
		Short: "Render a schema document as Markdown",
		Long: `Read a schema document produced by analyze and write a Markdown
summary of its entities, columns, and relationships.

Gzip-compressed documents (.json.gz) are handled transparently.`,
		Example: `  # Render to stdout
  schemalens render schemas/schema-shop-3f2a91cb.json

  # Render to a file
  schemalens render schemas/schema-shop-3f2a91cb.json -o SCHEMA.md`,
		Args: cobra.ExactArgs(1),
		RunE: runRender,
	}

	cmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Write Markdown to this file instead of stdout")

	return cmd
}

func runRender(cmd *cobra.Command, args []string) error {
	doc, err := schema.ReadFromFile(args[0])
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	var f *os.File
	if renderOutput != "" {
		f, err = os.Create(renderOutput)
		if err != nil {
			return fmt.Errorf("create %s: %w", renderOutput, err)
		}
		w = f
	}

	if err := render.NewMarkdownRenderer(w).Render(doc); err != nil {
		if f != nil {
			f.Close()
		}
		return fmt.Errorf("render document: %w", err)
	}

	if f != nil {
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", renderOutput, err)
		}
		successColor := color.New(color.FgGreen, color.Bold)
		successColor.Printf("✓ Rendered %s\n", renderOutput)
	}

	return nil
}
