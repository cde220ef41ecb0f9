package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benjaminschreck/go-zpt/pkg/zpt"
)

type bulkOptions struct {
	modelPath string
	include   []string
	exclude   []string
	extension string
	workers   int
}

func newBulkCmd(g *globalOptions) *cobra.Command {
	opts := bulkOptions{}
	cmd := &cobra.Command{
		Use:   "bulk INPUT_DIR OUTPUT_DIR",
		Short: "Render every template in a directory tree",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulk(cmd, g, opts, args[0], args[1])
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&opts.modelPath, "model", "m", "", "model file (YAML or JSON)")
	fs.StringSliceVar(&opts.include, "include", nil, "glob of files to render, relative to INPUT_DIR (repeatable)")
	fs.StringSliceVar(&opts.exclude, "exclude", nil, "glob of files to skip (repeatable)")
	fs.StringVar(&opts.extension, "ext", "", "extension for output files (default: keep)")
	fs.IntVarP(&opts.workers, "workers", "w", 0, "concurrent renders (default: bulk_workers from config)")
	return cmd
}

func runBulk(cmd *cobra.Command, g *globalOptions, opts bulkOptions, input, output string) error {
	engine, _, err := g.newEngine(cmd)
	if err != nil {
		return err
	}
	model, err := loadModel(opts.modelPath, engine.Logger())
	if err != nil {
		return err
	}

	results, err := engine.RenderDirectory(cmd.Context(), zpt.BulkOptions{
		InputDir:  input,
		OutputDir: output,
		Include:   opts.include,
		Exclude:   opts.exclude,
		Extension: opts.extension,
		Workers:   opts.workers,
	}, model)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", r.Input, r.Output)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rendered %d of %d templates\n", len(results)-failed, len(results))
	return err
}
