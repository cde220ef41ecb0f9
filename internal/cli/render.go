package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
)

type renderOptions struct {
	modelPath  string
	outputPath string
}

func newRenderCmd(g *globalOptions) *cobra.Command {
	opts := renderOptions{}
	cmd := &cobra.Command{
		Use:   "render TEMPLATE",
		Short: "Render one template to stdout or a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, g, opts, args[0])
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&opts.modelPath, "model", "m", "", "model file (YAML or JSON)")
	fs.StringVarP(&opts.outputPath, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func runRender(cmd *cobra.Command, g *globalOptions, opts renderOptions, template string) error {
	engine, _, err := g.newEngine(cmd)
	if err != nil {
		return err
	}
	model, err := loadModel(opts.modelPath, engine.Logger())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if path := strings.TrimSpace(opts.outputPath); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return engine.RenderFile(cmd.Context(), out, template, model)
}
