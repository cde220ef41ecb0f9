// Package cli implements the zpt command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benjaminschreck/go-zpt/pkg/zpt"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=v1.2.3".
var Version = "dev"

type globalOptions struct {
	configPath   string
	logLevel     string
	strict       bool
	annotate     bool
	documentType string
	options      []string
}

// Execute runs the zpt command with args.
func Execute(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.Execute()
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	cmd := &cobra.Command{
		Use:           "zpt",
		Short:         "Render Zope Page Templates (TAL, METAL and TALES)",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	fs := cmd.PersistentFlags()
	fs.StringVarP(&g.configPath, "config", "c", "", "config yaml path")
	fs.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error, off (overrides config)")
	fs.BoolVar(&g.strict, "strict", false, "fail on paths that cannot be resolved")
	fs.BoolVar(&g.annotate, "source-annotation", false, "add comments naming where each part of the output came from")
	fs.StringVar(&g.documentType, "type", "", "document type: html or xml (default: from the file name)")
	fs.StringArrayVar(&g.options, "opt", nil, "keyword option exposed as options/<key>, as key=value (repeatable)")

	cmd.AddCommand(
		newRenderCmd(g),
		newBulkCmd(g),
		newServeCmd(g),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig layers defaults, the config file, the environment and the
// command line flags, in that order.
func (g *globalOptions) loadConfig(cmd *cobra.Command) (*zpt.Config, error) {
	config := zpt.DefaultConfig()
	if path := strings.TrimSpace(g.configPath); path != "" {
		loaded, err := zpt.LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		config = loaded
	}
	config.ApplyEnvironment()

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		config.LogLevel = g.logLevel
	}
	if flags.Changed("strict") {
		config.StrictMode = g.strict
	}
	if flags.Changed("source-annotation") {
		config.SourceAnnotation = g.annotate
	}
	if flags.Changed("type") {
		config.DocumentType = g.documentType
	}
	for _, opt := range g.options {
		key, value, err := zpt.ParseKeywordOption(opt)
		if err != nil {
			return nil, err
		}
		config.KeywordOptions[key] = value
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// newEngine creates an engine logging to the command's stderr.
func (g *globalOptions) newEngine(cmd *cobra.Command) (*zpt.Engine, *zpt.Config, error) {
	config, err := g.loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	level, _ := zpt.ParseLogLevel(config.LogLevel)
	logger := zpt.NewLogger(cmd.ErrOrStderr(), level)
	engine := zpt.NewWithOptions(zpt.WithConfig(config), zpt.WithLogger(logger))
	return engine, config, nil
}

func loadModel(path string, logger *slog.Logger) (map[string]any, error) {
	if strings.TrimSpace(path) == "" {
		return map[string]any{}, nil
	}
	model, err := zpt.LoadModelFile(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded model", "path", path, "keys", len(model))
	return model, nil
}
