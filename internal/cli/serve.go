package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/benjaminschreck/go-zpt/internal/server"
)

type serveOptions struct {
	listen        string
	modelPath     string
	watch         bool
	renderTimeout time.Duration
}

func newServeCmd(g *globalOptions) *cobra.Command {
	opts := serveOptions{listen: ":8080"}
	cmd := &cobra.Command{
		Use:   "serve TEMPLATE_DIR",
		Short: "Serve rendered templates from a directory over HTTP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, g, opts, args[0])
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&opts.listen, "listen", "l", ":8080", "http listen address")
	fs.StringVarP(&opts.modelPath, "model", "m", "", "base model file (YAML or JSON)")
	fs.BoolVar(&opts.watch, "watch", false, "reload templates when they change (overrides config)")
	fs.DurationVar(&opts.renderTimeout, "render-timeout", 30*time.Second, "limit for a single render, 0 for none")
	return cmd
}

func runServe(cmd *cobra.Command, g *globalOptions, opts serveOptions, dir string) error {
	engine, config, err := g.newEngine(cmd)
	if err != nil {
		return err
	}
	model, err := loadModel(opts.modelPath, engine.Logger())
	if err != nil {
		return err
	}

	serverOpts := server.Options{TemplateDir: dir, Model: model, RenderTimeout: opts.renderTimeout}
	if err := serverOpts.Validate(); err != nil {
		return err
	}

	watch := config.Watch
	if cmd.Flags().Changed("watch") {
		watch = opts.watch
	}
	if watch {
		w, err := engine.Watch(dir, 0)
		if err != nil {
			return err
		}
		defer w.Close()
	}

	if config.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return server.New(engine, serverOpts).Run(ctx, opts.listen)
}
