package tal

import (
	"context"
	"log/slog"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/dom"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/render"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/tales"
)

// Pipeline runs the TAL directives of each element in their fixed order.
// It is the processor of the TAL pass and implements render.ErrorHandler
// so that tal:on-error also covers an element's descendants.
type Pipeline struct {
	recorder *macroNameRecorder
	onError  *onErrorHandler
	steps    []Handler
	logger   *slog.Logger
}

type pipelineConfig struct {
	specs     Specs
	macroName dom.AttributeSpec
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*pipelineConfig)

// WithSpecs sets the directive attributes the pipeline recognises.
func WithSpecs(s Specs) Option {
	return func(c *pipelineConfig) { c.specs = s }
}

// WithMacroNameSpec sets the attribute whose value is recorded as the
// "macroname" variable.
func WithMacroNameSpec(s dom.AttributeSpec) Option {
	return func(c *pipelineConfig) { c.macroName = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *pipelineConfig) { c.logger = l }
}

// NewPipeline creates the directive pipeline. This is the only place the
// processing order is defined.
func NewPipeline(evaluator tales.Evaluator, opts ...Option) *Pipeline {
	cfg := pipelineConfig{
		specs:     DefaultSpecs(),
		macroName: dom.AttributeSpec{Name: "define-macro", Namespace: dom.METALNamespace},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	d := &directive{specs: cfg.specs, evaluator: evaluator, logger: cfg.logger}
	return &Pipeline{
		recorder: &macroNameRecorder{spec: cfg.macroName},
		onError:  &onErrorHandler{d},
		steps: []Handler{
			&defineHandler{d},
			&conditionHandler{d},
			&repeatHandler{d},
			&contentHandler{d},
			&attributesHandler{d},
			&omitTagHandler{d},
		},
		logger: cfg.logger,
	}
}

// Handlers returns every handler in processing order. The on-error handler
// wraps the handlers that follow it.
func (p *Pipeline) Handlers() []Handler {
	return append([]Handler{p.recorder, p.onError}, p.steps...)
}

// Process applies the directives on ec.CurrentNode.
func (p *Pipeline) Process(ctx context.Context, ec *tales.ExpressionContext) (render.Result, error) {
	if ec.CurrentNode == nil || !ec.CurrentNode.IsElement() {
		return render.Result{}, nil
	}
	if _, err := p.recorder.Handle(ctx, ec); err != nil {
		return render.Result{}, err
	}

	result, err := p.run(ctx, ec)
	if err == nil {
		return result, nil
	}

	handled, handlerErr := p.onError.handle(ctx, err, ec)
	switch {
	case handlerErr != nil:
		return render.Result{}, handlerErr
	case !handled:
		return render.Result{}, err
	default:
		return render.Result{SkipChildren: true}, nil
	}
}

// HandleError lets tal:on-error on ec.CurrentNode handle an error raised
// by one of its descendants.
func (p *Pipeline) HandleError(ctx context.Context, err error, ec *tales.ExpressionContext) (bool, error) {
	return p.onError.handle(ctx, err, ec)
}

func (p *Pipeline) run(ctx context.Context, ec *tales.ExpressionContext) (render.Result, error) {
	for _, h := range p.steps {
		if err := ctx.Err(); err != nil {
			return render.Result{}, err
		}
		out, err := h.Handle(ctx, ec)
		if err != nil {
			return render.Result{}, err
		}
		if out.Stop {
			return out.Result, nil
		}
	}
	return render.Result{}, nil
}
