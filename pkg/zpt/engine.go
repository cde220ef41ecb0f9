package zpt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/dom"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/metal"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/render"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/tales"
)

// PreparedDocument is a parsed template ready to be rendered any number
// of times. It is never modified by rendering; every render works on a
// clone.
type PreparedDocument struct {
	// Name is the file path, or the name given to Prepare.
	Name     string
	Document *dom.Document
	// Template exposes this document's macros as "template".
	Template *metal.Template
	// Container is the directory holding the file, nil for documents not
	// read from a file.
	Container *TemplateDirectory
	ModTime   time.Time

	evaluator tales.Evaluator
}

// Engine provides the main API for working with templates.
// Use New() to create a new engine instance.
type Engine struct {
	config    *Config
	cache     *DocumentCache
	logger    *slog.Logger
	functions tales.FunctionRegistry
	accessors *tales.Accessors
	evalOpts  []tales.Option
}

// New creates a new template engine with the global configuration.
func New() *Engine {
	return &Engine{
		config:    GetGlobalConfig(),
		cache:     defaultCache,
		functions: tales.GetDefaultFunctionRegistry(),
		accessors: tales.NewAccessors(),
	}
}

// NewWithConfig creates a new template engine with its own cache and a
// logger at the configured level.
func NewWithConfig(config *Config) *Engine {
	return &Engine{
		config: config.Clone(),
		logger: NewLogger(os.Stderr, parseLogLevel(config.LogLevel)),
		cache: NewDocumentCacheWithConfig(CacheConfig{
			MaxSize: config.CacheMaxSize,
			TTL:     config.CacheTTL,
		}),
		functions: tales.GetDefaultFunctionRegistry(),
		accessors: tales.NewAccessors(),
	}
}

// Option represents a configuration option for the engine.
type Option func(*Engine)

// WithConfig returns an option that sets the engine configuration. It
// replaces the cache and the logger, so it should come before WithLogger.
func WithConfig(config *Config) Option {
	return func(e *Engine) {
		e.config = config.Clone()
		e.logger = NewLogger(os.Stderr, parseLogLevel(config.LogLevel))
		e.cache = NewDocumentCacheWithConfig(CacheConfig{MaxSize: config.CacheMaxSize, TTL: config.CacheTTL})
	}
}

// WithCache returns an option that gives the engine its own cache of the
// given size (0 disables caching).
func WithCache(maxSize int) Option {
	return func(e *Engine) {
		e.config.CacheMaxSize = maxSize
		e.cache = NewDocumentCacheWithConfig(CacheConfig{MaxSize: maxSize, TTL: e.config.CacheTTL})
	}
}

// WithLogger returns an option that sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithFunctions returns an option that sets the functions available to
// expr: expressions.
func WithFunctions(r tales.FunctionRegistry) Option {
	return func(e *Engine) { e.functions = r }
}

// WithAccessors returns an option that sets the accessor registry used
// for path traversal into model types.
func WithAccessors(a *tales.Accessors) Option {
	return func(e *Engine) { e.accessors = a }
}

// WithEvaluatorOptions returns an option that passes extra options, such
// as additional builtins or expression prefixes, to every evaluator the
// engine creates.
func WithEvaluatorOptions(opts ...tales.Option) Option {
	return func(e *Engine) { e.evalOpts = append(e.evalOpts, opts...) }
}

// NewWithOptions creates a new engine with the specified options.
func NewWithOptions(opts ...Option) *Engine {
	engine := New()
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Config returns the engine's configuration.
func (e *Engine) Config() *Config {
	return e.config
}

// Cache returns the engine's document cache.
func (e *Engine) Cache() *DocumentCache {
	return e.cache
}

// Logger returns the engine logger, falling back to the package logger.
func (e *Engine) Logger() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return GetLogger()
}

// ClearCache removes all documents from the cache.
func (e *Engine) ClearCache() {
	if e.cache != nil {
		e.cache.Clear()
	}
}

// Invalidate drops the cached document for path.
func (e *Engine) Invalidate(path string) bool {
	if e.cache == nil {
		return false
	}
	return e.cache.Remove(cacheKey(path))
}

// PrepareFile loads and parses a template from a file path.
// The document is cached if caching is enabled in the configuration.
func (e *Engine) PrepareFile(path string) (*PreparedDocument, error) {
	key := cacheKey(path)
	if e.cachingEnabled() {
		if doc, ok := e.cache.Get(key); ok {
			return doc, nil
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, NewDocumentError("open", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, NewDocumentError("stat", path, err)
	}

	doc, err := dom.Read(file, e.config.documentTypeFor(path), path)
	if err != nil {
		return nil, NewDocumentError("parse", path, err)
	}

	prepared := e.prepared(path, doc)
	prepared.ModTime = info.ModTime()
	prepared.Container = &TemplateDirectory{engine: e, Path: filepath.Dir(key)}
	prepared.evaluator = e.newEvaluator(prepared.Container)

	if e.cachingEnabled() {
		e.cache.Set(key, prepared)
	}
	e.Logger().Debug("prepared document", "path", path, "type", doc.Type)
	return prepared, nil
}

// Prepare parses a template of the given type from r. Such documents have
// no container and are never cached.
func (e *Engine) Prepare(r io.Reader, t dom.DocumentType, name string) (*PreparedDocument, error) {
	doc, err := dom.Read(r, t, name)
	if err != nil {
		return nil, NewDocumentError("parse", name, err)
	}
	prepared := e.prepared(name, doc)
	prepared.evaluator = e.newEvaluator(nil)
	return prepared, nil
}

// PrepareString parses a template held in a string.
func (e *Engine) PrepareString(markup string, t dom.DocumentType) (*PreparedDocument, error) {
	return e.Prepare(strings.NewReader(markup), t, "<string>")
}

func (e *Engine) prepared(name string, doc *dom.Document) *PreparedDocument {
	doc.OmitXMLDeclaration = e.config.OmitXMLDeclaration
	return &PreparedDocument{
		Name:     name,
		Document: doc,
		Template: metal.NewTemplate(doc),
	}
}

func (e *Engine) newEvaluator(container *TemplateDirectory) tales.Evaluator {
	opts := []tales.Option{
		tales.WithStrictMode(e.config.StrictMode),
		tales.WithFunctions(e.functions),
		tales.WithAccessors(e.accessors),
		tales.WithLogger(e.Logger()),
		tales.WithBuiltin("container", func(*tales.ExpressionContext) any {
			if container == nil {
				return nil
			}
			return container
		}),
	}
	var evaluator tales.Evaluator
	opts = append(opts, tales.WithPrefix("load", func(ctx context.Context, body string, ec *tales.ExpressionContext) (any, error) {
		return e.load(ctx, evaluator, body, ec)
	}))
	evaluator = tales.NewEvaluator(append(opts, e.evalOpts...)...)
	return evaluator
}

func (e *Engine) cachingEnabled() bool {
	return e.config.CacheMaxSize > 0 && e.cache != nil
}

// RenderOption configures a single render.
type RenderOption func(*renderSettings)

type renderSettings struct {
	options map[string]any
}

// WithKeywordOptions adds keyword options for one render. They override
// options of the same name from the configuration.
func WithKeywordOptions(options map[string]any) RenderOption {
	return func(s *renderSettings) {
		for k, v := range options {
			s.options[k] = v
		}
	}
}

// RenderDocument renders p with model and returns the output document.
// The render runs the METAL pass, then the TAL pass, then removes all
// TAL and METAL markup. With SourceAnnotation set, comments naming the
// source of each part are added before the markup is removed.
func (e *Engine) RenderDocument(ctx context.Context, p *PreparedDocument, model any, opts ...RenderOption) (*dom.Document, error) {
	settings := renderSettings{options: make(map[string]any, len(e.config.KeywordOptions))}
	for k, v := range e.config.KeywordOptions {
		settings.options[k] = v
	}
	for _, opt := range opts {
		opt(&settings)
	}

	logger := e.Logger().With("render_id", newRenderID(), "template", p.Name)
	evaluator := p.evaluator
	if evaluator == nil {
		evaluator = e.newEvaluator(p.Container)
	}

	doc := p.Document.Clone()
	factory := func(d *dom.Document) *tales.ExpressionContext {
		ec := tales.NewRootContext(d.Root, model)
		ec.Template = p.Template
		ec.KeywordOptions = settings.options
		return ec
	}
	renderer := render.NewDocumentRenderer(factory, logger, e.passes(evaluator, logger)...)

	start := time.Now()
	if err := renderer.Render(ctx, doc); err != nil {
		logger.Warn("render failed", "error", err)
		return nil, &RenderError{Template: p.Name, Cause: err}
	}
	logger.Debug("render complete", "duration", time.Since(start))
	return doc, nil
}

// Render renders p with model and writes the output to w.
func (e *Engine) Render(ctx context.Context, w io.Writer, p *PreparedDocument, model any, opts ...RenderOption) error {
	doc, err := e.RenderDocument(ctx, p, model, opts...)
	if err != nil {
		return err
	}
	if _, err := doc.WriteTo(w); err != nil {
		return NewDocumentError("write", p.Name, err)
	}
	return nil
}

// RenderFile prepares the template at path and renders it to w.
func (e *Engine) RenderFile(ctx context.Context, w io.Writer, path string, model any, opts ...RenderOption) error {
	p, err := e.PrepareFile(path)
	if err != nil {
		return err
	}
	return e.Render(ctx, w, p, model, opts...)
}

// RenderString renders a template held in a string and returns the output.
func (e *Engine) RenderString(ctx context.Context, markup string, t dom.DocumentType, model any, opts ...RenderOption) (string, error) {
	p, err := e.PrepareString(markup, t)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := e.Render(ctx, &buf, p, model, opts...); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Close releases any resources held by the engine.
func (e *Engine) Close() error {
	return nil
}

func newRenderID() string {
	return uuid.NewString()[:8]
}

func cacheKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return filepath.Clean(abs)
	}
	return filepath.Clean(path)
}

// defaultCache is a global cache instance for convenience
var defaultCache = NewDocumentCache()

// DefaultEngine is the global default engine instance.
// It uses the global configuration and cache.
var DefaultEngine = New()

// PrepareFile loads and parses a template from a file path using the default engine.
func PrepareFile(path string) (*PreparedDocument, error) {
	return DefaultEngine.PrepareFile(path)
}

// Prepare parses a template from an io.Reader using the default engine.
func Prepare(r io.Reader, t dom.DocumentType, name string) (*PreparedDocument, error) {
	return DefaultEngine.Prepare(r, t, name)
}

// RenderFile renders the template at path using the default engine.
func RenderFile(ctx context.Context, w io.Writer, path string, model any, opts ...RenderOption) error {
	return DefaultEngine.RenderFile(ctx, w, path, model, opts...)
}

// RenderString renders markup using the default engine.
func RenderString(ctx context.Context, markup string, t dom.DocumentType, model any, opts ...RenderOption) (string, error) {
	return DefaultEngine.RenderString(ctx, markup, t, model, opts...)
}

// ClearCache clears the global document cache.
func ClearCache() {
	DefaultEngine.ClearCache()
}

// SetCacheConfig updates the global cache configuration.
// It affects caches created afterwards.
func SetCacheConfig(maxSize int, ttl time.Duration) {
	config := GetGlobalConfig()
	config.CacheMaxSize = maxSize
	config.CacheTTL = ttl
	SetGlobalConfig(config)
}

func (p *PreparedDocument) String() string {
	return fmt.Sprintf("%s (%s)", p.Name, p.Document.Type)
}
