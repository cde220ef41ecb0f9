// Package server serves rendered templates from a directory over HTTP.
package server

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/benjaminschreck/go-zpt/pkg/zpt"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/dom"
)

const requestIDHeader = "X-Request-Id"

// Options configures a Server.
type Options struct {
	// TemplateDir is the directory templates are served from.
	TemplateDir string
	// Model is the base model for every render. A POSTed JSON object is
	// merged over it.
	Model map[string]any
	// RenderTimeout bounds a single render. 0 means no limit.
	RenderTimeout time.Duration
}

// Server renders templates on request:
//
//	GET  /render/<path>?k=v   render with the base model; query values become keyword options
//	POST /render/<path>       same, with a JSON model merged over the base model
//	GET  /templates           list the templates under the directory
//	GET  /healthz
type Server struct {
	engine *zpt.Engine
	opts   Options
	logger *slog.Logger
}

// New creates a server that renders with engine.
func New(engine *zpt.Engine, opts Options) *Server {
	if opts.Model == nil {
		opts.Model = map[string]any{}
	}
	return &Server{
		engine: engine,
		opts:   opts,
		logger: engine.Logger().With("component", "server"),
	}
}

// Router builds the gin engine serving s.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(requestIDMiddleware())
	r.Use(requestLogger(s.logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/templates", s.listTemplates)
	r.GET("/render/*path", s.render)
	r.POST("/render/*path", s.render)
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr, "dir", s.opts.TemplateDir)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) render(c *gin.Context) {
	rel, ok := cleanTemplatePath(c.Param("path"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template path"})
		return
	}

	model := make(map[string]any, len(s.opts.Model))
	for k, v := range s.opts.Model {
		model[k] = v
	}
	if c.Request.Method == http.MethodPost {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON model: " + err.Error()})
			return
		}
		for k, v := range body {
			model[k] = v
		}
	}

	options := map[string]any{}
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			options[k] = v[len(v)-1]
		}
	}
	options["request_id"] = c.GetString(requestIDHeader)

	ctx := c.Request.Context()
	if s.opts.RenderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RenderTimeout)
		defer cancel()
	}

	full := filepath.Join(s.opts.TemplateDir, filepath.FromSlash(rel))
	prepared, err := s.engine.PrepareFile(full)
	if err != nil {
		s.fail(c, err)
		return
	}
	doc, err := s.engine.RenderDocument(ctx, prepared, model, zpt.WithKeywordOptions(options))
	if err != nil {
		s.fail(c, err)
		return
	}

	contentType := "text/html; charset=utf-8"
	if doc.Type == dom.XML {
		contentType = "application/xml; charset=utf-8"
	}
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := doc.WriteTo(c.Writer); err != nil {
		s.logger.Error("failed to write response", "path", rel, "error", err)
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusUnprocessableEntity
	switch {
	case errors.Is(err, fs.ErrNotExist):
		status = http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		status = 499
	case zpt.IsDocumentError(err):
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) listTemplates(c *gin.Context) {
	var names []string
	err := filepath.WalkDir(s.opts.TemplateDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != s.opts.TemplateDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(s.opts.TemplateDir, p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	sort.Strings(names)
	c.JSON(http.StatusOK, gin.H{"templates": names})
}

// cleanTemplatePath rejects paths that would leave the template directory.
func cleanTemplatePath(p string) (string, bool) {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "", false
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") || path.IsAbs(cleaned) {
		return "", false
	}
	for _, seg := range strings.Split(cleaned, "/") {
		if strings.HasPrefix(seg, ".") {
			return "", false
		}
	}
	return cleaned, true
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString(requestIDHeader),
		)
	}
}

// isTemplateDir reports whether dir exists and is a directory.
func isTemplateDir(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// Validate checks the options before serving.
func (o Options) Validate() error {
	if o.TemplateDir == "" {
		return errors.New("no template directory")
	}
	if !isTemplateDir(o.TemplateDir) {
		return errors.New("template directory " + o.TemplateDir + " does not exist")
	}
	return nil
}
