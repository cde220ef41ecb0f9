package zpt

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// BulkOptions selects the templates a bulk render processes and where the
// output goes.
type BulkOptions struct {
	// InputDir is searched recursively for templates.
	InputDir string
	// OutputDir receives the rendered files, mirroring InputDir's layout.
	OutputDir string
	// Include patterns match paths relative to InputDir. Empty means all
	// files. A pattern without a slash also matches the base name.
	Include []string
	// Exclude patterns are applied after Include.
	Exclude []string
	// Extension, when set, replaces the extension of every output file.
	Extension string
	// Workers bounds concurrency; 0 uses the engine configuration.
	Workers int
}

// BulkResult reports one rendered file.
type BulkResult struct {
	Input    string
	Output   string
	Duration time.Duration
	Err      error
}

// RenderDirectory renders every selected template under opts.InputDir
// with model. All files are attempted; failures are collected into a
// *MultiError and also reported in the returned results, which are in
// input path order.
func (e *Engine) RenderDirectory(ctx context.Context, opts BulkOptions, model any, renderOpts ...RenderOption) ([]BulkResult, error) {
	if opts.InputDir == "" || opts.OutputDir == "" {
		return nil, errors.New("bulk render needs an input and an output directory")
	}
	for _, p := range append(append([]string{}, opts.Include...), opts.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, doublestar.ErrBadPattern)
		}
	}

	files, err := collectTemplates(opts)
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = e.config.BulkWorkers
	}
	if workers <= 0 {
		workers = 1
	}

	logger := e.Logger().With("component", "bulk", "input", opts.InputDir)
	logger.Info("bulk render starting", "files", len(files), "workers", workers)

	results := make([]BulkResult, len(files))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = e.renderOne(ctx, opts, files[i], model, renderOpts)
			}
		}()
	}

feed:
	for i := range files {
		select {
		case jobs <- i:
		case <-ctx.Done():
			for j := i; j < len(files); j++ {
				results[j] = BulkResult{Input: files[j], Err: ctx.Err()}
			}
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	var errs MultiError
	for _, r := range results {
		if r.Err != nil {
			errs.Add(fmt.Errorf("%s: %w", r.Input, r.Err))
		}
	}
	logger.Info("bulk render finished", "files", len(files), "failed", len(errs.Errors))
	return results, errs.ErrorOrNil()
}

func (e *Engine) renderOne(ctx context.Context, opts BulkOptions, rel string, model any, renderOpts []RenderOption) BulkResult {
	start := time.Now()
	res := BulkResult{Input: rel, Output: outputPath(opts, rel)}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	if err := os.MkdirAll(filepath.Dir(res.Output), 0o755); err != nil {
		res.Err = NewDocumentError("write", res.Output, err)
		return res
	}
	f, err := os.Create(res.Output)
	if err != nil {
		res.Err = NewDocumentError("write", res.Output, err)
		return res
	}
	err = e.RenderFile(ctx, f, filepath.Join(opts.InputDir, rel), model, renderOpts...)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = NewDocumentError("write", res.Output, closeErr)
	}
	if err != nil {
		_ = os.Remove(res.Output)
	}
	res.Err = err
	res.Duration = time.Since(start)
	return res
}

// collectTemplates returns the selected files relative to InputDir, sorted.
func collectTemplates(opts BulkOptions) ([]string, error) {
	outAbs, _ := filepath.Abs(opts.OutputDir)
	var files []string
	err := filepath.WalkDir(opts.InputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// never render our own output
			if abs, _ := filepath.Abs(path); abs == outAbs && path != opts.InputDir {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(opts.InputDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if len(opts.Include) > 0 && !matchAny(opts.Include, rel) {
			return nil
		}
		if matchAny(opts.Exclude, rel) {
			return nil
		}
		files = append(files, filepath.FromSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func matchAny(patterns []string, rel string) bool {
	base := rel[strings.LastIndex(rel, "/")+1:]
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if !strings.Contains(p, "/") {
			if ok, _ := doublestar.Match(p, base); ok {
				return true
			}
		}
	}
	return false
}

func outputPath(opts BulkOptions, rel string) string {
	out := filepath.Join(opts.OutputDir, rel)
	if opts.Extension != "" {
		ext := opts.Extension
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = strings.TrimSuffix(out, filepath.Ext(out)) + ext
	}
	return out
}
