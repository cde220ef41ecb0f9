package zpt

import (
	"os"
	"path/filepath"
	"sort"
)

// TemplateDirectory exposes a directory of templates to path expressions
// as the "container" builtin. A member naming a file is that file's
// template, so another document's macros are reached with
//
//	container/layout.html/macros/page
//
// and a member naming a subdirectory is another TemplateDirectory.
type TemplateDirectory struct {
	Path   string
	engine *Engine
}

// NewTemplateDirectory creates a directory whose templates are prepared
// (and cached) by e.
func NewTemplateDirectory(e *Engine, path string) *TemplateDirectory {
	return &TemplateDirectory{Path: filepath.Clean(path), engine: e}
}

func (d *TemplateDirectory) GetValue(name string) (any, bool) {
	if name == "" || name == "." {
		return nil, false
	}
	path := filepath.Join(d.Path, name)
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if info.IsDir() {
		return &TemplateDirectory{Path: path, engine: d.engine}, true
	}

	prepared, err := d.engine.PrepareFile(path)
	if err != nil {
		d.engine.Logger().Error("failed to load template from container", "path", path, "error", err)
		return nil, false
	}
	return prepared.Template, true
}

// Items lists the entries of the directory, sorted.
func (d *TemplateDirectory) Items() []any {
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		return []any{}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	items := make([]any, len(names))
	for i, n := range names {
		items[i] = n
	}
	return items
}

func (d *TemplateDirectory) String() string {
	return d.Path
}
