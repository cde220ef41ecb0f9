package zpt

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/dom"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/metal"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/tal"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/tales"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	config := DefaultConfig()
	config.LogLevel = "off"
	return NewWithConfig(config)
}

func TestEngine_RenderString(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		model any
		want  string
	}{
		{
			name:  "content",
			src:   `<p tal:content="here/name">x</p>`,
			model: map[string]any{"name": "World"},
			want:  `<p>World</p>`,
		},
		{
			name:  "repeat with define",
			src:   `<ul><li tal:repeat="i here/items" tal:define="n repeat/i/number" tal:content="string:$n=$i">x</li></ul>`,
			model: map[string]any{"items": []any{"a", "b"}},
			want:  "<ul><li>1=a</li>\n<li>2=b</li></ul>",
		},
		{
			name: "same document macro",
			src: `<div><b metal:define-macro="m" tal:content="here/name">x</b>` +
				`<i metal:use-macro="template/macros/m"></i></div>`,
			model: map[string]any{"name": "W"},
			want:  `<div><b>W</b><b>W</b></div>`,
		},
		{
			name:  "markup removed",
			src:   `<tal:block tal:content="string:a"></tal:block><metal:block>b</metal:block>`,
			model: nil,
			want:  `ab`,
		},
	}

	e := testEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.RenderString(context.Background(), tt.src, dom.HTML, tt.model)
			if err != nil {
				t.Fatalf("RenderString() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("RenderString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEngine_PreparedDocumentIsNotModified(t *testing.T) {
	e := testEngine(t)
	p, err := e.PrepareString(`<p tal:content="here/v">x</p>`, dom.HTML)
	if err != nil {
		t.Fatalf("PrepareString() error = %v", err)
	}
	before := p.Document.String()

	for _, v := range []string{"one", "two"} {
		var buf bytes.Buffer
		if err := e.Render(context.Background(), &buf, p, map[string]any{"v": v}); err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if want := "<p>" + v + "</p>"; buf.String() != want {
			t.Errorf("Render() = %q, want %q", buf.String(), want)
		}
	}
	if after := p.Document.String(); after != before {
		t.Errorf("prepared document changed: %q -> %q", before, after)
	}
}

func TestEngine_ConcurrentRenders(t *testing.T) {
	e := testEngine(t)
	p, err := e.PrepareString(`<ul><li tal:repeat="i here/items" tal:content="i">x</li></ul>`, dom.HTML)
	if err != nil {
		t.Fatalf("PrepareString() error = %v", err)
	}
	model := map[string]any{"items": []any{1, 2, 3}}
	want := "<ul><li>1</li>\n<li>2</li>\n<li>3</li></ul>"

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var buf bytes.Buffer
			if err := e.Render(context.Background(), &buf, p, model); err != nil {
				errs <- err
				return
			}
			if buf.String() != want {
				errs <- errors.New("unexpected output: " + buf.String())
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestEngine_ContainerMacros(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "layout.html", `<html><body>`+
		`<div metal:define-macro="page"><h1 tal:content="here/title">T</h1><div metal:define-slot="body">default</div></div>`+
		`</body></html>`)
	writeFile(t, dir, "parts/box.html", `<span metal:define-macro="box">boxed</span>`)
	page := writeFile(t, dir, "page.html",
		`<section metal:use-macro="container/layout.html/macros/page">`+
			`<p metal:fill-slot="body"><i metal:use-macro="container/parts/box.html/macros/box"></i></p>`+
			`</section>`)

	e := testEngine(t)
	var buf bytes.Buffer
	if err := e.RenderFile(context.Background(), &buf, page, map[string]any{"title": "Orders"}); err != nil {
		t.Fatalf("RenderFile() error = %v", err)
	}
	want := `<div><h1>Orders</h1><p><span>boxed</span></p></div>`
	if buf.String() != want {
		t.Errorf("RenderFile() = %q, want %q", buf.String(), want)
	}

	if e.Cache().Size() != 3 {
		t.Errorf("cache size = %d, want 3 (page, layout, box)", e.Cache().Size())
	}
}

func TestEngine_ContainerMissingFile(t *testing.T) {
	dir := t.TempDir()
	page := writeFile(t, dir, "page.html", `<div metal:use-macro="container/nope.html/macros/x"></div>`)

	e := testEngine(t)
	err := e.RenderFile(context.Background(), &bytes.Buffer{}, page, nil)
	if !metal.IsMacroNotFoundError(err) {
		t.Fatalf("RenderFile() error = %v, want MacroNotFoundError", err)
	}
	if !IsMacroNotFoundError(err) {
		t.Errorf("IsMacroNotFoundError() = false")
	}
}

func TestEngine_KeywordOptions(t *testing.T) {
	config := DefaultConfig()
	config.LogLevel = "off"
	config.KeywordOptions = map[string]any{"greeting": "hello", "who": "config"}
	e := NewWithConfig(config)

	src := `<p tal:content="string:${options/greeting} ${options/who}">x</p>`
	got, err := e.RenderString(context.Background(), src, dom.HTML, nil)
	if err != nil {
		t.Fatalf("RenderString() error = %v", err)
	}
	if got != `<p>hello config</p>` {
		t.Errorf("RenderString() = %q", got)
	}

	got, err = e.RenderString(context.Background(), src, dom.HTML, nil,
		WithKeywordOptions(map[string]any{"who": "caller"}))
	if err != nil {
		t.Fatalf("RenderString() error = %v", err)
	}
	if got != `<p>hello caller</p>` {
		t.Errorf("RenderString() with options = %q", got)
	}
	if config.KeywordOptions["who"] != "config" {
		t.Errorf("render options leaked into the configuration")
	}
}

func TestEngine_StrictMode(t *testing.T) {
	src := `<p tal:content="here/missing">x</p>`
	model := map[string]any{}

	e := testEngine(t)
	got, err := e.RenderString(context.Background(), src, dom.HTML, model)
	if err != nil || got != `<p></p>` {
		t.Fatalf("lenient RenderString() = %q, %v", got, err)
	}

	config := DefaultConfig()
	config.LogLevel = "off"
	config.StrictMode = true
	_, err = NewWithConfig(config).RenderString(context.Background(), src, dom.HTML, model)
	if !tales.IsPathError(err) {
		t.Fatalf("strict RenderString() error = %v, want a path error", err)
	}
	if !tal.IsExpressionEvaluationError(err) {
		t.Errorf("error %v does not name the failing directive", err)
	}
	var renderErr *RenderError
	if !errors.As(err, &renderErr) || renderErr.Template != "<string>" {
		t.Errorf("error %v is not a RenderError for <string>", err)
	}
}

func TestEngine_Cancelled(t *testing.T) {
	e := testEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.RenderString(ctx, `<p tal:content="string:x">x</p>`, dom.HTML, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RenderString() error = %v, want context.Canceled", err)
	}
}

func TestEngine_XML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "feed.xml", `<?xml version="1.0"?>`+
		`<feed xmlns:tal="http://xml.zope.org/namespaces/tal">`+
		`<entry tal:repeat="e here/entries" tal:attributes="id e/id" tal:content="e/title">x</entry>`+
		`</feed>`)

	config := DefaultConfig()
	config.LogLevel = "off"
	config.OmitXMLDeclaration = true
	e := NewWithConfig(config)

	var buf bytes.Buffer
	model := map[string]any{"entries": []any{
		map[string]any{"id": "1", "title": "First"},
		map[string]any{"id": "2", "title": "Second"},
	}}
	if err := e.RenderFile(context.Background(), &buf, path, model); err != nil {
		t.Fatalf("RenderFile() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{`<entry id="1">First</entry>`, `<entry id="2">Second</entry>`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q does not contain %q", out, want)
		}
	}
	for _, unwanted := range []string{"tal:", "xmlns:tal", "<?xml"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("output %q contains %q", out, unwanted)
		}
	}
}

func TestEngine_PrepareFileCaching(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.html", `<p>a</p>`)
	e := testEngine(t)

	first, err := e.PrepareFile(path)
	if err != nil {
		t.Fatalf("PrepareFile() error = %v", err)
	}
	second, err := e.PrepareFile(path)
	if err != nil {
		t.Fatalf("PrepareFile() error = %v", err)
	}
	if first != second {
		t.Error("expected the cached document to be returned")
	}

	if !e.Invalidate(path) {
		t.Error("Invalidate() = false, want true")
	}
	third, err := e.PrepareFile(path)
	if err != nil {
		t.Fatalf("PrepareFile() error = %v", err)
	}
	if third == first {
		t.Error("expected a fresh document after invalidation")
	}
}

func TestEngine_PrepareFileErrors(t *testing.T) {
	e := testEngine(t)
	_, err := e.PrepareFile(filepath.Join(t.TempDir(), "missing.html"))
	if !IsDocumentError(err) {
		t.Fatalf("PrepareFile() error = %v, want DocumentError", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("PrepareFile() error = %v, want it to wrap os.ErrNotExist", err)
	}

	bad := writeFile(t, t.TempDir(), "bad.xml", `<root><unclosed></root>`)
	_, err = e.PrepareFile(bad)
	var docErr *DocumentError
	if !errors.As(err, &docErr) || docErr.Op != "parse" {
		t.Errorf("PrepareFile() error = %v, want a parse DocumentError", err)
	}
}

func TestEngine_CachingDisabled(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.html", `<p>a</p>`)
	e := NewWithOptions(WithConfig(DefaultConfig()), WithCache(0), WithLogger(NewLogger(nil, LogOff)))

	first, err := e.PrepareFile(path)
	if err != nil {
		t.Fatalf("PrepareFile() error = %v", err)
	}
	second, _ := e.PrepareFile(path)
	if first == second {
		t.Error("expected a new document when caching is disabled")
	}
	if e.Cache().Size() != 0 {
		t.Errorf("cache size = %d, want 0", e.Cache().Size())
	}
}

func TestEngine_CustomFunctionsAndBuiltins(t *testing.T) {
	registry := tales.NewFunctionRegistry()
	_ = registry.RegisterFunction(tales.NewSimpleFunction("shout", 1, 1, func(args ...any) (any, error) {
		return strings.ToUpper(tales.FormatValue(args[0])) + "!", nil
	}))

	e := NewWithOptions(
		WithConfig(DefaultConfig()),
		WithLogger(NewLogger(nil, LogOff)),
		WithFunctions(registry),
		WithEvaluatorOptions(tales.WithBuiltin("site", func(*tales.ExpressionContext) any {
			return map[string]any{"name": "example"}
		})),
	)
	got, err := e.RenderString(context.Background(),
		`<p tal:content="expr:shout(site.name)">x</p>`, dom.HTML, nil)
	if err != nil {
		t.Fatalf("RenderString() error = %v", err)
	}
	if got != `<p>EXAMPLE!</p>` {
		t.Errorf("RenderString() = %q", got)
	}
}

func TestEngine_Load(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "box.html", `<span tal:content="here/title">x</span>`)
	model := map[string]any{"title": "Orders"}

	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "container file",
			src:  `<div tal:content="load:container/box.html">x</div>`,
			want: `<div><span>Orders</span></div>`,
		},
		{
			name: "macro of the same document",
			src:  `<div><b metal:define-macro="m" tal:content="here/title">x</b><p tal:content="load:template/macros/m">y</p></div>`,
			want: `<div><b>Orders</b><p><b>Orders</b></p></div>`,
		},
		{
			name: "nothing",
			src:  `<p tal:content="load:nothing">x</p>`,
			want: `<p></p>`,
		},
	}

	e := testEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := writeFile(t, dir, "page.html", tt.src)
			e.ClearCache()
			var buf bytes.Buffer
			if err := e.RenderFile(context.Background(), &buf, page, model); err != nil {
				t.Fatalf("RenderFile() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("RenderFile() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestEngine_LoadErrors(t *testing.T) {
	e := testEngine(t)
	tests := []struct {
		name string
		src  string
	}{
		{"not a template", `<p tal:content="load:string:hello">x</p>`},
		{"loads itself", `<p metal:define-macro="r" tal:content="load:template/macros/r">x</p>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.RenderString(context.Background(), tt.src, dom.HTML, nil); err == nil {
				t.Errorf("RenderString(%q) expected an error", tt.src)
			}
		})
	}
}

func TestEngine_SourceAnnotation(t *testing.T) {
	config := DefaultConfig()
	config.LogLevel = "off"
	config.SourceAnnotation = true
	e := NewWithConfig(config)

	dir := t.TempDir()
	writeFile(t, dir, "lib.html", `<div metal:define-macro="m"><i tal:content="here/name">x</i></div>`)
	page := writeFile(t, dir, "page.html", `<main><p metal:use-macro="container/lib.html/macros/m"></p></main>`)

	var buf bytes.Buffer
	if err := e.RenderFile(context.Background(), &buf, page, map[string]any{"name": "n"}); err != nil {
		t.Fatalf("RenderFile() error = %v", err)
	}
	got := buf.String()
	divider := strings.Repeat("=", 78)
	lib := filepath.Join(dir, "lib.html")
	for _, want := range []string{
		"<!--\n" + divider + "\n" + page + "\n" + divider + "\n--><main>",
		"<main><!--\n" + divider + "\n" + lib + "\n" + divider + "\n--><div><i>n</i></div>",
		"</div><!--\n" + divider + "\n" + lib + " (end tag)\n" + divider + "\n--></main>",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("RenderFile() = %q, missing %q", got, want)
		}
	}

	plain, err := testEngine(t).RenderString(context.Background(), `<main><p>x</p></main>`, dom.HTML, nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(plain, "<!--") {
		t.Errorf("annotation without SourceAnnotation: %q", plain)
	}
}
