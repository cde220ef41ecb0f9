package metal

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/dom"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/render"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/tales"
)

const library = `
<div metal:define-macro="box"><h1 metal:define-slot="title">Default</h1><p metal:define-slot="body">Body</p></div>
<div metal:define-macro="base"><p metal:define-slot="s">base</p></div>
<div metal:define-macro="child" metal:extend-macro="lib/macros/base"><p metal:fill-slot="s">A</p></div>
<div metal:define-macro="refillable" metal:extend-macro="lib/macros/base"><p metal:fill-slot="s" metal:define-slot="s">A</p></div>
<div metal:define-macro="two"><i metal:define-slot="s1">b1</i><b metal:define-slot="s2">b2</b></div>
<div metal:define-macro="mid" metal:extend-macro="lib/macros/two"><i metal:fill-slot="s1">mid1</i><b metal:fill-slot="s2">mid2</b></div>
<div metal:define-macro="top" metal:extend-macro="lib/macros/mid"><i metal:fill-slot="s1">top1</i></div>
<div metal:define-macro="cycle-a" metal:extend-macro="lib/macros/cycle-b"></div>
<div metal:define-macro="cycle-b" metal:extend-macro="lib/macros/cycle-a"></div>
<div metal:define-macro="recursive"><span metal:use-macro="lib/macros/recursive"></span></div>
<div metal:define-macro="outer"><section metal:define-slot="content">outer</section></div>
`

func parse(t *testing.T, src string) *dom.Document {
	t.Helper()
	doc, err := dom.ReadHTML(strings.NewReader(src), "test.html")
	require.NoError(t, err)
	return doc
}

func newEvaluator(t *testing.T) tales.Evaluator {
	lib := NewTemplate(parse(t, library))
	return tales.NewEvaluator(tales.WithBuiltin("lib", func(*tales.ExpressionContext) any { return lib }))
}

func renderMETAL(t *testing.T, src string) (string, error) {
	t.Helper()
	doc := parse(t, src)
	r := render.NewDocumentRenderer(
		func(d *dom.Document) *tales.ExpressionContext {
			ec := tales.NewRootContext(d.Root, nil)
			ec.Template = NewTemplate(d.Clone())
			return ec
		},
		nil,
		render.Pass{Name: "metal", Processor: NewUsageProcessor(newEvaluator(t), 8, nil)},
		render.Pass{Name: "cleanup", Processor: render.NewCleanupProcessor()},
	)
	err := r.Render(context.Background(), doc)
	return doc.String(), err
}

func TestUsageProcessor(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "fills slots and keeps defaults",
			src:  `<section metal:use-macro="lib/macros/box"><h1 metal:fill-slot="title">Hello</h1></section>`,
			want: `<div><h1>Hello</h1><p>Body</p></div>`,
		},
		{
			name: "unused fillers are dropped",
			src:  `<section metal:use-macro="lib/macros/box"><p metal:fill-slot="nope">x</p></section>`,
			want: `<div><h1>Default</h1><p>Body</p></div>`,
		},
		{
			name: "extending macro's filler beats the call site",
			src:  `<div metal:use-macro="lib/macros/child"><p metal:fill-slot="s">B</p></div>`,
			want: `<div><p>A</p></div>`,
		},
		{
			name: "extending macro's filler can itself be a slot",
			src:  `<div metal:use-macro="lib/macros/refillable"><p metal:fill-slot="s">B</p></div>`,
			want: `<div><p>B</p></div>`,
		},
		{
			name: "three levels: filler closest to the base wins",
			src:  `<div metal:use-macro="lib/macros/top"><i metal:fill-slot="s1">call1</i><b metal:fill-slot="s2">call2</b></div>`,
			want: `<div><i>mid1</i><b>mid2</b></div>`,
		},
		{
			name: "three levels: unfilled slot of the middle macro",
			src:  `<div metal:use-macro="lib/macros/top"></div>`,
			want: `<div><i>mid1</i><b>mid2</b></div>`,
		},
		{
			name: "extending definition is left in place",
			src:  `<div><div metal:define-macro="child" class="child" metal:extend-macro="lib/macros/base"><p metal:fill-slot="s">A</p></div></div>`,
			want: `<div><div class="child"><p>A</p></div></div>`,
		},
		{
			name: "nested use inside a filler",
			src: `<div metal:use-macro="lib/macros/outer"><section metal:fill-slot="content">` +
				`<span metal:use-macro="lib/macros/box"><h1 metal:fill-slot="title">Inner</h1></span>` +
				`</section></div>`,
			want: `<div><section><div><h1>Inner</h1><p>Body</p></div></section></div>`,
		},
		{
			name: "macros of the same document",
			src:  `<div><b metal:define-macro="local">L</b><i metal:use-macro="template/macros/local"></i></div>`,
			want: `<div><b>L</b><b>L</b></div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := renderMETAL(t, tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUsageProcessor_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		check func(error) bool
	}{
		{"missing macro", `<div metal:use-macro="lib/macros/missing"></div>`, IsMacroNotFoundError},
		{"not a macro", `<div metal:use-macro="string:box"></div>`, IsMacroNotFoundError},
		{"extension cycle", `<div metal:use-macro="lib/macros/cycle-a"></div>`, IsMacroExtensionDepthError},
		{"recursive use", `<div metal:use-macro="lib/macros/recursive"></div>`, IsMacroExtensionDepthError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := renderMETAL(t, tt.src)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}
}

func TestResolver_GetMacro(t *testing.T) {
	ev := newEvaluator(t)
	r := NewResolver(ev, nil)
	page := parse(t, `<div metal:use-macro="lib/macros/box"></div><p>plain</p>`)
	specs := DefaultSpecs()

	t.Run("no attribute", func(t *testing.T) {
		plain := page.Root.Children[1]
		m, err := r.GetMacro(context.Background(), plain, tales.NewRootContext(plain, nil), specs.UseMacro)
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("returns a copy", func(t *testing.T) {
		site := page.Root.Children[0]
		ec := tales.NewRootContext(site, nil)
		first, err := r.GetMacro(context.Background(), site, ec, specs.UseMacro)
		require.NoError(t, err)
		require.NotNil(t, first)
		assert.Equal(t, "box", first.Name)
		assert.True(t, first.Node.IsDetached())

		first.Node.ClearChildren()
		second, err := r.GetMacro(context.Background(), site, ec, specs.UseMacro)
		require.NoError(t, err)
		assert.Len(t, second.Node.Children, 2)
	})

	t.Run("evaluation failure is wrapped", func(t *testing.T) {
		bad := parse(t, `<div metal:use-macro="lib/macros/box | "></div>`).Root.Children[0]
		_, err := r.GetMacro(context.Background(), bad, tales.NewRootContext(bad, nil), specs.UseMacro)
		var notFound *MacroNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.True(t, tales.IsEvaluationError(notFound.Cause))
	})
}

func TestExpander_IsDeterministic(t *testing.T) {
	ev := newEvaluator(t)
	resolver := NewResolver(ev, nil)
	expander := NewExpander(DefaultSpecs(), resolver, 0, nil)

	expand := func() string {
		site := parse(t, `<div metal:use-macro="lib/macros/child"><p metal:fill-slot="s">B</p></div>`).Root.Children[0]
		ec := tales.NewRootContext(site, nil)
		macro, err := resolver.GetMacro(context.Background(), site, ec, DefaultSpecs().UseMacro)
		require.NoError(t, err)
		expanded, err := expander.Expand(context.Background(), macro, ec)
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, dom.RenderNodeHTML(&buf, expanded.Node))
		return buf.String()
	}

	first := expand()
	assert.Equal(t, first, expand())
	assert.Equal(t, `<div metal:define-macro="base"><p>A</p></div>`, first)
}

func TestSlotFinder_GetSlotFillers(t *testing.T) {
	site := parse(t, `<div metal:use-macro="x">`+
		`<p metal:fill-slot="a">1<b metal:fill-slot="inside">i</b></p>`+
		`<div metal:use-macro="y"><p metal:fill-slot="b">2</p></div>`+
		`<section><p metal:fill-slot="c">3</p><p metal:fill-slot="a">dup</p></section>`+
		`</div>`).Root.Children[0]

	fillers := NewSlotFinder(DefaultSpecs()).GetSlotFillers(site)
	require.Len(t, fillers, 2)
	assert.Equal(t, "1i", fillers["a"].Node.Text())
	assert.Equal(t, "3", fillers["c"].Node.Text())
}

func TestSlotFiller_SkipsSlotsRemovedByAnEnclosingFill(t *testing.T) {
	specs := DefaultSpecs()
	macro := parse(t, `<div><section metal:define-slot="outer"><p metal:define-slot="inner">x</p></section></div>`).Root.Children[0]
	site := parse(t, `<div><b metal:fill-slot="outer">O</b><i metal:fill-slot="inner">I</i></div>`).Root.Children[0]

	finder := NewSlotFinder(specs)
	fillers := finder.GetSlotFillers(site)
	NewSlotFiller(specs, nil).FillSlots(fillers, finder.GetDefinedSlots(macro), macro)

	var buf bytes.Buffer
	require.NoError(t, dom.RenderNodeHTML(&buf, macro))
	assert.Equal(t, `<div><b>O</b></div>`, buf.String())
	assert.Contains(t, fillers, "inner", "unused filler must not be consumed")
	assert.NotContains(t, fillers, "outer")
}

func TestTemplate(t *testing.T) {
	tmpl := NewTemplate(parse(t, library))

	assert.Equal(t, []string{"base", "box", "child", "cycle-a", "cycle-b", "mid", "outer", "recursive", "refillable", "top", "two"}, tmpl.MacroNames())

	m, ok := tmpl.Macro("box")
	require.True(t, ok)
	assert.Equal(t, "box", m.Name)

	_, ok = tmpl.Macro("missing")
	assert.False(t, ok)

	macros, ok := tmpl.GetValue("macros")
	require.True(t, ok)
	items, err := tales.Iterate(macros)
	require.NoError(t, err)
	assert.Len(t, items, 11)
}

func TestSourceAnnotator(t *testing.T) {
	doc := parse(t, `<main><section metal:use-macro="lib/macros/box"><h1 metal:fill-slot="title">Hi</h1></section></main>`)
	r := render.NewDocumentRenderer(
		func(d *dom.Document) *tales.ExpressionContext {
			ec := tales.NewRootContext(d.Root, nil)
			ec.Template = NewTemplate(d.Clone())
			return ec
		},
		nil,
		render.Pass{Name: "metal", Processor: NewUsageProcessor(newEvaluator(t), 8, nil)},
		render.Pass{Name: "annotate", Processor: NewSourceAnnotator()},
		render.Pass{Name: "cleanup", Processor: render.NewCleanupProcessor()},
	)
	require.NoError(t, r.Render(context.Background(), doc))
	got := doc.String()

	divider := strings.Repeat("=", 78)
	note := func(info string) string {
		return "<!--\n" + divider + "\n" + info + "\n" + divider + "\n-->"
	}
	assert.True(t, strings.HasPrefix(got, note("test.html")+"<main>"), got)
	assert.Contains(t, got, "<main>"+note("test.html")+"<div>")
	assert.Contains(t, got, "</div>"+note("test.html (end tag)")+"</main>")
	assert.Contains(t, got, "<p>Body</p>"+note("test.html"))
	assert.NotContains(t, got, "metal:")
}

func TestSourceAnnotator_MacroDefinition(t *testing.T) {
	doc := parse(t, `<main><div metal:define-macro="m">x</div></main>`)
	ec := tales.NewRootContext(doc.Root, nil)
	require.NoError(t, render.NewIterator(NewSourceAnnotator(), nil).Walk(context.Background(), ec))

	main := doc.DocumentElement()
	require.Len(t, main.Children, 2)
	assert.Equal(t, dom.CommentNode, main.Children[0].Type)
	assert.Contains(t, main.Children[0].Data, "test.html")
	assert.Equal(t, "div", main.Children[1].Name)
}
