// Package zpt renders Zope Page Templates: HTML or XML documents whose
// TAL attributes (tal:content, tal:repeat, ...) and METAL macros
// (metal:use-macro, metal:fill-slot, ...) are evaluated against a model.
//
// Basic Usage:
//
//	engine := zpt.New()
//	tmpl, err := engine.PrepareFile("page.html")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	model := map[string]any{
//	    "title": "Orders",
//	    "items": []any{"Widget", "Gadget"},
//	}
//	if err := engine.Render(ctx, os.Stdout, tmpl, model); err != nil {
//	    log.Fatal(err)
//	}
//
// Template syntax:
//
//	<h1 tal:content="here/title">Title</h1>
//	<li tal:repeat="item here/items" tal:content="item">item</li>
//	<div metal:use-macro="container/layout.html/macros/page">
//	    <p metal:fill-slot="body">Page body</p>
//	</div>
//
// A render runs three passes over a clone of the prepared document:
// macro usages are expanded, TAL directives are evaluated, then all TAL
// and METAL markup is removed. Prepared documents are cached by path and
// may be shared between goroutines.
package zpt
