package tales

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/dom"
)

type account struct {
	Owner   string
	Balance int
}

func testContext() *ExpressionContext {
	model := map[string]any{
		"user": map[string]any{
			"name":  "Ada",
			"roles": []any{"admin", "editor"},
		},
		"items":   []any{10, 20, 30},
		"empty":   []any{},
		"count":   3,
		"flag":    false,
		"greet":   func() any { return "hello" },
		"key":     "name",
		"account": account{Owner: "Grace", Balance: 42},
	}
	ec := NewRootContext(nil, model)
	ec.KeywordOptions["lang"] = "en"
	return ec
}

func newTestEvaluator(opts ...Option) *StandardEvaluator {
	accessors := NewAccessors()
	Register(accessors, func(a account, name string) (any, bool) {
		switch name {
		case "owner":
			return a.Owner, true
		case "balance":
			return a.Balance, true
		}
		return nil, false
	})
	return NewEvaluator(append([]Option{WithAccessors(accessors)}, opts...)...)
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want any
	}{
		{"root model key", "count", 3},
		{"nested path", "user/name", "Ada"},
		{"here builtin", "here/user/name", "Ada"},
		{"explicit path prefix", "path:user/name", "Ada"},
		{"slice index", "items/1", 20},
		{"negative index", "items/-1", 30},
		{"slice length", "items/length", 3},
		{"alternate falls through", "user/missing | user/name", "Ada"},
		{"alternate with string", "user/missing | string:fallback", "fallback"},
		{"variable segment", "user/?key", "Ada"},
		{"func is called", "greet", "hello"},
		{"registered accessor", "account/owner", "Grace"},
		{"options builtin", "options/lang", "en"},
		{"nothing", "nothing", nil},
		{"string literal", "string:plain text", "plain text"},
		{"string interpolation", "string:Hi $key, ${user/name}!", "Hi name, Ada!"},
		{"string dollar escape", "string:$$5", "$5"},
		{"string lone dollar", "string:costs $ 5", "costs $ 5"},
		{"not false", "not:flag", true},
		{"not non-empty", "not:items", false},
		{"not empty non-nil slice", "not:empty", false},
		{"exists true", "exists:user/name", true},
		{"exists false", "exists:user/missing", false},
		{"exists alternates", "exists:user/missing | count", true},
		{"expr arithmetic", "expr:count * 2 + 1", 7},
		{"expr precedence", "expr:(count + 1) * 2", 8},
		{"expr comparison", "expr:count >= 3 && !flag", true},
		{"expr function", "expr:len(items)", 3},
		{"expr field access", "expr:user.name + '!'", "Ada!"},
		{"expr index", "expr:items[2]", 30},
		{"expr or returns operand", "expr:flag || 'x'", "x"},
		{"expr string compare", "expr:'a' < 'b'", true},
	}

	e := newTestEvaluator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(context.Background(), tt.expr, testContext())
			if err != nil {
				t.Fatalf("Evaluate(%q) error = %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q) = %#v, want %#v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvaluate_Default(t *testing.T) {
	e := NewEvaluator()
	got, err := e.Evaluate(context.Background(), "default", testContext())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !IsDefault(got) {
		t.Errorf("Evaluate(default) = %v, want the abort sentinel", got)
	}
}

func TestEvaluate_Nocall(t *testing.T) {
	e := NewEvaluator()
	got, err := e.Evaluate(context.Background(), "nocall:greet", testContext())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if _, ok := got.(func() any); !ok {
		t.Errorf("nocall: returned %T, want the func itself", got)
	}
}

func TestEvaluate_MissingPath(t *testing.T) {
	ec := testContext()

	lenient := NewEvaluator()
	got, err := lenient.Evaluate(context.Background(), "user/missing", ec)
	if err != nil || got != nil {
		t.Errorf("lenient Evaluate() = %v, %v; want nil, nil", got, err)
	}

	strict := NewEvaluator(WithStrictMode(true))
	_, err = strict.Evaluate(context.Background(), "user/missing", ec)
	if err == nil {
		t.Fatal("strict Evaluate() expected error")
	}
	if !IsEvaluationError(err) || !IsPathError(err) {
		t.Errorf("strict Evaluate() error = %v, want EvaluationError wrapping PathError", err)
	}
}

func TestEvaluate_Errors(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"expr syntax", "expr:1 +"},
		{"expr trailing token", "expr:1 2"},
		{"division by zero", "expr:1 / 0"},
		{"unknown function", "expr:nope(1)"},
		{"empty alternate", "user/name |"},
		{"unterminated interpolation", "string:${user/name"},
	}
	e := NewEvaluator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Evaluate(context.Background(), tt.expr, testContext()); err == nil {
				t.Errorf("Evaluate(%q) expected error", tt.expr)
			}
		})
	}
}

func TestEvaluate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEvaluator().Evaluate(ctx, "count", testContext())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Evaluate() error = %v, want context.Canceled", err)
	}
}

func TestEvaluate_DefinitionsShadowModel(t *testing.T) {
	ec := testContext()
	ec.GlobalDefinitions.Set("count", 100)
	child := ec.CreateChild(nil)
	child.LocalDefinitions.Set("count", 5)

	e := NewEvaluator()
	if got, _ := e.Evaluate(context.Background(), "count", child); got != 5 {
		t.Errorf("local definition: got %v, want 5", got)
	}
	if got, _ := e.Evaluate(context.Background(), "count", ec); got != 100 {
		t.Errorf("global definition: got %v, want 100", got)
	}
}

func TestEvaluate_ScopedPaths(t *testing.T) {
	ec := testContext()
	ec.GlobalDefinitions.Set("site", map[string]any{"title": "Shop"})
	child := ec.CreateChild(nil)
	child.LocalDefinitions.Set("page", "cart")
	child.LocalDefinitions.Set("site", map[string]any{"title": "Local"})

	tests := []struct {
		name string
		expr string
		want any
	}{
		{"local sees local definitions", "local:page", "cart"},
		{"local path traversal", "local:site/title", "Local"},
		{"local ignores the model", "local:count", nil},
		{"local ignores builtins", "local:nothing", nil},
		{"global skips local definitions", "global:site/title", "Shop"},
		{"global ignores local-only names", "global:page", nil},
		{"defined sees local first", "defined:site/title", "Local"},
		{"defined sees locals", "defined:page", "cart"},
		{"defined ignores the model", "defined:user/name", nil},
		{"alternates", "global:page | global:site/title", "Shop"},
	}
	e := NewEvaluator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(context.Background(), tt.expr, child)
			if err != nil {
				t.Fatalf("Evaluate(%q) error = %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q) = %#v, want %#v", tt.expr, got, tt.want)
			}
		})
	}

	strict := NewEvaluator(WithStrictMode(true))
	if _, err := strict.Evaluate(context.Background(), "local:count", child); !IsPathError(err) {
		t.Errorf("strict local:count error = %v, want a PathError", err)
	}
}

func TestEvaluate_Structure(t *testing.T) {
	e := NewEvaluator()
	got, err := e.Evaluate(context.Background(), "structure:string:<b>${user/name}</b>", testContext())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	s, ok := got.(Structure)
	if !ok {
		t.Fatalf("structure: returned %T, want Structure", got)
	}
	if s.Markup() != "<b>Ada</b>" {
		t.Errorf("Markup() = %q", s.Markup())
	}

	for _, expr := range []string{"structure:nothing", "structure:default"} {
		got, err := e.Evaluate(context.Background(), expr, testContext())
		if err != nil {
			t.Fatalf("Evaluate(%q) error = %v", expr, err)
		}
		if _, ok := got.(Structure); ok {
			t.Errorf("Evaluate(%q) wrapped %v", expr, got)
		}
	}
}

func TestEvaluate_Pipe(t *testing.T) {
	ec := testContext()
	model := ec.Model.(map[string]any)
	model["upper"] = strings.ToUpper
	model["double"] = func(v any) any { return v.(int) * 2 }
	model["check"] = func(v any) (any, error) { return nil, errors.New("rejected") }
	model["title"] = "shop"
	model["fn"] = NewSimpleFunction("exclaim", 1, 1, func(args ...any) (any, error) {
		return FormatValue(args[0]) + "!", nil
	})

	tests := []struct {
		name string
		expr string
		want any
	}{
		{"typed func", "pipe:title upper", "SHOP"},
		{"any func", "pipe:count double", 6},
		{"registered function value", "pipe:title fn", "shop!"},
		{"path source", "pipe:title nocall:upper", "SHOP"},
	}
	e := NewEvaluator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(context.Background(), tt.expr, ec)
			if err != nil {
				t.Fatalf("Evaluate(%q) error = %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q) = %#v, want %#v", tt.expr, got, tt.want)
			}
		})
	}

	for _, expr := range []string{"pipe:title", "pipe:title count", "pipe:title double", "pipe:title check"} {
		if _, err := e.Evaluate(context.Background(), expr, ec); err == nil {
			t.Errorf("Evaluate(%q) expected error", expr)
		}
	}
}

func TestEvaluate_CustomBuiltinAndPrefix(t *testing.T) {
	e := NewEvaluator(
		WithBuiltin("container", func(*ExpressionContext) any { return map[string]any{"a": 1} }),
		WithPrefix("upper", func(_ context.Context, body string, _ *ExpressionContext) (any, error) {
			return strings.ToUpper(body), nil
		}),
	)
	if got, _ := e.Evaluate(context.Background(), "container/a", testContext()); got != 1 {
		t.Errorf("container/a = %v, want 1", got)
	}
	if got, _ := e.Evaluate(context.Background(), "upper:abc", testContext()); got != "ABC" {
		t.Errorf("upper:abc = %v, want ABC", got)
	}
}

func TestEvaluate_ErrorBuiltin(t *testing.T) {
	ec := testContext()
	ec.Error = NewErrorInfo(NewEvaluationError("x", errors.New("boom")))

	e := NewEvaluator()
	got, err := e.Evaluate(context.Background(), "error/type", ec)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got != "*errors.errorString" {
		t.Errorf("error/type = %v", got)
	}
	if got, _ := e.Evaluate(context.Background(), "error/value", ec); !strings.Contains(got.(string), "boom") {
		t.Errorf("error/value = %v", got)
	}
}

func TestEvaluate_Attrs(t *testing.T) {
	doc, err := dom.ReadHTML(strings.NewReader(`<a href="/x" title="t">link</a>`), "")
	if err != nil {
		t.Fatal(err)
	}
	ec := NewRootContext(doc.DocumentElement(), nil)
	got, err := NewEvaluator().Evaluate(context.Background(), "attrs/href", ec)
	if err != nil || got != "/x" {
		t.Errorf("attrs/href = %v, %v", got, err)
	}
}

func TestLetter(t *testing.T) {
	tests := []struct {
		index int
		want  string
	}{
		{0, "a"},
		{1, "b"},
		{25, "z"},
		{26, "aa"},
		{27, "ab"},
		{51, "az"},
		{52, "ba"},
		{701, "zz"},
		{702, "aaa"},
	}
	for _, tt := range tests {
		if got := Letter(tt.index); got != tt.want {
			t.Errorf("Letter(%d) = %q, want %q", tt.index, got, tt.want)
		}
	}
}

func TestRoman(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "I"},
		{4, "IV"},
		{9, "IX"},
		{14, "XIV"},
		{40, "XL"},
		{1994, "MCMXCIV"},
		{0, ""},
	}
	for _, tt := range tests {
		if got := Roman(tt.n); got != tt.want {
			t.Errorf("Roman(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestRepetitionInfo(t *testing.T) {
	r := &RepetitionInfo{Name: "x", CurrentIndex: 2, Count: 3}

	checks := map[string]any{
		"index":  2,
		"number": 3,
		"even":   true,
		"odd":    false,
		"start":  false,
		"end":    true,
		"length": 3,
		"letter": "c",
		"Letter": "C",
		"roman":  "iii",
		"Roman":  "III",
	}
	for name, want := range checks {
		got, ok := r.GetValue(name)
		if !ok || got != want {
			t.Errorf("GetValue(%q) = %v, %v; want %v", name, got, ok, want)
		}
	}
}

func TestRepeatBuiltin(t *testing.T) {
	ec := testContext()
	child := ec.CreateChild(nil)
	child.Repetitions.Set("item", &RepetitionInfo{Name: "item", CurrentIndex: 0, Count: 2})

	got, err := NewEvaluator().Evaluate(context.Background(), "repeat/item/start", child)
	if err != nil || got != true {
		t.Errorf("repeat/item/start = %v, %v", got, err)
	}
}

func TestIsTruthy(t *testing.T) {
	var nilSlice []any
	var nilMap map[string]any
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, false},
		{"false", false, false},
		{"true", true, true},
		{"zero int", 0, false},
		{"int", 3, true},
		{"zero float", 0.0, false},
		{"empty string", "", false},
		{"string", "x", true},
		{"nil slice", nilSlice, false},
		{"nil map", nilMap, false},
		{"empty slice", []any{}, true},
		{"zero struct", account{}, false},
		{"struct", account{Owner: "x"}, true},
		{"default sentinel", Default, true},
	}
	for _, tt := range tests {
		if got := IsTruthy(tt.v); got != tt.want {
			t.Errorf("IsTruthy(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIterate(t *testing.T) {
	items, err := Iterate([]string{"a", "b"})
	if err != nil || len(items) != 2 || items[1] != "b" {
		t.Errorf("Iterate([]string) = %v, %v", items, err)
	}

	keys, err := Iterate(map[string]any{"b": 1, "a": 2})
	if err != nil || len(keys) != 2 || keys[0] != "a" {
		t.Errorf("Iterate(map) = %v, %v", keys, err)
	}

	arr, err := Iterate([2]float64{1.5, 2.5})
	if err != nil || len(arr) != 2 || arr[0] != 1.5 {
		t.Errorf("Iterate(array) = %v, %v", arr, err)
	}

	if _, err := Iterate("abc"); err == nil {
		t.Error("Iterate(string) expected error")
	}
	if _, err := Iterate(42); err == nil {
		t.Error("Iterate(int) expected error")
	}
}

func TestScope(t *testing.T) {
	parent := NewScope[any](nil)
	parent.Set("a", 1)
	child := NewScope(parent)
	child.Set("b", 2)
	child.Set("a", 3)

	if v, _ := child.Get("a"); v != 3 {
		t.Errorf("child a = %v, want 3", v)
	}
	if v, _ := parent.Get("a"); v != 1 {
		t.Errorf("parent a = %v, want 1 (child write leaked)", v)
	}
	if parent.Has("b") {
		t.Error("parent sees child binding")
	}
	if got := strings.Join(child.Names(), ","); got != "a,b" {
		t.Errorf("Names() = %q", got)
	}
}

func TestFunctions(t *testing.T) {
	tests := []struct {
		expr string
		want any
	}{
		{"expr:upper('abc')", "ABC"},
		{"expr:join(list(1, 2, 3), '-')", "1-2-3"},
		{"expr:len(range(5))", 5},
		{"expr:sum(list(1, 2, 3))", 6},
		{"expr:contains(list('a', 'b'), 'b')", true},
		{"expr:coalesce('', 0, 'x')", "x"},
		{"expr:round(2.6)", 3},
		{"expr:int('12')", 12},
		{"expr:str(5) + 'x'", "5x"},
	}
	e := NewEvaluator()
	for _, tt := range tests {
		got, err := e.Evaluate(context.Background(), tt.expr, testContext())
		if err != nil {
			t.Errorf("Evaluate(%q) error = %v", tt.expr, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Evaluate(%q) = %#v, want %#v", tt.expr, got, tt.want)
		}
	}
}
