package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := Execute(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersionCmdOutput(t *testing.T) {
	out, _, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	want := "zpt " + Version + " (" + runtime.Version() + ")"
	if strings.TrimSpace(out) != want {
		t.Fatalf("version output=%q want=%q", out, want)
	}
}

func TestRootCmdHasSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"render", "bulk", "serve", "version"} {
		if _, _, err := root.Find([]string{name}); err != nil {
			t.Errorf("find %s subcommand: %v", name, err)
		}
	}
}

func TestRenderCmd(t *testing.T) {
	dir := t.TempDir()
	tmpl := write(t, dir, "page.html",
		`<h1 tal:content="here/title">x</h1><p tal:content="options/lang">x</p>`)
	model := write(t, dir, "model.yaml", "title: Orders\n")

	out, _, err := run(t, "render", tmpl, "--model", model, "--opt", "lang=en", "--log-level", "off")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if want := `<h1>Orders</h1><p>en</p>`; out != want {
		t.Errorf("render output = %q, want %q", out, want)
	}
}

func TestRenderCmdToFile(t *testing.T) {
	dir := t.TempDir()
	tmpl := write(t, dir, "page.html", `<p tal:content="string:ok">x</p>`)
	outPath := filepath.Join(dir, "out.html")

	if _, _, err := run(t, "render", tmpl, "-o", outPath, "--log-level", "off"); err != nil {
		t.Fatalf("render: %v", err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `<p>ok</p>` {
		t.Errorf("output file = %q", data)
	}
}

func TestRenderCmdStrictFromConfig(t *testing.T) {
	dir := t.TempDir()
	tmpl := write(t, dir, "page.html", `<p tal:content="here/missing">x</p>`)
	config := write(t, dir, "zpt.yaml", "strict_mode: true\nlog_level: off\n")

	if _, _, err := run(t, "render", tmpl, "--config", config); err == nil {
		t.Error("expected strict mode from the config file to fail the render")
	}
	out, _, err := run(t, "render", tmpl, "--config", config, "--strict=false")
	if err != nil {
		t.Fatalf("render with --strict=false: %v", err)
	}
	if out != `<p></p>` {
		t.Errorf("render output = %q", out)
	}
}

func TestRenderCmdErrors(t *testing.T) {
	dir := t.TempDir()
	tmpl := write(t, dir, "page.html", `<p>x</p>`)

	tests := []struct {
		name string
		args []string
	}{
		{"no template", []string{"render"}},
		{"missing template", []string{"render", filepath.Join(dir, "nope.html")}},
		{"bad option", []string{"render", tmpl, "--opt", "novalue"}},
		{"bad log level", []string{"render", tmpl, "--log-level", "loud"}},
		{"missing model", []string{"render", tmpl, "--model", filepath.Join(dir, "nope.yaml")}},
		{"missing config", []string{"render", tmpl, "--config", filepath.Join(dir, "nope.yaml")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := run(t, tt.args...); err == nil {
				t.Errorf("%v: expected an error", tt.args)
			}
		})
	}
}

func TestBulkCmd(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	write(t, in, "a.html", `<p tal:content="options/site">x</p>`)
	write(t, in, "b.xml", `<r/>`)
	write(t, in, "skip/c.html", `<p>c</p>`)

	stdout, _, err := run(t, "bulk", in, out,
		"--include", "*.html", "--exclude", "skip/*", "--ext", ".out",
		"--opt", "site=example", "--log-level", "off", "-w", "2")
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if !strings.Contains(stdout, "rendered 1 of 1 templates") {
		t.Errorf("bulk output = %q", stdout)
	}
	data, err := os.ReadFile(filepath.Join(out, "a.out"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `<p>example</p>` {
		t.Errorf("a.out = %q", data)
	}
}

func TestBulkCmdReportsFailures(t *testing.T) {
	in := t.TempDir()
	write(t, in, "good.html", `<p>ok</p>`)
	write(t, in, "bad.html", `<p tal:define="x">x</p>`)

	stdout, _, err := run(t, "bulk", in, t.TempDir(), "--log-level", "off")
	if err == nil {
		t.Fatal("expected bulk to fail")
	}
	if !strings.Contains(stdout, "rendered 1 of 2 templates") {
		t.Errorf("bulk output = %q", stdout)
	}
}

func TestServeCmdRejectsMissingDirectory(t *testing.T) {
	_, _, err := run(t, "serve", filepath.Join(t.TempDir(), "missing"), "--log-level", "off")
	if err == nil {
		t.Error("expected serve to fail for a missing directory")
	}
}

func TestRenderCmdSourceAnnotation(t *testing.T) {
	dir := t.TempDir()
	tmpl := write(t, dir, "page.html", `<p>x</p>`)

	out, _, err := run(t, "render", tmpl, "--source-annotation", "--log-level", "off")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasPrefix(out, "<!--\n") || !strings.Contains(out, tmpl) || !strings.HasSuffix(out, "--><p>x</p>") {
		t.Errorf("render output = %q", out)
	}
}
