package main

import (
	"go/parser"
	"go/token"
	"strings"
	"testing"
)

const sample = `package demo

func F(x int) int {
	if x > 0 {
		return 1
	}
	switch x {
	case 0:
		return 0
	default:
	}
	return -1
}
`

func TestInstrumentBlocks(t *testing.T) {
	in := newInstrumenter("alma.local/greybox/coverage", 0)
	out, err := in.file("demo.go", []byte(sample))
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	src := string(out)
	if _, err := parser.ParseFile(token.NewFileSet(), "demo.go", out, 0); err != nil {
		t.Fatalf("output does not parse: %v\n%s", err, src)
	}
	if n := strings.Count(src, "coverage.Hit("); n != 4 {
		t.Errorf("got %d hits, want 4:\n%s", n, src)
	}
	if !strings.Contains(src, `"alma.local/greybox/coverage"`) {
		t.Errorf("import missing:\n%s", src)
	}
	for _, want := range []string{"coverage.Hit(0)", "coverage.Hit(3)"} {
		if !strings.Contains(src, want) {
			t.Errorf("missing %s:\n%s", want, src)
		}
	}

	md := in.metadata()
	if md.MapSize != 5 || len(md.Sites) != 4 {
		t.Fatalf("metadata = %+v", md)
	}
	kinds := map[string]int{}
	for i, s := range md.Sites {
		if s.ID != i || s.Func != "F" || s.Package != "demo" || s.File != "demo.go" {
			t.Errorf("site %d = %+v", i, s)
		}
		kinds[s.Kind]++
	}
	if kinds["block"] != 2 || kinds["case"] != 2 {
		t.Errorf("kinds = %v", kinds)
	}
}

func TestInstrumentContinuesNumbering(t *testing.T) {
	in := newInstrumenter("alma.local/greybox/coverage", 10)
	if _, err := in.file("a.go", []byte("package a\n\nfunc A() {}\n")); err != nil {
		t.Fatal(err)
	}
	out, err := in.file("b.go", []byte("package a\n\nfunc (r *T) B() {}\n\ntype T struct{}\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "coverage.Hit(11)") {
		t.Errorf("second file not numbered after the first:\n%s", out)
	}
	md := in.metadata()
	if md.MapSize != 13 || md.Sites[1].Func != "T.B" {
		t.Errorf("metadata = %+v", md)
	}
	if md.Sites[0].CID == md.Sites[1].CID {
		t.Errorf("sites share a CID")
	}
}

func TestInstrumentKeepsAlias(t *testing.T) {
	src := "package a\n\nimport cov \"alma.local/greybox/coverage\"\n\nfunc A() { cov.Objective() }\n"
	in := newInstrumenter("alma.local/greybox/coverage", 0)
	out, err := in.file("a.go", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "cov.Hit(0)") {
		t.Errorf("alias not used:\n%s", out)
	}
	if strings.Count(string(out), "alma.local/greybox/coverage") != 1 {
		t.Errorf("import duplicated:\n%s", out)
	}
}

func TestInstrumentRejectsBadSource(t *testing.T) {
	in := newInstrumenter("alma.local/greybox/coverage", 0)
	for _, src := range []string{"package", "package a\n\nfunc A() { if {\n"} {
		if _, err := in.file("bad.go", []byte(src)); err == nil {
			t.Errorf("expected a parse error for %q", src)
		}
	}
	if md := in.metadata(); len(md.Sites) != 0 || md.MapSize != 1 {
		t.Errorf("rejected source left sites behind: %+v", md)
	}
}
