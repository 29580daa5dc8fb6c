package main

import (
	"bytes"
	"fmt"
	"go/parser"
	"go/token"
	"path"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
	"github.com/dave/dst/dstutil"
)

// Site is one instrumented block.
type Site struct {
	ID      int    `json:"id"`
	CID     uint64 `json:"cid"`
	Package string `json:"package"`
	Func    string `json:"func"`
	Block   int    `json:"block"`
	Kind    string `json:"kind"`
	File    string `json:"file"`
}

// Metadata describes a whole instrumentation run. MapSize leaves room for the
// objective slot after the last site.
type Metadata struct {
	ImportPath string `json:"import_path"`
	MapSize    int    `json:"map_size"`
	Sites      []Site `json:"sites"`
}

// instrumenter numbers sites consecutively across every file it sees.
type instrumenter struct {
	importPath string
	next       int
	sites      []Site
}

func newInstrumenter(importPath string, base int) *instrumenter {
	return &instrumenter{importPath: importPath, next: base}
}

func (in *instrumenter) metadata() Metadata {
	return Metadata{ImportPath: in.importPath, MapSize: in.next + 1, Sites: in.sites}
}

// file inserts a Hit call at the top of every block of src.
func (in *instrumenter) file(name string, src []byte) ([]byte, error) {
	fset := token.NewFileSet()
	af, err := parser.ParseFile(fset, name, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	f, err := decorator.NewDecorator(fset).DecorateFile(af)
	if err != nil {
		return nil, fmt.Errorf("failed to decorate %s: %w", name, err)
	}
	pkg := in.ensureImport(f)

	packageName := f.Name.Name
	var currentFunc string
	blockCounter := 0
	blocks := make(map[dst.Node]int)

	hit := func(n dst.Node, kind string) dst.Stmt {
		block := blocks[n]
		h := xxhash.New()
		h.WriteString(packageName)
		h.WriteString(currentFunc)
		h.WriteString(strconv.Itoa(block))
		in.sites = append(in.sites, Site{
			ID:      in.next,
			CID:     h.Sum64(),
			Package: packageName,
			Func:    currentFunc,
			Block:   block,
			Kind:    kind,
			File:    name,
		})
		stmt := &dst.ExprStmt{
			X: &dst.CallExpr{
				Fun: &dst.SelectorExpr{
					X:   &dst.Ident{Name: pkg},
					Sel: &dst.Ident{Name: "Hit"},
				},
				Args: []dst.Expr{
					&dst.BasicLit{Kind: token.INT, Value: strconv.Itoa(in.next)},
				},
			},
		}
		in.next++
		return stmt
	}

	dstutil.Apply(f, func(c *dstutil.Cursor) bool {
		switch n := c.Node().(type) {
		case *dst.FuncDecl:
			currentFunc = n.Name.Name
			if n.Recv != nil && len(n.Recv.List) > 0 {
				currentFunc = recvName(n.Recv.List[0].Type) + "." + currentFunc
			}
			blockCounter = 0
		case *dst.BlockStmt, *dst.CaseClause, *dst.CommClause:
			blockCounter++
			blocks[n] = blockCounter
		}
		return true
	}, func(c *dstutil.Cursor) bool {
		switch n := c.Node().(type) {
		case *dst.BlockStmt:
			// Switch and select bodies hold clauses, not statements.
			if _, ok := c.Parent().(*dst.SwitchStmt); ok {
				return true
			}
			if _, ok := c.Parent().(*dst.TypeSwitchStmt); ok {
				return true
			}
			if _, ok := c.Parent().(*dst.SelectStmt); ok {
				return true
			}
			n.List = append([]dst.Stmt{hit(n, "block")}, n.List...)
		case *dst.CaseClause:
			n.Body = append([]dst.Stmt{hit(n, "case")}, n.Body...)
		case *dst.CommClause:
			n.Body = append([]dst.Stmt{hit(n, "case")}, n.Body...)
		}
		return true
	})

	var out bytes.Buffer
	if err := decorator.Fprint(&out, f); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// ensureImport adds the coverage import if needed and returns the name it is
// referenced by.
func (in *instrumenter) ensureImport(f *dst.File) string {
	quoted := strconv.Quote(in.importPath)
	for _, imp := range f.Imports {
		if imp.Path != nil && imp.Path.Value == quoted {
			if imp.Name != nil {
				return imp.Name.Name
			}
			return path.Base(in.importPath)
		}
	}
	importDecl := &dst.GenDecl{
		Tok: token.IMPORT,
		Specs: []dst.Spec{
			&dst.ImportSpec{
				Path: &dst.BasicLit{Kind: token.STRING, Value: quoted},
			},
		},
	}
	f.Decls = append([]dst.Decl{importDecl}, f.Decls...)
	return path.Base(in.importPath)
}

func recvName(e dst.Expr) string {
	switch t := e.(type) {
	case *dst.StarExpr:
		return recvName(t.X)
	case *dst.Ident:
		return t.Name
	case *dst.IndexExpr:
		return recvName(t.X)
	case *dst.IndexListExpr:
		return recvName(t.X)
	}
	return "?"
}
