package adapter

import (
	"go/ast"
	"go/parser"
	"go/token"
)

// GoFileAdapter encapsulates Go-specific parsing so the domain layer can
// focus on classification rules while delegating compilation details to
// an infrastructure component.
type GoFileAdapter interface {
	// Parse builds an AST using the provided file set and optional source bytes.
	Parse(fileSet *token.FileSet, filename string, src []byte) (*ast.File, error)

	// Functions lists every function and method declaration in the file,
	// in source order.
	Functions(fileSet *token.FileSet, file *ast.File) []FunctionDecl
}

// FunctionDecl is the location summary of one function declaration.
type FunctionDecl struct {
	Name      string
	Line      int
	EndLine   int
	Decl      *ast.FuncDecl
	IsMethod  bool
	Signature *ast.FuncType
}

// LocalGoFileAdapter provides a concrete GoFileAdapter backed by go/parser.
type LocalGoFileAdapter struct{}

// NewLocalGoFileAdapter constructs a LocalGoFileAdapter.
func NewLocalGoFileAdapter() *LocalGoFileAdapter {
	return &LocalGoFileAdapter{}
}

// Parse builds an AST for the provided filename/source pair.
func (a *LocalGoFileAdapter) Parse(fileSet *token.FileSet, filename string, src []byte) (*ast.File, error) {
	return parser.ParseFile(fileSet, filename, src, parser.ParseComments)
}

// Functions lists function and method declarations with their line spans.
func (a *LocalGoFileAdapter) Functions(fileSet *token.FileSet, file *ast.File) []FunctionDecl {
	var decls []FunctionDecl

	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}

		decls = append(decls, FunctionDecl{
			Name:      fn.Name.Name,
			Line:      fileSet.Position(fn.Pos()).Line,
			EndLine:   fileSet.Position(fn.End()).Line,
			Decl:      fn,
			IsMethod:  fn.Recv != nil,
			Signature: fn.Type,
		})
	}

	return decls
}
