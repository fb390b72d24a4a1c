// Package domain provides the core analysis logic for cache-opportunity
// detection: purity classification, hotspot extraction, candidate
// ranking and transactional source mutation.
package domain

import (
	"go/ast"
	"go/token"
	"log/slog"
	"strconv"
	"strings"

	"memoscope.dev/pkg/memoscope/internal/adapter"
	m "memoscope.dev/pkg/memoscope/internal/model"
	"memoscope.dev/pkg/memoscope/pkg/memo"
)

// ioCallNames is the default I/O surface: a call whose terminal
// identifier matches disqualifies the enclosing function.
var ioCallNames = map[string]bool{
	"Print": true, "Printf": true, "Println": true,
	"Fprint": true, "Fprintf": true, "Fprintln": true,
	"Open": true, "OpenFile": true, "Create": true,
	"Read": true, "ReadFile": true, "ReadAll": true, "ReadDir": true,
	"Write": true, "WriteFile": true, "WriteString": true,
	"Remove": true, "RemoveAll": true, "Mkdir": true, "MkdirAll": true,
	"Command": true, "CommandContext": true, "Run": true, "Output": true, "CombinedOutput": true,
	"Dial": true, "DialContext": true, "Listen": true,
	"Getenv": true, "Setenv": true, "Exec": true, "Query": true, "QueryRow": true,
}

// nonDeterministicCalls is the default non-determinism surface, checked
// against the call's terminal identifier qualified by its package
// identifier where one is present.
var nonDeterministicCalls = map[string]bool{
	"Now": true, "Since": true, "Until": true, "Sleep": true,
	"Int": true, "Intn": true, "Int31": true, "Int63": true, "Int64": true,
	"Uint32": true, "Uint64": true, "Float32": true, "Float64": true,
	"Perm": true, "Shuffle": true, "NormFloat64": true, "ExpFloat64": true,
	"New": true, "NewString": true, "NewRandom": true, "NewUUID": true,
}

// nonDeterministicPkgs qualifies nonDeterministicCalls: a selector call
// only counts when its package identifier is one of these.
var nonDeterministicPkgs = map[string]bool{
	"time": true, "rand": true, "uuid": true,
}

// cryptoTokens flag hashing or cryptography work, an expense indicator.
var cryptoTokens = []string{"hash", "crypt", "encrypt", "decrypt", "sha", "md5", "blake", "hmac"}

// Memoization-wrapper recognition is a closed allow-list over the
// constructor's package and function identifiers, not reflection.
var (
	memoConstructorPkgs  = map[string]bool{"memo": true, "lru": true, "cache": true}
	memoConstructorNames = map[string]bool{"New": true, "NewNamed": true, "NewLRU": true, "NewCache": true}
	memoLookupNames      = map[string]bool{"Get": true, "Lookup": true}
)

// Classifier performs best-effort purity classification over a single
// file's syntax tree. Stateless between files; re-running on unchanged
// input yields identical results.
type Classifier struct {
	goFiles adapter.GoFileAdapter
}

// NewClassifier constructs a Classifier.
func NewClassifier(goFiles adapter.GoFileAdapter) *Classifier {
	return &Classifier{goFiles: goFiles}
}

// ClassifyFile analyzes one source file. The boolean result is false
// when the file fails to parse; such files are skipped, never fatal to
// the batch.
func (c *Classifier) ClassifyFile(path m.Path, src []byte) (m.FileReport, bool) {
	fset := token.NewFileSet()

	file, err := c.goFiles.Parse(fset, string(path), src)
	if err != nil {
		slog.Warn("skipping unparseable file", "path", path, "error", err)
		return m.FileReport{}, false
	}

	report := m.FileReport{File: m.File{Path: path}}
	memoVars := collectMemoVars(file)
	packageVars := collectPackageVars(file)
	modulePath := InferModulePath(path)

	for _, fn := range c.goFiles.Functions(fset, file) {
		if capacity, cached := existingCacheCapacity(fn.Decl, memoVars); cached {
			report.ExistingCaches = append(report.ExistingCaches, m.ExistingCacheCandidate{
				File:         path,
				FunctionName: fn.Name,
				Line:         fn.Line,
				ModulePath:   modulePath,
				Capacity:     capacity,
			})

			continue
		}

		disqualifiers := findDisqualifiers(fn.Decl, packageVars)

		candidate := m.PureFunctionCandidate{
			File:          path,
			FunctionName:  fn.Name,
			Line:          fn.Line,
			IsPure:        len(disqualifiers) == 0,
			Disqualifiers: disqualifiers,
		}

		if candidate.IsPure {
			candidate.Indicators = detectExpenseIndicators(fn.Decl)
		}

		report.Candidates = append(report.Candidates, candidate)
	}

	return report, true
}

// collectPackageVars gathers the names of package-level vars declared in
// this file. Assigning to one of them from inside a function body is a
// purity disqualifier.
func collectPackageVars(file *ast.File) map[string]bool {
	vars := make(map[string]bool)

	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.VAR {
			continue
		}

		for _, spec := range gen.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}

			for _, name := range vs.Names {
				vars[name.Name] = true
			}
		}
	}

	return vars
}

// collectMemoVars maps package-level var names to the declared capacity
// of the memoization wrapper they were initialized with.
func collectMemoVars(file *ast.File) map[string]int {
	memoVars := make(map[string]int)

	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.VAR {
			continue
		}

		for _, spec := range gen.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok || len(vs.Names) != 1 || len(vs.Values) != 1 {
				continue
			}

			call, ok := vs.Values[0].(*ast.CallExpr)
			if !ok {
				continue
			}

			if capacity, ok := memoConstructorCapacity(call); ok {
				memoVars[vs.Names[0].Name] = capacity
			}
		}
	}

	return memoVars
}

// memoConstructorCapacity matches a call against the wrapper allow-list
// and extracts the declared capacity: an explicit integer literal, the
// package default when no capacity argument is given, or the unbounded
// sentinel for memo.Unbounded, non-positive literals and anything that
// is not a compile-time constant.
func memoConstructorCapacity(call *ast.CallExpr) (int, bool) {
	fun := call.Fun

	// Strip generic instantiation: memo.New[int, string](...)
	switch idx := fun.(type) {
	case *ast.IndexExpr:
		fun = idx.X
	case *ast.IndexListExpr:
		fun = idx.X
	}

	switch f := fun.(type) {
	case *ast.SelectorExpr:
		pkg, ok := f.X.(*ast.Ident)
		if !ok || !memoConstructorPkgs[pkg.Name] || !memoConstructorNames[f.Sel.Name] {
			return 0, false
		}
	case *ast.Ident:
		if !memoConstructorNames[f.Name] {
			return 0, false
		}
	default:
		return 0, false
	}

	args := call.Args
	// NewNamed carries a leading name argument.
	if len(args) > 0 {
		if lit, ok := args[0].(*ast.BasicLit); ok && lit.Kind == token.STRING {
			args = args[1:]
		}
	}

	if len(args) == 0 {
		return memo.DefaultCapacity, true
	}

	return capacityFromExpr(args[0]), true
}

func capacityFromExpr(expr ast.Expr) int {
	switch e := expr.(type) {
	case *ast.BasicLit:
		if e.Kind == token.INT {
			if v, err := strconv.Atoi(e.Value); err == nil && v > 0 {
				return v
			}
		}

		return m.Unbounded
	default:
		// memo.Unbounded, negative literals, or a capacity held in some
		// variable: not a resolvable bound, so report the sentinel.
		return m.Unbounded
	}
}

// existingCacheCapacity reports whether fn routes through a recognized
// wrapper var and, if so, that wrapper's declared capacity.
func existingCacheCapacity(fn *ast.FuncDecl, memoVars map[string]int) (int, bool) {
	if fn.Body == nil || len(memoVars) == 0 {
		return 0, false
	}

	capacity := 0
	found := false

	ast.Inspect(fn.Body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}

		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok || !memoLookupNames[sel.Sel.Name] {
			return true
		}

		recv, ok := sel.X.(*ast.Ident)
		if !ok {
			return true
		}

		if c, ok := memoVars[recv.Name]; ok {
			capacity = c
			found = true

			return false
		}

		return true
	})

	return capacity, found
}

// findDisqualifiers walks the function body and accumulates every purity
// violation. All violations are collected so reports are complete; there
// is no short-circuit on the first hit.
func findDisqualifiers(fn *ast.FuncDecl, packageVars map[string]bool) []string {
	if fn.Body == nil {
		// Declarations without bodies (assembly stubs) are opaque.
		return []string{"no function body"}
	}

	var disqualifiers []string

	locals := collectLocalNames(fn)

	ast.Inspect(fn.Body, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.CallExpr:
			name, pkg := callIdentifiers(node)
			if name == "" {
				return true
			}

			if ioCallNames[name] {
				disqualifiers = append(disqualifiers, "I/O operation: "+qualified(pkg, name))
			}

			if nonDeterministicCalls[name] && (pkg == "" || nonDeterministicPkgs[pkg]) {
				// Bare New is too common to flag without a package qualifier.
				if name != "New" || pkg != "" {
					disqualifiers = append(disqualifiers, "non-deterministic call: "+qualified(pkg, name))
				}
			}
		case *ast.AssignStmt:
			for _, lhs := range node.Lhs {
				if name, ok := mutatedPackageVar(lhs, packageVars, locals); ok {
					disqualifiers = append(disqualifiers, "package-level state mutation: "+name)
				}
			}
		case *ast.IncDecStmt:
			if name, ok := mutatedPackageVar(node.X, packageVars, locals); ok {
				disqualifiers = append(disqualifiers, "package-level state mutation: "+name)
			}
		case *ast.GoStmt:
			disqualifiers = append(disqualifiers, "spawns goroutine")
		}

		return true
	})

	return disqualifiers
}

// collectLocalNames gathers identifiers declared inside the function:
// parameters, receivers, named results, := targets and var decls. A
// package-level name shadowed by one of these is not global state.
func collectLocalNames(fn *ast.FuncDecl) map[string]bool {
	locals := make(map[string]bool)

	addFields := func(fl *ast.FieldList) {
		if fl == nil {
			return
		}

		for _, field := range fl.List {
			for _, name := range field.Names {
				locals[name.Name] = true
			}
		}
	}

	addFields(fn.Recv)
	addFields(fn.Type.Params)
	addFields(fn.Type.Results)

	ast.Inspect(fn.Body, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.AssignStmt:
			if node.Tok == token.DEFINE {
				for _, lhs := range node.Lhs {
					if ident, ok := lhs.(*ast.Ident); ok {
						locals[ident.Name] = true
					}
				}
			}
		case *ast.DeclStmt:
			if gen, ok := node.Decl.(*ast.GenDecl); ok && gen.Tok == token.VAR {
				for _, spec := range gen.Specs {
					if vs, ok := spec.(*ast.ValueSpec); ok {
						for _, name := range vs.Names {
							locals[name.Name] = true
						}
					}
				}
			}
		case *ast.RangeStmt:
			for _, expr := range []ast.Expr{node.Key, node.Value} {
				if ident, ok := expr.(*ast.Ident); ok {
					locals[ident.Name] = true
				}
			}
		}

		return true
	})

	return locals
}

// mutatedPackageVar resolves an assignment target to its root identifier
// and reports whether that identifier is an unshadowed package-level var.
func mutatedPackageVar(expr ast.Expr, packageVars, locals map[string]bool) (string, bool) {
	root := rootIdent(expr)
	if root == nil {
		return "", false
	}

	if locals[root.Name] {
		return "", false
	}

	if packageVars[root.Name] {
		return root.Name, true
	}

	return "", false
}

func rootIdent(expr ast.Expr) *ast.Ident {
	for {
		switch e := expr.(type) {
		case *ast.Ident:
			return e
		case *ast.SelectorExpr:
			expr = e.X
		case *ast.IndexExpr:
			expr = e.X
		case *ast.StarExpr:
			expr = e.X
		case *ast.ParenExpr:
			expr = e.X
		default:
			return nil
		}
	}
}

// callIdentifiers returns the terminal identifier of a call and, for
// selector calls on a plain identifier, the qualifying name.
func callIdentifiers(call *ast.CallExpr) (name, pkg string) {
	switch fun := call.Fun.(type) {
	case *ast.Ident:
		return fun.Name, ""
	case *ast.SelectorExpr:
		if x, ok := fun.X.(*ast.Ident); ok {
			return fun.Sel.Name, x.Name
		}

		return fun.Sel.Name, ""
	default:
		return "", ""
	}
}

func qualified(pkg, name string) string {
	if pkg == "" {
		return name
	}

	return pkg + "." + name
}

// detectExpenseIndicators reports syntactic signs of computational
// expense. Informational only: indicators never filter a candidate.
func detectExpenseIndicators(fn *ast.FuncDecl) []m.ExpenseIndicator {
	var indicators []m.ExpenseIndicator

	if maxLoopDepth(fn.Body, 0) >= 2 {
		indicators = append(indicators, m.IndicatorNestedLoops)
	}

	if isRecursive(fn) {
		indicators = append(indicators, m.IndicatorRecursion)
	}

	if hasCryptoCalls(fn) {
		indicators = append(indicators, m.IndicatorCrypto)
	}

	if hasNestedCollect(fn) {
		indicators = append(indicators, m.IndicatorComprehension)
	}

	return indicators
}

func maxLoopDepth(n ast.Node, depth int) int {
	if n == nil {
		return depth
	}

	maxDepth := depth

	ast.Inspect(n, func(child ast.Node) bool {
		switch loop := child.(type) {
		case *ast.ForStmt:
			if d := maxLoopDepth(loop.Body, depth+1); d > maxDepth {
				maxDepth = d
			}

			return false
		case *ast.RangeStmt:
			if d := maxLoopDepth(loop.Body, depth+1); d > maxDepth {
				maxDepth = d
			}

			return false
		}

		return true
	})

	return maxDepth
}

func isRecursive(fn *ast.FuncDecl) bool {
	recursive := false

	ast.Inspect(fn.Body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}

		name, _ := callIdentifiers(call)
		if name == fn.Name.Name {
			recursive = true

			return false
		}

		return true
	})

	return recursive
}

func hasCryptoCalls(fn *ast.FuncDecl) bool {
	found := false

	ast.Inspect(fn.Body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}

		name, pkg := callIdentifiers(call)
		lower := strings.ToLower(qualified(pkg, name))

		for _, tok := range cryptoTokens {
			if strings.Contains(lower, tok) {
				found = true

				return false
			}
		}

		return true
	})

	return found
}

// hasNestedCollect detects a range loop whose body ranges again and
// accumulates into a collection, the closest Go analog of a
// multi-generator comprehension.
func hasNestedCollect(fn *ast.FuncDecl) bool {
	found := false

	ast.Inspect(fn.Body, func(n ast.Node) bool {
		outer, ok := n.(*ast.RangeStmt)
		if !ok {
			return true
		}

		ast.Inspect(outer.Body, func(inner ast.Node) bool {
			innerRange, ok := inner.(*ast.RangeStmt)
			if !ok {
				return true
			}

			if rangeBodyCollects(innerRange) {
				found = true

				return false
			}

			return true
		})

		return !found
	})

	return found
}

func rangeBodyCollects(loop *ast.RangeStmt) bool {
	collects := false

	ast.Inspect(loop.Body, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.CallExpr:
			if ident, ok := node.Fun.(*ast.Ident); ok && ident.Name == "append" {
				collects = true

				return false
			}
		case *ast.AssignStmt:
			for _, lhs := range node.Lhs {
				if _, ok := lhs.(*ast.IndexExpr); ok {
					collects = true

					return false
				}
			}
		}

		return true
	})

	return collects
}
