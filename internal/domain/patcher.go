package domain

import (
	"bytes"
	"context"
	"fmt"
	"go/ast"
	"go/printer"
	"go/token"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"memoscope.dev/pkg/memoscope/internal/adapter"
	m "memoscope.dev/pkg/memoscope/internal/model"
)

// memoImportPath is the wrapper package the patcher injects, and
// memoModulePath the module requirement that makes it resolve.
const (
	memoImportPath = "memoscope.dev/pkg/memoscope/pkg/memo"
	memoModulePath = "memoscope.dev/pkg/memoscope"
)

const backupSuffix = ".memoscope_backup"

// cacheStatName qualifies a candidate's stats name with its file so
// same-named functions in different files never share counters.
func cacheStatName(file m.Path, functionName string) string {
	return string(file) + ":" + functionName
}

// SourcePatcher temporarily rewrites source files to route a candidate
// function through a memoization wrapper. All modifications live on a
// disposable git branch: Start opens the session, End always restores
// the pre-session branch and deletes the isolation branch.
//
// Not safe for concurrent use against the same repository; the
// clean-tree precondition at Start enforces one session per tree.
type SourcePatcher struct {
	repoRoot m.Path
	git      adapter.GitAdapter
	fs       adapter.SourceFSAdapter
	goFiles  adapter.GoFileAdapter

	gomod         adapter.GoModAdapter
	memoModuleDir string

	branchName     string
	originalBranch string
	backups        map[m.Path]m.Path
}

// NewSourcePatcher constructs a patcher for the repository at repoRoot.
func NewSourcePatcher(repoRoot m.Path, git adapter.GitAdapter, fs adapter.SourceFSAdapter, goFiles adapter.GoFileAdapter) *SourcePatcher {
	return &SourcePatcher{
		repoRoot: repoRoot,
		git:      git,
		fs:       fs,
		goFiles:  goFiles,
		backups:  make(map[m.Path]m.Path),
	}
}

// WithModuleProvision makes ApplyCacheWrapper also require the wrapper
// module in the target's go.mod, replaced by the local checkout at dir
// so the fresh benchmark process builds offline.
func (p *SourcePatcher) WithModuleProvision(gomod adapter.GoModAdapter, dir string) *SourcePatcher {
	p.gomod = gomod
	p.memoModuleDir = dir

	return p
}

// Start opens a mutation session. The repository must be git-controlled
// with a clean working tree; this is a hard precondition, reported as a
// reason string and never retried. On success a uniquely named isolation
// branch is created and checked out.
func (p *SourcePatcher) Start(ctx context.Context) (bool, string) {
	if !p.git.IsRepository(ctx, p.repoRoot) {
		return false, "not a git repository"
	}

	branch, err := p.git.CurrentBranch(ctx, p.repoRoot)
	if err != nil {
		return false, fmt.Sprintf("cannot determine current branch: %v", err)
	}

	// A detached HEAD reports the literal "HEAD": there is no branch to
	// restore, so End could not roll the tree back.
	if branch == "HEAD" {
		return false, "detached HEAD (no branch to restore after the session)"
	}

	clean, err := p.git.IsClean(ctx, p.repoRoot)
	if err != nil {
		return false, fmt.Sprintf("cannot read working tree status: %v", err)
	}

	if !clean {
		return false, "working tree not clean (uncommitted changes)"
	}

	name := "memoscope/cache-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

	if err := p.git.CreateBranch(ctx, p.repoRoot, name); err != nil {
		return false, fmt.Sprintf("failed to create isolation branch: %v", err)
	}

	p.originalBranch = branch
	p.branchName = name

	slog.Debug("mutation session opened", "branch", name, "from", branch)

	return true, ""
}

// End closes the session: force-checkout of the original branch
// (discarding everything on the isolation branch) and deletion of the
// isolation branch. Best-effort by contract — End typically runs from a
// deferred cleanup path and must never mask the caller's primary
// result, so failures are logged and swallowed. Safe to call
// redundantly and after a failed Start.
func (p *SourcePatcher) End(ctx context.Context) {
	p.RestoreAll()

	if p.branchName == "" || p.originalBranch == "" {
		return
	}

	if err := p.git.ForceCheckout(ctx, p.repoRoot, p.originalBranch); err != nil {
		slog.Error("failed to restore original branch", "branch", p.originalBranch, "error", err)
	}

	if err := p.git.DeleteBranch(ctx, p.repoRoot, p.branchName); err != nil {
		slog.Error("failed to delete isolation branch", "branch", p.branchName, "error", err)
	}

	p.branchName = ""
	p.originalBranch = ""
}

// ApplyCacheWrapper routes functionName in file through a memo cache of
// the given capacity and commits the edit to the isolation branch.
// Returns false — never panics or errors out — on parse failure, a
// missing or ineligible function, or write/commit failure: mutation is
// best-effort and the caller treats false as "candidate not validated".
func (p *SourcePatcher) ApplyCacheWrapper(ctx context.Context, file m.Path, functionName string, capacity int) bool {
	src, err := p.fs.ReadFile(file)
	if err != nil {
		slog.Warn("cannot read mutation target", "file", file, "error", err)
		return false
	}

	patched, ok := p.rewriteSource(file, src, functionName, capacity)
	if !ok {
		return false
	}

	if err := p.fs.WriteFile(file, patched, 0o600); err != nil {
		slog.Warn("cannot write mutation target", "file", file, "error", err)
		return false
	}

	committed := []m.Path{file}

	if p.gomod != nil {
		changed, err := p.gomod.EnsureRequirement(ctx, p.repoRoot, memoModulePath, p.memoModuleDir)
		if err != nil {
			slog.Warn("cannot provision wrapper module", "repo", p.repoRoot, "error", err)
			return false
		}

		if changed {
			committed = append(committed, "go.mod")
		}
	}

	message := fmt.Sprintf("cache analysis: add memo wrapper to %s", functionName)
	if err := p.git.Commit(ctx, p.repoRoot, message, committed...); err != nil {
		slog.Warn("cannot commit mutation", "file", file, "error", err)
		return false
	}

	return true
}

// sourceEdit is one pending byte-offset edit against the original text.
type sourceEdit struct {
	offset int
	length int // bytes replaced; 0 for pure insertion
	text   string
}

// rewriteSource re-parses the file to confirm the target still exists,
// then computes structured edits against the recorded token offsets:
// the wrapper import, the cache var plus front-end func, and the rename
// of the original declaration.
func (p *SourcePatcher) rewriteSource(file m.Path, src []byte, functionName string, capacity int) ([]byte, bool) {
	fset := token.NewFileSet()

	parsed, err := p.goFiles.Parse(fset, string(file), src)
	if err != nil {
		slog.Warn("mutation target failed to parse", "file", file, "error", err)
		return nil, false
	}

	var target *ast.FuncDecl

	for _, fn := range p.goFiles.Functions(fset, parsed) {
		if fn.Name == functionName && !fn.IsMethod {
			target = fn.Decl
			break
		}
	}

	if target == nil {
		slog.Warn("mutation target not found", "file", file, "function", functionName)
		return nil, false
	}

	if !wrappable(target) {
		slog.Debug("function signature not wrappable", "file", file, "function", functionName)
		return nil, false
	}

	uncachedName := lowerFirst(functionName) + "Uncached"
	cacheVarName := lowerFirst(functionName) + "Memo"

	if declaredNames(parsed)[uncachedName] || declaredNames(parsed)[cacheVarName] {
		slog.Debug("wrapper names already taken", "file", file, "function", functionName)
		return nil, false
	}

	wrapper, ok := renderWrapper(fset, target, functionName, cacheStatName(file, functionName), uncachedName, cacheVarName, capacity)
	if !ok {
		return nil, false
	}

	var edits []sourceEdit

	if imp, ok := importEdit(fset, parsed); ok {
		edits = append(edits, imp)
	}

	insertAt := fset.Position(target.Pos()).Offset
	if target.Doc != nil {
		insertAt = fset.Position(target.Doc.Pos()).Offset
	}

	edits = append(edits, sourceEdit{offset: insertAt, text: wrapper})

	namePos := fset.Position(target.Name.Pos()).Offset
	edits = append(edits, sourceEdit{offset: namePos, length: len(functionName), text: uncachedName})

	return applyEdits(src, edits), true
}

// wrappable reports whether the signature fits the generated wrapper:
// exactly one named, non-variadic parameter of a plain (comparable)
// named type, and exactly one result.
func wrappable(fn *ast.FuncDecl) bool {
	params := fn.Type.Params
	if params == nil || len(params.List) != 1 || len(params.List[0].Names) != 1 {
		return false
	}

	switch params.List[0].Type.(type) {
	case *ast.Ident, *ast.SelectorExpr:
	default:
		return false
	}

	results := fn.Type.Results

	return results != nil && len(results.List) == 1 && len(results.List[0].Names) == 0
}

// renderWrapper produces the source block inserted above the renamed
// function: the cache var, registered under statName, and a same-name
// front-end.
func renderWrapper(fset *token.FileSet, fn *ast.FuncDecl, name, statName, uncachedName, cacheVarName string, capacity int) (string, bool) {
	param := fn.Type.Params.List[0]
	paramName := param.Names[0].Name

	paramType, ok := renderExpr(fset, param.Type)
	if !ok {
		return "", false
	}

	resultType, ok := renderExpr(fset, fn.Type.Results.List[0].Type)
	if !ok {
		return "", false
	}

	capacityExpr := fmt.Sprintf("%d", capacity)
	if capacity <= 0 {
		capacityExpr = "memo.Unbounded"
	}

	var b strings.Builder

	fmt.Fprintf(&b, "var %s = memo.NewNamed[%s, %s](%q, %s)\n\n", cacheVarName, paramType, resultType, statName, capacityExpr)
	fmt.Fprintf(&b, "func %s(%s %s) %s { return %s.Get(%s, %s) }\n\n", name, paramName, paramType, resultType, cacheVarName, paramName, uncachedName)

	return b.String(), true
}

func renderExpr(fset *token.FileSet, expr ast.Expr) (string, bool) {
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, fset, expr); err != nil {
		return "", false
	}

	return buf.String(), true
}

// importEdit ensures the memo package is imported: merged into an
// existing parenthesized import block when one exists, otherwise a new
// import statement after the package clause (which already follows any
// leading module documentation).
func importEdit(fset *token.FileSet, file *ast.File) (sourceEdit, bool) {
	for _, imp := range file.Imports {
		if strings.Trim(imp.Path.Value, `"`) == memoImportPath {
			return sourceEdit{}, false
		}
	}

	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.IMPORT {
			continue
		}

		if gen.Lparen.IsValid() {
			offset := fset.Position(gen.Rparen).Offset

			return sourceEdit{offset: offset, text: fmt.Sprintf("\t%q\n", memoImportPath)}, true
		}

		// Single-line import: append a second statement after it.
		offset := fset.Position(gen.End()).Offset

		return sourceEdit{offset: offset, text: fmt.Sprintf("\nimport %q", memoImportPath)}, true
	}

	offset := fset.Position(file.Name.End()).Offset

	return sourceEdit{offset: offset, text: fmt.Sprintf("\n\nimport %q", memoImportPath)}, true
}

// applyEdits applies edits back-to-front so earlier offsets stay valid.
func applyEdits(src []byte, edits []sourceEdit) []byte {
	sort.Slice(edits, func(i, j int) bool {
		return edits[i].offset > edits[j].offset
	})

	out := append([]byte(nil), src...)

	for _, edit := range edits {
		var next []byte

		next = append(next, out[:edit.offset]...)
		next = append(next, edit.text...)
		next = append(next, out[edit.offset+edit.length:]...)
		out = next
	}

	return out
}

func declaredNames(file *ast.File) map[string]bool {
	names := make(map[string]bool)

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			names[d.Name.Name] = true
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				if vs, ok := spec.(*ast.ValueSpec); ok {
					for _, n := range vs.Names {
						names[n.Name] = true
					}
				}
			}
		}
	}

	return names
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}

	r := []rune(s)
	r[0] = unicode.ToLower(r[0])

	return string(r)
}

// BackupFile copies file aside so it can be restored without version
// control. VCS-independent fallback for trees where branch isolation is
// unavailable; tracked in the per-session backup map.
func (p *SourcePatcher) BackupFile(file m.Path) bool {
	if _, ok := p.backups[file]; ok {
		return true
	}

	backup := file + backupSuffix
	if err := p.fs.CopyFile(file, backup); err != nil {
		slog.Warn("backup failed", "file", file, "error", err)
		return false
	}

	p.backups[file] = backup

	return true
}

// RestoreFile puts the backed-up contents back and deletes the backup.
func (p *SourcePatcher) RestoreFile(file m.Path) bool {
	backup, ok := p.backups[file]
	if !ok {
		return false
	}

	if p.fs.Exists(backup) {
		if err := p.fs.CopyFile(backup, file); err != nil {
			slog.Warn("restore failed", "file", file, "error", err)
			return false
		}

		_ = p.fs.Remove(backup)
	}

	delete(p.backups, file)

	return true
}

// RestoreAll restores every backed-up file.
func (p *SourcePatcher) RestoreAll() {
	for file := range p.backups {
		p.RestoreFile(file)
	}
}
