package domain

import (
	"context"
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"memoscope.dev/pkg/memoscope/internal/adapter"
	m "memoscope.dev/pkg/memoscope/internal/model"
)

const patchFixture = `package compute

import "fmt"

func Total(n int) int {
	total := 0
	for i := 0; i < n; i++ {
		total += i
	}
	return total
}

func Describe(a int, b int) string {
	return fmt.Sprintf("%d/%d", a, b)
}
`

func gitRun(t *testing.T, dir string, args ...string) {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
}

// initTestRepo creates a committed single-file repository and returns
// its root and the fixture path.
func initTestRepo(t *testing.T) (string, string) {
	t.Helper()

	dir := t.TempDir()
	gitRun(t, dir, "init")
	gitRun(t, dir, "config", "user.email", "test@example.com")
	gitRun(t, dir, "config", "user.name", "test")

	file := filepath.Join(dir, "compute.go")
	require.NoError(t, os.WriteFile(file, []byte(patchFixture), 0o644))

	gitRun(t, dir, "add", ".")
	gitRun(t, dir, "commit", "-m", "initial")

	return dir, file
}

func newTestPatcher(repoRoot string) *SourcePatcher {
	return NewSourcePatcher(
		m.Path(repoRoot),
		adapter.NewLocalGitAdapter(),
		adapter.NewLocalSourceFSAdapter(),
		adapter.NewLocalGoFileAdapter(),
	)
}

func TestPatcher_SessionIsReversible(t *testing.T) {
	ctx := context.Background()
	repo, file := initTestRepo(t)
	git := adapter.NewLocalGitAdapter()

	before, err := os.ReadFile(file)
	require.NoError(t, err)

	originalBranch, err := git.CurrentBranch(ctx, m.Path(repo))
	require.NoError(t, err)

	patcher := newTestPatcher(repo)

	ok, reason := patcher.Start(ctx)
	require.True(t, ok, reason)

	require.True(t, patcher.ApplyCacheWrapper(ctx, m.Path(file), "Total", 128))

	mutated, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.NotEqual(t, before, mutated)

	patcher.End(ctx)

	after, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, before, after, "tree must be byte-identical after the session")

	branch, err := git.CurrentBranch(ctx, m.Path(repo))
	require.NoError(t, err)
	assert.Equal(t, originalBranch, branch)

	clean, err := git.IsClean(ctx, m.Path(repo))
	require.NoError(t, err)
	assert.True(t, clean)
}

func TestPatcher_EndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo, _ := initTestRepo(t)

	patcher := newTestPatcher(repo)

	ok, reason := patcher.Start(ctx)
	require.True(t, ok, reason)

	patcher.End(ctx)
	patcher.End(ctx)
}

func TestPatcher_StartRequiresCleanTree(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		dirty func(t *testing.T, repo, file string)
	}{
		{
			"unstaged change",
			func(t *testing.T, repo, file string) {
				require.NoError(t, os.WriteFile(file, []byte(patchFixture+"\n// edited\n"), 0o644))
			},
		},
		{
			"staged change",
			func(t *testing.T, repo, file string) {
				require.NoError(t, os.WriteFile(file, []byte(patchFixture+"\n// edited\n"), 0o644))
				gitRun(t, repo, "add", ".")
			},
		},
		{
			"untracked file",
			func(t *testing.T, repo, _ string) {
				require.NoError(t, os.WriteFile(filepath.Join(repo, "stray.go"), []byte("package compute\n"), 0o644))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, file := initTestRepo(t)
			tt.dirty(t, repo, file)

			ok, reason := newTestPatcher(repo).Start(ctx)

			assert.False(t, ok)
			assert.Contains(t, reason, "working tree not clean")
		})
	}
}

func TestPatcher_StartRejectsDetachedHead(t *testing.T) {
	ctx := context.Background()
	repo, _ := initTestRepo(t)

	gitRun(t, repo, "checkout", "--detach")

	ok, reason := newTestPatcher(repo).Start(ctx)

	assert.False(t, ok)
	assert.Contains(t, reason, "detached HEAD")
}

func TestPatcher_StartRejectsNonRepository(t *testing.T) {
	ok, reason := newTestPatcher(t.TempDir()).Start(context.Background())

	assert.False(t, ok)
	assert.Equal(t, "not a git repository", reason)
}

func TestPatcher_WrapperShape(t *testing.T) {
	ctx := context.Background()
	repo, file := initTestRepo(t)

	patcher := newTestPatcher(repo)
	ok, reason := patcher.Start(ctx)
	require.True(t, ok, reason)
	defer patcher.End(ctx)

	require.True(t, patcher.ApplyCacheWrapper(ctx, m.Path(file), "Total", 128))

	mutated, err := os.ReadFile(file)
	require.NoError(t, err)

	text := string(mutated)
	assert.Contains(t, text, `var totalMemo = memo.NewNamed[int, int]("`+file+`:Total", 128)`)
	assert.Contains(t, text, "func Total(n int) int { return totalMemo.Get(n, totalUncached) }")
	assert.Contains(t, text, "func totalUncached(n int) int {")
	assert.Contains(t, text, `import "memoscope.dev/pkg/memoscope/pkg/memo"`)

	// The mutated file must still be valid Go.
	fset := token.NewFileSet()
	_, err = parser.ParseFile(fset, file, mutated, parser.ParseComments)
	require.NoError(t, err)
}

func TestPatcher_UnboundedCapacity(t *testing.T) {
	ctx := context.Background()
	repo, file := initTestRepo(t)

	patcher := newTestPatcher(repo)
	ok, reason := patcher.Start(ctx)
	require.True(t, ok, reason)
	defer patcher.End(ctx)

	require.True(t, patcher.ApplyCacheWrapper(ctx, m.Path(file), "Total", m.Unbounded))

	mutated, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(mutated), `memo.NewNamed[int, int]("`+file+`:Total", memo.Unbounded)`)
}

func TestPatcher_RejectsIneligibleTargets(t *testing.T) {
	ctx := context.Background()
	repo, file := initTestRepo(t)

	patcher := newTestPatcher(repo)
	ok, reason := patcher.Start(ctx)
	require.True(t, ok, reason)
	defer patcher.End(ctx)

	t.Run("two parameters", func(t *testing.T) {
		assert.False(t, patcher.ApplyCacheWrapper(ctx, m.Path(file), "Describe", 128))
	})

	t.Run("missing function", func(t *testing.T) {
		assert.False(t, patcher.ApplyCacheWrapper(ctx, m.Path(file), "NoSuchFunction", 128))
	})
}

func TestPatcher_RejectsNameCollisions(t *testing.T) {
	ctx := context.Background()
	repo, file := initTestRepo(t)

	collision := patchFixture + `
func totalUncached(n int) int { return n }
`
	require.NoError(t, os.WriteFile(file, []byte(collision), 0o644))
	gitRun(t, repo, "add", ".")
	gitRun(t, repo, "commit", "-m", "collision fixture")

	patcher := newTestPatcher(repo)
	ok, reason := patcher.Start(ctx)
	require.True(t, ok, reason)
	defer patcher.End(ctx)

	assert.False(t, patcher.ApplyCacheWrapper(ctx, m.Path(file), "Total", 128))
}

func TestPatcher_BackupRestoreFallback(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "compute.go")
	require.NoError(t, os.WriteFile(file, []byte(patchFixture), 0o644))

	patcher := newTestPatcher(dir)

	require.True(t, patcher.BackupFile(m.Path(file)))
	require.NoError(t, os.WriteFile(file, []byte("package compute\n"), 0o644))

	require.True(t, patcher.RestoreFile(m.Path(file)))

	restored, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, patchFixture, string(restored))

	_, err = os.Stat(file + ".memoscope_backup")
	assert.True(t, os.IsNotExist(err))
}
