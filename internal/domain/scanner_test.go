package domain

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"memoscope.dev/pkg/memoscope/internal/adapter"
	m "memoscope.dev/pkg/memoscope/internal/model"
)

func newTestScanner() *Scanner {
	fs := adapter.NewLocalSourceFSAdapter()

	return NewScanner(fs, NewClassifier(adapter.NewLocalGoFileAdapter()))
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	return dir
}

func TestScan_WalksTreeAndSkipsTests(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"a.go":            "package p\n\nfunc A(x int) int { return x }\n",
		"sub/b.go":        "package q\n\nfunc B(x int) int { return x }\n",
		"sub/b_test.go":   "package q\n\nfunc TestB() {}\n",
		"vendor/dep.go":   "package dep\n\nfunc D(x int) int { return x }\n",
		"testdata/fix.go": "package fix\n",
	})

	reports, err := newTestScanner().Scan(context.Background(), []m.Path{m.Path(dir)}, nil, 4)
	require.NoError(t, err)

	var names []string
	for _, r := range reports {
		names = append(names, filepath.Base(string(r.File.Path)))
	}

	assert.Equal(t, []string{"a.go", "b.go"}, names)
}

func TestScan_SkipsBrokenFiles(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"good.go":   "package p\n\nfunc A(x int) int { return x }\n",
		"broken.go": "package {",
	})

	reports, err := newTestScanner().Scan(context.Background(), []m.Path{m.Path(dir)}, nil, 2)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "good.go", filepath.Base(string(reports[0].File.Path)))
}

func TestScan_ExcludePatterns(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"keep.go":           "package p\n\nfunc A(x int) int { return x }\n",
		"generated/skip.go": "package g\n\nfunc B(x int) int { return x }\n",
	})

	reports, err := newTestScanner().Scan(context.Background(), []m.Path{m.Path(dir)}, []string{"generated"}, 1)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "keep.go", filepath.Base(string(reports[0].File.Path)))
}

func TestScan_DeterministicOrderAndFingerprints(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"z.go": "package p\n\nfunc Z(x int) int { return x }\n",
		"a.go": "package p\n\nfunc A(x int) int { return x }\n",
	})

	first, err := newTestScanner().Scan(context.Background(), []m.Path{m.Path(dir)}, nil, 8)
	require.NoError(t, err)

	second, err := newTestScanner().Scan(context.Background(), []m.Path{m.Path(dir)}, nil, 1)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	for _, r := range first {
		assert.NotEmpty(t, r.File.Fingerprint)
	}
}

func TestAllCandidates(t *testing.T) {
	reports := []m.FileReport{
		{Candidates: []m.PureFunctionCandidate{{FunctionName: "A"}, {FunctionName: "B"}}},
		{Candidates: []m.PureFunctionCandidate{{FunctionName: "C"}}},
	}

	candidates := AllCandidates(reports)

	require.Len(t, candidates, 3)
	assert.Equal(t, "A", candidates[0].FunctionName)
	assert.Equal(t, "C", candidates[2].FunctionName)
}
