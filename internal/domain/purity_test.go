package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"memoscope.dev/pkg/memoscope/internal/adapter"
	m "memoscope.dev/pkg/memoscope/internal/model"
	"memoscope.dev/pkg/memoscope/pkg/memo"
)

func newTestClassifier() *Classifier {
	return NewClassifier(adapter.NewLocalGoFileAdapter())
}

func classify(t *testing.T, src string) m.FileReport {
	t.Helper()

	report, ok := newTestClassifier().ClassifyFile("/repo/src/fixture.go", []byte(src))
	require.True(t, ok)

	return report
}

func candidateByName(t *testing.T, report m.FileReport, name string) m.PureFunctionCandidate {
	t.Helper()

	for _, c := range report.Candidates {
		if c.FunctionName == name {
			return c
		}
	}

	t.Fatalf("candidate %s not found", name)

	return m.PureFunctionCandidate{}
}

func TestClassifyFile_Disqualifiers(t *testing.T) {
	src := `package fixture

import (
	"fmt"
	"math/rand"
	"os"
	"time"
)

var counter int

func PureSum(n int) int {
	total := 0
	for i := 0; i < n; i++ {
		total += i
	}
	return total
}

func PrintsThings(s string) {
	fmt.Println(s)
}

func ReadsDisk(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func UsesClock() int64 {
	return time.Now().Unix()
}

func RollsDice() int {
	return rand.Intn(6)
}

func BumpsCounter() int {
	counter++
	return counter
}

func ShadowsCounter() int {
	counter := 1
	counter++
	return counter
}

func SpawnsWorker(ch chan int) {
	go func() { ch <- 1 }()
}
`

	report := classify(t, src)

	tests := []struct {
		name     string
		function string
		pure     bool
		contains string
	}{
		{"pure loop", "PureSum", true, ""},
		{"stdout write", "PrintsThings", false, "I/O operation: fmt.Println"},
		{"file read", "ReadsDisk", false, "I/O operation: os.ReadFile"},
		{"wall clock", "UsesClock", false, "non-deterministic call: time.Now"},
		{"random source", "RollsDice", false, "non-deterministic call: rand.Intn"},
		{"global mutation", "BumpsCounter", false, "package-level state mutation: counter"},
		{"shadowed global", "ShadowsCounter", true, ""},
		{"goroutine", "SpawnsWorker", false, "spawns goroutine"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate := candidateByName(t, report, tt.function)
			assert.Equal(t, tt.pure, candidate.IsPure)

			if tt.contains != "" {
				assert.Contains(t, candidate.Disqualifiers, tt.contains)
			} else {
				assert.Empty(t, candidate.Disqualifiers)
			}
		})
	}
}

func TestClassifyFile_CollectsAllViolations(t *testing.T) {
	src := `package fixture

import (
	"fmt"
	"time"
)

func Messy() {
	fmt.Println(time.Now())
}
`

	report := classify(t, src)
	candidate := candidateByName(t, report, "Messy")

	// No short-circuit: both violations are reported.
	assert.Len(t, candidate.Disqualifiers, 2)
}

func TestClassifyFile_ExpenseIndicators(t *testing.T) {
	src := `package fixture

import "crypto/sha256"

func Pairs(xs []int) [][2]int {
	var out [][2]int
	for _, a := range xs {
		for _, b := range xs {
			out = append(out, [2]int{a, b})
		}
	}
	return out
}

func Fib(n int) int {
	if n < 2 {
		return n
	}
	return Fib(n-1) + Fib(n-2)
}

func Digest(data []byte) [32]byte {
	return sha256.Sum256(data)
}

func Double(x int) int {
	return x * 2
}
`

	report := classify(t, src)

	pairs := candidateByName(t, report, "Pairs")
	assert.Contains(t, pairs.Indicators, m.IndicatorNestedLoops)
	assert.Contains(t, pairs.Indicators, m.IndicatorComprehension)

	fib := candidateByName(t, report, "Fib")
	assert.Contains(t, fib.Indicators, m.IndicatorRecursion)

	digest := candidateByName(t, report, "Digest")
	assert.Contains(t, digest.Indicators, m.IndicatorCrypto)

	double := candidateByName(t, report, "Double")
	assert.Empty(t, double.Indicators)
}

func TestClassifyFile_ExistingCaches(t *testing.T) {
	src := `package fixture

import "memoscope.dev/pkg/memoscope/pkg/memo"

var sumMemo = memo.New[int, int](64)
var keyMemo = memo.NewNamed[string, string]("keys")
var openMemo = memo.New[string, int](memo.Unbounded)

func CachedSum(n int) int {
	return sumMemo.Get(n, rawSum)
}

func CachedKey(s string) string {
	return keyMemo.Get(s, rawKey)
}

func CachedOpen(s string) int {
	return openMemo.Get(s, rawOpen)
}

func rawSum(n int) int { return n }

func rawKey(s string) string { return s }

func rawOpen(s string) int { return len(s) }
`

	report := classify(t, src)

	caches := make(map[string]int)
	for _, c := range report.ExistingCaches {
		caches[c.FunctionName] = c.Capacity
	}

	assert.Equal(t, 64, caches["CachedSum"])
	assert.Equal(t, memo.DefaultCapacity, caches["CachedKey"])
	assert.Equal(t, m.Unbounded, caches["CachedOpen"])

	// Already-cached front ends are not offered as fresh candidates.
	for _, c := range report.Candidates {
		assert.NotContains(t, []string{"CachedSum", "CachedKey", "CachedOpen"}, c.FunctionName)
	}
}

func TestClassifyFile_ParseFailureSkips(t *testing.T) {
	_, ok := newTestClassifier().ClassifyFile("/repo/broken.go", []byte("package {"))
	assert.False(t, ok)
}

func TestClassifyFile_Idempotent(t *testing.T) {
	src := `package fixture

func Pure(a int) int { return a + 1 }
`

	first := classify(t, src)
	second := classify(t, src)

	assert.Equal(t, first, second)
}
