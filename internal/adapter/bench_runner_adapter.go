package adapter

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"time"
)

// DefaultBenchTimeout bounds one fresh-process benchmark run.
const DefaultBenchTimeout = 5 * time.Minute

// BenchRunnerAdapter abstracts fresh-process benchmark execution. The
// spawned process re-reads source from disk, which is the whole point of
// durable on-disk mutation: in-memory patches would be invisible to it.
type BenchRunnerAdapter interface {
	// RunBench runs `go test -run '^$' -bench <pattern>` in workDir with
	// the provided extra environment. Returns the combined output.
	RunBench(ctx context.Context, workDir, benchPattern string, env map[string]string) (string, error)
}

// LocalBenchRunnerAdapter runs benchmarks via os/exec.
type LocalBenchRunnerAdapter struct {
	timeout time.Duration
}

// NewLocalBenchRunnerAdapter constructs a runner with the given per-run
// timeout; zero means DefaultBenchTimeout.
func NewLocalBenchRunnerAdapter(timeout time.Duration) *LocalBenchRunnerAdapter {
	if timeout <= 0 {
		timeout = DefaultBenchTimeout
	}

	return &LocalBenchRunnerAdapter{timeout: timeout}
}

// RunBench executes the benchmark suite synchronously to completion.
func (a *LocalBenchRunnerAdapter) RunBench(ctx context.Context, workDir, benchPattern string, env map[string]string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if benchPattern == "" {
		benchPattern = "."
	}

	cmd := exec.CommandContext(ctx, "go", "test", "-run", "^$", "-bench", benchPattern, "-benchmem", "./...")
	cmd.Dir = workDir
	cmd.Env = os.Environ()

	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var out bytes.Buffer

	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()

	return out.String(), err
}
