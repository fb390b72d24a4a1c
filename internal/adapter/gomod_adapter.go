package adapter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	m "memoscope.dev/pkg/memoscope/internal/model"
)

// GoModAdapter manages the analyzed repository's module requirements so
// an injected wrapper import still resolves inside the fresh benchmark
// process.
type GoModAdapter interface {
	// EnsureRequirement adds module to dir's go.mod when missing,
	// optionally with a replace directive pointing at replaceDir.
	// Reports whether go.mod was changed.
	EnsureRequirement(ctx context.Context, dir m.Path, module, replaceDir string) (bool, error)
}

// LocalGoModAdapter edits go.mod via the go tool.
type LocalGoModAdapter struct{}

// NewLocalGoModAdapter constructs a LocalGoModAdapter.
func NewLocalGoModAdapter() *LocalGoModAdapter {
	return &LocalGoModAdapter{}
}

// EnsureRequirement runs `go mod edit` to require module, plus a replace
// directive when replaceDir is given (the usual case: validation runs
// offline against a local checkout of the wrapper module).
func (a *LocalGoModAdapter) EnsureRequirement(ctx context.Context, dir m.Path, module, replaceDir string) (bool, error) {
	data, err := os.ReadFile(filepath.Join(string(dir), "go.mod"))
	if err != nil {
		return false, err
	}

	if strings.Contains(string(data), module) {
		return false, nil
	}

	args := [][]string{
		{"mod", "edit", "-require=" + module + "@v0.0.0"},
	}
	if replaceDir != "" {
		args = append(args, []string{"mod", "edit", "-replace=" + module + "=" + replaceDir})
	}

	for _, argv := range args {
		if err := runGo(ctx, dir, argv...); err != nil {
			return false, err
		}
	}

	return true, nil
}

func runGo(ctx context.Context, dir m.Path, args ...string) error {
	cmd := exec.CommandContext(ctx, "go", args...)
	cmd.Dir = string(dir)

	var stderr bytes.Buffer

	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("go %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}

	return nil
}
