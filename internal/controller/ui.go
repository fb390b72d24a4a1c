// Package controller provides output adapters for rendering analysis and
// validation results.
package controller

import (
	"context"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"memoscope.dev/pkg/memoscope/internal/adapter"
	m "memoscope.dev/pkg/memoscope/internal/model"
)

// UI is the rendering surface for all commands. Implementations differ
// in presentation only (plain text vs TTY); the reporting layer is a
// consumer of results, never a producer.
type UI interface {
	Start(ctx context.Context) error
	Close(ctx context.Context)

	DisplayScan(ctx context.Context, report *adapter.ScanReport) error
	DisplayHotspots(ctx context.Context, hotspots []m.Hotspot) error
	DisplayCandidates(ctx context.Context, candidates []m.CacheCandidate) error

	DisplayValidationPlan(ctx context.Context, total int)
	DisplayCycleStart(ctx context.Context, candidate m.CacheCandidate, phase string)
	DisplayCycleResult(ctx context.Context, result m.IndividualValidationResult)
	DisplayRecommendations(ctx context.Context, recommendations []m.CacheRecommendation) error
}

// IsTTY reports whether f is an interactive terminal.
func IsTTY(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// NewUI picks the TUI when stdout is interactive, the plain writer
// otherwise.
func NewUI(cmd *cobra.Command, tty bool) UI {
	if tty {
		return NewTUI(cmd)
	}

	return NewSimpleUI(cmd)
}
