package controller

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	m "memoscope.dev/pkg/memoscope/internal/model"
)

// TUI renders result tables like SimpleUI but shows an animated progress
// view while validation cycles run. Selected when stdout is a TTY.
type TUI struct {
	*SimpleUI

	program *tea.Program
	done    chan struct{}
}

// NewTUI creates a TUI.
func NewTUI(cmd *cobra.Command) *TUI {
	return &TUI{SimpleUI: NewSimpleUI(cmd)}
}

// Close shuts the progress view down if one is still running.
func (t *TUI) Close(ctx context.Context) {
	t.stopProgress()
	t.SimpleUI.Close(ctx)
}

// DisplayValidationPlan starts the progress view.
func (t *TUI) DisplayValidationPlan(_ context.Context, total int) {
	model := newValidationModel(total)
	t.program = tea.NewProgram(model)
	t.done = make(chan struct{})

	go func() {
		defer close(t.done)

		_, _ = t.program.Run()
	}()
}

// DisplayCycleStart feeds the current candidate into the progress view.
func (t *TUI) DisplayCycleStart(_ context.Context, candidate m.CacheCandidate, phase string) {
	if t.program == nil {
		return
	}

	t.program.Send(cycleStartMsg{name: candidate.FunctionName, phase: phase})
}

// DisplayCycleResult feeds one finished cycle into the progress view.
func (t *TUI) DisplayCycleResult(_ context.Context, result m.IndividualValidationResult) {
	if t.program == nil {
		return
	}

	t.program.Send(cycleResultMsg{result: result})
}

// DisplayRecommendations stops the progress view and prints the final
// table the same way SimpleUI does.
func (t *TUI) DisplayRecommendations(ctx context.Context, recommendations []m.CacheRecommendation) error {
	t.stopProgress()

	return t.SimpleUI.DisplayRecommendations(ctx, recommendations)
}

func (t *TUI) stopProgress() {
	if t.program == nil {
		return
	}

	t.program.Send(progressDoneMsg{})
	<-t.done
	t.program = nil
}

type cycleStartMsg struct {
	name  string
	phase string
}

type cycleResultMsg struct {
	result m.IndividualValidationResult
}

type progressDoneMsg struct{}

var (
	styleCurrent = lipgloss.NewStyle().Bold(true)
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type validationModel struct {
	spin      spinner.Model
	total     int
	completed int
	current   string
	history   []string
}

func newValidationModel(total int) validationModel {
	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return validationModel{spin: spin, total: total}
}

// Init implements tea.Model.
func (v validationModel) Init() tea.Cmd {
	return v.spin.Tick
}

// Update implements tea.Model.
func (v validationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case cycleStartMsg:
		v.current = fmt.Sprintf("%s [%s]", msg.name, msg.phase)
		return v, nil
	case cycleResultMsg:
		v.completed++
		v.history = append(v.history, resultLine(msg.result))

		if len(v.history) > 8 {
			v.history = v.history[len(v.history)-8:]
		}

		return v, nil
	case progressDoneMsg:
		return v, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return v, tea.Quit
		}

		return v, nil
	default:
		var cmd tea.Cmd

		v.spin, cmd = v.spin.Update(msg)

		return v, cmd
	}
}

// View implements tea.Model.
func (v validationModel) View() string {
	out := fmt.Sprintf("%s validating %d/%d", v.spin.View(), v.completed, v.total)

	if v.current != "" {
		out += "  " + styleCurrent.Render(v.current)
	}

	out += "\n"

	for _, line := range v.history {
		out += styleDim.Render(line) + "\n"
	}

	return out
}

func resultLine(result m.IndividualValidationResult) string {
	if result.Err != "" {
		return fmt.Sprintf("  %s: not validated (%s)", result.Candidate.FunctionName, result.Err)
	}

	return fmt.Sprintf("  %s: hit %.1f%% / speedup %.1f%%",
		result.Candidate.FunctionName, result.HitRatePercent, result.SpeedupPercent)
}
