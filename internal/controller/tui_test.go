package controller

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "memoscope.dev/pkg/memoscope/internal/model"
)

func TestNewUI(t *testing.T) {
	cmd := &cobra.Command{}

	assert.IsType(t, &TUI{}, NewUI(cmd, true))
	assert.IsType(t, &SimpleUI{}, NewUI(cmd, false))
}

func TestValidationModel_Update(t *testing.T) {
	model := newValidationModel(3)

	next, _ := model.Update(cycleStartMsg{name: "Total", phase: "validate"})
	vm, ok := next.(validationModel)
	require.True(t, ok)
	assert.Contains(t, vm.View(), "Total [validate]")
	assert.Contains(t, vm.View(), "0/3")

	next, _ = vm.Update(cycleResultMsg{result: m.IndividualValidationResult{
		Candidate:      m.CacheCandidate{FunctionName: "Total"},
		HitRatePercent: 80.0,
		SpeedupPercent: 12.5,
	}})
	vm = next.(validationModel)
	assert.Equal(t, 1, vm.completed)
	assert.Contains(t, vm.View(), "hit 80.0% / speedup 12.5%")
}

func TestValidationModel_HistoryIsBounded(t *testing.T) {
	model := newValidationModel(20)

	var next tea.Model = model
	for i := 0; i < 12; i++ {
		next, _ = next.(validationModel).Update(cycleResultMsg{result: m.IndividualValidationResult{
			Candidate: m.CacheCandidate{FunctionName: "Total"},
		}})
	}

	vm := next.(validationModel)
	assert.Equal(t, 12, vm.completed)
	assert.Len(t, vm.history, 8)
}

func TestValidationModel_QuitKeys(t *testing.T) {
	model := newValidationModel(1)

	for _, key := range []string{"q", "ctrl+c"} {
		t.Run(key, func(t *testing.T) {
			msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
			if key == "ctrl+c" {
				msg = tea.KeyMsg{Type: tea.KeyCtrlC}
			}

			_, cmd := model.Update(msg)
			require.NotNil(t, cmd)
			assert.IsType(t, tea.QuitMsg{}, cmd())
		})
	}
}

func TestValidationModel_DoneQuits(t *testing.T) {
	model := newValidationModel(1)

	_, cmd := model.Update(progressDoneMsg{})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestResultLine(t *testing.T) {
	failed := resultLine(m.IndividualValidationResult{
		Candidate: m.CacheCandidate{FunctionName: "Total"},
		Err:       "wrapper not applicable",
	})
	assert.Contains(t, failed, "not validated (wrapper not applicable)")

	ok := resultLine(m.IndividualValidationResult{
		Candidate:      m.CacheCandidate{FunctionName: "Total"},
		HitRatePercent: 50.0,
		SpeedupPercent: 7.5,
	})
	assert.Contains(t, ok, "hit 50.0% / speedup 7.5%")
}
