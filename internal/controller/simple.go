package controller

import (
	"bytes"
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"memoscope.dev/pkg/memoscope/internal/adapter"
	m "memoscope.dev/pkg/memoscope/internal/model"
)

var (
	styleHigh     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleMedium   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleLow      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleAccepted = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	styleRejected = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// SimpleUI renders plain tables through the cobra command's writer.
type SimpleUI struct {
	cmd *cobra.Command
}

// NewSimpleUI creates a SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context) error {
	return ctx.Err()
}

// Close finalizes the UI.
func (s *SimpleUI) Close(_ context.Context) {}

// DisplayScan prints per-file purity results and existing caches.
func (s *SimpleUI) DisplayScan(ctx context.Context, report *adapter.ScanReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pure, impure := 0, 0

	var buf bytes.Buffer

	table := newTable(&buf, []string{"File", "Function", "Line", "Pure", "Notes"})

	for _, file := range report.Files {
		for _, c := range file.Candidates {
			notes := ""

			if c.IsPure {
				pure++
				notes = joinIndicators(c.Indicators)
			} else {
				impure++
				if len(c.Disqualifiers) > 0 {
					notes = c.Disqualifiers[0]
					if len(c.Disqualifiers) > 1 {
						notes = fmt.Sprintf("%s (+%d more)", notes, len(c.Disqualifiers)-1)
					}
				}
			}

			table.Append([]string{string(c.File), c.FunctionName, fmt.Sprint(c.Line), fmt.Sprint(c.IsPure), notes})
		}
	}

	table.Render()
	s.cmd.Print(buf.String())
	s.cmd.Printf("\n%d pure, %d impure\n", pure, impure)

	if caches := existingCaches(report); len(caches) > 0 {
		s.cmd.Println("\nAlready cached:")

		for _, c := range caches {
			s.cmd.Printf("  %s:%d %s (capacity %s)\n", c.File, c.Line, c.FunctionName, capacityString(c.Capacity))
		}
	}

	return nil
}

// DisplayHotspots prints the ranked hotspot table.
func (s *SimpleUI) DisplayHotspots(ctx context.Context, hotspots []m.Hotspot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(hotspots) == 0 {
		s.cmd.Println("No hotspots above thresholds.")
		return nil
	}

	var buf bytes.Buffer

	table := newTable(&buf, []string{"Function", "File", "Calls", "Cum (s)", "Per call (ms)"})

	for _, h := range hotspots {
		table.Append([]string{
			h.FunctionName,
			string(h.File),
			fmt.Sprint(h.CallCount),
			fmt.Sprintf("%.3f", h.CumulativeTime),
			fmt.Sprintf("%.4f", h.TimePerCall*1000),
		})
	}

	table.Render()
	s.cmd.Print(buf.String())

	return nil
}

// DisplayCandidates prints ranked cache candidates.
func (s *SimpleUI) DisplayCandidates(ctx context.Context, candidates []m.CacheCandidate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(candidates) == 0 {
		s.cmd.Println("No cache candidates: no pure function matched a hotspot.")
		return nil
	}

	var buf bytes.Buffer

	table := newTable(&buf, []string{"Priority", "Function", "File", "Calls", "Cum (s)", "Indicators"})

	for _, c := range candidates {
		table.Append([]string{
			priorityString(c.Priority),
			c.FunctionName,
			string(c.File),
			fmt.Sprint(c.CallCount),
			fmt.Sprintf("%.3f", c.CumulativeTime),
			joinIndicators(c.Indicators),
		})
	}

	table.Render()
	s.cmd.Print(buf.String())

	return nil
}

// DisplayValidationPlan announces how many cycles will run.
func (s *SimpleUI) DisplayValidationPlan(_ context.Context, total int) {
	s.cmd.Printf("Validating %d candidate(s), one isolated session each\n", total)
}

// DisplayCycleStart announces one candidate's phase.
func (s *SimpleUI) DisplayCycleStart(_ context.Context, candidate m.CacheCandidate, phase string) {
	s.cmd.Printf("[%s] %s (%s)\n", phase, candidate.FunctionName, candidate.File)
}

// DisplayCycleResult prints one finished validation cycle.
func (s *SimpleUI) DisplayCycleResult(_ context.Context, result m.IndividualValidationResult) {
	if result.Err != "" {
		s.cmd.Printf("  %s: not validated (%s)\n", result.Candidate.FunctionName, result.Err)
		return
	}

	s.cmd.Printf("  %s: hit rate %.1f%%, speedup %.1f%%\n",
		result.Candidate.FunctionName, result.HitRatePercent, result.SpeedupPercent)
}

// DisplayRecommendations prints the final accept/reject table.
func (s *SimpleUI) DisplayRecommendations(ctx context.Context, recommendations []m.CacheRecommendation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer

	table := newTable(&buf, []string{"Decision", "Function", "Hit rate", "Speedup", "Cache size", "Reason"})

	for _, rec := range recommendations {
		decision := styleRejected.Render("reject")
		if rec.Accepted {
			decision = styleAccepted.Render("accept")
		}

		table.Append([]string{
			decision,
			rec.Candidate.FunctionName,
			fmt.Sprintf("%.1f%%", rec.HitRatePercent),
			fmt.Sprintf("%.1f%%", rec.SpeedupPercent),
			fmt.Sprint(rec.CacheSize),
			rec.Reason,
		})
	}

	table.Render()
	s.cmd.Print(buf.String())

	return nil
}

func newTable(buf *bytes.Buffer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(buf)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	return table
}

func priorityString(p m.Priority) string {
	switch p {
	case m.PriorityHigh:
		return styleHigh.Render(string(p))
	case m.PriorityMedium:
		return styleMedium.Render(string(p))
	default:
		return styleLow.Render(string(p))
	}
}

func joinIndicators(indicators []m.ExpenseIndicator) string {
	out := ""

	for i, ind := range indicators {
		if i > 0 {
			out += ", "
		}

		out += string(ind)
	}

	return out
}

func capacityString(capacity int) string {
	if capacity == m.Unbounded {
		return "unbounded"
	}

	return fmt.Sprint(capacity)
}

func existingCaches(report *adapter.ScanReport) []m.ExistingCacheCandidate {
	var caches []m.ExistingCacheCandidate

	for _, file := range report.Files {
		caches = append(caches, file.ExistingCaches...)
	}

	return caches
}
