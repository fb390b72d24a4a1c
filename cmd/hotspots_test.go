package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	m "memoscope.dev/pkg/memoscope/internal/model"
)

func TestHotspotsCmd_RequiresProfileArg(t *testing.T) {
	cmd := newRootCmd()
	cmd.AddCommand(newHotspotsCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"hotspots"})

	require.Error(t, cmd.Execute())
}

func TestHotspotsCmd_MissingProfileYieldsEmptyReport(t *testing.T) {
	reportsDir := t.TempDir()

	cmd := newRootCmd()
	cmd.AddCommand(newHotspotsCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"hotspots", "--output", reportsDir, reportsDir + "/no-such-profile.pb.gz"})

	// Extraction degrades to an empty hotspot list, never an error.
	require.NoError(t, cmd.Execute())

	report, err := reportStore.Load(m.Path(reportsDir), reportFileName)
	require.NoError(t, err)
	require.Empty(t, report.Hotspots)
}
