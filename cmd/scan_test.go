package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "memoscope.dev/pkg/memoscope/internal/model"
)

const scanFixture = `package fixture

import "fmt"

func Shout(s string) string {
	out := ""
	for _, r := range s {
		out += string(r)
	}
	return out
}

func Log(s string) {
	fmt.Println(s)
}
`

func TestScanCmd_WritesReport(t *testing.T) {
	tempDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "fixture.go"), []byte(scanFixture), 0o644))

	reportsDir := filepath.Join(tempDir, "reports")

	cmd := newRootCmd()
	cmd.AddCommand(newScanCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"scan", "--output", reportsDir, tempDir})

	require.NoError(t, cmd.Execute())

	report, err := reportStore.Load(m.Path(reportsDir), reportFileName)
	require.NoError(t, err)
	require.Len(t, report.Files, 1)

	names := make(map[string]bool)
	for _, c := range report.Files[0].Candidates {
		names[c.FunctionName] = c.IsPure
	}

	assert.True(t, names["Shout"])
	assert.False(t, names["Log"])
}

func TestScanCmd_RecursivePattern(t *testing.T) {
	tempDir := t.TempDir()
	nested := filepath.Join(tempDir, "pkg", "deep")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "fixture.go"), []byte(scanFixture), 0o644))

	reportsDir := filepath.Join(tempDir, "reports")

	cmd := newRootCmd()
	cmd.AddCommand(newScanCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"scan", "--output", reportsDir, tempDir + "/..."})

	require.NoError(t, cmd.Execute())

	report, err := reportStore.Load(m.Path(reportsDir), reportFileName)
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
}
