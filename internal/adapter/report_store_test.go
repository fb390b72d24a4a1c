package adapter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "memoscope.dev/pkg/memoscope/internal/model"
)

func TestReportStore_RoundTrip(t *testing.T) {
	dir := m.Path(t.TempDir())
	store := NewReportStore()

	report := &ScanReport{
		Files: []m.FileReport{
			{
				File: m.File{Path: "/repo/compute.go", Fingerprint: "00000000deadbeef"},
				Candidates: []m.PureFunctionCandidate{
					{File: "/repo/compute.go", FunctionName: "Total", Line: 5, IsPure: true},
					{File: "/repo/compute.go", FunctionName: "Dump", Line: 12, IsPure: false, Disqualifiers: []string{"I/O operation: fmt.Println"}},
				},
				ExistingCaches: []m.ExistingCacheCandidate{
					{File: "/repo/compute.go", FunctionName: "CachedKey", Line: 20, Capacity: 64},
				},
			},
		},
		Hotspots: []m.Hotspot{
			{File: "/repo/compute.go", FunctionName: "example.com/app.Total", Line: 5, CallCount: 600, CumulativeTime: 1.2, TimePerCall: 0.002},
		},
		Candidates: []m.CacheCandidate{
			{File: "/repo/compute.go", FunctionName: "Total", Line: 5, CallCount: 600, CumulativeTime: 1.2, Priority: m.PriorityMedium},
		},
		Recommendations: []m.CacheRecommendation{
			{CacheSize: 128, HitRatePercent: 80, SpeedupPercent: 12.5, Accepted: true, Reason: "measured benefit above thresholds"},
		},
	}

	require.NoError(t, store.Save(dir, "analysis", report))

	loaded, err := store.Load(dir, "analysis")
	require.NoError(t, err)
	assert.Equal(t, report, loaded)
}

func TestReportStore_SaveCreatesDirectory(t *testing.T) {
	dir := m.Path(filepath.Join(t.TempDir(), "nested", "reports"))

	require.NoError(t, NewReportStore().Save(dir, "analysis", &ScanReport{}))

	_, err := os.Stat(filepath.Join(string(dir), "analysis.yaml"))
	assert.NoError(t, err)
}

func TestReportStore_LoadMissing(t *testing.T) {
	_, err := NewReportStore().Load(m.Path(t.TempDir()), "absent")
	assert.Error(t, err)
}

func TestReportStore_LoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "analysis.yaml"), []byte("{not yaml: ["), 0o600))

	_, err := NewReportStore().Load(m.Path(dir), "analysis")
	assert.Error(t, err)
}
