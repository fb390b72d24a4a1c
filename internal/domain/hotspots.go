package domain

import (
	"log/slog"
	"sort"
	"strings"

	"memoscope.dev/pkg/memoscope/internal/adapter"
	m "memoscope.dev/pkg/memoscope/internal/model"
)

// Default extraction thresholds; frames below either are noise.
const (
	DefaultMinCalls   = 100
	DefaultMinCumTime = 0.1
)

// HotspotExtractor filters a profiling snapshot down to the frames worth
// considering for caching.
type HotspotExtractor struct {
	profiles   adapter.ProfileAdapter
	minCalls   int64
	minCumTime float64
}

// NewHotspotExtractor constructs an extractor; non-positive thresholds
// fall back to the defaults.
func NewHotspotExtractor(profiles adapter.ProfileAdapter, minCalls int64, minCumTime float64) *HotspotExtractor {
	if minCalls <= 0 {
		minCalls = DefaultMinCalls
	}

	if minCumTime <= 0 {
		minCumTime = DefaultMinCumTime
	}

	return &HotspotExtractor{profiles: profiles, minCalls: minCalls, minCumTime: minCumTime}
}

// Extract reads the snapshot and returns hotspots sorted by cumulative
// time descending. A missing or unreadable snapshot yields an empty
// list, never an error: profiling input is optional signal.
func (e *HotspotExtractor) Extract(profilePath m.Path) []m.Hotspot {
	frames, err := e.profiles.ReadProfile(profilePath)
	if err != nil {
		slog.Warn("profiling snapshot unavailable", "path", profilePath, "error", err)
		return nil
	}

	var hotspots []m.Hotspot

	for _, frame := range frames {
		if frame.CallCount < e.minCalls || frame.CumulativeSeconds < e.minCumTime {
			continue
		}

		if isSyntheticOrDependency(string(frame.File)) {
			continue
		}

		perCall := 0.0
		if frame.CallCount > 0 {
			perCall = frame.CumulativeSeconds / float64(frame.CallCount)
		}

		hotspots = append(hotspots, m.Hotspot{
			File:           frame.File,
			FunctionName:   frame.FunctionName,
			Line:           frame.Line,
			CallCount:      frame.CallCount,
			CumulativeTime: frame.CumulativeSeconds,
			TimePerCall:    perCall,
		})
	}

	sort.SliceStable(hotspots, func(i, j int) bool {
		return hotspots[i].CumulativeTime > hotspots[j].CumulativeTime
	})

	return hotspots
}

// isSyntheticOrDependency filters frames that originate outside the
// analyzed project: bracketed synthetic names, runtime/GOROOT sources
// and the module cache.
func isSyntheticOrDependency(path string) bool {
	if path == "" {
		return true
	}

	if strings.HasPrefix(path, "<") || strings.HasPrefix(path, "[") {
		return true
	}

	for _, marker := range []string{"/go/pkg/mod/", "/libexec/src/", "/usr/local/go/src/", "/vendor/"} {
		if strings.Contains(path, marker) {
			return true
		}
	}

	// GOROOT-relative runtime frames keep their $GOROOT prefix in some
	// toolchain builds.
	return strings.HasPrefix(path, "$GOROOT")
}
