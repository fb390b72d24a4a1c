package domain

import (
	"path/filepath"
	"sort"
	"strings"

	m "memoscope.dev/pkg/memoscope/internal/model"
)

// Priority thresholds, checked in order. HIGH requires all three of its
// conditions; MEDIUM either of its two.
const (
	highMinCalls      = 500
	highMinCumTime    = 1.0
	highMinIndicators = 2
	mediumMinCalls    = 200
	mediumMinCumTime  = 0.5
)

// rootMarkers are path components recognized as source roots when
// inferring an import path.
var rootMarkers = map[string]bool{
	"src": true, "pkg": true, "internal": true, "cmd": true, "lib": true,
}

// Ranker joins purity results against hotspots and orders the matches.
type Ranker struct{}

// NewRanker constructs a Ranker.
func NewRanker() *Ranker {
	return &Ranker{}
}

// Rank cross-references pure candidates with hotspots. Only candidates
// with IsPure set participate; unmatched entries on either side are
// dropped (informative alone, actionable only together). At most one
// CacheCandidate is emitted per pure function: the first matching
// hotspot in list order wins.
func (r *Ranker) Rank(candidates []m.PureFunctionCandidate, hotspots []m.Hotspot) []m.CacheCandidate {
	var matched []m.CacheCandidate

	for _, candidate := range candidates {
		if !candidate.IsPure {
			continue
		}

		for _, hotspot := range hotspots {
			if !matches(candidate, hotspot) {
				continue
			}

			matched = append(matched, m.CacheCandidate{
				File:           candidate.File,
				FunctionName:   candidate.FunctionName,
				Line:           candidate.Line,
				ModulePath:     InferModulePath(candidate.File),
				CallCount:      hotspot.CallCount,
				CumulativeTime: hotspot.CumulativeTime,
				Indicators:     candidate.Indicators,
				Priority:       priorityFor(hotspot.CallCount, hotspot.CumulativeTime, len(candidate.Indicators)),
			})

			break
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if (matched[i].Priority == m.PriorityHigh) != (matched[j].Priority == m.PriorityHigh) {
			return matched[i].Priority == m.PriorityHigh
		}

		return matched[i].CumulativeTime > matched[j].CumulativeTime
	})

	return matched
}

// matches checks function name first, then file identity: absolute-path
// equality when both resolve, falling back to basename equality.
// Basename matching can cross-match duplicate filenames in monorepos; a
// known precision trade-off for symlinked checkouts.
func matches(candidate m.PureFunctionCandidate, hotspot m.Hotspot) bool {
	if candidate.FunctionName != bareFunctionName(hotspot.FunctionName) {
		return false
	}

	candAbs, errA := filepath.Abs(string(candidate.File))
	hotAbs, errB := filepath.Abs(string(hotspot.File))

	if errA == nil && errB == nil && candAbs == hotAbs {
		return true
	}

	return filepath.Base(string(candidate.File)) == filepath.Base(string(hotspot.File))
}

// bareFunctionName strips the package qualifier and any receiver from a
// profiler frame name: "pkg/path.(*T).Fib" -> "Fib".
func bareFunctionName(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[idx+1:]
	}

	return name
}

func priorityFor(callCount int64, cumTime float64, indicators int) m.Priority {
	if callCount >= highMinCalls && cumTime >= highMinCumTime && indicators >= highMinIndicators {
		return m.PriorityHigh
	}

	if callCount >= mediumMinCalls || cumTime >= mediumMinCumTime {
		return m.PriorityMedium
	}

	return m.PriorityLow
}

// InferModulePath derives an import-style path for a source file by
// locating a recognized source-root marker in its components and
// stripping the extension. "src" roots are excluded from the result;
// other markers are kept as the leading component.
func InferModulePath(file m.Path) string {
	clean := filepath.ToSlash(filepath.Clean(string(file)))
	parts := strings.Split(clean, "/")

	start := -1

	for i, part := range parts {
		if rootMarkers[part] {
			start = i
			if part == "src" {
				start = i + 1
			}

			break
		}
	}

	if start < 0 || start >= len(parts) {
		start = 0
	}

	selected := append([]string{}, parts[start:]...)
	if len(selected) > 0 {
		selected[len(selected)-1] = strings.TrimSuffix(selected[len(selected)-1], ".go")
	}

	return strings.Join(selected, "/")
}
