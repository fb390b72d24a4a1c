package adapter

import (
	"fmt"
	"os"

	"github.com/google/pprof/profile"

	m "memoscope.dev/pkg/memoscope/internal/model"
)

// ProfileFrame is one function's aggregate from a profiling snapshot:
// cumulative sample count and cumulative time across every sample whose
// call stack contains the function.
type ProfileFrame struct {
	FunctionName      string
	File              m.Path
	Line              int
	CallCount         int64
	CumulativeSeconds float64
}

// ProfileAdapter reads profiling snapshots in the platform's standard
// profiler format (pprof protobuf). Snapshots are read-only input.
type ProfileAdapter interface {
	ReadProfile(path m.Path) ([]ProfileFrame, error)
}

// LocalProfileAdapter parses pprof files from disk.
type LocalProfileAdapter struct{}

// NewLocalProfileAdapter constructs a LocalProfileAdapter.
func NewLocalProfileAdapter() *LocalProfileAdapter {
	return &LocalProfileAdapter{}
}

// ReadProfile parses the snapshot and aggregates values per function.
func (a *LocalProfileAdapter) ReadProfile(path m.Path) ([]ProfileFrame, error) {
	f, err := os.Open(string(path))
	if err != nil {
		return nil, err
	}

	defer func() { _ = f.Close() }()

	prof, err := profile.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}

	countIdx, timeIdx := sampleValueIndexes(prof)

	type agg struct {
		frame ProfileFrame
	}

	frames := make(map[uint64]*agg)

	for _, sample := range prof.Sample {
		// Attribute each sample cumulatively: once per distinct function
		// in the stack, inlined frames included.
		seen := make(map[uint64]bool)

		for _, loc := range sample.Location {
			for _, line := range loc.Line {
				fn := line.Function
				if fn == nil || seen[fn.ID] {
					continue
				}

				seen[fn.ID] = true

				entry, ok := frames[fn.ID]
				if !ok {
					entry = &agg{frame: ProfileFrame{
						FunctionName: fn.Name,
						File:         m.Path(fn.Filename),
						Line:         int(fn.StartLine),
					}}
					frames[fn.ID] = entry
				}

				if countIdx >= 0 && countIdx < len(sample.Value) {
					entry.frame.CallCount += sample.Value[countIdx]
				}

				if timeIdx >= 0 && timeIdx < len(sample.Value) {
					entry.frame.CumulativeSeconds += float64(sample.Value[timeIdx]) / 1e9
				}
			}
		}
	}

	result := make([]ProfileFrame, 0, len(frames))
	for _, entry := range frames {
		result = append(result, entry.frame)
	}

	return result, nil
}

// sampleValueIndexes locates the sample-count and cpu-nanoseconds value
// columns of a CPU profile. Either may be missing in exotic profiles.
func sampleValueIndexes(prof *profile.Profile) (countIdx, timeIdx int) {
	countIdx, timeIdx = -1, -1

	for i, st := range prof.SampleType {
		switch {
		case st.Unit == "count":
			countIdx = i
		case st.Unit == "nanoseconds":
			timeIdx = i
		}
	}

	return countIdx, timeIdx
}
