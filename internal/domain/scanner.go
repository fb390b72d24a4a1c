package domain

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"memoscope.dev/pkg/memoscope/internal/adapter"
	m "memoscope.dev/pkg/memoscope/internal/model"
)

// Scanner runs the purity classifier across a file set with a bounded
// worker pool. Classification is per-file and side-effect free, so files
// are fanned out freely; result accumulation is the only shared state.
type Scanner struct {
	fs         adapter.SourceFSAdapter
	classifier *Classifier
}

// NewScanner constructs a Scanner.
func NewScanner(fs adapter.SourceFSAdapter, classifier *Classifier) *Scanner {
	return &Scanner{fs: fs, classifier: classifier}
}

// Scan classifies every non-test Go file under the given roots. Files
// that fail to read or parse are skipped, never fatal. Reports come back
// sorted by path so repeated scans of unchanged input are byte-identical.
func (s *Scanner) Scan(ctx context.Context, roots []m.Path, exclude []string, workers int) ([]m.FileReport, error) {
	files, err := s.fs.GoFiles(roots, exclude)
	if err != nil {
		return nil, err
	}

	if workers <= 0 {
		workers = 1
	}

	var (
		mu      sync.Mutex
		reports []m.FileReport
	)

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for _, file := range files {
		file := file
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			src, err := s.fs.ReadFile(file)
			if err != nil {
				slog.Warn("skipping unreadable file", "path", file, "error", err)
				return nil
			}

			report, ok := s.classifier.ClassifyFile(file, src)
			if !ok {
				return nil
			}

			if fp, err := s.fs.Fingerprint(file); err == nil {
				report.File.Fingerprint = fp
			}

			mu.Lock()
			reports = append(reports, report)
			mu.Unlock()

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].File.Path < reports[j].File.Path
	})

	return reports, nil
}

// AllCandidates flattens per-file reports into one candidate list,
// preserving file order.
func AllCandidates(reports []m.FileReport) []m.PureFunctionCandidate {
	var candidates []m.PureFunctionCandidate

	for _, report := range reports {
		candidates = append(candidates, report.Candidates...)
	}

	return candidates
}

// AllExistingCaches flattens per-file reports into one list of functions
// already behind a wrapper.
func AllExistingCaches(reports []m.FileReport) []m.ExistingCacheCandidate {
	var caches []m.ExistingCacheCandidate

	for _, report := range reports {
		caches = append(caches, report.ExistingCaches...)
	}

	return caches
}
