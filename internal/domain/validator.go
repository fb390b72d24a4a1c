package domain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"

	"memoscope.dev/pkg/memoscope/internal/adapter"
	"memoscope.dev/pkg/memoscope/internal/controller"
	m "memoscope.dev/pkg/memoscope/internal/model"
	"memoscope.dev/pkg/memoscope/pkg/memo"
)

// Default acceptance thresholds.
const (
	DefaultCacheSize        = memo.DefaultCapacity
	DefaultHitRateThreshold = 20.0
	DefaultSpeedupThreshold = 5.0
)

// ValidateArgs configures one validation run.
type ValidateArgs struct {
	RepoRoot         m.Path
	Candidates       []m.CacheCandidate
	CacheSize        int
	HitRateThreshold float64
	SpeedupThreshold float64
	BenchPattern     string
	// MemoModuleDir is a local checkout of this module, wired into the
	// target's go.mod as a replace so the injected wrapper resolves.
	MemoModuleDir string
}

// ValidationOutcome aggregates everything a validation run produced.
type ValidationOutcome struct {
	Screening       []m.BatchScreeningResult
	Validations     []m.IndividualValidationResult
	Recommendations []m.CacheRecommendation
}

// Validator empirically confirms candidates: each one gets an isolated
// mutation session, a fresh-process benchmark run against the mutated
// tree, and an accept/reject decision against the thresholds. Cycles are
// strictly sequential; the benchmark child may parallelize internally
// but is waited on to completion.
type Validator struct {
	git     adapter.GitAdapter
	fs      adapter.SourceFSAdapter
	goFiles adapter.GoFileAdapter
	gomod   adapter.GoModAdapter
	bench   adapter.BenchRunnerAdapter
	ui      controller.UI
}

// NewValidator constructs a Validator.
func NewValidator(git adapter.GitAdapter, fs adapter.SourceFSAdapter, goFiles adapter.GoFileAdapter, gomod adapter.GoModAdapter, bench adapter.BenchRunnerAdapter, ui controller.UI) *Validator {
	return &Validator{git: git, fs: fs, goFiles: goFiles, gomod: gomod, bench: bench, ui: ui}
}

func (v *Validator) newPatcher(args ValidateArgs) *SourcePatcher {
	patcher := NewSourcePatcher(args.RepoRoot, v.git, v.fs, v.goFiles)
	if v.gomod != nil {
		patcher = patcher.WithModuleProvision(v.gomod, args.MemoModuleDir)
	}

	return patcher
}

// Validate runs baseline measurement, batch screening and per-candidate
// validation. A dirty working tree surfaces as an error before any
// mutation is attempted; everything after that degrades per candidate,
// never fatally.
func (v *Validator) Validate(ctx context.Context, args ValidateArgs) (*ValidationOutcome, error) {
	args = withDefaults(args)

	if len(args.Candidates) == 0 {
		return &ValidationOutcome{}, nil
	}

	baseline, err := v.measureBaseline(ctx, args)
	if err != nil {
		return nil, err
	}

	outcome := &ValidationOutcome{}

	survivors, err := v.screenBatch(ctx, args, outcome)
	if err != nil {
		return nil, err
	}

	v.ui.DisplayValidationPlan(ctx, len(survivors))

	for _, candidate := range survivors {
		result := v.validateOne(ctx, args, candidate, baseline)
		outcome.Validations = append(outcome.Validations, result)
		outcome.Recommendations = append(outcome.Recommendations, recommend(args, result))
		v.ui.DisplayCycleResult(ctx, result)
	}

	return outcome, nil
}

func withDefaults(args ValidateArgs) ValidateArgs {
	if args.CacheSize <= 0 {
		args.CacheSize = DefaultCacheSize
	}

	if args.HitRateThreshold <= 0 {
		args.HitRateThreshold = DefaultHitRateThreshold
	}

	if args.SpeedupThreshold <= 0 {
		args.SpeedupThreshold = DefaultSpeedupThreshold
	}

	return args
}

// measureBaseline benchmarks the clean tree once, before any session.
func (v *Validator) measureBaseline(ctx context.Context, args ValidateArgs) (float64, error) {
	output, err := v.bench.RunBench(ctx, string(args.RepoRoot), args.BenchPattern, nil)
	if err != nil {
		return 0, fmt.Errorf("baseline benchmark failed: %w", err)
	}

	baseline, ok := meanNsPerOp(output)
	if !ok {
		return 0, fmt.Errorf("no benchmark results in baseline run; nothing to measure against")
	}

	slog.Info("baseline measured", "mean_ns_per_op", baseline)

	return baseline, nil
}

// screenBatch applies every candidate inside a single session and runs
// the suite once to read per-cache hit rates cheaply. Candidates whose
// hit rate misses the threshold are rejected without an individual
// cycle; so are candidates the patcher could not apply.
func (v *Validator) screenBatch(ctx context.Context, args ValidateArgs, outcome *ValidationOutcome) ([]m.CacheCandidate, error) {
	patcher := v.newPatcher(args)

	ok, reason := patcher.Start(ctx)
	if !ok {
		return nil, fmt.Errorf("cannot open mutation session: %s", reason)
	}

	defer patcher.End(ctx)

	// Keyed by file-qualified name: the basename join can surface
	// same-named functions from different files in one batch.
	applied := make(map[string]bool, len(args.Candidates))

	for _, candidate := range args.Candidates {
		v.ui.DisplayCycleStart(ctx, candidate, "screen")
		applied[candidateKey(candidate)] = patcher.ApplyCacheWrapper(ctx, candidate.File, candidate.FunctionName, args.CacheSize)
	}

	stats, _, statsErr := v.benchWithStats(ctx, args)

	var survivors []m.CacheCandidate

	for _, candidate := range args.Candidates {
		screening := m.BatchScreeningResult{Candidate: candidate, Applied: applied[candidateKey(candidate)]}

		switch {
		case !screening.Applied:
			screening.Reason = "wrapper not applicable"
		case statsErr != nil:
			screening.Reason = fmt.Sprintf("screening benchmark failed: %v", statsErr)
		default:
			screening.HitRatePercent = stats[candidateKey(candidate)].HitRatePercent()
			screening.Passed = screening.HitRatePercent >= args.HitRateThreshold

			if !screening.Passed {
				screening.Reason = fmt.Sprintf("hit rate %.1f%% below %.1f%%", screening.HitRatePercent, args.HitRateThreshold)
			}
		}

		if screening.Passed {
			survivors = append(survivors, candidate)
		} else {
			outcome.Recommendations = append(outcome.Recommendations, m.CacheRecommendation{
				Candidate:      candidate,
				CacheSize:      args.CacheSize,
				HitRatePercent: screening.HitRatePercent,
				Accepted:       false,
				Reason:         screening.Reason,
			})
		}

		outcome.Screening = append(outcome.Screening, screening)
	}

	return survivors, nil
}

// validateOne runs one full cycle for a single candidate. End is
// deferred immediately after a successful Start so restoration happens
// on every exit path.
func (v *Validator) validateOne(ctx context.Context, args ValidateArgs, candidate m.CacheCandidate, baseline float64) m.IndividualValidationResult {
	result := m.IndividualValidationResult{Candidate: candidate}

	v.ui.DisplayCycleStart(ctx, candidate, "validate")

	patcher := v.newPatcher(args)

	ok, reason := patcher.Start(ctx)
	if !ok {
		result.Err = reason
		return result
	}

	defer patcher.End(ctx)

	result.Applied = patcher.ApplyCacheWrapper(ctx, candidate.File, candidate.FunctionName, args.CacheSize)
	if !result.Applied {
		result.Err = "wrapper not applicable"
		return result
	}

	stats, output, err := v.benchWithStats(ctx, args)
	if err != nil {
		result.Err = fmt.Sprintf("benchmark failed: %v", err)
		return result
	}

	result.HitRatePercent = stats[candidateKey(candidate)].HitRatePercent()
	result.BenchOutput = output

	if mutated, ok := meanNsPerOp(output); ok && baseline > 0 {
		result.SpeedupPercent = (baseline - mutated) / baseline * 100
	}

	return result
}

func candidateKey(candidate m.CacheCandidate) string {
	return cacheStatName(candidate.File, candidate.FunctionName)
}

// benchWithStats runs the suite in a fresh process with the memo stats
// file wired up and returns per-cache counters keyed by file-qualified
// function name, plus the raw benchmark output.
func (v *Validator) benchWithStats(ctx context.Context, args ValidateArgs) (map[string]memo.Stats, string, error) {
	statsFile, err := os.CreateTemp("", "memoscope-stats-*.json")
	if err != nil {
		return nil, "", err
	}

	statsPath := statsFile.Name()
	_ = statsFile.Close()
	_ = os.Remove(statsPath)

	defer func() { _ = os.Remove(statsPath) }()

	output, err := v.bench.RunBench(ctx, string(args.RepoRoot), args.BenchPattern, map[string]string{
		memo.StatsFileEnv: statsPath,
	})
	if err != nil {
		return nil, output, fmt.Errorf("%w: %s", err, tail(output, 400))
	}

	stats, err := memo.ReadStatsFile(statsPath)
	if err != nil {
		return nil, output, fmt.Errorf("stats file unreadable: %w", err)
	}

	return stats, output, nil
}

func recommend(args ValidateArgs, result m.IndividualValidationResult) m.CacheRecommendation {
	rec := m.CacheRecommendation{
		Candidate:      result.Candidate,
		CacheSize:      args.CacheSize,
		HitRatePercent: result.HitRatePercent,
		SpeedupPercent: result.SpeedupPercent,
	}

	switch {
	case result.Err != "":
		rec.Reason = result.Err
	case result.HitRatePercent < args.HitRateThreshold:
		rec.Reason = fmt.Sprintf("hit rate %.1f%% below %.1f%%", result.HitRatePercent, args.HitRateThreshold)
	case result.SpeedupPercent < args.SpeedupThreshold:
		rec.Reason = fmt.Sprintf("speedup %.1f%% below %.1f%%", result.SpeedupPercent, args.SpeedupThreshold)
	default:
		rec.Accepted = true
		rec.Reason = "measured benefit above thresholds"
	}

	return rec
}

var benchLineRe = regexp.MustCompile(`(?m)^Benchmark\S+\s+\d+\s+([0-9.]+) ns/op`)

// meanNsPerOp averages every benchmark line in a `go test -bench` output.
func meanNsPerOp(output string) (float64, bool) {
	matches := benchLineRe.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return 0, false
	}

	total := 0.0

	for _, match := range matches {
		v, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}

		total += v
	}

	return total / float64(len(matches)), true
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[len(s)-n:]
}
