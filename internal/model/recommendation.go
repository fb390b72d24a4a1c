package model

// BatchScreeningResult is the outcome of the screening pass, where every
// eligible candidate is cached at once and the suite is benchmarked a
// single time to read per-cache hit rates.
type BatchScreeningResult struct {
	Candidate      CacheCandidate
	Applied        bool
	HitRatePercent float64
	Passed         bool
	Reason         string
}

// IndividualValidationResult is the outcome of one full validation cycle
// for a single candidate: isolated session, fresh-process benchmark,
// measured effect against the clean-tree baseline.
type IndividualValidationResult struct {
	Candidate      CacheCandidate
	Applied        bool
	HitRatePercent float64
	SpeedupPercent float64
	BenchOutput    string
	Err            string
}

// CacheRecommendation binds one candidate to its measurements and the
// final accept/reject decision against the configured thresholds.
type CacheRecommendation struct {
	Candidate      CacheCandidate
	CacheSize      int
	HitRatePercent float64
	SpeedupPercent float64
	Accepted       bool
	Reason         string
}
