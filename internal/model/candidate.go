// Package model defines the data structures for cache-opportunity analysis.
package model

// ExpenseIndicator marks a syntactic pattern suggesting a function is
// computationally expensive. Indicators are informational only and never
// filter a candidate out.
type ExpenseIndicator string

const (
	// IndicatorNestedLoops marks loop nesting of depth >= 2.
	IndicatorNestedLoops ExpenseIndicator = "nested_loops"
	// IndicatorRecursion marks self-referential calls.
	IndicatorRecursion ExpenseIndicator = "recursion"
	// IndicatorCrypto marks cryptography or hashing call names.
	IndicatorCrypto ExpenseIndicator = "crypto"
	// IndicatorComprehension marks nested collect loops (a range loop whose
	// body ranges again and accumulates into a collection).
	IndicatorComprehension ExpenseIndicator = "comprehension"
)

// Unbounded is the sentinel capacity for caches without a size limit.
const Unbounded = -1

// PureFunctionCandidate is the purity-classification result for one
// function. Recomputed on every scan; never persisted across passes.
type PureFunctionCandidate struct {
	File          Path
	FunctionName  string
	Line          int
	IsPure        bool
	Indicators    []ExpenseIndicator
	Disqualifiers []string
}

// ExistingCacheCandidate describes a function that is already routed
// through a recognized memoization wrapper. Capacity is the declared
// cache size, or Unbounded when the cache has no limit or the declared
// size could not be resolved to a constant.
type ExistingCacheCandidate struct {
	File         Path
	FunctionName string
	Line         int
	ModulePath   string
	Capacity     int
}

// Priority ranks how promising a cache candidate is.
type Priority string

const (
	// PriorityHigh marks candidates with heavy call volume, heavy
	// cumulative time and at least two expense indicators.
	PriorityHigh Priority = "HIGH"
	// PriorityMedium marks candidates with decent call volume or time.
	PriorityMedium Priority = "MEDIUM"
	// PriorityLow marks everything else that matched a hotspot.
	PriorityLow Priority = "LOW"
)

// CacheCandidate is a pure function that also shows up as a profiling
// hotspot. Produced by the ranker; exactly one per matched pair.
type CacheCandidate struct {
	File           Path
	FunctionName   string
	Line           int
	ModulePath     string
	CallCount      int64
	CumulativeTime float64
	Indicators     []ExpenseIndicator
	Priority       Priority
}
