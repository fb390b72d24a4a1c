package model

// Hotspot is one profiled function that cleared the call-count and
// cumulative-time thresholds. Derived from a single profiling snapshot;
// lists are ordered by CumulativeTime descending.
type Hotspot struct {
	File           Path
	FunctionName   string
	Line           int
	CallCount      int64
	CumulativeTime float64 // seconds
	TimePerCall    float64 // seconds
}
