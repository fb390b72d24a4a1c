package memo

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
)

// StatsFileEnv is the environment variable naming the file that every
// registered cache flushes its counters to. When unset (the normal case
// for production use of this package) no reporting happens at all.
const StatsFileEnv = "MEMOSCOPE_STATS"

// Counter flushes are throttled once a run is long enough for ratios to
// stabilize; below the threshold every lookup flushes, so short benchmark
// runs still report complete counters.
const flushEvery = 256

// Stats is a snapshot of one cache's counters.
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Entries int    `json:"entries"`
}

// HitRatePercent returns hits as a percentage of all lookups, 0 when the
// cache was never used.
func (s Stats) HitRatePercent() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total) * 100
}

type registration struct {
	name  string
	stats func() Stats
}

var (
	registryMu sync.Mutex
	registry   []registration

	statsPathOnce sync.Once
	statsPath     string

	opCount atomic.Uint64
)

func register(name string, stats func() Stats) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry = append(registry, registration{name: name, stats: stats})
}

func reportPath() string {
	statsPathOnce.Do(func() {
		statsPath = os.Getenv(StatsFileEnv)
	})

	return statsPath
}

func maybeFlush() {
	if reportPath() == "" {
		return
	}

	n := opCount.Add(1)
	if n <= flushEvery || n%flushEvery == 0 {
		_ = FlushStats()
	}
}

// FlushStats writes a JSON snapshot of every registered cache's counters
// to the file named by StatsFileEnv. Unnamed caches aggregate under the
// empty key. No-op without the environment variable.
func FlushStats() error {
	path := reportPath()
	if path == "" {
		return nil
	}

	registryMu.Lock()
	snapshot := make(map[string]Stats, len(registry))

	for _, reg := range registry {
		s := reg.stats()
		if prev, ok := snapshot[reg.name]; ok {
			s.Hits += prev.Hits
			s.Misses += prev.Misses
			s.Entries += prev.Entries
		}

		snapshot[reg.name] = s
	}
	registryMu.Unlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

// ReadStatsFile parses a stats snapshot written by FlushStats.
func ReadStatsFile(path string) (map[string]Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	stats := make(map[string]Stats)
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}

	return stats, nil
}
