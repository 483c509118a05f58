package judge

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sempr/cptest/pkg/models"
	"github.com/sempr/cptest/pkg/verdict"
)

// Summary folds case results as workers finish. Updates are serialized
// under a mutex, one per completed case, so the final counts never depend
// on completion order.
type Summary struct {
	mu       sync.Mutex
	generate bool
	total    int
	observed int
	counts   map[verdict.Verdict]int
	failures []models.CaseResult

	slowestCase string
	slowestTime time.Duration
	peakMemCase string
	peakMemKB   int64
}

// NewSummary prepares an aggregator for exactly total cases.
func NewSummary(generate bool, total int) *Summary {
	return &Summary{
		generate:  generate,
		total:     total,
		counts:    make(map[verdict.Verdict]int),
		peakMemKB: -1,
	}
}

// Add records one case result.
func (s *Summary) Add(result models.CaseResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observed++
	s.counts[result.Verdict]++
	if !result.Verdict.OK() {
		s.failures = append(s.failures, result)
	}

	// Extremes reflect completed runs only. A timed out case has its time
	// pinned at the limit and would otherwise always claim the slowest slot.
	if result.Verdict.OK() {
		if result.Stats.Time > s.slowestTime {
			s.slowestTime = result.Stats.Time
			s.slowestCase = result.Name
		}
		if result.Stats.MemoryKB > s.peakMemKB {
			s.peakMemKB = result.Stats.MemoryKB
			s.peakMemCase = result.Name
		}
	}
}

// Report finalizes the aggregate. It fails if any enumerated case has not
// reported, so a dropped or double-counted case can never go unnoticed.
func (s *Summary) Report(elapsed time.Duration) (*models.RunReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.observed != s.total {
		return nil, fmt.Errorf("observed %d case results for %d enumerated cases", s.observed, s.total)
	}

	failures := make([]models.CaseResult, len(s.failures))
	copy(failures, s.failures)
	sort.Slice(failures, func(i, j int) bool { return failures[i].Name < failures[j].Name })

	counts := make(map[verdict.Verdict]int, len(s.counts))
	for v, n := range s.counts {
		counts[v] = n
	}

	return &models.RunReport{
		GenerateMode: s.generate,
		Total:        s.total,
		Counts:       counts,
		Failures:     failures,
		Elapsed:      elapsed,
		SlowestCase:  s.slowestCase,
		SlowestTime:  s.slowestTime,
		PeakMemCase:  s.peakMemCase,
		PeakMemKB:    s.peakMemKB,
	}, nil
}
