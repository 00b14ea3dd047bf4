package idcard

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
)

var (
	// ErrUnknownSubject is returned by Record for a subject not in the batch.
	ErrUnknownSubject = errors.New("unknown subject")
	// ErrDuplicateOutcome is returned by Record when a side already has an outcome.
	ErrDuplicateOutcome = errors.New("outcome already recorded")
	// ErrUnresolved is returned by Finalize when a call unit has no outcome.
	ErrUnresolved = errors.New("call unit has no outcome")
)

// RunStatistics is the consolidated result of a batch.
type RunStatistics struct {
	TotalSubjects    int
	OutcomesRecorded int

	// TotalCalls counts units that reached the remote service (every non-missing side).
	TotalCalls      int
	SuccessfulCalls int
	FailedCalls     int
	APIErrors       int
	Exceptions      int

	FrontMissing int
	BackMissing  int

	BothSuccess int
	FrontOnly   int
	BackOnly    int
	BothFailed  int

	// Results holds every subject sorted by name. Failed, Partial and
	// MissingImages are filtered views over it in the same order.
	Results       []SubjectResult
	Failed        []SubjectResult
	Partial       []SubjectResult
	MissingImages []SubjectResult
}

// SuccessRate returns successful calls as a percentage of attempted calls.
func (s *RunStatistics) SuccessRate() float64 {
	if s.TotalCalls == 0 {
		return 0
	}
	return float64(s.SuccessfulCalls) / float64(s.TotalCalls) * 100
}

// Share returns n as a percentage of all subjects.
func (s *RunStatistics) Share(n int) float64 {
	if s.TotalSubjects == 0 {
		return 0
	}
	return float64(n) / float64(s.TotalSubjects) * 100
}

type subjectState struct {
	item     WorkItem
	outcomes [2]*Outcome
}

// Aggregator accumulates outcomes from concurrent workers. Every mutation goes
// through one mutex so the counters and the per-subject state never diverge.
type Aggregator struct {
	mu       sync.Mutex
	subjects map[string]*subjectState
	stats    RunStatistics
	final    *RunStatistics
}

// NewAggregator prepares per-subject slots for every work item in the batch.
func NewAggregator(items []WorkItem) *Aggregator {
	a := &Aggregator{subjects: make(map[string]*subjectState, len(items))}
	for _, item := range items {
		a.subjects[item.Subject] = &subjectState{item: item}
	}
	a.stats.TotalSubjects = len(a.subjects)
	return a
}

func sideIndex(side Side) int {
	if side == Back {
		return 1
	}
	return 0
}

// Record stores the outcome for one (subject, side) unit and updates the global
// counters. It is safe for concurrent use.
func (a *Aggregator) Record(subject string, side Side, outcome Outcome) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, ok := a.subjects[subject]
	if !ok {
		return fmt.Errorf("record %s/%s: %w", subject, side.Label(), ErrUnknownSubject)
	}
	idx := sideIndex(side)
	if st.outcomes[idx] != nil {
		return fmt.Errorf("record %s/%s: %w", subject, side.Label(), ErrDuplicateOutcome)
	}
	o := outcome
	st.outcomes[idx] = &o
	a.final = nil

	a.stats.OutcomesRecorded++
	switch o.Kind {
	case KindMissing:
		if side == Front {
			a.stats.FrontMissing++
		} else {
			a.stats.BackMissing++
		}
		return nil
	case KindSuccess:
		a.stats.SuccessfulCalls++
	case KindAPIError:
		a.stats.FailedCalls++
		a.stats.APIErrors++
	case KindException:
		a.stats.FailedCalls++
		a.stats.Exceptions++
	}
	a.stats.TotalCalls++
	return nil
}

// Recorded returns how many outcomes have been stored so far.
func (a *Aggregator) Recorded() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats.OutcomesRecorded
}

// Finalize derives every SubjectResult and the categorized ledgers. It must
// only be called once all units are resolved and never concurrently with
// Record. Repeated calls return the same statistics.
func (a *Aggregator) Finalize() (*RunStatistics, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.final != nil {
		return a.final, nil
	}

	stats := a.stats
	stats.Results = make([]SubjectResult, 0, len(a.subjects))
	stats.Failed, stats.Partial, stats.MissingImages = nil, nil, nil
	stats.BothSuccess, stats.FrontOnly, stats.BackOnly, stats.BothFailed = 0, 0, 0, 0

	for name, st := range a.subjects {
		if st.outcomes[0] == nil || st.outcomes[1] == nil {
			return nil, fmt.Errorf("finalize %s: %w", name, ErrUnresolved)
		}
		res := SubjectResult{
			Subject:    name,
			FrontImage: imageName(st.item.Front),
			BackImage:  imageName(st.item.Back),
			Front:      *st.outcomes[0],
			Back:       *st.outcomes[1],
		}
		res.Status = Combine(res.Front, res.Back)
		stats.Results = append(stats.Results, res)
	}

	sort.Slice(stats.Results, func(i, j int) bool {
		return stats.Results[i].Subject < stats.Results[j].Subject
	})

	for _, res := range stats.Results {
		switch res.Status {
		case BothSuccess:
			stats.BothSuccess++
		case FrontOnly:
			stats.FrontOnly++
			stats.Partial = append(stats.Partial, res)
		case BackOnly:
			stats.BackOnly++
			stats.Partial = append(stats.Partial, res)
		case BothFailed:
			stats.BothFailed++
			stats.Failed = append(stats.Failed, res)
		}
		if res.Front.Kind == KindMissing || res.Back.Kind == KindMissing {
			stats.MissingImages = append(stats.MissingImages, res)
		}
	}

	a.final = &stats
	return a.final, nil
}

func imageName(ref *ImageRef) string {
	if ref == nil {
		return "N/A"
	}
	return filepath.Base(ref.Path)
}
