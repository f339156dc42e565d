package mapping

import (
	"sync"

	"github.com/poiesic/termbridge/core"
)

// FeedbackLog is the append-only record of reviewer feedback with running
// per code-pair sums, so appends and adjustment reads stay cheap.
type FeedbackLog struct {
	mu      sync.Mutex
	records []core.Feedback
	sums    map[string]float64
	counts  map[string]int
	applied int
}

// NewFeedbackLog creates a log seeded with previously recorded feedback.
func NewFeedbackLog(records []core.Feedback) *FeedbackLog {
	l := &FeedbackLog{
		sums:   make(map[string]float64),
		counts: make(map[string]int),
	}
	for _, fb := range records {
		l.append(fb)
	}
	return l
}

func (l *FeedbackLog) append(fb core.Feedback) int {
	l.records = append(l.records, fb)
	key := core.FeedbackKey(fb.CodePair())
	l.sums[key] += fb.ConfidenceAdjustment
	l.counts[key]++
	return len(l.records) - l.applied
}

// Append records fb and returns how many records are not yet folded into a
// published generation.
func (l *FeedbackLog) Append(fb core.Feedback) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.append(fb)
}

// Adjustments returns the mean adjustment per code pair and the number of
// records they cover.
func (l *FeedbackLog) Adjustments() (map[string]float64, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	adj := make(map[string]float64, len(l.sums))
	for key, sum := range l.sums {
		adj[key] = sum / float64(l.counts[key])
	}
	return adj, len(l.records)
}

// MarkApplied records that the first n records are reflected in the
// published generation.
func (l *FeedbackLog) MarkApplied(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n > len(l.records) {
		n = len(l.records)
	}
	if n > l.applied {
		l.applied = n
	}
}

// Pending returns the number of records not yet applied.
func (l *FeedbackLog) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records) - l.applied
}

// Count returns the total number of records.
func (l *FeedbackLog) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Records returns a copy of every record in append order.
func (l *FeedbackLog) Records() []core.Feedback {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]core.Feedback(nil), l.records...)
}
