// Package progress carries (completed, total) counts from a running export
// or normalisation to whatever front-end shows them.
package progress

import "sync"

// Reporter receives progress. Report is called once per finished tile or
// file with completed strictly increasing up to total.
type Reporter interface {
	Report(completed, total int)
}

// Func adapts a function to a Reporter
type Func func(completed, total int)

func (f Func) Report(completed, total int) { f(completed, total) }

// Discard drops all reports
var Discard Reporter = Func(func(int, int) {})

// Tracker counts completions from concurrent workers and forwards each one
// to a Reporter in order, so the reported sequence never goes backwards
type Tracker struct {
	mu        sync.Mutex
	reporter  Reporter
	completed int
	total     int
}

// NewTracker returns a tracker for total units of work. A nil reporter discards.
func NewTracker(reporter Reporter, total int) *Tracker {
	if reporter == nil {
		reporter = Discard
	}
	return &Tracker{reporter: reporter, total: total}
}

// Done records one completed unit and reports it
func (t *Tracker) Done() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.completed >= t.total {
		return
	}
	t.completed++
	t.reporter.Report(t.completed, t.total)
}

// Completed returns the number of units recorded so far
func (t *Tracker) Completed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}
