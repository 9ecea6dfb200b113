package progress

import (
	"sync"
	"testing"
)

func TestTrackerMonotonic(t *testing.T) {
	const total = 500

	var seen []int
	tracker := NewTracker(Func(func(completed, n int) {
		if n != total {
			t.Errorf("Expected total %d, got %d", total, n)
		}
		seen = append(seen, completed)
	}), total)

	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Done()
		}()
	}
	wg.Wait()

	if len(seen) != total {
		t.Fatalf("Expected %d reports, got %d", total, len(seen))
	}
	for i, c := range seen {
		if c != i+1 {
			t.Fatalf("Report %d carried %d", i, c)
		}
	}
	if tracker.Completed() != total {
		t.Errorf("Expected %d completed, got %d", total, tracker.Completed())
	}
}

func TestTrackerStopsAtTotal(t *testing.T) {
	reports := 0
	tracker := NewTracker(Func(func(int, int) { reports++ }), 2)
	for i := 0; i < 5; i++ {
		tracker.Done()
	}
	if reports != 2 || tracker.Completed() != 2 {
		t.Errorf("Expected 2 reports, got %d (completed %d)", reports, tracker.Completed())
	}
}

func TestTrackerNilReporter(t *testing.T) {
	tracker := NewTracker(nil, 1)
	tracker.Done()
	if tracker.Completed() != 1 {
		t.Errorf("Expected 1 completed, got %d", tracker.Completed())
	}
}
