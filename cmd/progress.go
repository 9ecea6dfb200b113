package cmd

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"

	"github.com/kiesman99/rstile/internal/progress"
)

// spinnerReporter draws "<spinner> label n/total (rate)" on one terminal
// line until Stop is called
type spinnerReporter struct {
	out       io.Writer
	label     string
	completed atomic.Int64
	total     atomic.Int64
	done      chan struct{}
	wg        sync.WaitGroup
}

// startProgress returns a reporter for the command's stderr. With --quiet
// it returns progress.Discard and a no-op stop.
func startProgress(out io.Writer, label string, quiet bool) (progress.Reporter, func()) {
	if quiet {
		return progress.Discard, func() {}
	}

	r := &spinnerReporter{out: out, label: label, done: make(chan struct{})}
	r.wg.Add(1)
	go r.run()
	return r, r.stop
}

func (r *spinnerReporter) Report(completed, total int) {
	r.total.Store(int64(total))
	r.completed.Store(int64(completed))
}

func (r *spinnerReporter) run() {
	defer r.wg.Done()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	start := time.Now()

	for {
		select {
		case <-r.done:
			fmt.Fprintf(r.out, "\r%s %s complete. %d/%d processed.\n", "✓", r.label, r.completed.Load(), r.total.Load())
			return
		case <-ticker.C:
			s, _ = s.Update(spinner.TickMsg{})
			completed := r.completed.Load()
			var rate float64
			if elapsed := time.Since(start).Seconds(); elapsed > 0 {
				rate = float64(completed) / elapsed
			}
			fmt.Fprintf(r.out, "\r%s %s %d/%d... (%.2f/s)", s.View(), r.label, completed, r.total.Load(), rate)
		}
	}
}

func (r *spinnerReporter) stop() {
	close(r.done)
	r.wg.Wait()
}

var (
	durationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("202"))
	countStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)
