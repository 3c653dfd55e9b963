// Package progress shows a ticking status line while the solver runs and
// prints coloured outcome lines. It only observes the solve.
package progress

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/eugenenazirov/parade-allocator/internal/milp"
)

var (
	colorCyan   = lipgloss.Color("36")
	colorGreen  = lipgloss.Color("35")
	colorYellow = lipgloss.Color("220")
	colorRed    = lipgloss.Color("167")
	colorDim    = lipgloss.Color("240")
)

var (
	styleSpinner = lipgloss.NewStyle().Foreground(colorCyan)
	styleDim     = lipgloss.NewStyle().Foreground(colorDim)
	styleSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleError   = lipgloss.NewStyle().Foreground(colorRed)
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Reporter renders solver progress on a terminal line. It implements
// milp.Observer; OnProgress only records the snapshot.
type Reporter struct {
	out      io.Writer
	message  string
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	start   time.Time
	last    milp.Progress
	width   int
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewReporter creates a Reporter writing to out.
func NewReporter(out io.Writer, message string) *Reporter {
	return &Reporter{
		out:      out,
		message:  message,
		interval: 100 * time.Millisecond,
		now:      time.Now,
	}
}

// OnProgress records the latest snapshot.
func (r *Reporter) OnProgress(p milp.Progress) {
	r.mu.Lock()
	r.last = p
	r.mu.Unlock()
}

// Start begins redrawing the status line until Stop is called or ctx ends.
func (r *Reporter) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.start = r.now()
	r.cancel = cancel
	r.stopped = make(chan struct{})
	stopped := r.stopped
	r.mu.Unlock()

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for i := 0; ; i++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.draw(frames[i%len(frames)])
			}
		}
	}()
}

// Stop halts the ticker and clears the status line.
func (r *Reporter) Stop() {
	r.mu.Lock()
	cancel, stopped := r.cancel, r.stopped
	r.cancel = nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-stopped

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.width > 0 {
		fmt.Fprintf(r.out, "\r%s\r", strings.Repeat(" ", r.width))
		r.width = 0
	}
}

// Line formats the status for the given frame.
func (r *Reporter) Line(frame string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lineLocked(frame)
}

func (r *Reporter) lineLocked(frame string) string {
	elapsed := r.now().Sub(r.start).Truncate(time.Second)
	status := fmt.Sprintf("%s  %s elapsed  %d nodes", r.message, elapsed, r.last.Nodes)
	if r.last.HasIncumbent {
		status += fmt.Sprintf("  best %.2f", r.last.Incumbent)
	}
	return styleSpinner.Render(frame) + " " + styleDim.Render(status)
}

func (r *Reporter) draw(frame string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	line := r.lineLocked(frame)
	r.width = max(r.width, lipgloss.Width(line))
	fmt.Fprintf(r.out, "\r%s", line)
}

// Title prints a bold heading.
func Title(w io.Writer, text string) {
	fmt.Fprintln(w, styleTitle.Render(text))
}

// Success prints a success line.
func Success(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleSuccess.Render("✓")+" "+fmt.Sprintf(format, args...))
}

// Warning prints a warning line.
func Warning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleWarning.Render("!")+" "+styleWarning.Render(fmt.Sprintf(format, args...)))
}

// Failure prints an error line.
func Failure(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleError.Render("✗")+" "+fmt.Sprintf(format, args...))
}

// Status prints the outcome of a solve coloured by how usable it is.
func Status(w io.Writer, status string) {
	switch status {
	case milp.StatusOptimal.String():
		Success(w, "Solver status: %s", status)
	case milp.StatusFeasible.String():
		Warning(w, "Solver status: %s (time limit reached, solution may not be optimal)", status)
	default:
		Failure(w, "Solver status: %s", status)
	}
}
