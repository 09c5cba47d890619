package terminal

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var progressFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Progress is a single redrawn status line counting finished scenarios.
//
//	⠹ 3/7 scenarios, 1 failed · running admin-finance (12s)
type Progress struct {
	out   io.Writer
	total int
	tick  time.Duration

	mu       sync.Mutex
	finished int
	failed   int
	running  map[string]struct{}
	frame    int
	started  time.Time

	accent lipgloss.Style
	fail   lipgloss.Style

	quit chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewProgress returns a progress line for total scenarios on out.
func NewProgress(out io.Writer, total int) *Progress {
	return &Progress{
		out:     out,
		total:   total,
		tick:    100 * time.Millisecond,
		running: make(map[string]struct{}),
		accent:  lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#5599FF"}),
		fail:    lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#FF6B6B"}),
		quit:    make(chan struct{}),
	}
}

// Begin marks scenario as running.
func (p *Progress) Begin(scenario string) {
	p.mu.Lock()
	p.running[scenario] = struct{}{}
	p.mu.Unlock()
}

// Finish marks scenario as done.
func (p *Progress) Finish(scenario string, failed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.running, scenario)
	p.finished++
	if failed {
		p.failed++
	}
}

// Counts returns finished and failed scenario counts.
func (p *Progress) Counts() (finished, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished, p.failed
}

// Start draws the line until Stop.
func (p *Progress) Start() {
	p.mu.Lock()
	p.started = time.Now()
	p.mu.Unlock()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		t := time.NewTicker(p.tick)
		defer t.Stop()
		for {
			select {
			case <-p.quit:
				return
			case <-t.C:
				p.draw()
			}
		}
	}()
}

func (p *Progress) draw() {
	p.mu.Lock()
	defer p.mu.Unlock()
	var sb strings.Builder
	sb.WriteString(p.accent.Render(progressFrames[p.frame%len(progressFrames)]))
	p.frame++
	fmt.Fprintf(&sb, " %d/%d scenarios", p.finished, p.total)
	if p.failed > 0 {
		sb.WriteString(", " + p.fail.Render(fmt.Sprintf("%d failed", p.failed)))
	}
	if len(p.running) > 0 {
		names := make([]string, 0, len(p.running))
		for name := range p.running {
			names = append(names, name)
		}
		sort.Strings(names)
		sb.WriteString(" · running " + strings.Join(names, ", "))
	}
	fmt.Fprintf(&sb, " (%s)", time.Since(p.started).Round(time.Second))
	fmt.Fprint(p.out, "\r\033[K"+sb.String())
}

// Elapsed is the time since Start, or zero before it.
func (p *Progress) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started.IsZero() {
		return 0
	}
	return time.Since(p.started)
}

// Stop halts drawing and erases the line. Later calls do nothing.
func (p *Progress) Stop() {
	p.once.Do(func() {
		close(p.quit)
		p.wg.Wait()
		fmt.Fprint(p.out, "\r\033[K")
	})
}
