package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gosuri/uilive"
	"golang.org/x/term"
)

const (
	barFilled = "█"
	barEmpty  = "░"
	barWidth  = 24
)

// ProgressBar shows how far the current album is. On a terminal the line is
// redrawn in place; elsewhere a single line is printed per album.
type ProgressBar struct {
	mu     sync.Mutex
	out    io.Writer
	live   bool
	writer *uilive.Writer

	label string
	total int
	done  int
	start time.Time
}

// NewProgressBar creates a progress bar writing to out
func NewProgressBar(out io.Writer) *ProgressBar {
	return newProgressBar(out, isTerminal(out))
}

func newProgressBar(out io.Writer, live bool) *ProgressBar {
	return &ProgressBar{out: out, live: live}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Start begins a new album
func (p *ProgressBar) Start(label string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.label = label
	p.total = total
	p.done = 0
	p.start = time.Now()

	if p.live {
		p.writer = uilive.New()
		p.writer.Out = p.out
		p.redraw()
	}
}

// Advance records one finished photo
func (p *ProgressBar) Advance() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	if p.live {
		p.redraw()
	}
}

// Finish completes the current album
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.live && p.writer != nil {
		p.redraw()
		p.writer = nil
		return
	}
	fmt.Fprintln(p.out, p.line())
}

func (p *ProgressBar) redraw() {
	fmt.Fprintln(p.writer, p.line())
	p.writer.Flush()
}

func (p *ProgressBar) line() string {
	filled := barWidth
	if p.total > 0 {
		filled = p.done * barWidth / p.total
		if filled > barWidth {
			filled = barWidth
		}
	}
	bar := strings.Repeat(barFilled, filled) + strings.Repeat(barEmpty, barWidth-filled)
	elapsed := time.Since(p.start).Round(time.Second)
	return fmt.Sprintf("%s [%s] %d/%d %s", p.label, bar, p.done, p.total, elapsed)
}
