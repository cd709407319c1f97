package output

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/tkarev/bracedl/internal/engine"
)

type fileState struct {
	downloaded int64
	total      int64
	done       bool
	success    bool
	message    string
	started    time.Time
	lastBytes  int64
	lastTime   time.Time
	speed      float64 // bytes/sec
}

// Renderer draws a live per-file progress display fed entirely by engine
// events. It keeps no engine state beyond what the callbacks carry.
type Renderer struct {
	mu       sync.Mutex
	files    map[string]*fileState
	order    []string
	doneCh   chan struct{}
	stopOnce sync.Once
	numLines int
}

func NewRenderer() *Renderer {
	return &Renderer{
		files:  make(map[string]*fileState),
		doneCh: make(chan struct{}),
	}
}

// Events returns the observer hooks to pass into the orchestrator.
func (r *Renderer) Events() engine.Events {
	return engine.Events{
		OnStart: func(filename string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			if _, exists := r.files[filename]; !exists {
				now := time.Now()
				r.files[filename] = &fileState{started: now, lastTime: now}
				r.order = append(r.order, filename)
			}
		},
		OnProgress: func(filename string, downloaded, total int64) {
			r.mu.Lock()
			defer r.mu.Unlock()
			if state, exists := r.files[filename]; exists {
				state.downloaded = downloaded
				state.total = total
			}
		},
		OnComplete: func(filename string, success bool, message string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			if state, exists := r.files[filename]; exists {
				state.done = true
				state.success = success
				state.message = message
			}
		},
	}
}

func (r *Renderer) StartDisplay() {
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.redraw()
			case <-r.doneCh:
				return
			}
		}
	}()
}

func (r *Renderer) Stop() {
	r.stopOnce.Do(func() { close(r.doneCh) })
	r.redraw()
}

func (r *Renderer) redraw() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.numLines != 0 {
		fmt.Printf("\033[%dA\033[J", r.numLines)
	}
	now := time.Now()
	for _, filename := range r.order {
		state := r.files[filename]
		name := truncateName(filename, 25)
		if state.done {
			if state.success {
				fmt.Println(successStyle.Render(fmt.Sprintf("%s %s  %s  %s",
					StyleSymbols["pass"], name, humanize.IBytes(uint64(state.downloaded)), state.message)))
			} else {
				fmt.Println(errorStyle.Render(fmt.Sprintf("%s %s  %s",
					StyleSymbols["fail"], name, state.message)))
			}
			continue
		}
		if state.downloaded == 0 {
			fmt.Println(pendingStyle.Render(fmt.Sprintf("%s %s  waiting", StyleSymbols["pending"], name)))
			continue
		}
		elapsed := now.Sub(state.lastTime).Seconds()
		if elapsed > 0.25 {
			state.speed = float64(state.downloaded-state.lastBytes) / elapsed
			state.lastBytes = state.downloaded
			state.lastTime = now
		}
		fmt.Printf("%s %s %s/%s %s/s\n",
			name,
			progressBar(state.downloaded, state.total, 30),
			humanize.IBytes(uint64(state.downloaded)),
			humanize.IBytes(uint64(state.total)),
			humanize.IBytes(uint64(state.speed)))
	}
	r.numLines = len(r.order)
}

// ShowSummary prints the end-of-run report below the progress display.
func (r *Renderer) ShowSummary(summary *engine.Summary, elapsed time.Duration) {
	fmt.Println()
	PrintHeader(fmt.Sprintf("Downloaded %s in %.1fs", humanize.IBytes(uint64(summary.Bytes)), elapsed.Seconds()))
	PrintInfo(fmt.Sprintf("Completed: %d  Failed: %d  Cancelled: %d", summary.Completed, summary.Failed, summary.Cancelled))
	for _, failure := range summary.Failures {
		PrintError(fmt.Sprintf("%s %s %s %s", StyleSymbols["fail"], failure.Filename, StyleSymbols["arrow"], failure.Message))
	}
}

func progressBar(current, total int64, width int) string {
	if total <= 0 {
		total = 1
	}
	if current > total {
		current = total
	}
	percent := float64(current) / float64(total)
	filled := min(int(percent*float64(width)), width)
	bar := StyleSymbols["bullet"]
	bar += strings.Repeat(StyleSymbols["hline"], filled)
	if filled < width {
		bar += strings.Repeat(" ", width-filled)
	}
	bar += StyleSymbols["bullet"]
	return detailStyle.Render(fmt.Sprintf("%s %5.1f%%", bar, percent*100))
}

func truncateName(name string, max int) string {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 80 {
		max += width - 80
	}
	if len(name) > max {
		return "..." + name[len(name)-max+3:]
	}
	return name
}
