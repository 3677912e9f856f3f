package app

import (
	"fmt"
	"log"
	"os"
	"time"
)

// profiler appends per-frame section timings as CSV so frame-budget
// regressions (>16 ms at 60 Hz) can be traced to a stage. A nil profiler is
// inert, so call sites never need guards.
type profiler struct {
	file  *os.File
	start time.Time
	last  time.Time
}

func newProfiler(path string, logger *log.Logger) *profiler {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		if logger != nil {
			logger.Printf("profiler disabled: %v", err)
		}
		return nil
	}
	fmt.Fprintln(f, "timestamp,section,delta_ms")
	return &profiler{file: f}
}

func (p *profiler) beginFrame() {
	if p == nil {
		return
	}
	now := time.Now()
	p.start = now
	p.last = now
}

func (p *profiler) markSection(name string) {
	if p == nil {
		return
	}
	now := time.Now()
	p.write(name, now.Sub(p.last))
	p.last = now
}

func (p *profiler) endFrame() {
	if p == nil {
		return
	}
	p.write("frame_total", time.Since(p.start))
}

func (p *profiler) Close() error {
	if p == nil || p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	return err
}

func (p *profiler) write(section string, delta time.Duration) {
	if p.file == nil {
		return
	}
	fmt.Fprintf(p.file, "%s,%s,%.3f\n",
		time.Now().Format(time.RFC3339Nano), section, delta.Seconds()*1000)
}
