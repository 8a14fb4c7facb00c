// This file holds the logging helpers shared by the executor's commands.
//
// Both commands log through a single charmbracelet logger owned by the CLI
// struct; --verbose (-v) drops the level to debug. Phase boundaries (graph
// reconstruction, execution) report their elapsed time via progress.
package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a logger writing to w that filters messages at the
// given level. Timestamps are formatted as "HH:MM:SS.hh" (hundredths of a
// second).
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of a phase and logs completion with the
// elapsed duration. Sequential use by a single goroutine only.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg with the elapsed time since the tracker was created,
// rounded to the nearest millisecond.
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}
