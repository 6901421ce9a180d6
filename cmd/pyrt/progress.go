// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"github.com/pyrt-dev/pyrt/internal/acquire"
)

// progressInterval bounds how often the download line is redrawn.
const progressInterval = 100 * time.Millisecond

// progressPrinter turns acquisition events into log lines and, on a
// terminal, a redrawn download counter.
type progressPrinter struct {
	w      io.Writer
	tty    bool
	logger *log.Logger
	redraw rate.Sometimes

	mu    sync.Mutex
	last  acquire.State
	drawn bool
}

func newProgressPrinter(w io.Writer, logger *log.Logger) *progressPrinter {
	return &progressPrinter{
		w:      w,
		tty:    isTerminal(w),
		logger: logger,
		redraw: rate.Sometimes{Interval: progressInterval},
		last:   -1,
	}
}

func (p *progressPrinter) report(pr acquire.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pr.State != p.last {
		p.clearLine()
		p.last = pr.State
		switch pr.State {
		case acquire.StateDownload:
			p.logger.Info("downloading", "version", pr.Version, "asset", pr.Asset)
		case acquire.StateDone:
			p.logger.Info("installed", "version", pr.Version, "build_date", pr.BuildDate)
		default:
			p.logger.Debug("acquisition step", "state", pr.State, "version", pr.Version)
		}
	}

	if pr.State != acquire.StateDownload || !p.tty || pr.Downloaded == 0 {
		return
	}
	p.redraw.Do(func() {
		_, _ = fmt.Fprintf(p.w, "\r%s %s", SubtitleStyle.Render("downloaded"), formatProgress(pr.Downloaded, pr.Total))
		p.drawn = true
	})
}

func (p *progressPrinter) clearLine() {
	if p.drawn {
		_, _ = fmt.Fprint(p.w, "\r\033[K")
		p.drawn = false
	}
}

func formatProgress(done, total int64) string {
	if total <= 0 {
		return humanize.Bytes(uint64(done))
	}
	pct := float64(done) / float64(total) * 100
	return fmt.Sprintf("%s / %s (%.0f%%)", humanize.Bytes(uint64(done)), humanize.Bytes(uint64(total)), pct)
}
