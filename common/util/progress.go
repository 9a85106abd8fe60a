package util

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Progress tracks a batch of a known size. Every step is logged at debug level, and a summary is
// logged at info level at most once per interval.
type Progress struct {
	name     string
	total    int
	interval time.Duration
	logger   *logrus.Logger

	mu         sync.Mutex
	done       int
	start      time.Time
	lastReport time.Time
}

func NewProgress(logger *logrus.Logger, name string, total int, interval time.Duration) *Progress {
	now := time.Now()

	return &Progress{
		name:       name,
		total:      total,
		interval:   interval,
		logger:     logger,
		start:      now,
		lastReport: now,
	}
}

// Step marks one more item as done.
func (p *Progress) Step(fields logrus.Fields) {
	p.mu.Lock()
	p.done++
	done := p.done
	report := time.Since(p.lastReport) >= p.interval
	if report {
		p.lastReport = time.Now()
	}
	p.mu.Unlock()

	p.logger.WithFields(fields).WithFields(logrus.Fields{
		"done":  done,
		"total": p.total,
	}).Debugf("%s step", p.name)

	if report {
		p.report(done, "in progress")
	}
}

// Done returns the number of finished steps.
func (p *Progress) Done() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.done
}

// Finish logs the final summary.
func (p *Progress) Finish() {
	p.report(p.Done(), "finished")
}

func (p *Progress) report(done int, message string) {
	fields := logrus.Fields{
		"done":    done,
		"total":   p.total,
		"elapsed": time.Since(p.start).Round(time.Millisecond),
	}

	if p.total > 0 {
		fields["percent"] = done * 100 / p.total
	}

	p.logger.WithFields(fields).Infof("%s %s", p.name, message)
}
