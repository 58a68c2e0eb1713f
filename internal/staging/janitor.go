package staging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor periodically deletes staged files older than maxAge.
type Janitor struct {
	dir    string
	maxAge time.Duration
	cron   *cron.Cron
	logger *slog.Logger
}

// NewJanitor schedules sweeps of dir. schedule is a six-field cron expression (with seconds).
func NewJanitor(dir string, maxAge time.Duration, schedule string, logger *slog.Logger) (*Janitor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	j := &Janitor{
		dir:    dir,
		maxAge: maxAge,
		cron:   cron.New(cron.WithSeconds()),
		logger: logger,
	}
	if _, err := j.cron.AddFunc(schedule, j.run); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Start begins running sweeps in the background.
func (j *Janitor) Start() { j.cron.Start() }

// Stop halts the schedule and waits for a running sweep to finish or ctx to end.
func (j *Janitor) Stop(ctx context.Context) {
	select {
	case <-j.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (j *Janitor) run() {
	removed, err := j.Sweep(time.Now())
	if err != nil {
		j.logger.Error("staging cleanup failed", "dir", j.dir, "error", err)
		return
	}
	if removed > 0 {
		j.logger.Info("staging cleanup", "dir", j.dir, "removed", removed)
	}
}

// Sweep removes regular files last modified more than maxAge before now.
// It keeps going past individual failures and returns the first one.
func (j *Janitor) Sweep(now time.Time) (int, error) {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read staging dir: %w", err)
	}

	var firstErr error
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= j.maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(j.dir, entry.Name())); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove %s: %w", entry.Name(), err)
			}
			continue
		}
		removed++
	}
	return removed, firstErr
}
