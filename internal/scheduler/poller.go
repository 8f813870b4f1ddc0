// Package scheduler runs the due-date poller that nags assignees about tasks
// due soon or overdue.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gurkanbulca/taskboard/internal/events"
	"github.com/gurkanbulca/taskboard/internal/models"
)

const (
	DefaultInterval = 60 * time.Second
	DefaultWindow   = time.Hour
)

// TaskSource lists active tasks that have a due date
type TaskSource interface {
	ListWithDueDate(ctx context.Context) ([]*models.Task, error)
}

// Notifier fans out a due-date condition
type Notifier interface {
	DueDate(ctx context.Context, typ models.NotificationType, task *models.Task) events.Result
}

// Poller scans tasks on a fixed interval. There is no de-duplication: a task stays
// DUE_SOON on every tick until it leaves the window or becomes OVERDUE.
type Poller struct {
	tasks    TaskSource
	notifier Notifier
	interval time.Duration
	window   time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewPoller creates a poller. Non-positive durations fall back to the defaults.
func NewPoller(tasks TaskSource, notifier Notifier, interval, window time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		tasks:    tasks,
		notifier: notifier,
		interval: interval,
		window:   window,
		now:      time.Now,
		logger:   logger.With("component", "scheduler"),
	}
}

// Run ticks until ctx is done. The first tick happens one interval after start.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("due-date poller started", "interval", p.interval, "window", p.window)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("due-date poller stopped")
			return nil
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick scans once and returns the number of tasks notified
func (p *Poller) Tick(ctx context.Context) int {
	tasks, err := p.tasks.ListWithDueDate(ctx)
	if err != nil {
		p.logger.Warn("failed to load tasks with due dates", "error", err)
		return 0
	}

	now := p.now()
	notified := 0
	for _, task := range tasks {
		ok, err := p.check(ctx, now, task)
		if err != nil {
			p.logger.Warn("due-date check failed", "task_id", task.ID, "error", err)
			continue
		}
		if ok {
			notified++
		}
	}

	if notified > 0 {
		p.logger.Info("due-date notifications sent", "count", notified, "scanned", len(tasks))
	}
	return notified
}

// check notifies one task. A panic is reported as an error so the scan continues.
func (p *Poller) check(ctx context.Context, now time.Time, task *models.Task) (notified bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			notified, err = false, fmt.Errorf("panic: %v", r)
		}
	}()

	typ, ok := Classify(now, task.DueDate, p.window)
	if !ok {
		return false, nil
	}
	p.logger.Debug("due-date condition", "task_id", task.ID, "type", typ)
	// fan-out failures are logged by the notifier
	p.notifier.DueDate(ctx, typ, task)
	return true, nil
}

// Classify reports OVERDUE when due is before now and DUE_SOON when due is within [now, now+window]
func Classify(now time.Time, due *time.Time, window time.Duration) (models.NotificationType, bool) {
	if due == nil {
		return "", false
	}
	switch {
	case due.Before(now):
		return models.NotificationOverdue, true
	case !due.After(now.Add(window)):
		return models.NotificationDueSoon, true
	default:
		return "", false
	}
}
