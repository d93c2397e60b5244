package sched

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RunFunc is invoked on each scheduled firing.
type RunFunc func(context.Context)

// DailyConfig configures a Daily scheduler.
type DailyConfig struct {
	// Hour is the local wall-clock hour (0-23) at which the task fires.
	Hour int
	// RunOnStart fires the task once immediately after Start.
	RunOnStart bool
	Location   *time.Location
	Logger     *zap.Logger
}

// Daily runs a task once every day at a fixed wall-clock hour. The delay to
// the next firing is recomputed after every run, so a single late run does
// not shift subsequent ones, and a failing run never stops the schedule.
type Daily struct {
	name string
	fn   RunFunc

	hour       int
	runOnStart bool
	loc        *time.Location
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewDaily builds a scheduler for the given task.
func NewDaily(name string, fn RunFunc, cfg DailyConfig) *Daily {
	if cfg.Hour < 0 || cfg.Hour > 23 {
		cfg.Hour = 0
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Daily{
		name:       name,
		fn:         fn,
		hour:       cfg.Hour,
		runOnStart: cfg.RunOnStart,
		loc:        cfg.Location,
		logger:     cfg.Logger,
		now:        time.Now,
	}
}

// Start launches the scheduling loop. Safe to call once.
func (d *Daily) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	d.started = true
	go d.loop(ctx)
	d.logger.Sugar().Infow("daily scheduler started", "task", d.name, "hour", d.hour)
}

// Stop cancels the loop and waits for it to exit.
func (d *Daily) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.cancel()
	done := d.done
	d.mu.Unlock()
	<-done
	d.logger.Sugar().Infow("daily scheduler stopped", "task", d.name)
}

func (d *Daily) loop(ctx context.Context) {
	defer close(d.done)

	if d.runOnStart {
		d.run(ctx)
	}

	for {
		delay := time.Until(NextRun(d.now().In(d.loc), d.hour))
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			d.run(ctx)
		}
	}
}

// run executes the task, containing panics so the schedule survives.
func (d *Daily) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Sugar().Errorw("scheduled task panicked", "task", d.name, "panic", r)
		}
	}()
	d.fn(ctx)
}

// NextRun returns the first occurrence of hour:00 strictly after now.
func NextRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
