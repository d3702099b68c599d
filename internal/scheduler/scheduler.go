package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc runs one tick of a task.
type TickFunc func(ctx context.Context) error

// Task is a named fixed-interval job. Each task runs on its own timer,
// independent of the others; two ticks of the same task never overlap —
// when a run overruns into the next scheduled start, that tick is
// skipped rather than queued.
type Task struct {
	Name       string
	Interval   time.Duration
	RunOnStart bool
	Run        TickFunc

	running sync.Mutex
}

// Scheduler drives a set of independent fixed-interval tasks.
type Scheduler struct {
	tasks  []*Task
	logger zerolog.Logger
}

// New constructs an empty scheduler.
func New(logger zerolog.Logger) *Scheduler {
	return &Scheduler{logger: logger.With().Str("component", "scheduler").Logger()}
}

// Register adds a task. Must be called before Run.
func (s *Scheduler) Register(task *Task) {
	if task.Interval <= 0 {
		panic("scheduler: task interval must be positive")
	}
	s.tasks = append(s.tasks, task)
	s.logger.Info().Str("task", task.Name).Dur("interval", task.Interval).Msg("task registered")
}

// Run blocks until ctx is cancelled, ticking every registered task on its
// own interval. In-flight ticks are allowed to finish; no new tick starts
// after cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, task := range s.tasks {
		task := task
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.loop(ctx, task)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (s *Scheduler) loop(ctx context.Context, task *Task) {
	if task.RunOnStart {
		s.tick(ctx, task)
	}

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, task)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, task *Task) {
	if !task.running.TryLock() {
		s.logger.Warn().Str("task", task.Name).Msg("previous tick still running, skipping")
		return
	}
	defer task.running.Unlock()

	start := time.Now()
	if err := task.Run(ctx); err != nil {
		s.logger.Error().Err(err).Str("task", task.Name).Dur("elapsed", time.Since(start)).Msg("tick failed")
		return
	}
	s.logger.Debug().Str("task", task.Name).Dur("elapsed", time.Since(start)).Msg("tick complete")
}
