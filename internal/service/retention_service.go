package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mkawase/classtask-api/internal/models"
)

const sweepBatchSize = 100

type retentionTaskStore interface {
	ListExpiredDeleted(ctx context.Context, cutoff time.Time, limit int) ([]models.Task, error)
	HardDelete(ctx context.Context, id string) error
}

type retentionRosterStore interface {
	ListExpiredRemoved(ctx context.Context, cutoff time.Time, limit int) ([]models.RosterEntry, error)
	HardDeleteEntry(ctx context.Context, entryID string) error
}

type exportJanitor interface {
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type sweepRecorder interface {
	RecordSweep(tasksDeleted, rosterDeleted, failures int)
}

// SweepResult summarises one retention sweep run.
type SweepResult struct {
	TasksDeleted  int `json:"tasksDeleted"`
	RosterDeleted int `json:"rosterDeleted"`
	Failures      int `json:"failures"`
}

// RetentionService permanently deletes records whose soft-delete retention
// window has elapsed. A failure on one record never blocks the rest of the
// sweep, and running the sweep again with no new expirations is a no-op.
type RetentionService struct {
	tasks       retentionTaskStore
	roster      retentionRosterStore
	submissions submissionCascader
	purge       purgeDispatcher
	exports     exportJanitor
	metrics     sweepRecorder
	logger      *zap.Logger
	window      time.Duration
	now         func() time.Time
}

// NewRetentionService constructs the service. window is the retention period
// after soft deletion (30 days unless configured otherwise).
func NewRetentionService(tasks retentionTaskStore, roster retentionRosterStore, submissions submissionCascader, purge purgeDispatcher, exports exportJanitor, metrics sweepRecorder, logger *zap.Logger, window time.Duration) *RetentionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	return &RetentionService{
		tasks:       tasks,
		roster:      roster,
		submissions: submissions,
		purge:       purge,
		exports:     exports,
		metrics:     metrics,
		logger:      logger,
		window:      window,
		now:         time.Now,
	}
}

// Window exposes the configured retention window.
func (s *RetentionService) Window() time.Duration {
	return s.window
}

// Sweep hard-deletes expired tasks (cascading their submissions) and expired
// roster entries, then prunes stale export files. It never returns an error:
// failures are logged, counted, and skipped.
func (s *RetentionService) Sweep(ctx context.Context) SweepResult {
	cutoff := s.now().UTC().Add(-s.window)
	result := SweepResult{}

	s.sweepTasks(ctx, cutoff, &result)
	s.sweepRoster(ctx, cutoff, &result)
	s.cleanupExports()

	if s.metrics != nil {
		s.metrics.RecordSweep(result.TasksDeleted, result.RosterDeleted, result.Failures)
	}
	s.logger.Info("retention sweep finished",
		zap.Int("tasks_deleted", result.TasksDeleted),
		zap.Int("roster_deleted", result.RosterDeleted),
		zap.Int("failures", result.Failures),
		zap.Time("cutoff", cutoff),
	)
	return result
}

func (s *RetentionService) sweepTasks(ctx context.Context, cutoff time.Time, result *SweepResult) {
	for {
		expired, err := s.tasks.ListExpiredDeleted(ctx, cutoff, sweepBatchSize)
		if err != nil {
			s.logger.Warn("failed to list expired tasks", zap.Error(err))
			result.Failures++
			return
		}
		if len(expired) == 0 {
			return
		}
		progress := 0
		for _, task := range expired {
			if err := s.deleteExpiredTask(ctx, task); err != nil {
				s.logger.Warn("failed to sweep task",
					zap.String("task_id", task.ID), zap.Error(err))
				result.Failures++
				continue
			}
			result.TasksDeleted++
			progress++
		}
		// A record that keeps failing would reappear in the next fetch;
		// stop once a full pass makes no progress.
		if progress == 0 || len(expired) < sweepBatchSize {
			return
		}
	}
}

func (s *RetentionService) deleteExpiredTask(ctx context.Context, task models.Task) error {
	if s.submissions != nil {
		paths, err := s.submissions.DeleteByTask(ctx, task.ID)
		if err != nil {
			return err
		}
		s.enqueuePurge(paths)
	}
	return s.tasks.HardDelete(ctx, task.ID)
}

func (s *RetentionService) sweepRoster(ctx context.Context, cutoff time.Time, result *SweepResult) {
	if s.roster == nil {
		return
	}
	for {
		expired, err := s.roster.ListExpiredRemoved(ctx, cutoff, sweepBatchSize)
		if err != nil {
			s.logger.Warn("failed to list expired roster entries", zap.Error(err))
			result.Failures++
			return
		}
		if len(expired) == 0 {
			return
		}
		progress := 0
		for _, entry := range expired {
			if err := s.roster.HardDeleteEntry(ctx, entry.ID); err != nil {
				s.logger.Warn("failed to sweep roster entry",
					zap.String("entry_id", entry.ID), zap.Error(err))
				result.Failures++
				continue
			}
			result.RosterDeleted++
			progress++
		}
		if progress == 0 || len(expired) < sweepBatchSize {
			return
		}
	}
}

func (s *RetentionService) cleanupExports() {
	if s.exports == nil {
		return
	}
	if _, err := s.exports.CleanupOlderThan(24 * time.Hour); err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
	}
}

func (s *RetentionService) enqueuePurge(paths []string) {
	if s.purge == nil {
		return
	}
	for _, path := range paths {
		if err := s.purge.Enqueue(newPurgeJob(path)); err != nil {
			s.logger.Warn("failed to enqueue file purge", zap.String("path", path), zap.Error(err))
		}
	}
}

// DaysLeft reports how many whole days remain before a soft-deleted record is
// swept. Derived at read time, never stored.
func DaysLeft(deletedAt, now time.Time, window time.Duration) int {
	totalDays := int(window / (24 * time.Hour))
	elapsed := int(now.Sub(deletedAt) / (24 * time.Hour))
	left := totalDays - elapsed
	if left < 0 {
		return 0
	}
	return left
}
