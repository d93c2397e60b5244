package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mkawase/classtask-api/internal/dto"
	"github.com/mkawase/classtask-api/internal/models"
	appErrors "github.com/mkawase/classtask-api/pkg/errors"
	"github.com/mkawase/classtask-api/pkg/jobs"
)

// PurgeJobType identifies submission file purge jobs on the worker queue.
const PurgeJobType = "purge_submission_file"

type lifecycleTaskStore interface {
	GetByID(ctx context.Context, id string) (*models.Task, error)
	ApplyTransition(ctx context.Context, task *models.Task, entry *models.OperationEntry) error
	HardDelete(ctx context.Context, id string) error
	ListOwnedIDs(ctx context.Context, ownerID string, ids []string) ([]string, error)
}

type submissionCascader interface {
	DeleteByTask(ctx context.Context, taskID string) ([]string, error)
}

type purgeDispatcher interface {
	Enqueue(job jobs.Job) error
}

type listingInvalidator interface {
	InvalidateOwner(ctx context.Context, ownerID string)
}

type transitionRecorder interface {
	RecordTransition(action models.LifecycleAction, success bool)
}

// ArchiveOptions holds the single option the archive transition reads.
// AllowStudentViewWhenArchived defaults to true when nil.
type ArchiveOptions struct {
	AllowStudentViewWhenArchived *bool
}

func (o ArchiveOptions) allowStudentView() bool {
	if o.AllowStudentViewWhenArchived == nil {
		return true
	}
	return *o.AllowStudentViewWhenArchived
}

// LifecycleService applies single-task lifecycle transitions and batch
// operations. Ownership is always checked before any state precondition, so a
// non-owner receives the same error regardless of the task's actual state.
type LifecycleService struct {
	tasks       lifecycleTaskStore
	submissions submissionCascader
	purge       purgeDispatcher
	cache       listingInvalidator
	metrics     transitionRecorder
	logger      *zap.Logger
	now         func() time.Time
}

// NewLifecycleService constructs the service.
func NewLifecycleService(tasks lifecycleTaskStore, submissions submissionCascader, purge purgeDispatcher, cache listingInvalidator, metrics transitionRecorder, logger *zap.Logger) *LifecycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleService{
		tasks:       tasks,
		submissions: submissions,
		purge:       purge,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// Archive moves an active task into the archived state.
func (s *LifecycleService) Archive(ctx context.Context, taskID, actorID string, opts ArchiveOptions) (*models.Task, error) {
	task, err := s.loadOwned(ctx, taskID, actorID)
	if err != nil {
		return nil, s.fail(models.ActionArchive, err)
	}
	if task.IsDeleted {
		return nil, s.fail(models.ActionArchive, appErrors.ErrTaskDeleted)
	}
	if task.IsArchived {
		return nil, s.fail(models.ActionArchive, appErrors.ErrAlreadyArchived)
	}

	now := s.now().UTC()
	allow := opts.allowStudentView()
	task.IsArchived = true
	task.ArchivedAt = &now
	task.ArchivedBy = &actorID
	task.AllowStudentViewWhenArchived = allow

	details := "task archived, student view disabled"
	if allow {
		details = "task archived, student view enabled"
	}
	return s.apply(ctx, task, models.ActionArchive, actorID, details)
}

// Unarchive returns an archived task to the active state.
func (s *LifecycleService) Unarchive(ctx context.Context, taskID, actorID string) (*models.Task, error) {
	task, err := s.loadOwned(ctx, taskID, actorID)
	if err != nil {
		return nil, s.fail(models.ActionUnarchive, err)
	}
	if !task.IsArchived {
		return nil, s.fail(models.ActionUnarchive, appErrors.ErrNotArchived)
	}

	task.IsArchived = false
	task.ArchivedAt = nil
	task.ArchivedBy = nil
	task.AllowStudentViewWhenArchived = true

	return s.apply(ctx, task, models.ActionUnarchive, actorID, "task unarchived")
}

// UpdateStudentViewPermission toggles whether students may still see an
// archived task.
func (s *LifecycleService) UpdateStudentViewPermission(ctx context.Context, taskID, actorID string, allow bool) (*models.Task, error) {
	task, err := s.loadOwned(ctx, taskID, actorID)
	if err != nil {
		return nil, s.fail(models.ActionUpdateStudentView, err)
	}
	if !task.IsArchived {
		return nil, s.fail(models.ActionUpdateStudentView, appErrors.ErrNotArchived)
	}

	task.AllowStudentViewWhenArchived = allow

	details := "student view disabled for archived task"
	if allow {
		details = "student view enabled for archived task"
	}
	return s.apply(ctx, task, models.ActionUpdateStudentView, actorID, details)
}

// SoftDelete marks the task deleted, starting its retention countdown.
// Archive flags are left untouched; deletion dominates them.
func (s *LifecycleService) SoftDelete(ctx context.Context, taskID, actorID string) (*models.Task, error) {
	task, err := s.loadOwned(ctx, taskID, actorID)
	if err != nil {
		return nil, s.fail(models.ActionSoftDelete, err)
	}
	if task.IsDeleted {
		return nil, s.fail(models.ActionSoftDelete, appErrors.ErrAlreadyDeleted)
	}

	now := s.now().UTC()
	task.IsDeleted = true
	task.DeletedAt = &now
	task.DeletedBy = &actorID

	return s.apply(ctx, task, models.ActionSoftDelete, actorID, "task moved to trash")
}

// Restore clears the deleted flags within the retention window.
func (s *LifecycleService) Restore(ctx context.Context, taskID, actorID string) (*models.Task, error) {
	task, err := s.loadOwned(ctx, taskID, actorID)
	if err != nil {
		return nil, s.fail(models.ActionRestore, err)
	}
	if !task.IsDeleted {
		return nil, s.fail(models.ActionRestore, appErrors.ErrNotDeleted)
	}

	task.IsDeleted = false
	task.DeletedAt = nil
	task.DeletedBy = nil

	return s.apply(ctx, task, models.ActionRestore, actorID, "task restored from trash")
}

// HardDelete permanently removes the task. Dependent submissions are deleted
// first so no orphan survives; their file blobs are purged asynchronously.
func (s *LifecycleService) HardDelete(ctx context.Context, taskID, actorID string) error {
	if _, err := s.loadOwned(ctx, taskID, actorID); err != nil {
		return s.fail(models.ActionHardDelete, err)
	}

	if err := s.cascadeSubmissions(ctx, taskID); err != nil {
		return s.fail(models.ActionHardDelete, err)
	}
	if err := s.tasks.HardDelete(ctx, taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.fail(models.ActionHardDelete, appErrors.ErrTaskNotFound)
		}
		return s.fail(models.ActionHardDelete, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete task"))
	}

	if s.metrics != nil {
		s.metrics.RecordTransition(models.ActionHardDelete, true)
	}
	s.invalidate(ctx, actorID)
	s.logger.Info("task hard deleted", zap.String("task_id", taskID), zap.String("actor_id", actorID))
	return nil
}

// BatchOperate applies one named operation to many tasks. Ownership is an
// all-or-nothing gate up front; afterwards each item succeeds or fails in
// isolation and the batch itself never fails on an item.
func (s *LifecycleService) BatchOperate(ctx context.Context, taskIDs []string, operation, actorID string, opts ArchiveOptions) (*dto.BatchTaskResponse, error) {
	op := models.LifecycleAction(operation)
	switch op {
	case models.ActionArchive, models.ActionUnarchive, models.ActionSoftDelete, models.ActionRestore, models.ActionHardDelete:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported batch operation %q", operation))
	}

	ids := dedup(taskIDs)
	if len(ids) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "taskIds is required")
	}

	owned, err := s.tasks.ListOwnedIDs(ctx, actorID, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify task ownership")
	}
	if len(owned) < len(ids) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "some tasks do not exist or are not owned by the caller")
	}

	resp := &dto.BatchTaskResponse{
		TotalCount: len(ids),
		Results:    make([]dto.BatchItemResult, 0, len(ids)),
	}
	for _, id := range ids {
		if err := s.applyBatchItem(ctx, id, op, actorID, opts); err != nil {
			resp.Results = append(resp.Results, dto.BatchItemResult{
				TaskID:  id,
				Success: false,
				Message: appErrors.FromError(err).Message,
			})
			continue
		}
		resp.SuccessCount++
		resp.Results = append(resp.Results, dto.BatchItemResult{TaskID: id, Success: true})
	}
	return resp, nil
}

func (s *LifecycleService) applyBatchItem(ctx context.Context, taskID string, op models.LifecycleAction, actorID string, opts ArchiveOptions) error {
	var err error
	switch op {
	case models.ActionArchive:
		_, err = s.Archive(ctx, taskID, actorID, opts)
	case models.ActionUnarchive:
		_, err = s.Unarchive(ctx, taskID, actorID)
	case models.ActionSoftDelete:
		_, err = s.SoftDelete(ctx, taskID, actorID)
	case models.ActionRestore:
		_, err = s.Restore(ctx, taskID, actorID)
	case models.ActionHardDelete:
		err = s.HardDelete(ctx, taskID, actorID)
	}
	return err
}

func (s *LifecycleService) loadOwned(ctx context.Context, taskID, actorID string) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrTaskNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}
	if task.CreatedBy != actorID {
		return nil, appErrors.ErrNotOwner
	}
	return task, nil
}

// apply persists the mutated task together with exactly one history entry.
func (s *LifecycleService) apply(ctx context.Context, task *models.Task, action models.LifecycleAction, actorID, details string) (*models.Task, error) {
	entry := &models.OperationEntry{
		TaskID:      task.ID,
		Action:      action,
		PerformedBy: actorID,
		PerformedAt: s.now().UTC(),
		Details:     details,
	}
	if err := s.tasks.ApplyTransition(ctx, task, entry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.fail(action, appErrors.ErrTaskNotFound)
		}
		return nil, s.fail(action, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist transition"))
	}
	if s.metrics != nil {
		s.metrics.RecordTransition(action, true)
	}
	s.invalidate(ctx, task.CreatedBy)
	return task, nil
}

func (s *LifecycleService) cascadeSubmissions(ctx context.Context, taskID string) error {
	if s.submissions == nil {
		return nil
	}
	paths, err := s.submissions.DeleteByTask(ctx, taskID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete submissions")
	}
	s.enqueuePurge(paths)
	return nil
}

func (s *LifecycleService) enqueuePurge(paths []string) {
	if s.purge == nil {
		return
	}
	for _, path := range paths {
		if err := s.purge.Enqueue(newPurgeJob(path)); err != nil {
			s.logger.Warn("failed to enqueue file purge", zap.String("path", path), zap.Error(err))
		}
	}
}

func newPurgeJob(path string) jobs.Job {
	return jobs.Job{ID: uuid.NewString(), Type: PurgeJobType, Payload: path}
}

func (s *LifecycleService) invalidate(ctx context.Context, ownerID string) {
	if s.cache == nil {
		return
	}
	s.cache.InvalidateOwner(ctx, ownerID)
}

func (s *LifecycleService) fail(action models.LifecycleAction, err error) error {
	if s.metrics != nil {
		s.metrics.RecordTransition(action, false)
	}
	return err
}

func dedup(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
