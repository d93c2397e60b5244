package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mkawase/classtask-api/internal/dto"
	"github.com/mkawase/classtask-api/internal/models"
	"github.com/mkawase/classtask-api/internal/service"
	appErrors "github.com/mkawase/classtask-api/pkg/errors"
	"github.com/mkawase/classtask-api/pkg/response"
)

type lifecycleService interface {
	Archive(ctx context.Context, taskID, actorID string, opts service.ArchiveOptions) (*models.Task, error)
	Unarchive(ctx context.Context, taskID, actorID string) (*models.Task, error)
	UpdateStudentViewPermission(ctx context.Context, taskID, actorID string, allow bool) (*models.Task, error)
	SoftDelete(ctx context.Context, taskID, actorID string) (*models.Task, error)
	Restore(ctx context.Context, taskID, actorID string) (*models.Task, error)
	HardDelete(ctx context.Context, taskID, actorID string) error
	BatchOperate(ctx context.Context, taskIDs []string, operation, actorID string, opts service.ArchiveOptions) (*dto.BatchTaskResponse, error)
}

// TaskLifecycleHandler exposes the lifecycle transition endpoints.
type TaskLifecycleHandler struct {
	service lifecycleService
}

// NewTaskLifecycleHandler constructs the handler.
func NewTaskLifecycleHandler(service lifecycleService) *TaskLifecycleHandler {
	return &TaskLifecycleHandler{service: service}
}

// Archive godoc
// @Summary Archive a task
// @Tags Tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param body body dto.ArchiveTaskRequest false "Archive options"
// @Success 200 {object} response.Envelope
// @Router /tasks/{id}/archive [post]
func (h *TaskLifecycleHandler) Archive(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ArchiveTaskRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid archive payload"))
			return
		}
	}
	task, err := h.service.Archive(c.Request.Context(), c.Param("id"), claims.UserID, service.ArchiveOptions{
		AllowStudentViewWhenArchived: req.AllowStudentViewWhenArchived,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, task, nil)
}

// Unarchive godoc
// @Summary Return an archived task to the active state
// @Tags Tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} response.Envelope
// @Router /tasks/{id}/unarchive [post]
func (h *TaskLifecycleHandler) Unarchive(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	task, err := h.service.Unarchive(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, task, nil)
}

// UpdateStudentView godoc
// @Summary Toggle archived-task visibility for students
// @Tags Tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param body body dto.StudentViewRequest true "Visibility"
// @Success 200 {object} response.Envelope
// @Router /tasks/{id}/student-permission [put]
func (h *TaskLifecycleHandler) UpdateStudentView(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.StudentViewRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.AllowStudentViewWhenArchived == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "allowStudentViewWhenArchived is required"))
		return
	}
	task, err := h.service.UpdateStudentViewPermission(c.Request.Context(), c.Param("id"), claims.UserID, *req.AllowStudentViewWhenArchived)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, task, nil)
}

// SoftDelete godoc
// @Summary Move a task to the trash
// @Tags Tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} response.Envelope
// @Router /tasks/{id} [delete]
func (h *TaskLifecycleHandler) SoftDelete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	task, err := h.service.SoftDelete(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, task, nil)
}

// Restore godoc
// @Summary Restore a task from the trash
// @Tags Tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} response.Envelope
// @Router /tasks/{id}/restore [post]
func (h *TaskLifecycleHandler) Restore(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	task, err := h.service.Restore(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, task, nil)
}

// HardDelete godoc
// @Summary Permanently delete a task and its submissions
// @Tags Tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 204
// @Router /tasks/{id}/hard [delete]
func (h *TaskLifecycleHandler) HardDelete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.HardDelete(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Batch godoc
// @Summary Apply one lifecycle operation to many tasks
// @Tags Tasks
// @Accept json
// @Produce json
// @Param body body dto.BatchTaskRequest true "Batch request"
// @Success 200 {object} response.Envelope
// @Router /tasks/batch [post]
func (h *TaskLifecycleHandler) Batch(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.BatchTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid batch payload"))
		return
	}
	result, err := h.service.BatchOperate(c.Request.Context(), req.TaskIDs, req.Operation, claims.UserID, service.ArchiveOptions{
		AllowStudentViewWhenArchived: req.Options.AllowStudentViewWhenArchived,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	// A batch with failed items is still a 200; callers inspect results.
	response.JSON(c, http.StatusOK, result, nil)
}
