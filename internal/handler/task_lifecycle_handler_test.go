package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkawase/classtask-api/internal/dto"
	"github.com/mkawase/classtask-api/internal/middleware"
	"github.com/mkawase/classtask-api/internal/models"
	"github.com/mkawase/classtask-api/internal/service"
	appErrors "github.com/mkawase/classtask-api/pkg/errors"
)

type lifecycleServiceMock struct {
	task       *models.Task
	err        error
	batchResp  *dto.BatchTaskResponse
	batchErr   error
	lastTask   string
	lastActor  string
	lastAllow  *bool
	lastOp     string
	lastIDs    []string
	hardCalled bool
}

func (m *lifecycleServiceMock) Archive(ctx context.Context, taskID, actorID string, opts service.ArchiveOptions) (*models.Task, error) {
	m.lastTask, m.lastActor, m.lastAllow = taskID, actorID, opts.AllowStudentViewWhenArchived
	return m.task, m.err
}

func (m *lifecycleServiceMock) Unarchive(ctx context.Context, taskID, actorID string) (*models.Task, error) {
	m.lastTask, m.lastActor = taskID, actorID
	return m.task, m.err
}

func (m *lifecycleServiceMock) UpdateStudentViewPermission(ctx context.Context, taskID, actorID string, allow bool) (*models.Task, error) {
	m.lastTask, m.lastActor, m.lastAllow = taskID, actorID, &allow
	return m.task, m.err
}

func (m *lifecycleServiceMock) SoftDelete(ctx context.Context, taskID, actorID string) (*models.Task, error) {
	m.lastTask, m.lastActor = taskID, actorID
	return m.task, m.err
}

func (m *lifecycleServiceMock) Restore(ctx context.Context, taskID, actorID string) (*models.Task, error) {
	m.lastTask, m.lastActor = taskID, actorID
	return m.task, m.err
}

func (m *lifecycleServiceMock) HardDelete(ctx context.Context, taskID, actorID string) error {
	m.hardCalled = true
	m.lastTask, m.lastActor = taskID, actorID
	return m.err
}

func (m *lifecycleServiceMock) BatchOperate(ctx context.Context, taskIDs []string, operation, actorID string, opts service.ArchiveOptions) (*dto.BatchTaskResponse, error) {
	m.lastIDs, m.lastOp, m.lastActor = taskIDs, operation, actorID
	return m.batchResp, m.batchErr
}

func lifecycleTestContext(t *testing.T, method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != nil {
		req, _ = http.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, path, nil)
	}
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})
	return c, w
}

func TestTaskLifecycleHandlerArchive(t *testing.T) {
	mockSvc := &lifecycleServiceMock{task: &models.Task{ID: "task-1", IsArchived: true}}
	h := NewTaskLifecycleHandler(mockSvc)

	payload, _ := json.Marshal(dto.ArchiveTaskRequest{})
	c, w := lifecycleTestContext(t, http.MethodPost, "/tasks/task-1/archive", payload)
	c.Params = gin.Params{{Key: "id", Value: "task-1"}}

	h.Archive(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "task-1", mockSvc.lastTask)
	assert.Equal(t, "teacher-1", mockSvc.lastActor)
}

func TestTaskLifecycleHandlerArchiveWithoutBody(t *testing.T) {
	mockSvc := &lifecycleServiceMock{task: &models.Task{ID: "task-1", IsArchived: true}}
	h := NewTaskLifecycleHandler(mockSvc)

	c, w := lifecycleTestContext(t, http.MethodPost, "/tasks/task-1/archive", nil)
	c.Params = gin.Params{{Key: "id", Value: "task-1"}}

	h.Archive(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, mockSvc.lastAllow)
}

func TestTaskLifecycleHandlerArchiveConflict(t *testing.T) {
	mockSvc := &lifecycleServiceMock{err: appErrors.ErrAlreadyArchived}
	h := NewTaskLifecycleHandler(mockSvc)

	c, w := lifecycleTestContext(t, http.MethodPost, "/tasks/task-1/archive", nil)
	c.Params = gin.Params{{Key: "id", Value: "task-1"}}

	h.Archive(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestTaskLifecycleHandlerNotOwner(t *testing.T) {
	mockSvc := &lifecycleServiceMock{err: appErrors.ErrNotOwner}
	h := NewTaskLifecycleHandler(mockSvc)

	c, w := lifecycleTestContext(t, http.MethodDelete, "/tasks/task-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "task-1"}}

	h.SoftDelete(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestTaskLifecycleHandlerStudentViewRequiresFlag(t *testing.T) {
	h := NewTaskLifecycleHandler(&lifecycleServiceMock{})

	c, w := lifecycleTestContext(t, http.MethodPut, "/tasks/task-1/student-permission", []byte(`{}`))
	c.Params = gin.Params{{Key: "id", Value: "task-1"}}

	h.UpdateStudentView(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTaskLifecycleHandlerHardDeleteNoContent(t *testing.T) {
	mockSvc := &lifecycleServiceMock{}
	h := NewTaskLifecycleHandler(mockSvc)

	c, w := lifecycleTestContext(t, http.MethodDelete, "/tasks/task-1/hard", nil)
	c.Params = gin.Params{{Key: "id", Value: "task-1"}}

	h.HardDelete(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, mockSvc.hardCalled)
}

func TestTaskLifecycleHandlerBatch(t *testing.T) {
	mockSvc := &lifecycleServiceMock{batchResp: &dto.BatchTaskResponse{
		SuccessCount: 1,
		TotalCount:   2,
		Results: []dto.BatchItemResult{
			{TaskID: "task-1", Success: true},
			{TaskID: "task-2", Success: false, Message: "task is already archived"},
		},
	}}
	h := NewTaskLifecycleHandler(mockSvc)

	payload, _ := json.Marshal(dto.BatchTaskRequest{TaskIDs: []string{"task-1", "task-2"}, Operation: "archive"})
	c, w := lifecycleTestContext(t, http.MethodPost, "/tasks/batch", payload)

	h.Batch(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"task-1", "task-2"}, mockSvc.lastIDs)
	assert.Equal(t, "archive", mockSvc.lastOp)

	var envelope struct {
		Data dto.BatchTaskResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, 1, envelope.Data.SuccessCount)
	assert.Len(t, envelope.Data.Results, 2)
}

func TestTaskLifecycleHandlerBatchOwnershipRejected(t *testing.T) {
	mockSvc := &lifecycleServiceMock{batchErr: appErrors.Clone(appErrors.ErrForbidden, "some tasks do not exist or are not owned by the caller")}
	h := NewTaskLifecycleHandler(mockSvc)

	payload, _ := json.Marshal(dto.BatchTaskRequest{TaskIDs: []string{"task-1"}, Operation: "archive"})
	c, w := lifecycleTestContext(t, http.MethodPost, "/tasks/batch", payload)

	h.Batch(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestTaskLifecycleHandlerMissingClaims(t *testing.T) {
	h := NewTaskLifecycleHandler(&lifecycleServiceMock{})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/tasks/task-1/archive", nil)
	c.Request = req

	h.Archive(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
