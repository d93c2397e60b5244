package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mkawase/classtask-api/internal/dto"
	"github.com/mkawase/classtask-api/internal/models"
	appErrors "github.com/mkawase/classtask-api/pkg/errors"
	"github.com/mkawase/classtask-api/pkg/export"
)

type exportTaskSource interface {
	GetByID(ctx context.Context, id string) (*models.Task, error)
	ListHistory(ctx context.Context, taskID string) ([]models.OperationEntry, error)
}

type exportFileStore interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

type exportSigner interface {
	Generate(id, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (id, relPath string, expiresAt time.Time, err error)
}

// HistoryDownload bundles a resolved export file for streaming.
type HistoryDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	ExpiresAt time.Time
}

// HistoryExportService renders a task's operation history as CSV or PDF and
// hands out short-lived signed download URLs, owner-only.
type HistoryExportService struct {
	tasks     exportTaskSource
	storage   exportFileStore
	signer    exportSigner
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	logger    *zap.Logger
	apiPrefix string
}

// NewHistoryExportService constructs the service.
func NewHistoryExportService(tasks exportTaskSource, storage exportFileStore, signer exportSigner, logger *zap.Logger, apiPrefix string) *HistoryExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if apiPrefix == "" {
		apiPrefix = "/api/v1"
	}
	return &HistoryExportService{
		tasks:     tasks,
		storage:   storage,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		logger:    logger,
		apiPrefix: apiPrefix,
	}
}

// Export renders the task's history in the requested format and returns a
// signed download URL.
func (s *HistoryExportService) Export(ctx context.Context, taskID, format, actorID string) (*dto.HistoryExportResponse, error) {
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "history exports not configured")
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "csv" && format != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

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

	entries, err := s.tasks.ListHistory(ctx, taskID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load history")
	}

	data := historyDataset(entries)
	var payload []byte
	switch format {
	case "csv":
		payload, err = s.csv.Render(data)
	case "pdf":
		payload, err = s.pdf.Render(data, fmt.Sprintf("Operation history: %s", task.Title))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("history_%s_%d.%s", taskID, time.Now().Unix(), format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(taskID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}

	base := strings.TrimRight(s.apiPrefix, "/")
	return &dto.HistoryExportResponse{
		DownloadURL: fmt.Sprintf("%s/exports/download?token=%s", base, token),
		Format:      format,
		ExpiresAt:   expiresAt,
	}, nil
}

// Download validates the signed token and opens the export file.
func (s *HistoryExportService) Download(ctx context.Context, token string) (*HistoryDownload, error) {
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "history exports not configured")
	}
	_, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
	}
	return &HistoryDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		MimeType:  exportMime(relPath),
		ExpiresAt: expiresAt,
	}, nil
}

func historyDataset(entries []models.OperationEntry) export.Dataset {
	rows := make([]map[string]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, map[string]string{
			"Action":       string(entry.Action),
			"Performed By": entry.PerformedBy,
			"Performed At": entry.PerformedAt.UTC().Format(time.RFC3339),
			"Details":      entry.Details,
		})
	}
	return export.Dataset{
		Headers: []string{"Action", "Performed By", "Performed At", "Details"},
		Rows:    rows,
	}
}

func exportMime(path string) string {
	if strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return "application/pdf"
	}
	return "text/csv"
}
