package dto

import (
	"time"

	"github.com/pidb/catalog-api/internal/models"
)

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID     string              `json:"id"`
	Status models.ExportStatus `json:"status"`
}

// ExportStatusResponse exposes export progress metadata.
type ExportStatusResponse struct {
	ID          string              `json:"id"`
	Program     models.Program      `json:"program"`
	Format      models.ExportFormat `json:"format"`
	Status      models.ExportStatus `json:"status"`
	RowCount    int                 `json:"row_count"`
	DownloadURL string              `json:"download_url,omitempty"`
	ExpiresAt   *time.Time          `json:"expires_at,omitempty"`
	Error       string              `json:"error,omitempty"`
}
