package models

import "time"

// ExportFormat enumerates catalog export formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportStatus captures background job lifecycle states.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "QUEUED"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusFinished   ExportStatus = "FINISHED"
	ExportStatusFailed     ExportStatus = "FAILED"
)

// ExportRequest asks for a rendered copy of a program's catalog.
type ExportRequest struct {
	Program string       `json:"program" validate:"required"`
	Format  ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportJob is the bookkeeping record of one export.
type ExportJob struct {
	ID           string       `json:"id"`
	Program      Program      `json:"program"`
	Format       ExportFormat `json:"format"`
	Status       ExportStatus `json:"status"`
	RequestedBy  string       `json:"requested_by"`
	RowCount     int          `json:"row_count"`
	FilePath     string       `json:"-"`
	DownloadURL  string       `json:"download_url,omitempty"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	FinishedAt   *time.Time   `json:"finished_at,omitempty"`
}
