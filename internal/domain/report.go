package domain

import "time"

type ReportStatus string

const (
	ReportStatusPending    ReportStatus = "pending"
	ReportStatusGenerating ReportStatus = "generating"
	ReportStatusReady      ReportStatus = "ready"
	ReportStatusFailed     ReportStatus = "failed"
	ReportStatusPublished  ReportStatus = "published"
)

// Report is a weekly report generated from the text of an uploaded PDF.
type Report struct {
	ID           int64
	Title        string
	ReportDate   time.Time
	Status       ReportStatus
	SourceText   string
	PDFKey       string
	Summary      string
	Sections     []ReportSection
	ErrorMessage string
	PublishedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ReportSection struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tickers []string `json:"tickers,omitempty"`
}
