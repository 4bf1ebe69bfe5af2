package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AnalysisStatus string

const (
	AnalysisStatusDraft     AnalysisStatus = "DRAFT"
	AnalysisStatusPublished AnalysisStatus = "PUBLISHED"
)

// QuarterlyAnalysis is the analysts' take on a company's quarterly results.
type QuarterlyAnalysis struct {
	ID             int64
	Ticker         string
	Quarter        string
	Title          string
	Summary        string
	Content        string
	Recommendation Bias
	TargetPrice    decimal.NullDecimal
	PDFKey         string
	Status         AnalysisStatus
	PublishedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
