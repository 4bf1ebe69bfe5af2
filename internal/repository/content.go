package repository

import (
	"context"
	"time"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
)

// QuestionFilter narrows question listings. Zero values mean "any".
type QuestionFilter struct {
	UserID   int64
	Status   domain.QuestionStatus
	Category string
	FAQOnly  bool
}

// QuestionRepository persists questions and their answers.
type QuestionRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, q *domain.Question) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Question, error)
	List(ctx context.Context, filter QuestionFilter) ([]domain.Question, error)
	UpdateStatus(ctx context.Context, id int64, status domain.QuestionStatus) error
	SetFAQ(ctx context.Context, id int64, isFAQ bool, order int, title string) error
	Delete(ctx context.Context, id int64) error
	AddAnswer(ctx context.Context, answer *domain.Answer) (int64, error)
}

// NotificationRepository persists per-user notifications.
type NotificationRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, n *domain.Notification) (int64, error)
	CreateMany(ctx context.Context, ns []domain.Notification) (int, error)
	ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, userID, id int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	Delete(ctx context.Context, userID, id int64) error
}

// ReportRepository persists weekly reports and their generation state.
type ReportRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, r *domain.Report) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Report, error)
	List(ctx context.Context) ([]domain.Report, error)
	ListByStatuses(ctx context.Context, statuses ...domain.ReportStatus) ([]domain.Report, error)
	UpdateStatus(ctx context.Context, id int64, status domain.ReportStatus, errorMessage *string) error
	SaveGenerated(ctx context.Context, id int64, summary string, sections []domain.ReportSection) error
	Publish(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
}

// AnalysisFilter narrows quarterly analysis listings.
type AnalysisFilter struct {
	Ticker string
	Status domain.AnalysisStatus
}

// AnalysisRepository persists quarterly analyses.
type AnalysisRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, a *domain.QuarterlyAnalysis) (int64, error)
	Update(ctx context.Context, a *domain.QuarterlyAnalysis) error
	Get(ctx context.Context, id int64) (*domain.QuarterlyAnalysis, error)
	List(ctx context.Context, filter AnalysisFilter) ([]domain.QuarterlyAnalysis, error)
	Delete(ctx context.Context, id int64) error
}
