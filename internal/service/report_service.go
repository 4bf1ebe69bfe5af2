package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/storage"
)

const pdfLinkTTL = 15 * time.Minute

// ReportQueue schedules background report generation.
type ReportQueue interface {
	Enqueue(ctx context.Context, reportID int64) error
	Cancel(ctx context.Context, reportID int64) error
}

// ReportUpload is an admin upload: the PDF itself plus the text extracted from it.
type ReportUpload struct {
	Title      string
	ReportDate time.Time
	Text       string
	FileName   string
	PDF        io.Reader
}

// ReportService manages weekly reports from upload to publication.
type ReportService interface {
	Upload(ctx context.Context, in ReportUpload) (*domain.Report, error)
	Regenerate(ctx context.Context, id int64) (*domain.Report, error)
	Publish(ctx context.Context, id int64) (*domain.Report, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]domain.Report, error)
	ListPublished(ctx context.Context) ([]domain.Report, error)
	Get(ctx context.Context, id int64, includeDrafts bool) (*domain.Report, error)
	PDFURL(ctx context.Context, id int64, includeDrafts bool) (string, error)
}

type reportService struct {
	reports repository.ReportRepository
	queue   ReportQueue
	storage storage.Service
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewReportService wires report persistence to the generation queue. store may be nil
// when object storage is not configured; uploads then keep only the text.
func NewReportService(reports repository.ReportRepository, queue ReportQueue, store storage.Service, log logrus.FieldLogger) ReportService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &reportService{reports: reports, queue: queue, storage: store, log: log, now: time.Now}
}

func (s *reportService) Upload(ctx context.Context, in ReportUpload) (*domain.Report, error) {
	title := strings.TrimSpace(in.Title)
	text := strings.TrimSpace(in.Text)
	if title == "" {
		return nil, invalid("title", "title is required")
	}
	if text == "" {
		return nil, invalid("text", "report text is required")
	}
	date := in.ReportDate
	if date.IsZero() {
		date = s.now()
	}

	rep := &domain.Report{
		Title:      title,
		ReportDate: date.UTC(),
		Status:     domain.ReportStatusPending,
		SourceText: text,
	}
	if in.PDF != nil {
		if s.storage == nil {
			return nil, ErrUnavailable
		}
		key, err := s.storage.UploadObject(ctx, in.PDF, storage.UploadOptions{Folder: "reports", FileName: in.FileName})
		if err != nil {
			return nil, err
		}
		rep.PDFKey = key
	}

	if _, err := s.reports.Create(ctx, rep); err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(ctx, rep.ID); err != nil {
		s.log.WithError(err).WithField("report_id", rep.ID).Error("enqueue report generation")
	}
	return rep, nil
}

func (s *reportService) Regenerate(ctx context.Context, id int64) (*domain.Report, error) {
	rep, err := s.reports.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch rep.Status {
	case domain.ReportStatusPending, domain.ReportStatusGenerating:
		return nil, invalid("status", "report is already being generated")
	case domain.ReportStatusPublished:
		return nil, invalid("status", "published reports cannot be regenerated")
	}
	if err := s.reports.UpdateStatus(ctx, id, domain.ReportStatusPending, nil); err != nil {
		return nil, err
	}
	rep.Status = domain.ReportStatusPending
	rep.ErrorMessage = ""
	if err := s.queue.Enqueue(ctx, id); err != nil {
		return nil, err
	}
	return rep, nil
}

func (s *reportService) Publish(ctx context.Context, id int64) (*domain.Report, error) {
	rep, err := s.reports.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rep.Status != domain.ReportStatusReady {
		return nil, invalid("status", "only ready reports can be published (status %s)", rep.Status)
	}
	at := s.now().UTC()
	if err := s.reports.Publish(ctx, id, at); err != nil {
		return nil, err
	}
	rep.Status = domain.ReportStatusPublished
	rep.PublishedAt = &at
	return rep, nil
}

func (s *reportService) Delete(ctx context.Context, id int64) error {
	rep, err := s.reports.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.queue.Cancel(ctx, id); err != nil {
		return err
	}
	if err := s.reports.Delete(ctx, id); err != nil {
		return err
	}
	if rep.PDFKey != "" && s.storage != nil {
		if err := s.storage.DeleteObject(ctx, rep.PDFKey); err != nil {
			s.log.WithError(err).WithField("key", rep.PDFKey).Warn("delete report pdf")
		}
	}
	return nil
}

func (s *reportService) List(ctx context.Context) ([]domain.Report, error) {
	return s.reports.List(ctx)
}

func (s *reportService) ListPublished(ctx context.Context) ([]domain.Report, error) {
	return s.reports.ListByStatuses(ctx, domain.ReportStatusPublished)
}

// Get hides unpublished reports unless includeDrafts is set.
func (s *reportService) Get(ctx context.Context, id int64, includeDrafts bool) (*domain.Report, error) {
	rep, err := s.reports.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !includeDrafts && rep.Status != domain.ReportStatusPublished {
		return nil, repository.ErrNotFound
	}
	return rep, nil
}

func (s *reportService) PDFURL(ctx context.Context, id int64, includeDrafts bool) (string, error) {
	rep, err := s.Get(ctx, id, includeDrafts)
	if err != nil {
		return "", err
	}
	return presignPDF(ctx, s.storage, rep.PDFKey)
}

func presignPDF(ctx context.Context, store storage.Service, key string) (string, error) {
	if key == "" {
		return "", repository.ErrNotFound
	}
	if store == nil {
		return "", ErrUnavailable
	}
	url, err := store.GetObjectURL(ctx, key, pdfLinkTTL)
	if errors.Is(err, storage.ErrDisabled) {
		return "", ErrUnavailable
	}
	return url, err
}
