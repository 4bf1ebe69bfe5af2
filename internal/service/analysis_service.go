package service

import (
	"context"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/storage"
)

// quarterPattern matches labels such as 3T25.
var quarterPattern = regexp.MustCompile(`^[1-4]T\d{2}$`)

type AnalysisInput struct {
	Ticker         string
	Quarter        string
	Title          string
	Summary        string
	Content        string
	Recommendation domain.Bias
	TargetPrice    decimal.NullDecimal
}

// AnalysisService manages quarterly results analyses.
type AnalysisService interface {
	Create(ctx context.Context, in AnalysisInput) (*domain.QuarterlyAnalysis, error)
	Update(ctx context.Context, id int64, in AnalysisInput) (*domain.QuarterlyAnalysis, error)
	SetPublished(ctx context.Context, id int64, published bool) (*domain.QuarterlyAnalysis, error)
	AttachPDF(ctx context.Context, id int64, fileName string, pdf io.Reader) (*domain.QuarterlyAnalysis, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter repository.AnalysisFilter) ([]domain.QuarterlyAnalysis, error)
	Get(ctx context.Context, id int64, includeDrafts bool) (*domain.QuarterlyAnalysis, error)
	PDFURL(ctx context.Context, id int64, includeDrafts bool) (string, error)
}

type analysisService struct {
	analyses repository.AnalysisRepository
	storage  storage.Service
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewAnalysisService(analyses repository.AnalysisRepository, store storage.Service, log logrus.FieldLogger) AnalysisService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &analysisService{analyses: analyses, storage: store, log: log, now: time.Now}
}

func applyAnalysisInput(a *domain.QuarterlyAnalysis, in AnalysisInput) error {
	a.Ticker = NormalizeTicker(in.Ticker)
	a.Quarter = strings.ToUpper(strings.TrimSpace(in.Quarter))
	a.Title = strings.TrimSpace(in.Title)
	a.Summary = strings.TrimSpace(in.Summary)
	a.Content = strings.TrimSpace(in.Content)
	a.Recommendation = in.Recommendation
	a.TargetPrice = in.TargetPrice
	if a.Recommendation == "" {
		a.Recommendation = domain.BiasHold
	}

	switch {
	case !tickerPattern.MatchString(a.Ticker):
		return invalid("ticker", "invalid ticker %q", in.Ticker)
	case !quarterPattern.MatchString(a.Quarter):
		return invalid("quarter", "quarter must look like 3T25")
	case a.Title == "":
		return invalid("title", "title is required")
	case !a.Recommendation.Valid():
		return invalid("recommendation", "unknown recommendation %q", in.Recommendation)
	case a.TargetPrice.Valid && !a.TargetPrice.Decimal.IsPositive():
		return invalid("targetPrice", "target price must be positive")
	}
	return nil
}

func (s *analysisService) Create(ctx context.Context, in AnalysisInput) (*domain.QuarterlyAnalysis, error) {
	a := &domain.QuarterlyAnalysis{Status: domain.AnalysisStatusDraft}
	if err := applyAnalysisInput(a, in); err != nil {
		return nil, err
	}
	if _, err := s.analyses.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *analysisService) Update(ctx context.Context, id int64, in AnalysisInput) (*domain.QuarterlyAnalysis, error) {
	a, err := s.analyses.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyAnalysisInput(a, in); err != nil {
		return nil, err
	}
	if err := s.analyses.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *analysisService) SetPublished(ctx context.Context, id int64, published bool) (*domain.QuarterlyAnalysis, error) {
	a, err := s.analyses.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if published {
		if a.Content == "" && a.PDFKey == "" {
			return nil, invalid("content", "add content or a PDF before publishing")
		}
		at := s.now().UTC()
		a.Status = domain.AnalysisStatusPublished
		a.PublishedAt = &at
	} else {
		a.Status = domain.AnalysisStatusDraft
		a.PublishedAt = nil
	}
	if err := s.analyses.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// AttachPDF uploads a PDF for the analysis, replacing any previous one.
func (s *analysisService) AttachPDF(ctx context.Context, id int64, fileName string, pdf io.Reader) (*domain.QuarterlyAnalysis, error) {
	if s.storage == nil {
		return nil, ErrUnavailable
	}
	a, err := s.analyses.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	key, err := s.storage.UploadObject(ctx, pdf, storage.UploadOptions{Folder: "analyses/" + strings.ToLower(a.Ticker), FileName: fileName})
	if err != nil {
		return nil, err
	}
	previous := a.PDFKey
	a.PDFKey = key
	if err := s.analyses.Update(ctx, a); err != nil {
		return nil, err
	}
	if previous != "" {
		if err := s.storage.DeleteObject(ctx, previous); err != nil {
			s.log.WithError(err).WithField("key", previous).Warn("delete replaced analysis pdf")
		}
	}
	return a, nil
}

func (s *analysisService) Delete(ctx context.Context, id int64) error {
	a, err := s.analyses.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.analyses.Delete(ctx, id); err != nil {
		return err
	}
	if a.PDFKey != "" && s.storage != nil {
		if err := s.storage.DeleteObject(ctx, a.PDFKey); err != nil {
			s.log.WithError(err).WithField("key", a.PDFKey).Warn("delete analysis pdf")
		}
	}
	return nil
}

func (s *analysisService) List(ctx context.Context, filter repository.AnalysisFilter) ([]domain.QuarterlyAnalysis, error) {
	return s.analyses.List(ctx, filter)
}

func (s *analysisService) Get(ctx context.Context, id int64, includeDrafts bool) (*domain.QuarterlyAnalysis, error) {
	a, err := s.analyses.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !includeDrafts && a.Status != domain.AnalysisStatusPublished {
		return nil, repository.ErrNotFound
	}
	return a, nil
}

func (s *analysisService) PDFURL(ctx context.Context, id int64, includeDrafts bool) (string, error) {
	a, err := s.Get(ctx, id, includeDrafts)
	if err != nil {
		return "", err
	}
	return presignPDF(ctx, s.storage, a.PDFKey)
}
