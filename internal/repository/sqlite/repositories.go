package sqlite

import (
	"context"
	"database/sql"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository"
)

// Repositories groups every sqlite-backed repository over one connection.
type Repositories struct {
	Users         repository.UserRepository
	Purchases     repository.PurchaseRepository
	Questions     repository.QuestionRepository
	Notifications repository.NotificationRepository
	Portfolios    repository.PortfolioRepository
	Assets        repository.AssetRepository
	Events        repository.CorporateEventRepository
	Proventos     repository.ProventoRepository
	Reports       repository.ReportRepository
	Analyses      repository.AnalysisRepository
}

func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Users:         NewUserRepository(db),
		Purchases:     NewPurchaseRepository(db),
		Questions:     NewQuestionRepository(db),
		Notifications: NewNotificationRepository(db),
		Portfolios:    NewPortfolioRepository(db),
		Assets:        NewAssetRepository(db),
		Events:        NewCorporateEventRepository(db),
		Proventos:     NewProventoRepository(db),
		Reports:       NewReportRepository(db),
		Analyses:      NewAnalysisRepository(db),
	}
}

// Init creates every table, parents before children.
func (r *Repositories) Init(ctx context.Context) error {
	steps := []interface{ Init(context.Context) error }{
		r.Users,
		r.Purchases,
		r.Questions,
		r.Notifications,
		r.Portfolios,
		r.Assets,
		r.Events,
		r.Proventos,
		r.Reports,
		r.Analyses,
	}
	for _, s := range steps {
		if err := s.Init(ctx); err != nil {
			return err
		}
	}
	return nil
}
