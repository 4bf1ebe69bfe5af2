package repository

import (
	"context"
	"time"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
)

// UserFilter narrows user listings. Zero values mean "any".
type UserFilter struct {
	Plan   domain.Plan
	Status domain.UserStatus
	Search string
	Limit  int
	Offset int

	// OrderByID lists newest ids first; BeforeID then continues after the
	// last id of the previous page.
	OrderByID bool
	BeforeID  int64
}

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	Update(ctx context.Context, user *domain.User) error
	UpdatePassword(ctx context.Context, id int64, hash string, mustChange bool) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
	Count(ctx context.Context, filter UserFilter) (int, error)
}

// PurchaseRepository stores payment-provider transactions.
type PurchaseRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, purchase *domain.Purchase) (int64, error)
	Update(ctx context.Context, purchase *domain.Purchase) error
	GetByTransaction(ctx context.Context, transaction string) (*domain.Purchase, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Purchase, error)
	RecordEvent(ctx context.Context, transaction, event string, occurredAt time.Time) error
	HasEvent(ctx context.Context, transaction, event string) (bool, error)
	LatestEventAt(ctx context.Context, transaction string) (time.Time, error)
}
