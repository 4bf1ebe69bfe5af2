package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PurchaseStatus string

const (
	PurchaseStatusApproved   PurchaseStatus = "APPROVED"
	PurchaseStatusCanceled   PurchaseStatus = "CANCELED"
	PurchaseStatusRefunded   PurchaseStatus = "REFUNDED"
	PurchaseStatusChargeback PurchaseStatus = "CHARGEBACK"
	PurchaseStatusPending    PurchaseStatus = "PENDING"
)

// Terminal reports whether the purchase was closed by a cancellation,
// refund or chargeback.
func (s PurchaseStatus) Terminal() bool {
	switch s {
	case PurchaseStatusCanceled, PurchaseStatusRefunded, PurchaseStatusChargeback:
		return true
	}
	return false
}

// Purchase records a payment-provider transaction linked to a member.
type Purchase struct {
	ID          int64
	UserID      int64
	Transaction string
	LastEvent   string
	ProductID   string
	ProductName string
	Plan        Plan
	Amount      decimal.Decimal
	Currency    string
	Status      PurchaseStatus
	PurchasedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
