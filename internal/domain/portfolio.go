package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Bias string

const (
	BiasBuy  Bias = "COMPRA"
	BiasHold Bias = "MANTER"
	BiasSell Bias = "VENDA"
)

func (b Bias) Valid() bool {
	switch b {
	case BiasBuy, BiasHold, BiasSell:
		return true
	}
	return false
}

// Portfolio is a curated carteira. Members see it only when their plan grants Page.
type Portfolio struct {
	ID          int64
	Slug        string
	Name        string
	Description string
	Page        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Assets      []Asset
}

// Asset is a position recommended inside a portfolio.
type Asset struct {
	ID          int64
	PortfolioID int64
	Ticker      string
	Name        string
	Sector      string
	EntryDate   time.Time
	EntryPrice  decimal.Decimal
	Quantity    decimal.Decimal
	TargetPrice decimal.NullDecimal
	Bias        Bias
	ExitDate    *time.Time
	ExitPrice   decimal.NullDecimal
	Position    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Closed reports whether the position was exited.
func (a Asset) Closed() bool {
	return a.ExitDate != nil && a.ExitPrice.Valid
}

type CorporateEventType string

const (
	// EventSplit multiplies the share count by Factor (desdobramento).
	EventSplit CorporateEventType = "SPLIT"
	// EventReverseSplit divides the share count by Factor (grupamento).
	EventReverseSplit CorporateEventType = "REVERSE_SPLIT"
	// EventBonus grants Factor new shares per share held (bonificação).
	EventBonus CorporateEventType = "BONUS"
)

func (t CorporateEventType) Valid() bool {
	switch t {
	case EventSplit, EventReverseSplit, EventBonus:
		return true
	}
	return false
}

type CorporateEvent struct {
	ID        int64
	Ticker    string
	Type      CorporateEventType
	Date      time.Time
	Factor    decimal.Decimal
	CreatedAt time.Time
}
