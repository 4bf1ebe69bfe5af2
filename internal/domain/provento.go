package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProventoType string

const (
	ProventoDividendo   ProventoType = "DIVIDENDO"
	ProventoJCP         ProventoType = "JCP"
	ProventoRendimento  ProventoType = "RENDIMENTO"
	ProventoAmortizacao ProventoType = "AMORTIZACAO"
)

func (t ProventoType) Valid() bool {
	switch t {
	case ProventoDividendo, ProventoJCP, ProventoRendimento, ProventoAmortizacao:
		return true
	}
	return false
}

// Provento is a per-share cash distribution announced for a ticker. ExDate is
// the "data com": holders at the close of that day are entitled to it.
type Provento struct {
	ID          int64
	Ticker      string
	Type        ProventoType
	Value       decimal.Decimal
	ExDate      time.Time
	PaymentDate *time.Time
	Description string
	CreatedAt   time.Time
}
