package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository"
)

var csvHeader = []string{"ticker", "data_com", "data_pagamento", "valor", "tipo"}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "2006-01-02T15:04:05Z07:00"}

type ProventoInput struct {
	Ticker      string
	Type        domain.ProventoType
	Value       decimal.Decimal
	ExDate      time.Time
	PaymentDate *time.Time
	Description string
}

type ImportConfig struct {
	ChunkSize  int
	ChunkDelay time.Duration
}

// RowError reports a CSV line that could not be imported. Line counts the header as line 1.
type RowError struct {
	Line    int    `json:"line"`
	Ticker  string `json:"ticker,omitempty"`
	Message string `json:"message"`
}

type ImportResult struct {
	Rows       int        `json:"rows"`
	Inserted   int        `json:"inserted"`
	Duplicates int        `json:"duplicates"`
	Failed     int        `json:"failed"`
	Errors     []RowError `json:"errors"`
}

// ProventoService manages the dividend records behind the proventos center.
type ProventoService interface {
	List(ctx context.Context, filter repository.ProventoFilter) ([]domain.Provento, error)
	Create(ctx context.Context, in ProventoInput) (*domain.Provento, bool, error)
	Delete(ctx context.Context, id int64) error
	// Import reads a CSV with header ticker,data_com,data_pagamento,valor,tipo.
	Import(ctx context.Context, r io.Reader) (*ImportResult, error)
}

type proventoService struct {
	proventos repository.ProventoRepository
	cfg       ImportConfig
	log       logrus.FieldLogger
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewProventoService(proventos repository.ProventoRepository, cfg ImportConfig, log logrus.FieldLogger) ProventoService {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 50
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &proventoService{proventos: proventos, cfg: cfg, log: log, sleep: sleepContext}
}

func (s *proventoService) List(ctx context.Context, filter repository.ProventoFilter) ([]domain.Provento, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, invalid("type", "unknown provento type %q", filter.Type)
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, invalid("to", "end date is before start date")
	}
	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = 500
	}
	return s.proventos.List(ctx, filter)
}

// Create stores one provento and reports whether it was new.
func (s *proventoService) Create(ctx context.Context, in ProventoInput) (*domain.Provento, bool, error) {
	p, err := buildProvento(in)
	if err != nil {
		return nil, false, err
	}
	inserted, err := s.proventos.Insert(ctx, p)
	if err != nil {
		return nil, false, err
	}
	return p, inserted, nil
}

func (s *proventoService) Delete(ctx context.Context, id int64) error {
	return s.proventos.Delete(ctx, id)
}

type parsedRow struct {
	line     int
	provento domain.Provento
}

func (s *proventoService) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	rows, result, err := parseProventoCSV(r)
	if err != nil {
		return nil, err
	}

	for start := 0; start < len(rows); start += s.cfg.ChunkSize {
		if start > 0 && s.cfg.ChunkDelay > 0 {
			if err := s.sleep(ctx, s.cfg.ChunkDelay); err != nil {
				return result, err
			}
		}
		end := start + s.cfg.ChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		s.importChunk(ctx, rows[start:end], result)
	}

	s.log.WithFields(logrus.Fields{
		"rows":       result.Rows,
		"inserted":   result.Inserted,
		"duplicates": result.Duplicates,
		"failed":     result.Failed,
	}).Info("proventos import finished")
	return result, nil
}

// importChunk writes a chunk in one batch; when the batch fails every row is retried alone.
func (s *proventoService) importChunk(ctx context.Context, chunk []parsedRow, result *ImportResult) {
	batch := make([]domain.Provento, len(chunk))
	for i, row := range chunk {
		batch[i] = row.provento
	}
	inserted, err := s.proventos.InsertBatch(ctx, batch)
	if err == nil {
		result.Inserted += inserted
		result.Duplicates += len(chunk) - inserted
		return
	}

	s.log.WithError(err).WithField("first_line", chunk[0].line).Warn("provento chunk failed, retrying rows individually")
	for _, row := range chunk {
		p := row.provento
		ok, err := s.proventos.Insert(ctx, &p)
		switch {
		case err != nil:
			result.Failed++
			result.Errors = append(result.Errors, RowError{Line: row.line, Ticker: p.Ticker, Message: err.Error()})
		case ok:
			result.Inserted++
		default:
			result.Duplicates++
		}
	}
}

func parseProventoCSV(r io.Reader) ([]parsedRow, *ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, invalid("file", "csv file is empty")
	}
	if err != nil {
		return nil, nil, invalid("file", "read csv header: %v", err)
	}
	if semicolonHeader(header) {
		return nil, nil, invalid("file", "csv must be comma separated")
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range []string{"ticker", "data_com", "valor"} {
		if _, ok := index[col]; !ok {
			return nil, nil, invalid("file", "missing column %q (expected %s)", col, strings.Join(csvHeader, ","))
		}
	}

	field := func(record []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	result := &ImportResult{Errors: []RowError{}}
	var rows []parsedRow
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			result.Rows++
			result.Failed++
			result.Errors = append(result.Errors, RowError{Line: line, Message: err.Error()})
			continue
		}
		if blank(record) {
			continue
		}
		result.Rows++

		in, err := proventoFromRecord(field(record, "ticker"), field(record, "data_com"), field(record, "data_pagamento"), field(record, "valor"), field(record, "tipo"))
		var p *domain.Provento
		if err == nil {
			p, err = buildProvento(in)
		}
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, RowError{Line: line, Ticker: NormalizeTicker(field(record, "ticker")), Message: err.Error()})
			continue
		}
		rows = append(rows, parsedRow{line: line, provento: *p})
	}
	return rows, result, nil
}

func proventoFromRecord(ticker, exDate, payDate, value, typ string) (ProventoInput, error) {
	in := ProventoInput{Ticker: ticker}
	var err error
	if in.ExDate, err = ParseDate(exDate); err != nil {
		return in, invalid("data_com", "invalid data_com %q", exDate)
	}
	if payDate != "" {
		d, err := ParseDate(payDate)
		if err != nil {
			return in, invalid("data_pagamento", "invalid data_pagamento %q", payDate)
		}
		in.PaymentDate = &d
	}
	if in.Value, err = ParseAmount(value); err != nil {
		return in, invalid("valor", "invalid valor %q", value)
	}
	if in.Type, err = ParseProventoType(typ); err != nil {
		return in, err
	}
	return in, nil
}

func buildProvento(in ProventoInput) (*domain.Provento, error) {
	p := &domain.Provento{
		Ticker:      NormalizeTicker(in.Ticker),
		Type:        in.Type,
		Value:       in.Value,
		ExDate:      in.ExDate.UTC(),
		Description: strings.TrimSpace(in.Description),
	}
	if p.Type == "" {
		p.Type = domain.ProventoDividendo
	}
	switch {
	case !tickerPattern.MatchString(p.Ticker):
		return nil, invalid("ticker", "invalid ticker %q", in.Ticker)
	case in.ExDate.IsZero():
		return nil, invalid("exDate", "ex date is required")
	case !p.Value.IsPositive():
		return nil, invalid("value", "value must be positive")
	case !p.Type.Valid():
		return nil, invalid("type", "unknown provento type %q", in.Type)
	}
	if in.PaymentDate != nil {
		pay := in.PaymentDate.UTC()
		if pay.Before(p.ExDate) {
			return nil, invalid("paymentDate", "payment date is before ex date")
		}
		p.PaymentDate = &pay
	}
	return p, nil
}

// ParseDate accepts ISO (2006-01-02) and Brazilian (02/01/2006) dates.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ParseAmount accepts "0.5", "0,50" and "1.234,56".
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "R$"))
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	return decimal.NewFromString(s)
}

// ParseProventoType maps the labels used in spreadsheets to provento types.
func ParseProventoType(s string) (domain.ProventoType, error) {
	switch normalizeLabel(s) {
	case "", "dividendo", "dividendos", "div":
		return domain.ProventoDividendo, nil
	case "jcp", "juros sobre capital proprio", "juros s/ capital proprio":
		return domain.ProventoJCP, nil
	case "rendimento", "rendimentos":
		return domain.ProventoRendimento, nil
	case "amortizacao":
		return domain.ProventoAmortizacao, nil
	}
	return "", invalid("tipo", "unknown provento type %q", s)
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("ç", "c", "ã", "a", "á", "a", "ó", "o", "ô", "o").Replace(s)
}

func semicolonHeader(header []string) bool {
	return len(header) == 1 && strings.Contains(header[0], ";")
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
