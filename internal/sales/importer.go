package sales

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/salespulse/salespulse/internal/shared"
)

var requiredColumns = []string{"employee_name", "date", "revenue_amount", "number_of_deals"}

// ErrMissingColumns is returned when the CSV header lacks required fields.
var ErrMissingColumns = fmt.Errorf("csv must contain columns: %s", strings.Join(requiredColumns, ", "))

// ImportResult summarizes a bulk upload. Rows whose employee name matches
// no account are skipped, not failed; the batch itself is all-or-nothing.
type ImportResult struct {
	Imported int
	Skipped  int
}

// ImportCSV ingests a tabular upload. Every matched row is inserted inside
// one transaction; a parse failure anywhere aborts the whole batch and is
// reported as a single summary error.
func (s *Service) ImportCSV(ctx context.Context, file io.Reader) (ImportResult, error) {
	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ImportResult{}, ErrMissingColumns
		}
		return ImportResult{}, fmt.Errorf("read csv header: %w", err)
	}
	columns, err := indexColumns(header)
	if err != nil {
		return ImportResult{}, err
	}

	displayMode := s.settings.CommissionDisplayMode(ctx)

	var result ImportResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for {
			record, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read csv row: %w", err)
			}
			sale, ok, err := s.rowToSale(ctx, record, columns, displayMode)
			if err != nil {
				return err
			}
			if !ok {
				result.Skipped++
				continue
			}
			if _, err := tx.Insert(ctx, sale); err != nil {
				return err
			}
			result.Imported++
		}
	})
	if err != nil {
		return ImportResult{}, err
	}
	s.invalidate(ctx)
	return result, nil
}

type columnIndex struct {
	name    int
	date    int
	revenue int
	deals   int
	draw    int
}

func indexColumns(header []string) (columnIndex, error) {
	pos := make(map[string]int, len(header))
	for i, col := range header {
		pos[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := pos[col]; !ok {
			return columnIndex{}, ErrMissingColumns
		}
	}
	idx := columnIndex{
		name:    pos["employee_name"],
		date:    pos["date"],
		revenue: pos["revenue_amount"],
		deals:   pos["number_of_deals"],
		draw:    -1,
	}
	if i, ok := pos["draw_payment"]; ok {
		idx.draw = i
	}
	return idx, nil
}

// rowToSale resolves one CSV record. A row whose employee name matches no
// account returns ok=false and is skipped silently, per the import
// contract; malformed values abort the batch.
func (s *Service) rowToSale(ctx context.Context, record []string, idx columnIndex, displayMode string) (*Sale, bool, error) {
	if len(record) <= idx.name || len(record) <= idx.date || len(record) <= idx.revenue || len(record) <= idx.deals {
		return nil, false, fmt.Errorf("csv row has %d fields", len(record))
	}

	owner, err := s.users.FindByFullName(ctx, record[idx.name])
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	date, err := time.Parse("2006-01-02", strings.TrimSpace(record[idx.date]))
	if err != nil {
		return nil, false, fmt.Errorf("parse date %q: %w", record[idx.date], err)
	}
	revenue, err := strconv.ParseFloat(strings.TrimSpace(record[idx.revenue]), 64)
	if err != nil {
		return nil, false, fmt.Errorf("parse revenue %q: %w", record[idx.revenue], err)
	}
	deals, err := strconv.Atoi(strings.TrimSpace(record[idx.deals]))
	if err != nil {
		return nil, false, fmt.Errorf("parse deals %q: %w", record[idx.deals], err)
	}

	draw := 0.0
	if idx.draw >= 0 && len(record) > idx.draw && strings.TrimSpace(record[idx.draw]) != "" {
		draw, err = strconv.ParseFloat(strings.TrimSpace(record[idx.draw]), 64)
		if err != nil {
			return nil, false, fmt.Errorf("parse draw %q: %w", record[idx.draw], err)
		}
	}

	return &Sale{
		UserID:           owner.ID,
		Date:             date,
		RevenueAmount:    revenue,
		NumberOfDeals:    deals,
		CommissionEarned: Commission(revenue, owner.CommissionRate*100, displayMode),
		DrawPayment:      draw,
		PeriodType:       "month",
	}, true, nil
}
