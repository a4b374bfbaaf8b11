package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gitlab.connectwisedev.com/storefront-service/models"
	"gitlab.connectwisedev.com/storefront-service/pkg/apperr"
	"gitlab.connectwisedev.com/storefront-service/pkg/store"
)

// RowError explains why one CSV row was skipped. Row is 1-based and counts
// the header.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ImportResult summarizes a stock import. ProductIDs lists each changed
// product once, in first-seen order; a product repeated in the CSV ends at
// its last row's quantity.
type ImportResult struct {
	Applied    int        `json:"applied"`
	Skipped    []RowError `json:"skipped"`
	ProductIDs []int64    `json:"product_ids"`
}

// ParseStockCSV reads "product_id,quantity" rows after a header line.
// Malformed rows are reported in the returned RowErrors and left out.
func ParseStockCSV(r io.Reader) ([]models.StockRow, []RowError, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.InvalidArgument, err, "failed to read CSV")
	}
	if len(records) < 2 {
		return nil, nil, apperr.New(apperr.InvalidArgument, "CSV is empty or has only headers")
	}

	var rows []models.StockRow
	var skipped []RowError
	for i, rec := range records[1:] {
		rowNum := i + 2
		if len(rec) < 2 {
			skipped = append(skipped, RowError{Row: rowNum, Reason: "insufficient columns"})
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
		if err != nil || id <= 0 {
			skipped = append(skipped, RowError{Row: rowNum, Reason: fmt.Sprintf("invalid product_id %q", rec[0])})
			continue
		}
		qty, err := strconv.Atoi(strings.TrimSpace(rec[1]))
		if err != nil {
			skipped = append(skipped, RowError{Row: rowNum, Reason: fmt.Sprintf("invalid quantity %q", rec[1])})
			continue
		}
		rows = append(rows, models.StockRow{ProductID: id, Quantity: qty, Line: rowNum})
	}
	return rows, skipped, nil
}

// ImportStock applies every parsed row with SetStock inside one
// transaction. Rows the catalog rejects (negative quantity, unknown
// product) are skipped; any other failure aborts the whole import.
func (s *Service) ImportStock(ctx context.Context, st store.Store, r io.Reader) (ImportResult, error) {
	rows, skipped, err := ParseStockCSV(r)
	if err != nil {
		return ImportResult{}, err
	}

	result := ImportResult{Skipped: skipped}
	seen := make(map[int64]bool, len(rows))
	err = st.InTx(ctx, func(q store.Querier) error {
		tx := NewService(q, nil, s.log)
		for _, row := range rows {
			err := tx.SetStock(ctx, row.ProductID, row.Quantity)
			switch apperr.CodeOf(err) {
			case "":
				result.Applied++
				if !seen[row.ProductID] {
					seen[row.ProductID] = true
					result.ProductIDs = append(result.ProductIDs, row.ProductID)
				}
			case apperr.InvalidArgument, apperr.NotFound:
				s.log.Info("skipping stock row", "product_id", row.ProductID, "error", err)
				result.Skipped = append(result.Skipped, RowError{Row: row.Line, Reason: apperr.Message(err)})
			default:
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	s.invalidate(ctx, result.ProductIDs...)
	return result, nil
}
