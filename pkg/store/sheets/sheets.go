// Package sheets implements the ledger store on a Google Sheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/lchiayu/cardfeed/pkg/store"
)

// cellTimeLayout is the sheet's datetime presentation; seeding parses it back
// with relaxed widths since older rows were hand-entered.
const (
	cellTimeLayout     = "2006/01/02 15:04:05"
	cellTimeScanLayout = "2006/1/2 15:04:05"
	// defaultFlow is written to the externally-managed classification
	// column for newly appended rows.
	defaultFlow = "支出"
)

// Store reads and appends ledger rows on one sheet of a spreadsheet.
type Store struct {
	client        *sheets.Service
	spreadsheetID string
	sheetName     string
	sheetID       int64
	header        []string
	loc           *time.Location
	logger        *slog.Logger
}

// Config holds configuration for the sheet store.
type Config struct {
	// SpreadsheetID is the id of the spreadsheet holding the ledger.
	SpreadsheetID string
	// SheetName is the tab within the spreadsheet.
	SheetName string
	// Header is the expected header row, including the flow column.
	Header []string
	// Location renders auth datetimes into cells.
	Location *time.Location
}

// New opens the configured sheet, creating the tab if the spreadsheet lacks
// it, and makes sure the header row matches the configured labels.
func New(ctx context.Context, httpClient *http.Client, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	s := &Store{
		client:        client,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		header:        cfg.Header,
		loc:           cfg.Location,
		logger:        logger,
	}

	if err := s.openSheet(ctx); err != nil {
		return nil, err
	}
	if err := s.ensureHeader(ctx); err != nil {
		return nil, fmt.Errorf("ensuring header: %w", err)
	}

	logger.Info("sheet store ready", "spreadsheet_id", cfg.SpreadsheetID, "sheet", cfg.SheetName)
	return s, nil
}

func (s *Store) openSheet(ctx context.Context) error {
	spreadsheet, err := s.client.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("getting spreadsheet %s: %w", s.spreadsheetID, err)
	}

	for _, sh := range spreadsheet.Sheets {
		if sh.Properties.Title == s.sheetName {
			s.sheetID = sh.Properties.SheetId
			return nil
		}
	}

	resp, err := s.client.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: s.sheetName},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("adding sheet %s: %w", s.sheetName, err)
	}

	s.sheetID = resp.Replies[0].AddSheet.Properties.SheetId
	s.logger.Info("created sheet tab", "sheet", s.sheetName)
	return nil
}

func (s *Store) ensureHeader(ctx context.Context) error {
	// Compare only the configured columns so the externally-managed
	// classification column's header is left alone.
	readRange := fmt.Sprintf("%s!A1:%c1", s.sheetName, 'A'+len(s.header)-1)
	resp, err := s.client.Spreadsheets.Values.Get(s.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("reading header row: %w", err)
	}

	var current []string
	if len(resp.Values) > 0 {
		for _, cell := range resp.Values[0] {
			current = append(current, fmt.Sprint(cell))
		}
	}
	if strings.Join(current, "|") == strings.Join(s.header, "|") {
		return nil
	}

	values := make([]any, len(s.header))
	for i, h := range s.header {
		values[i] = h
	}
	_, err = s.client.Spreadsheets.Values.Update(s.spreadsheetID, readRange, &sheets.ValueRange{
		Values: [][]any{values},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("writing header row: %w", err)
	}

	s.logger.Info("rewrote header row")
	return nil
}

// Seed implements store.Store. It reads the identity columns of every data
// row; rows whose datetime cell does not parse are skipped with a warning
// since they can never match a freshly parsed candidate anyway.
func (s *Store) Seed(ctx context.Context) ([]store.Row, error) {
	readRange := fmt.Sprintf("%s!A2:I", s.sheetName)
	resp, err := s.client.Spreadsheets.Values.Get(s.spreadsheetID, readRange).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("reading existing rows: %w", err)
	}

	rows := make([]store.Row, 0, len(resp.Values))
	for i, cells := range resp.Values {
		row, err := s.scanRow(cells)
		if err != nil {
			s.logger.Warn("skipping unreadable row", "row", i+2, "error", err)
			continue
		}
		rows = append(rows, row)
	}

	s.logger.Info("seeded from sheet", "rows", len(rows))
	return rows, nil
}

func (s *Store) scanRow(cells []any) (store.Row, error) {
	cell := func(i int) string {
		if i < len(cells) {
			return strings.TrimSpace(fmt.Sprint(cells[i]))
		}
		return ""
	}

	authTime, err := time.ParseInLocation(cellTimeScanLayout, cell(2), s.loc)
	if err != nil {
		// Date-only cells predate time capture; midnight matches how
		// such candidates were keyed on insert.
		authTime, err = time.ParseInLocation("2006/1/2", cell(2), s.loc)
		if err != nil {
			return store.Row{}, fmt.Errorf("parsing auth datetime %q: %w", cell(2), err)
		}
	}

	row := store.Row{
		Recorded:  strings.EqualFold(cell(0), "true"),
		Bank:      cell(1),
		AuthTime:  authTime,
		Last4:     cell(3),
		Merchant:  cell(5),
		Category:  cell(6),
		Link:      cell(7),
		MessageID: cell(8),
	}
	if raw := cell(4); raw != "" {
		amount, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil {
			return store.Row{}, fmt.Errorf("parsing amount %q: %w", raw, err)
		}
		row.Amount = &amount
	}
	return row, nil
}

// Append implements store.Store. Rows are appended in one call with the flow
// column defaulted; rate-limit responses are retried.
func (s *Store) Append(ctx context.Context, rows []store.Row) error {
	if len(rows) == 0 {
		return nil
	}

	values := make([][]any, 0, len(rows))
	for _, r := range rows {
		var amount any = ""
		if r.Amount != nil {
			amount = *r.Amount
		}
		values = append(values, []any{
			r.Recorded,
			r.Bank,
			r.AuthTime.In(s.loc).Format(cellTimeLayout),
			r.Last4,
			amount,
			r.Merchant,
			r.Category,
			r.Link,
			r.MessageID,
			defaultFlow,
		})
	}

	writeRange := fmt.Sprintf("%s!A:J", s.sheetName)
	req := &sheets.ValueRange{Values: values}

	err := retry.Do(
		func() error {
			_, err := s.client.Spreadsheets.Values.Append(s.spreadsheetID, writeRange, req).
				ValueInputOption("USER_ENTERED").
				InsertDataOption("INSERT_ROWS").
				Context(ctx).
				Do()
			return err
		},
		retry.RetryIf(func(err error) bool {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
				s.logger.Warn("rate limited, will retry", "error", err)
				return true
			}
			return false
		}),
		retry.Attempts(3),
		retry.Delay(60*time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("appending rows: %w", err)
	}

	s.logger.Info("appended rows", "count", len(rows))
	return nil
}

// Groom restores the sheet's presentation after an append: checkbox
// validation on the recorded column, datetime number format, chronological
// sort with message id as the stable tiebreak, and a frozen header row.
func (s *Store) Groom(ctx context.Context) error {
	dataRows := &sheets.GridRange{SheetId: s.sheetID, StartRowIndex: 1}

	requests := []*sheets.Request{
		{
			SetDataValidation: &sheets.SetDataValidationRequest{
				Range: &sheets.GridRange{
					SheetId:          s.sheetID,
					StartRowIndex:    1,
					StartColumnIndex: 0,
					EndColumnIndex:   1,
				},
				Rule: &sheets.DataValidationRule{
					Condition: &sheets.BooleanCondition{Type: "BOOLEAN"},
				},
			},
		},
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          s.sheetID,
					StartRowIndex:    1,
					StartColumnIndex: 2,
					EndColumnIndex:   3,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						NumberFormat: &sheets.NumberFormat{
							Type:    "DATE_TIME",
							Pattern: "yyyy/mm/dd hh:mm:ss",
						},
					},
				},
				Fields: "userEnteredFormat.numberFormat",
			},
		},
		{
			SortRange: &sheets.SortRangeRequest{
				Range: dataRows,
				SortSpecs: []*sheets.SortSpec{
					{DimensionIndex: 2, SortOrder: "ASCENDING"},
					{DimensionIndex: 8, SortOrder: "ASCENDING"},
				},
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId:        s.sheetID,
					GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
	}

	_, err := s.client.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("grooming sheet: %w", err)
	}
	return nil
}

// Backfill fills the empty flow cells of existing rows for the given banks.
// One-off maintenance for rows appended before the flow default existed.
func (s *Store) Backfill(ctx context.Context, banks []string, flow string) (int, error) {
	readRange := fmt.Sprintf("%s!A2:J", s.sheetName)
	resp, err := s.client.Spreadsheets.Values.Get(s.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("reading rows for backfill: %w", err)
	}

	wanted := make(map[string]bool, len(banks))
	for _, b := range banks {
		wanted[b] = true
	}

	updated := 0
	values := make([][]any, len(resp.Values))
	for i, cells := range resp.Values {
		var bank, current string
		if len(cells) > 1 {
			bank = fmt.Sprint(cells[1])
		}
		if len(cells) > 9 {
			current = strings.TrimSpace(fmt.Sprint(cells[9]))
		}
		if wanted[bank] && current == "" {
			values[i] = []any{flow}
			updated++
		} else {
			values[i] = []any{current}
		}
	}
	if updated == 0 {
		return 0, nil
	}

	flowRange := fmt.Sprintf("%s!J2:J%d", s.sheetName, len(values)+1)
	_, err = s.client.Spreadsheets.Values.Update(s.spreadsheetID, flowRange, &sheets.ValueRange{
		Values: values,
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("writing backfilled flow column: %w", err)
	}

	s.logger.Info("backfilled flow column", "updated", updated)
	return updated, nil
}
