package persistence

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"github.com/btangonan/calm-productivity-app-sub002/internal/config"
)

// SheetsTable is the spreadsheet implementation of the credential row
// table. The backing sheet has a header row; data rows start at row 2.
type SheetsTable struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
}

// NewSheetsTable connects to the configured spreadsheet using the service
// account credentials blob.
func NewSheetsTable(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*SheetsTable, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("spreadsheet id not configured")
	}
	if len(cfg.ServiceAccountKey) == 0 {
		return nil, errors.New("service account key not configured")
	}

	creds, err := google.CredentialsFromJSON(ctx, cfg.ServiceAccountKey, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}

	svc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("build sheets service: %w", err)
	}

	logger.Info("connected to spreadsheet store", zap.String("sheet", cfg.UsersSheetName))
	return &SheetsTable{svc: svc, spreadsheetID: cfg.SpreadsheetID, sheetName: cfg.UsersSheetName}, nil
}

// ReadRows returns all data rows below the header.
func (t *SheetsTable) ReadRows(ctx context.Context) ([][]string, error) {
	resp, err := t.svc.Spreadsheets.Values.Get(t.spreadsheetID, t.dataRange()).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = fmt.Sprint(cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// AppendRow adds a row after the last data row.
func (t *SheetsTable) AppendRow(ctx context.Context, row []string) error {
	_, err := t.svc.Spreadsheets.Values.
		Append(t.spreadsheetID, t.dataRange(), valueRange(row)).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	return nil
}

// UpdateRow overwrites the data row at the zero-based index in place.
func (t *SheetsTable) UpdateRow(ctx context.Context, index int, row []string) error {
	// data row 0 lives at sheet row 2, below the header
	sheetRow := index + 2
	rangeRef := fmt.Sprintf("%s!A%d:C%d", t.sheetName, sheetRow, sheetRow)

	_, err := t.svc.Spreadsheets.Values.
		Update(t.spreadsheetID, rangeRef, valueRange(row)).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update row %d: %w", sheetRow, err)
	}
	return nil
}

// Ping verifies the spreadsheet is reachable.
func (t *SheetsTable) Ping(ctx context.Context) error {
	if t == nil || t.svc == nil {
		return errors.New("sheets client not configured")
	}
	_, err := t.svc.Spreadsheets.Get(t.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	return err
}

func (t *SheetsTable) dataRange() string {
	return fmt.Sprintf("%s!A2:C", t.sheetName)
}

func valueRange(row []string) *sheets.ValueRange {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return &sheets.ValueRange{Values: [][]interface{}{cells}}
}
