package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	applog "wenxuji/internal/log"
	ports "wenxuji/internal/sheets"
)

var _ ports.LedgerExporter = (*Exporter)(nil)

// Config selects the target sheet and the service account used to write it.
// CredentialsJSON wins over CredentialsFile; with neither set the standard
// GOOGLE_APPLICATION_CREDENTIALS file is used.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// valuesAPI is the slice of the Sheets values API the exporter needs.
type valuesAPI interface {
	Clear(ctx context.Context, spreadsheetID, rng string) error
	Update(ctx context.Context, spreadsheetID, rng string, values [][]any) error
}

// Exporter overwrites one sheet with the ledger list view.
type Exporter struct {
	values        valuesAPI
	spreadsheetID string
	sheetName     string
}

// New creates an Exporter authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Exporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(cfg.SheetName) == "" {
		return nil, errors.New("missing sheet name")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newExporter(&serviceValues{svc: svc}, cfg), nil
}

func newExporter(values valuesAPI, cfg Config) *Exporter {
	return &Exporter{
		values:        values,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		sheetName:     strings.TrimSpace(cfg.SheetName),
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	credentialsFile := strings.TrimSpace(cfg.CredentialsFile)
	if cfg.CredentialsJSON == "" && credentialsFile == "" {
		credentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case cfg.CredentialsJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials", applog.FieldComponent, applog.ComponentSheets)
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case credentialsFile != "":
		b, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Read credentials file",
			applog.FieldComponent, applog.ComponentSheets,
			"path", credentialsFile,
			"size", len(b))
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Export clears the sheet and writes the header plus rows from A1. The
// returned reference covers the written range.
func (e *Exporter) Export(ctx context.Context, rows []ports.Row) (string, error) {
	if e.values == nil {
		return "", errors.New("sheets service not initialized")
	}

	if err := e.values.Clear(ctx, e.spreadsheetID, fmt.Sprintf("%s!A:E", e.sheetName)); err != nil {
		return "", fmt.Errorf("clear sheet %s: %w", e.sheetName, err)
	}

	values := make([][]any, 0, len(rows)+1)
	values = append(values, toAny(ports.Header))
	for _, r := range rows {
		values = append(values, []any{r.Date, r.Type, r.Category, r.Description, json.Number(r.Amount.String())})
	}

	ref := fmt.Sprintf("%s!A1:E%d", e.sheetName, len(values))
	if err := e.values.Update(ctx, e.spreadsheetID, ref, values); err != nil {
		return "", fmt.Errorf("write sheet %s: %w", e.sheetName, err)
	}

	slog.InfoContext(ctx, "Ledger exported",
		applog.FieldComponent, applog.ComponentSheets,
		applog.FieldOperation, applog.OpExport,
		applog.FieldCount, len(rows),
		"range", ref)
	return ref, nil
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

type serviceValues struct {
	svc *gsheet.Service
}

func (s *serviceValues) Clear(ctx context.Context, spreadsheetID, rng string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

// Update writes RAW so descriptions starting with "=" are not evaluated.
// Amounts arrive as JSON numbers and are stored as numbers.
func (s *serviceValues) Update(ctx context.Context, spreadsheetID, rng string, values [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Update(spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}
