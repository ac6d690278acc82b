// Package sheets stores ledger rows in a Google Sheets worksheet.
package sheets

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/lueurxax/fundraising-ledger/internal/core/errors"
	"github.com/lueurxax/fundraising-ledger/internal/core/ports"
)

const (
	// New worksheets get this grid, matching what the ledger has always used.
	newSheetRows = 1000
	newSheetCols = 20

	insertRows = "INSERT_ROWS"
	dimColumns = "COLUMNS"
)

// Store implements ports.TableStore on the Sheets v4 API. A key is a
// spreadsheet id and a table name is a worksheet title.
type Store struct {
	svc    *gsheets.Service
	logger *zerolog.Logger
}

// New builds a Store authenticated with a service account key file.
func New(ctx context.Context, credentialsFile string, logger *zerolog.Logger, opts ...option.ClientOption) (*Store, error) {
	opts = append([]option.ClientOption{
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gsheets.SpreadsheetsScope),
	}, opts...)

	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets client: %w", err)
	}

	return NewWithService(svc, logger), nil
}

// NewWithService wraps an existing Sheets client.
func NewWithService(svc *gsheets.Service, logger *zerolog.Logger) *Store {
	return &Store{svc: svc, logger: logger}
}

var _ ports.TableStore = (*Store)(nil)

// Open returns the worksheet, adding it to the spreadsheet when missing.
func (s *Store) Open(ctx context.Context, key, name string) (ports.Table, bool, error) {
	found, err := s.hasSheet(ctx, key, name)
	if err != nil {
		return nil, false, err
	}

	if found {
		return s.table(key, name), false, nil
	}

	req := &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			AddSheet: &gsheets.AddSheetRequest{
				Properties: &gsheets.SheetProperties{
					Title: name,
					GridProperties: &gsheets.GridProperties{
						RowCount:    newSheetRows,
						ColumnCount: newSheetCols,
					},
				},
			},
		}},
	}

	if _, err := s.svc.Spreadsheets.BatchUpdate(key, req).Context(ctx).Do(); err != nil {
		return nil, false, fmt.Errorf("adding worksheet %q: %w", name, classify(err))
	}

	s.logger.Info().Str("worksheet", name).Msg("Created worksheet")

	return s.table(key, name), true, nil
}

// Find returns the worksheet or errors.ErrTableNotFound.
func (s *Store) Find(ctx context.Context, key, name string) (ports.Table, error) {
	found, err := s.hasSheet(ctx, key, name)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, fmt.Errorf("%w: %s", errors.ErrTableNotFound, name)
	}

	return s.table(key, name), nil
}

func (s *Store) hasSheet(ctx context.Context, key, name string) (bool, error) {
	doc, err := s.svc.Spreadsheets.Get(key).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("reading spreadsheet %s: %w", key, classify(err))
	}

	for _, sh := range doc.Sheets {
		if sh.Properties != nil && sh.Properties.Title == name {
			return true, nil
		}
	}

	return false, nil
}

func (s *Store) table(key, name string) *Table {
	return &Table{svc: s.svc, spreadsheetID: key, name: name}
}

// Table is one worksheet.
type Table struct {
	svc           *gsheets.Service
	spreadsheetID string
	name          string
}

var _ ports.Table = (*Table)(nil)

// ColumnValues returns the non-trailing-empty cells of column col (1-based).
func (t *Table) ColumnValues(ctx context.Context, col int) ([]string, error) {
	letter := columnLetter(col)

	vr, err := t.svc.Spreadsheets.Values.Get(t.spreadsheetID, t.a1(letter+":"+letter)).
		MajorDimension(dimColumns).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("reading column %s: %w", letter, classify(err))
	}

	if len(vr.Values) == 0 {
		return nil, nil
	}

	return cells(vr.Values[0]), nil
}

// HeaderRow returns row 1.
func (t *Table) HeaderRow(ctx context.Context) ([]string, error) {
	vr, err := t.svc.Spreadsheets.Values.Get(t.spreadsheetID, t.a1("1:1")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("reading header row: %w", classify(err))
	}

	if len(vr.Values) == 0 {
		return nil, nil
	}

	return cells(vr.Values[0]), nil
}

// UpdateRow overwrites row starting at column A.
func (t *Table) UpdateRow(ctx context.Context, row int, values []string, mode ports.ValueInputMode) error {
	vr := &gsheets.ValueRange{Values: [][]interface{}{toInterfaces(values)}}

	_, err := t.svc.Spreadsheets.Values.Update(t.spreadsheetID, t.a1(fmt.Sprintf("A%d", row)), vr).
		ValueInputOption(string(mode)).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("updating row %d: %w", row, classify(err))
	}

	return nil
}

// AppendRows adds rows after the last non-empty row.
func (t *Table) AppendRows(ctx context.Context, rows [][]string, mode ports.ValueInputMode) error {
	if len(rows) == 0 {
		return nil
	}

	values := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		values = append(values, toInterfaces(r))
	}

	_, err := t.svc.Spreadsheets.Values.Append(t.spreadsheetID, t.a1("A1"), &gsheets.ValueRange{Values: values}).
		ValueInputOption(string(mode)).
		InsertDataOption(insertRows).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("appending %d rows: %w", len(rows), classify(err))
	}

	return nil
}

// a1 prefixes a range with the quoted worksheet title.
func (t *Table) a1(ref string) string {
	return quoteSheet(t.name) + "!" + ref
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// columnLetter converts a 1-based column index to its A1 letters.
func columnLetter(col int) string {
	if col < 1 {
		col = 1
	}

	var letters []byte

	for col > 0 {
		col--
		letters = append([]byte{byte('A' + col%26)}, letters...)
		col /= 26
	}

	return string(letters)
}

func cells(row []interface{}) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = fmt.Sprint(v)
	}

	return out
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}

	return out
}

// classify tags API errors with the store sentinels.
func classify(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", errors.ErrStoreRateLimited, err)
	case apiErr.Code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %w", errors.ErrStoreTransient, err)
	default:
		return err
	}
}
