package sheets

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/lueurxax/fundraising-ledger/internal/core/errors"
	"github.com/lueurxax/fundraising-ledger/internal/core/ports"
)

type recordedCall struct {
	Method string
	Path   string
	Query  map[string]string
	Body   string
}

// fakeSheets is a minimal Sheets v4 endpoint.
type fakeSheets struct {
	mu     sync.Mutex
	titles []string
	column []interface{}
	header []interface{}
	status int
	calls  []recordedCall
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	query := make(map[string]string)
	for k, v := range r.URL.Query() {
		query[k] = v[0]
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, recordedCall{Method: r.Method, Path: r.URL.Path, Query: query, Body: string(body)})

	w.Header().Set("Content-Type", "application/json")

	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, `{"error":{"code":`+strconv.Itoa(f.status)+`,"message":"boom"}}`)

		return
	}

	path := r.URL.Path

	switch {
	case strings.HasSuffix(path, ":batchUpdate"):
		_, _ = io.WriteString(w, `{"spreadsheetId":"doc"}`)
	case strings.HasSuffix(path, ":append"):
		_, _ = io.WriteString(w, `{"spreadsheetId":"doc"}`)
	case strings.Contains(path, "/values/") && r.Method == http.MethodPut:
		_, _ = io.WriteString(w, `{"spreadsheetId":"doc"}`)
	case strings.Contains(path, "/values/"):
		values := f.column
		if strings.HasSuffix(path, "!1:1") {
			values = f.header
		}

		out := map[string]any{"range": "x"}
		if values != nil {
			out["values"] = [][]interface{}{values}
		}

		_ = json.NewEncoder(w).Encode(out)
	default:
		sheets := make([]map[string]any, 0, len(f.titles))
		for _, title := range f.titles {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": title}})
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})
	}
}

func (f *fakeSheets) recorded() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]recordedCall(nil), f.calls...)
}

func newTestStore(t *testing.T, fake *fakeSheets) *Store {
	t.Helper()

	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	logger := zerolog.Nop()

	return NewWithService(svc, &logger)
}

func TestStore_OpenExisting(t *testing.T) {
	fake := &fakeSheets{titles: []string{"Other", "Telegram_Fundraising"}}
	store := newTestStore(t, fake)

	table, created, err := store.Open(context.Background(), "doc", "Telegram_Fundraising")
	require.NoError(t, err)
	assert.False(t, created)
	assert.NotNil(t, table)

	for _, c := range fake.recorded() {
		assert.NotContains(t, c.Path, ":batchUpdate")
	}
}

func TestStore_OpenCreatesMissingSheet(t *testing.T) {
	fake := &fakeSheets{titles: []string{"Other"}}
	store := newTestStore(t, fake)

	_, created, err := store.Open(context.Background(), "doc", "Telegram_Fundraising")
	require.NoError(t, err)
	assert.True(t, created)

	calls := fake.recorded()
	require.Len(t, calls, 2)
	assert.True(t, strings.HasSuffix(calls[1].Path, "/v4/spreadsheets/doc:batchUpdate"))
	assert.Contains(t, calls[1].Body, `"title":"Telegram_Fundraising"`)
	assert.Contains(t, calls[1].Body, `"rowCount":1000`)
}

func TestStore_FindMissing(t *testing.T) {
	store := newTestStore(t, &fakeSheets{titles: []string{"Other"}})

	_, err := store.Find(context.Background(), "doc", "Telegram_Fundraising")
	require.ErrorIs(t, err, errors.ErrTableNotFound)
}

func TestTable_Reads(t *testing.T) {
	fake := &fakeSheets{
		titles: []string{"Ledger"},
		column: []interface{}{"message_id", "12", "15"},
		header: []interface{}{"message_id", "timestamp"},
	}
	store := newTestStore(t, fake)

	table, err := store.Find(context.Background(), "doc", "Ledger")
	require.NoError(t, err)

	col, err := table.ColumnValues(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"message_id", "12", "15"}, col)

	header, err := table.HeaderRow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"message_id", "timestamp"}, header)

	calls := fake.recorded()
	colCall := calls[len(calls)-2]
	assert.True(t, strings.HasSuffix(colCall.Path, "/values/'Ledger'!A:A"))
	assert.Equal(t, "COLUMNS", colCall.Query["majorDimension"])
}

func TestTable_EmptyColumn(t *testing.T) {
	store := newTestStore(t, &fakeSheets{titles: []string{"Ledger"}})

	table, err := store.Find(context.Background(), "doc", "Ledger")
	require.NoError(t, err)

	col, err := table.ColumnValues(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, col)
}

func TestTable_Writes(t *testing.T) {
	fake := &fakeSheets{titles: []string{"Ledger"}}
	store := newTestStore(t, fake)

	table, err := store.Find(context.Background(), "doc", "Ledger")
	require.NoError(t, err)

	require.NoError(t, table.UpdateRow(context.Background(), 1, []string{"message_id", "timestamp"}, ports.ValueInputRaw))
	require.NoError(t, table.AppendRows(context.Background(), [][]string{{"1", "2024-01-01T00:00:00Z"}}, ports.ValueInputUserEntered))

	calls := fake.recorded()
	update, appendCall := calls[len(calls)-2], calls[len(calls)-1]

	assert.Equal(t, http.MethodPut, update.Method)
	assert.True(t, strings.HasSuffix(update.Path, "/values/'Ledger'!A1"))
	assert.Equal(t, "RAW", update.Query["valueInputOption"])

	assert.Equal(t, http.MethodPost, appendCall.Method)
	assert.True(t, strings.HasSuffix(appendCall.Path, "/values/'Ledger'!A1:append"))
	assert.Equal(t, "USER_ENTERED", appendCall.Query["valueInputOption"])
	assert.Equal(t, "INSERT_ROWS", appendCall.Query["insertDataOption"])
	assert.Contains(t, appendCall.Body, `"2024-01-01T00:00:00Z"`)
}

func TestTable_RateLimitedError(t *testing.T) {
	fake := &fakeSheets{titles: []string{"Ledger"}}
	store := newTestStore(t, fake)

	table, err := store.Find(context.Background(), "doc", "Ledger")
	require.NoError(t, err)

	fake.mu.Lock()
	fake.status = http.StatusTooManyRequests
	fake.mu.Unlock()

	err = table.AppendRows(context.Background(), [][]string{{"1"}}, ports.ValueInputUserEntered)
	require.ErrorIs(t, err, errors.ErrStoreRateLimited)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"rate limited", &googleapi.Error{Code: http.StatusTooManyRequests}, errors.ErrStoreRateLimited},
		{"server error", &googleapi.Error{Code: http.StatusBadGateway}, errors.ErrStoreTransient},
		{"unavailable", &googleapi.Error{Code: http.StatusServiceUnavailable}, errors.ErrStoreTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classify(tt.err), tt.want)
		})
	}

	plain := &googleapi.Error{Code: http.StatusForbidden}
	assert.NotErrorIs(t, classify(plain), errors.ErrStoreTransient)
	assert.NotErrorIs(t, classify(plain), errors.ErrStoreRateLimited)
}

func TestColumnLetter(t *testing.T) {
	tests := map[int]string{1: "A", 10: "J", 26: "Z", 27: "AA", 52: "AZ", 703: "AAA"}

	for col, want := range tests {
		assert.Equal(t, want, columnLetter(col))
	}
}

func TestQuoteSheet(t *testing.T) {
	assert.Equal(t, "'Telegram_Fundraising'", quoteSheet("Telegram_Fundraising"))
	assert.Equal(t, "'Bob''s deals'", quoteSheet("Bob's deals"))
}
