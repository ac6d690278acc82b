package mocks

import (
	"context"
	"sync"

	"github.com/lueurxax/fundraising-ledger/internal/core/errors"
	"github.com/lueurxax/fundraising-ledger/internal/core/ports"
)

// TableStore is an in-memory ports.TableStore.
type TableStore struct {
	mu     sync.Mutex
	tables map[string]*Table

	// OpenFn allows overriding Open behavior.
	OpenFn func(ctx context.Context, key, name string) (ports.Table, bool, error)
}

// NewTableStore creates an empty TableStore.
func NewTableStore() *TableStore {
	return &TableStore{tables: make(map[string]*Table)}
}

// Open implements ports.TableStore. Missing tables are created empty.
func (s *TableStore) Open(ctx context.Context, key, name string) (ports.Table, bool, error) {
	if s.OpenFn != nil {
		return s.OpenFn(ctx, key, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := key + "/" + name
	if t, ok := s.tables[id]; ok {
		return t, false, nil
	}

	t := &Table{}
	s.tables[id] = t

	return t, true, nil
}

// Find implements ports.TableStore.
func (s *TableStore) Find(_ context.Context, key, name string) (ports.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tables[key+"/"+name]; ok {
		return t, nil
	}

	return nil, errors.ErrTableNotFound
}

// Table returns the table for key/name, creating it empty when missing.
func (s *TableStore) Table(key, name string) *Table {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := key + "/" + name
	if t, ok := s.tables[id]; ok {
		return t
	}

	t := &Table{}
	s.tables[id] = t

	return t
}

// AppendCall records one AppendRows invocation.
type AppendCall struct {
	Rows [][]string
	Mode ports.ValueInputMode
	Err  error
}

// Table is an in-memory ports.Table. Index 0 of the row slice is row 1.
type Table struct {
	mu      sync.Mutex
	rows    [][]string
	appends []AppendCall
	updates int

	// AppendFn is consulted before every append; a non-nil error aborts it.
	AppendFn func(call int, rows [][]string) error

	// ColumnValuesFn allows overriding ColumnValues behavior.
	ColumnValuesFn func(ctx context.Context, col int) ([]string, error)

	// HeaderRowFn allows overriding HeaderRow behavior.
	HeaderRowFn func(ctx context.Context) ([]string, error)
}

// NewTable creates a table pre-filled with rows (row 1 first).
func NewTable(rows ...[]string) *Table {
	t := &Table{}
	t.SetRows(rows...)

	return t
}

// SetRows replaces the table contents.
func (t *Table) SetRows(rows ...[]string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rows = make([][]string, 0, len(rows))
	for _, r := range rows {
		t.rows = append(t.rows, append([]string(nil), r...))
	}
}

// ColumnValues implements ports.Table. Trailing empty cells are trimmed.
func (t *Table) ColumnValues(ctx context.Context, col int) ([]string, error) {
	if t.ColumnValuesFn != nil {
		return t.ColumnValuesFn(ctx, col)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	values := make([]string, 0, len(t.rows))

	for _, r := range t.rows {
		if col-1 < len(r) {
			values = append(values, r[col-1])
		} else {
			values = append(values, "")
		}
	}

	for len(values) > 0 && values[len(values)-1] == "" {
		values = values[:len(values)-1]
	}

	return values, nil
}

// HeaderRow implements ports.Table.
func (t *Table) HeaderRow(ctx context.Context) ([]string, error) {
	if t.HeaderRowFn != nil {
		return t.HeaderRowFn(ctx)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.rows) == 0 {
		return nil, nil
	}

	return append([]string(nil), t.rows[0]...), nil
}

// UpdateRow implements ports.Table. Updating the row right after the last one
// extends the table.
func (t *Table) UpdateRow(_ context.Context, row int, values []string, _ ports.ValueInputMode) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if row < 1 || row > len(t.rows)+1 {
		return ErrRowOutOfRange
	}

	t.updates++

	if row == len(t.rows)+1 {
		t.rows = append(t.rows, append([]string(nil), values...))
		return nil
	}

	t.rows[row-1] = append([]string(nil), values...)

	return nil
}

// AppendRows implements ports.Table.
func (t *Table) AppendRows(_ context.Context, rows [][]string, mode ports.ValueInputMode) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	copied := make([][]string, 0, len(rows))
	for _, r := range rows {
		copied = append(copied, append([]string(nil), r...))
	}

	if t.AppendFn != nil {
		if err := t.AppendFn(len(t.appends)+1, copied); err != nil {
			t.appends = append(t.appends, AppendCall{Rows: copied, Mode: mode, Err: err})
			return err
		}
	}

	t.appends = append(t.appends, AppendCall{Rows: copied, Mode: mode})
	t.rows = append(t.rows, copied...)

	return nil
}

// Rows returns a copy of the table contents including the header.
func (t *Table) Rows() [][]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([][]string, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, append([]string(nil), r...))
	}

	return out
}

// Appends returns every AppendRows call, including failed ones.
func (t *Table) Appends() []AppendCall {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]AppendCall(nil), t.appends...)
}

// SuccessfulAppends returns the batch sizes of appends that went through.
func (t *Table) SuccessfulAppends() []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var sizes []int

	for _, c := range t.appends {
		if c.Err == nil {
			sizes = append(sizes, len(c.Rows))
		}
	}

	return sizes
}

// Updates returns the number of UpdateRow calls that succeeded.
func (t *Table) Updates() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.updates
}
