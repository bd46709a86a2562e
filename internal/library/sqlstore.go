package library

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"Recon340B/internal/dataset"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder and DDL syntax.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// Driver is the database/sql driver name registered for the dialect.
func (d Dialect) Driver() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

func (d Dialect) placeholder(i int) string {
	if d == SQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", i)
}

func (d Dialect) seqColumn() string {
	if d == SQLite {
		return "seq INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return "seq BIGSERIAL PRIMARY KEY"
}

// TableName maps a log name to its table, e.g. 340B_site_crosswalk to
// recon_340b_site_crosswalk.
func TableName(log string) string {
	var b strings.Builder
	b.WriteString("recon_")
	for _, r := range strings.ToLower(log) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// createTableSQL keeps every log column as nullable text in header order.
func createTableSQL(d Dialect, table string, columns []string) string {
	defs := []string{d.seqColumn(), "record_id TEXT NOT NULL UNIQUE"}
	for _, c := range columns {
		defs = append(defs, quoteIdent(c)+" TEXT")
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
}

func insertSQL(d Dialect, table string, columns []string) string {
	cols := []string{"record_id"}
	marks := []string{d.placeholder(1)}
	for i, c := range columns {
		cols = append(cols, quoteIdent(c))
		marks = append(marks, d.placeholder(i+2))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(table), strings.Join(cols, ", "), strings.Join(marks, ", "))
}

func selectSQL(table string, columns []string) string {
	cols := []string{"record_id"}
	for _, c := range columns {
		cols = append(cols, quoteIdent(c))
	}
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY seq", strings.Join(cols, ", "), quoteIdent(table))
}

// SQLStore keeps one log in one table through database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	name    string
	table   string
	columns []string
}

// NewSQLStore creates the log table when missing.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect, log string, columns []string) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: dialect, name: log, table: TableName(log), columns: append([]string(nil), columns...)}
	if _, err := db.ExecContext(ctx, createTableSQL(dialect, s.table, s.columns)); err != nil {
		return nil, fmt.Errorf("create %s: %w", s.table, err)
	}
	return s, nil
}

// SQLOpener keeps every log in its own table of db.
func SQLOpener(db *sql.DB, dialect Dialect) Opener {
	return func(ctx context.Context, log string, columns []string) (Store, error) {
		return NewSQLStore(ctx, db, dialect, log, columns)
	}
}

func (s *SQLStore) Append(ctx context.Context, rec Record) (RecordID, error) {
	if err := checkRecord(rec, s.columns); err != nil {
		return RecordID{}, err
	}
	id := NewRecordID()
	args := append([]any{id.String()}, cells(rec, s.columns)...)
	if _, err := s.db.ExecContext(ctx, insertSQL(s.dialect, s.table, s.columns), args...); err != nil {
		return RecordID{}, fmt.Errorf("insert %s: %w", s.table, err)
	}
	return id, nil
}

// AppendBatch inserts all records in one transaction.
func (s *SQLStore) AppendBatch(ctx context.Context, recs []Record) ([]RecordID, error) {
	for _, rec := range recs {
		if err := checkRecord(rec, s.columns); err != nil {
			return nil, err
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()
	stmt, err := tx.PrepareContext(ctx, insertSQL(s.dialect, s.table, s.columns))
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ids := make([]RecordID, 0, len(recs))
	for _, rec := range recs {
		id := NewRecordID()
		if _, err := stmt.ExecContext(ctx, append([]any{id.String()}, cells(rec, s.columns)...)...); err != nil {
			return nil, fmt.Errorf("insert %s: %w", s.table, err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return ids, nil
}

func (s *SQLStore) ReadAll(ctx context.Context) (*dataset.Dataset, error) {
	rows, err := s.db.QueryContext(ctx, selectSQL(s.table, s.columns))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.table, err)
	}
	defer rows.Close()

	var records [][]any
	for rows.Next() {
		vals := make([]sql.NullString, len(s.columns)+1)
		dest := make([]any, len(vals))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		rec := make([]any, len(vals))
		for i, v := range vals {
			if v.Valid && v.String != "" {
				rec[i] = v.String
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return dataset.FromRecords(s.name, header(s.columns), records)
}
