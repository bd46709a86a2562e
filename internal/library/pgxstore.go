package library

import (
	"context"
	"fmt"

	"Recon340B/internal/dataset"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxStore keeps one log in a Postgres table through a pgx pool. Batches
// go through COPY.
type PgxStore struct {
	pool    *pgxpool.Pool
	name    string
	table   string
	columns []string
}

func NewPgxStore(ctx context.Context, pool *pgxpool.Pool, log string, columns []string) (*PgxStore, error) {
	s := &PgxStore{pool: pool, name: log, table: TableName(log), columns: append([]string(nil), columns...)}
	if _, err := pool.Exec(ctx, createTableSQL(Postgres, s.table, s.columns)); err != nil {
		return nil, fmt.Errorf("create %s: %w", s.table, err)
	}
	return s, nil
}

// PgxOpener keeps every log in its own table behind pool.
func PgxOpener(pool *pgxpool.Pool) Opener {
	return func(ctx context.Context, log string, columns []string) (Store, error) {
		return NewPgxStore(ctx, pool, log, columns)
	}
}

func (s *PgxStore) Append(ctx context.Context, rec Record) (RecordID, error) {
	if err := checkRecord(rec, s.columns); err != nil {
		return RecordID{}, err
	}
	id := NewRecordID()
	args := append([]any{id.String()}, cells(rec, s.columns)...)
	if _, err := s.pool.Exec(ctx, insertSQL(Postgres, s.table, s.columns), args...); err != nil {
		return RecordID{}, fmt.Errorf("insert %s: %w", s.table, err)
	}
	return id, nil
}

func (s *PgxStore) AppendBatch(ctx context.Context, recs []Record) ([]RecordID, error) {
	ids := make([]RecordID, len(recs))
	copyRows := make([][]any, len(recs))
	for i, rec := range recs {
		if err := checkRecord(rec, s.columns); err != nil {
			return nil, err
		}
		ids[i] = NewRecordID()
		copyRows[i] = append([]any{ids[i].String()}, cells(rec, s.columns)...)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback(ctx)
		}
	}()
	columns := append([]string{"record_id"}, s.columns...)
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{s.table}, columns, pgx.CopyFromRows(copyRows)); err != nil {
		return nil, fmt.Errorf("copy %s: %w", s.table, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	committed = true
	return ids, nil
}

func (s *PgxStore) ReadAll(ctx context.Context) (*dataset.Dataset, error) {
	rows, err := s.pool.Query(ctx, selectSQL(s.table, s.columns))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.table, err)
	}
	defer rows.Close()

	var records [][]any
	for rows.Next() {
		vals := make([]*string, len(s.columns)+1)
		dest := make([]any, len(vals))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		rec := make([]any, len(vals))
		for i, v := range vals {
			if v != nil && *v != "" {
				rec[i] = *v
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return dataset.FromRecords(s.name, header(s.columns), records)
}
