// Package library keeps the program's append-only logs (compliance flags,
// overcharges, site crosswalk, contract pharmacies, change evaluations) and
// the uploaded document archive. Pipelines never import it; the HTTP layer
// and the CLI hand screen output to a Store.
package library

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"Recon340B/internal/config"
	"Recon340B/internal/dataset"

	"github.com/google/uuid"
)

var (
	ErrUnknownField    = errors.New("unknown record field")
	ErrUnknownLog      = errors.New("unknown library log")
	ErrUnknownCategory = errors.New("unknown document category")
	ErrNotFound        = errors.New("not found")
)

// IDColumn is the first column of every stored log.
const IDColumn = "Record ID"

// RecordID identifies one appended record.
type RecordID uuid.UUID

func NewRecordID() RecordID { return RecordID(uuid.New()) }

func (id RecordID) String() string { return uuid.UUID(id).String() }

func (id RecordID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

// ParseRecordID reads the text form written by String.
func ParseRecordID(s string) (RecordID, error) {
	u, err := uuid.Parse(s)
	return RecordID(u), err
}

// Record is one log row keyed by column. Absent columns are stored empty.
type Record map[string]any

// Store is one append-only log with a fixed header.
type Store interface {
	Append(ctx context.Context, rec Record) (RecordID, error)
	ReadAll(ctx context.Context) (*dataset.Dataset, error)
}

// BatchStore is a Store that can append many records in one round trip.
type BatchStore interface {
	Store
	AppendBatch(ctx context.Context, recs []Record) ([]RecordID, error)
}

// checkRecord rejects fields outside the declared columns.
func checkRecord(rec Record, columns []string) error {
	allowed := make(map[string]bool, len(columns))
	for _, c := range columns {
		allowed[c] = true
	}
	var unknown []string
	for k := range rec {
		if !allowed[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: %q", ErrUnknownField, unknown)
	}
	return nil
}

// cells renders rec in column order; missing values become nil.
func cells(rec Record, columns []string) []any {
	out := make([]any, len(columns))
	for i, c := range columns {
		v := rec[c]
		if v == nil {
			continue
		}
		if s := dataset.Format(v); s != "" {
			out[i] = s
		}
	}
	return out
}

func header(columns []string) []string {
	return append([]string{IDColumn}, columns...)
}

// Opener builds the store of one log.
type Opener func(ctx context.Context, log string, columns []string) (Store, error)

// Catalog opens each declared log once and hands out its store.
type Catalog struct {
	mu     sync.Mutex
	open   Opener
	stores map[string]Store
}

func NewCatalog(open Opener) *Catalog {
	return &Catalog{open: open, stores: make(map[string]Store)}
}

// Log returns the store for a log declared in config.LogColumns.
func (c *Catalog) Log(ctx context.Context, name string) (Store, error) {
	cols, ok := config.LogColumns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLog, name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.stores[name]; ok {
		return s, nil
	}
	s, err := c.open(ctx, name, cols)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	c.stores[name] = s
	return s, nil
}

// Names lists the declared logs in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(config.LogColumns))
	for n := range config.LogColumns {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AppendDataset stores every row of ds in the named log. Stores that
// support it receive the rows as one batch, stored whole or not at all;
// other stores append row by row and may keep the rows before a failure.
func (c *Catalog) AppendDataset(ctx context.Context, log string, ds *dataset.Dataset) (int, error) {
	s, err := c.Log(ctx, log)
	if err != nil {
		return 0, err
	}
	recs := make([]Record, ds.Len())
	for i := range recs {
		recs[i] = Record(ds.Row(i))
	}
	if b, ok := s.(BatchStore); ok {
		ids, err := b.AppendBatch(ctx, recs)
		return len(ids), err
	}
	for i, rec := range recs {
		if _, err := s.Append(ctx, rec); err != nil {
			return i, err
		}
	}
	return len(recs), nil
}
