package library

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"Recon340B/internal/dataset"
	"Recon340B/internal/loader"
)

// CSVStore appends records to one CSV file, writing the header when the
// file is created. Appends are serialized and each batch is one write.
type CSVStore struct {
	mu      sync.Mutex
	name    string
	path    string
	columns []string
}

func NewCSVStore(path string, columns []string) *CSVStore {
	name := filepath.Base(path)
	name = name[:len(name)-len(filepath.Ext(name))]
	return &CSVStore{name: name, path: path, columns: append([]string(nil), columns...)}
}

// CSVOpener keeps every log as <folder>/<log>.csv.
func CSVOpener(folder string) Opener {
	return func(_ context.Context, log string, columns []string) (Store, error) {
		if err := os.MkdirAll(folder, 0o755); err != nil {
			return nil, err
		}
		return NewCSVStore(filepath.Join(folder, log+".csv"), columns), nil
	}
}

func (s *CSVStore) Path() string { return s.path }

func (s *CSVStore) Append(ctx context.Context, rec Record) (RecordID, error) {
	ids, err := s.AppendBatch(ctx, []Record{rec})
	if err != nil {
		return RecordID{}, err
	}
	return ids[0], nil
}

// AppendBatch checks every record first, then writes them all in one locked
// write. A rejected batch leaves the file untouched.
func (s *CSVStore) AppendBatch(_ context.Context, recs []Record) ([]RecordID, error) {
	for _, rec := range recs {
		if err := checkRecord(rec, s.columns); err != nil {
			return nil, err
		}
	}
	if len(recs) == 0 {
		return nil, nil
	}
	var body bytes.Buffer
	w := csv.NewWriter(&body)
	ids := make([]RecordID, 0, len(recs))
	for _, rec := range recs {
		id := NewRecordID()
		row := []string{id.String()}
		for _, c := range cells(rec, s.columns) {
			row = append(row, dataset.Format(c))
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	out := body.Bytes()
	if info.Size() == 0 {
		var head bytes.Buffer
		hw := csv.NewWriter(&head)
		if err := hw.Write(header(s.columns)); err != nil {
			return nil, err
		}
		hw.Flush()
		out = append(head.Bytes(), out...)
	}
	if _, err := f.Write(out); err != nil {
		return nil, err
	}
	return ids, f.Sync()
}

// ReadAll returns the log as loaded text. A log never written is empty.
func (s *CSVStore) ReadAll(_ context.Context) (*dataset.Dataset, error) {
	s.mu.Lock()
	raw, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(raw) == 0) {
		return dataset.New(s.name, header(s.columns), nil)
	}
	if err != nil {
		return nil, err
	}
	return loader.Load(s.name, raw, loader.FormatCSV)
}
