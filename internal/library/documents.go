package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"Recon340B/internal/checksum"
	"Recon340B/internal/config"
)

const uploadDateLayout = "2006-01-02 15:04:05"

// Document is one archived upload as recorded in the index log.
type Document struct {
	ID         RecordID  `json:"id"`
	Filename   string    `json:"filename"`
	Category   string    `json:"category"`
	UploadDate time.Time `json:"upload_date"`
	Path       string    `json:"path"`
	Checksum   string    `json:"checksum"`
}

// Documents archives uploaded files under a folder and records each one in
// the library_index log.
type Documents struct {
	mu     sync.Mutex
	folder string
	index  Store
	now    func() time.Time
}

func NewDocuments(folder string, index Store) *Documents {
	return &Documents{folder: folder, index: index, now: time.Now}
}

// Save writes raw as <timestamp>_<filename> and appends it to the index.
func (d *Documents) Save(ctx context.Context, filename, category string, raw []byte) (Document, error) {
	if !slices.Contains(config.DocumentCategories, category) {
		return Document{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	if base == "." || base == "/" || base == "" {
		return Document{}, fmt.Errorf("invalid file name %q", filename)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := os.MkdirAll(d.folder, 0o755); err != nil {
		return Document{}, err
	}
	now := d.now()
	doc := Document{
		Filename:   base,
		Category:   category,
		UploadDate: now.Truncate(time.Second),
		Path:       filepath.Join(d.folder, now.Format("20060102_150405")+"_"+base),
		Checksum:   checksum.Sum(raw),
	}
	if err := os.WriteFile(doc.Path, raw, 0o644); err != nil {
		return Document{}, err
	}
	id, err := d.index.Append(ctx, Record{
		"Filename":    doc.Filename,
		"Category":    doc.Category,
		"Upload Date": now.Format(uploadDateLayout),
		"Path":        doc.Path,
		"Checksum":    doc.Checksum,
	})
	if err != nil {
		return Document{}, err
	}
	doc.ID = id
	return doc, nil
}

// List returns every indexed document in upload order.
func (d *Documents) List(ctx context.Context) ([]Document, error) {
	ds, err := d.index.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Document, 0, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		r := ds.Row(i)
		doc := Document{
			Filename: str(r["Filename"]),
			Category: str(r["Category"]),
			Path:     str(r["Path"]),
			Checksum: str(r["Checksum"]),
		}
		doc.ID, _ = ParseRecordID(str(r[IDColumn]))
		doc.UploadDate, _ = time.ParseInLocation(uploadDateLayout, str(r["Upload Date"]), time.Local)
		out = append(out, doc)
	}
	return out, nil
}

// Latest is the most recent document of category.
func (d *Documents) Latest(ctx context.Context, category string) (Document, error) {
	docs, err := d.List(ctx)
	if err != nil {
		return Document{}, err
	}
	for i := len(docs) - 1; i >= 0; i-- {
		if docs[i].Category == category {
			return docs[i], nil
		}
	}
	return Document{}, fmt.Errorf("%w: no %s document", ErrNotFound, category)
}

// Open reads an archived file, failing with checksum.ErrMismatch when it
// changed since it was saved.
func (d *Documents) Open(doc Document) ([]byte, error) {
	raw, err := os.ReadFile(doc.Path)
	if err != nil {
		return nil, err
	}
	if doc.Checksum == "" {
		return raw, nil
	}
	if err := checksum.NewChecksumMatcher(doc.Checksum).Verify(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", doc.Path, err)
	}
	return raw, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
