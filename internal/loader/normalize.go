package loader

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"Recon340B/internal/dataset"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04",
	"02-01-2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"2006/01/02",
	// Two-digit years, as spreadsheets render short dates.
	"01-02-06",
	"1-2-06",
	"01/02/06",
	"1/2/06",
	"1/2/06 15:04",
	"2-Jan-06",
}

// Spreadsheet serials between 1900-01-01 and 9999-12-31.
const (
	minSerial = 1
	maxSerial = 2958465
)

var floatArtifact = regexp.MustCompile(`^-?\d+\.0+$`)

// NormalizeColumn converts every value of column to kind. Missing values stay missing.
func NormalizeColumn(ds *dataset.Dataset, column string, kind dataset.ColumnKind) (*dataset.Dataset, error) {
	conv, err := converter(kind)
	if err != nil {
		return nil, err
	}
	return ds.MapColumn(column, func(i int, v any) (any, error) {
		if v == nil {
			return nil, nil
		}
		out, ok := conv(v)
		if !ok {
			return nil, &dataset.NormalizeError{
				Dataset: ds.Name(),
				Column:  column,
				Row:     i,
				Value:   dataset.Format(v),
				Kind:    string(kind),
			}
		}
		return out, nil
	})
}

// NormalizeSchema checks every required column at once, then normalizes
// each declared column that is present.
func NormalizeSchema(ds *dataset.Dataset, schema dataset.Schema) (*dataset.Dataset, error) {
	if err := schema.Check(ds); err != nil {
		return nil, err
	}
	out := ds
	for _, col := range schema {
		if !out.HasColumn(col.Name) {
			continue
		}
		var err error
		out, err = NormalizeColumn(out, col.Name, col.Kind)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func converter(kind dataset.ColumnKind) (func(any) (any, bool), error) {
	switch kind {
	case dataset.ColumnIdentifier:
		return toIdentifier, nil
	case dataset.ColumnDate:
		return func(v any) (any, bool) { return toTime(v, true) }, nil
	case dataset.ColumnTimestamp:
		return func(v any) (any, bool) { return toTime(v, false) }, nil
	case dataset.ColumnNumber:
		return toNumber, nil
	case dataset.ColumnBoolean:
		return toBool, nil
	case dataset.ColumnText:
		return toText, nil
	}
	return nil, fmt.Errorf("unknown column kind %q", kind)
}

// toIdentifier makes 123, "123", " 123 " and "123.0" all read "123".
func toIdentifier(v any) (any, bool) {
	var s string
	switch t := v.(type) {
	case decimal.Decimal:
		s = t.String()
	default:
		s = strings.TrimSpace(dataset.Format(v))
	}
	if floatArtifact.MatchString(s) {
		s = s[:strings.IndexByte(s, '.')]
	}
	if s == "" {
		return nil, true
	}
	return s, true
}

func toTime(v any, dateOnly bool) (any, bool) {
	var (
		t  time.Time
		ok bool
	)
	switch x := v.(type) {
	case time.Time:
		t, ok = x, true
	case decimal.Decimal:
		t, ok = fromSerial(x)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, true
		}
		t, ok = parseDate(s)
	}
	if !ok {
		return nil, false
	}
	if dateOnly {
		t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return t, true
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return fromSerial(d)
	}
	return time.Time{}, false
}

func fromSerial(d decimal.Decimal) (time.Time, bool) {
	f := d.InexactFloat64()
	if f < minSerial || f > maxSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func toNumber(v any) (any, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case string:
		if strings.TrimSpace(x) == "" {
			return nil, true
		}
		d, err := dataset.ParseDecimal(x)
		return d, err == nil
	}
	return nil, false
}

func toBool(v any) (any, bool) {
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil, true
	}
	b, ok := dataset.Bool(v)
	return b, ok
}

func toText(v any) (any, bool) {
	s := strings.TrimSpace(dataset.Format(v))
	if s == "" {
		return nil, true
	}
	return s, true
}
