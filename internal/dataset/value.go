package dataset

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the runtime representation of a cell value.
type Kind int

const (
	KindMissing Kind = iota
	KindString
	KindNumber
	KindDate
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindBool:
		return "boolean"
	}
	return "missing"
}

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// KindOf classifies v. Unknown Go types are reported as strings.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindMissing
	case decimal.Decimal:
		return KindNumber
	case time.Time:
		return KindDate
	case bool:
		return KindBool
	}
	return KindString
}

// IsMissing reports whether v is a null cell.
func IsMissing(v any) bool { return v == nil }

// Format renders v the way reports write it: dates at midnight as
// 2006-01-02, other times with seconds, decimals canonical, missing empty.
func Format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case decimal.Decimal:
		return t.String()
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format(DateLayout)
		}
		return t.Format(DateTimeLayout)
	case bool:
		if t {
			return "true"
		}
		return "false"
	}
	return fmt.Sprint(v)
}

// Text returns the string form of a present value.
func Text(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	return Format(v), true
}

// Decimal returns v as a number. Strings are parsed leniently.
func Decimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case string:
		d, err := ParseDecimal(t)
		return d, err == nil
	case int:
		return decimal.NewFromInt(int64(t)), true
	case float64:
		return decimal.NewFromFloat(t), true
	}
	return decimal.Zero, false
}

// ParseDecimal reads a numeric cell, tolerating currency symbols and thousands separators.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrNotNumeric)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNotNumeric, s)
	}
	return d, nil
}

// Time returns v when it is a date.
func Time(v any) (time.Time, bool) {
	t, ok := v.(time.Time)
	return t, ok
}

// Bool returns v as a flag. Strings are read with ParseBool.
func Bool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		return ParseBool(t)
	case decimal.Decimal:
		if t.IsZero() {
			return false, true
		}
		if t.Equal(decimal.NewFromInt(1)) {
			return true, true
		}
	}
	return false, false
}

// ParseBool accepts true/false, yes/no, y/n and 1/0 in any case.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "1.0":
		return true, true
	case "false", "no", "n", "0", "0.0":
		return false, true
	}
	return false, false
}

// Compare orders two present values of the same kind. Values of different
// kinds compare by their formatted text.
func Compare(a, b any) int {
	switch x := a.(type) {
	case decimal.Decimal:
		if y, ok := b.(decimal.Decimal); ok {
			return x.Cmp(y)
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(Format(a), Format(b))
}

// Equal reports whether two cells hold the same kind and value.
func Equal(a, b any) bool {
	if KindOf(a) != KindOf(b) {
		return false
	}
	if a == nil {
		return true
	}
	return Compare(a, b) == 0
}

// KeyString is a kind-tagged encoding used for hashing join and group keys.
// Values of different kinds never share a key.
func KeyString(v any) string {
	switch t := v.(type) {
	case nil:
		return "\x00"
	case decimal.Decimal:
		return "n:" + t.String()
	case time.Time:
		return "d:" + t.UTC().Format(time.RFC3339Nano)
	case bool:
		return "b:" + Format(t)
	}
	return "s:" + Format(v)
}
