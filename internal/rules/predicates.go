package rules

import (
	"strings"
	"time"

	"Recon340B/internal/dataset"

	"github.com/shopspring/decimal"
)

// Comparisons involving a missing value are false everywhere below.

func Missing(col string) Predicate {
	return func(r dataset.Row) bool { return r[col] == nil }
}

func Present(col string) Predicate {
	return func(r dataset.Row) bool { return r[col] != nil }
}

// IsTrue holds for boolean true and truthy text such as "Yes".
func IsTrue(col string) Predicate {
	return func(r dataset.Row) bool {
		b, ok := dataset.Bool(r[col])
		return ok && b
	}
}

// IsFalse holds for a present false value; missing is not false.
func IsFalse(col string) Predicate {
	return func(r dataset.Row) bool {
		b, ok := dataset.Bool(r[col])
		return ok && !b
	}
}

func text(r dataset.Row, col string) (string, bool) {
	s, ok := dataset.Text(r[col])
	return strings.TrimSpace(s), ok
}

// EqualFold compares trimmed text case-insensitively.
func EqualFold(col, value string) Predicate {
	value = strings.TrimSpace(value)
	return func(r dataset.Row) bool {
		s, ok := text(r, col)
		return ok && strings.EqualFold(s, value)
	}
}

func InFold(col string, values ...string) Predicate {
	set := foldSet(values)
	return func(r dataset.Row) bool {
		s, ok := text(r, col)
		return ok && set[strings.ToLower(s)]
	}
}

// NotInFold holds for a present value outside values.
func NotInFold(col string, values ...string) Predicate {
	set := foldSet(values)
	return func(r dataset.Row) bool {
		s, ok := text(r, col)
		return ok && !set[strings.ToLower(s)]
	}
}

func foldSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.ToLower(strings.TrimSpace(v))] = true
	}
	return set
}

func ContainsFold(col, substr string) Predicate {
	substr = strings.ToLower(substr)
	return func(r dataset.Row) bool {
		s, ok := text(r, col)
		return ok && strings.Contains(strings.ToLower(s), substr)
	}
}

func HasPrefixFold(col, prefix string) Predicate {
	prefix = strings.ToLower(prefix)
	return func(r dataset.Row) bool {
		s, ok := text(r, col)
		return ok && strings.HasPrefix(strings.ToLower(s), prefix)
	}
}

func HasSuffixFold(col, suffix string) Predicate {
	suffix = strings.ToLower(suffix)
	return func(r dataset.Row) bool {
		s, ok := text(r, col)
		return ok && strings.HasSuffix(strings.ToLower(s), suffix)
	}
}

// DateBefore holds when column a is strictly earlier than column b.
func DateBefore(a, b string) Predicate {
	return func(r dataset.Row) bool {
		x, ok1 := dataset.Time(r[a])
		y, ok2 := dataset.Time(r[b])
		return ok1 && ok2 && x.Before(y)
	}
}

func DateAfter(a, b string) Predicate {
	return func(r dataset.Row) bool {
		x, ok1 := dataset.Time(r[a])
		y, ok2 := dataset.Time(r[b])
		return ok1 && ok2 && x.After(y)
	}
}

func DateBeforeTime(col string, t time.Time) Predicate {
	return func(r dataset.Row) bool {
		x, ok := dataset.Time(r[col])
		return ok && x.Before(t)
	}
}

func DateAfterTime(col string, t time.Time) Predicate {
	return func(r dataset.Row) bool {
		x, ok := dataset.Time(r[col])
		return ok && x.After(t)
	}
}

// DateWithin holds for from <= col <= to.
func DateWithin(col string, from, to time.Time) Predicate {
	return func(r dataset.Row) bool {
		x, ok := dataset.Time(r[col])
		return ok && !x.Before(from) && !x.After(to)
	}
}

// WithinWindow holds when col falls in [anchor-before, anchor+after], both
// taken from the row.
func WithinWindow(col, anchor string, before, after time.Duration) Predicate {
	return func(r dataset.Row) bool {
		x, ok1 := dataset.Time(r[col])
		a, ok2 := dataset.Time(r[anchor])
		return ok1 && ok2 && !x.Before(a.Add(-before)) && !x.After(a.Add(after))
	}
}

// Days converts a day count to a window duration.
func Days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

// Amount compares a numeric column against a constant with one of
// >, >=, =, <=, <. Unknown operators never match.
func Amount(col, op string, value decimal.Decimal) Predicate {
	return func(r dataset.Row) bool {
		d, ok := dataset.Decimal(r[col])
		return ok && compareOp(d.Cmp(value), op)
	}
}

func GreaterThan(col string, value decimal.Decimal) Predicate { return Amount(col, ">", value) }

func LessThan(col string, value decimal.Decimal) Predicate { return Amount(col, "<", value) }

// GreaterThanColumn holds when column a is numerically greater than column b.
func GreaterThanColumn(a, b string) Predicate {
	return func(r dataset.Row) bool {
		x, ok1 := dataset.Decimal(r[a])
		y, ok2 := dataset.Decimal(r[b])
		return ok1 && ok2 && x.GreaterThan(y)
	}
}

func compareOp(c int, op string) bool {
	switch op {
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	case "=", "==":
		return c == 0
	case "<=":
		return c <= 0
	case "<":
		return c < 0
	}
	return false
}

func All(ps ...Predicate) Predicate {
	return func(r dataset.Row) bool {
		for _, p := range ps {
			if !p(r) {
				return false
			}
		}
		return true
	}
}

func Any(ps ...Predicate) Predicate {
	return func(r dataset.Row) bool {
		for _, p := range ps {
			if p(r) {
				return true
			}
		}
		return false
	}
}

func Not(p Predicate) Predicate {
	return func(r dataset.Row) bool { return !p(r) }
}

// Always matches every row; useful as an explicit catch-all rule.
func Always() Predicate {
	return func(dataset.Row) bool { return true }
}
