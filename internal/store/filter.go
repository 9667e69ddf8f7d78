package store

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// matchRow reports whether the row satisfies every filter. Filters are ANDed;
// a row that lacks a filtered field never matches.
func matchRow(row Row, filters Filters) bool {
	for field, filter := range filters {
		value, ok := row[field]
		if !ok {
			return false
		}
		if filter == nil {
			continue
		}
		if cond, isCond := filter.(Condition); isCond {
			if !applyOperator(value, cond.Op, cond.Value) {
				return false
			}
			continue
		}
		if !applyOperator(value, "=", filter) {
			return false
		}
	}
	return true
}

func applyOperator(value any, op string, compare any) bool {
	switch op {
	case "=", "==", "":
		return canonical(value) == canonical(compare)
	case "!=":
		return canonical(value) != canonical(compare)
	case ">":
		return compareValues(value, compare) > 0
	case ">=":
		return compareValues(value, compare) >= 0
	case "<":
		return compareValues(value, compare) < 0
	case "<=":
		return compareValues(value, compare) <= 0
	case "contains":
		return strings.Contains(strings.ToLower(canonical(value)), strings.ToLower(canonical(compare)))
	case "startsWith":
		return strings.HasPrefix(strings.ToLower(canonical(value)), strings.ToLower(canonical(compare)))
	case "endsWith":
		return strings.HasSuffix(strings.ToLower(canonical(value)), strings.ToLower(canonical(compare)))
	case "in":
		return valueIn(value, compare)
	default:
		return canonical(value) == canonical(compare)
	}
}

func valueIn(value, set any) bool {
	rv := reflect.ValueOf(set)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	want := canonical(value)
	for i := 0; i < rv.Len(); i++ {
		if canonical(rv.Index(i).Interface()) == want {
			return true
		}
	}
	return false
}

// canonical renders a value for equality and substring comparison. Dates use
// RFC 3339 so the memory store's time.Time cells and the postgres store's
// string cells compare the same way.
func canonical(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(v)
	}
}

// compareValues orders two cell values: numerically when both parse as
// numbers, chronologically when both are times, otherwise by string
// comparison of their canonical forms (the default comparison).
func compareValues(a, b any) int {
	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			return at.Compare(bt)
		}
	}

	ca, cb := canonical(a), canonical(b)
	if na, err := strconv.ParseFloat(ca, 64); err == nil {
		if nb, err := strconv.ParseFloat(cb, 64); err == nil {
			switch {
			case na < nb:
				return -1
			case na > nb:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(ca, cb)
}

// sortAndLimit applies FindOptions to an already filtered result set in
// place. The sort is stable so equal keys keep insertion order.
func sortAndLimit(rows []Row, opts *FindOptions) []Row {
	if opts == nil {
		return rows
	}
	if opts.OrderBy != "" {
		sort.SliceStable(rows, func(i, j int) bool {
			cmp := compareValues(rows[i][opts.OrderBy], rows[j][opts.OrderBy])
			if opts.Desc {
				return cmp > 0
			}
			return cmp < 0
		})
	}
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}
	return rows
}

// alignRow expands a sparse field map into a full row over the header:
// missing fields become the empty string, dates stay typed, everything else
// is stringified.
func alignRow(headers []string, sparse Row) Row {
	full := make(Row, len(headers))
	for _, h := range headers {
		value, ok := sparse[h]
		if !ok || value == nil {
			full[h] = ""
			continue
		}
		if t, isTime := value.(time.Time); isTime {
			full[h] = t
			continue
		}
		full[h] = canonical(value)
	}
	return full
}
