package export

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rosterkit/roster-api/internal/store"
)

// sortKey orders roster rows by shirt number: numeric values ascending
// first, ties broken by the raw string, and non-numeric or empty
// values after them in their original relative order.
type sortKey struct {
	numeric bool
	value   int
	raw     string
}

func sortKeyForRow(row store.Row) sortKey {
	number := parseNumber(row)
	if number != "" {
		if digits := digitsOf(number); digits != "" {
			if v, err := strconv.Atoi(digits); err == nil {
				return sortKey{numeric: true, value: v, raw: number}
			}
		}
	}
	return sortKey{raw: number}
}

func (k sortKey) less(other sortKey) bool {
	if k.numeric != other.numeric {
		return k.numeric
	}
	if !k.numeric {
		return false
	}
	if k.value != other.value {
		return k.value < other.value
	}
	return k.raw < other.raw
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SortRows returns a copy of rows in workbook order.
func SortRows(rows []store.Row) []store.Row {
	type keyedRow struct {
		key sortKey
		row store.Row
	}
	keyed := make([]keyedRow, len(rows))
	for i, row := range rows {
		keyed[i] = keyedRow{key: sortKeyForRow(row), row: row}
	}
	sort.SliceStable(keyed, func(i, j int) bool {
		return keyed[i].key.less(keyed[j].key)
	})
	sorted := make([]store.Row, len(keyed))
	for i, kr := range keyed {
		sorted[i] = kr.row
	}
	return sorted
}
