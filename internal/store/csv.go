package store

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Row is one CSV record keyed by column name.
type Row map[string]string

// ReadRows loads a CSV file and returns its rows together with the
// header order. Cells beyond the header are dropped; short records
// fill missing columns with empty strings.
func ReadRows(path string) ([]Row, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "read %s", path)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	fields := records[0]
	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(Row, len(fields))
		for i, field := range fields {
			if i < len(record) {
				row[field] = record[i]
			} else {
				row[field] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, fields, nil
}

// Persist writes rows to path atomically: the data goes to a sibling
// temp file which is then renamed over the destination, so a
// concurrent reader only ever sees the previous or the new complete
// file. Missing cells render empty.
func Persist(path string, rows []Row, fields []string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "create temp file in %s", dir)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	w := csv.NewWriter(tmp)
	if err := w.Write(fields); err != nil {
		cleanup()
		return errors.Wrap(err, "write header")
	}
	record := make([]string, len(fields))
	for _, row := range rows {
		for i, field := range fields {
			record[i] = row[field]
		}
		if err := w.Write(record); err != nil {
			cleanup()
			return errors.Wrap(err, "write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		cleanup()
		return errors.Wrap(err, "flush rows")
	}

	if err := tmp.Sync(); err != nil {
		cleanup()
		return errors.Wrap(err, "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(err, "replace %s", path)
	}
	return nil
}

// MergeFields appends unseen fields to the order. Existing fields keep
// their positions, so columns written earlier in a run never move.
func MergeFields(order []string, fields []string) []string {
	seen := make(map[string]bool, len(order))
	for _, f := range order {
		seen[f] = true
	}
	for _, f := range fields {
		if !seen[f] {
			order = append(order, f)
			seen[f] = true
		}
	}
	return order
}

// SerializeValue renders a decoded JSON value as a CSV cell: nil is
// empty, lists join with ";", nested objects serialize as compact JSON
// and scalars use their plain string form.
func SerializeValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case []interface{}:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = SerializeValue(item)
		}
		return strings.Join(parts, ";")
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return fmt.Sprint(v)
		}
		return strings.TrimSuffix(buf.String(), "\n")
	}
}
