package wayback

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"rapture/utils"

	"github.com/cockroachdb/errors"
)

// WriteFile writes rows as a snapshot CSV. An existing file is left alone
// and reported with written=false.
func WriteFile(path string, rows []Row) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, utils.ErrorWithTrace(err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if os.IsExist(err) {
		return false, nil
	}
	if err != nil {
		return false, utils.ErrorWithTrace(err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(Headers); err != nil {
		f.Close()
		return false, utils.ErrorWithTrace(err)
	}
	for _, r := range rows {
		rec := make([]string, len(Headers))
		for i, h := range Headers {
			rec[i] = r[h]
		}
		if err := w.Write(rec); err != nil {
			f.Close()
			return false, utils.ErrorWithTrace(err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return false, utils.ErrorWithTrace(err)
	}
	return true, f.Close()
}

// ReadFile reads a snapshot CSV using its header row for column names.
func ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	if len(records) == 0 {
		return nil, nil
	}
	header := records[0]
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(Row, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
