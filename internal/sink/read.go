package sink

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadgen-cli/internal/model"
)

const utf8BOM = "\ufeff"

// ReadLeads reads a lead file. CSV and XLSX files are supported; columns
// are matched by header name, so reports exported with display names can
// be read back too.
func ReadLeads(path string) ([]model.Lead, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSXRows(path)
	default:
		rows, err = readCSVRows(path)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := normalizeHeader(rows[0])
	leads := make([]model.Lead, 0, len(rows)-1)
	for _, r := range rows[1:] {
		if blank(r) {
			continue
		}
		m := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(r) {
				m[h] = r[i]
			}
		}
		leads = append(leads, model.LeadFromRow(m))
	}
	return leads, nil
}

func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "sink: open target")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	h, err := r.Read()
	if err != nil {
		return nil, eris.Wrap(err, "sink: read header")
	}
	if len(h) > 0 {
		h[0] = strings.TrimPrefix(h[0], utf8BOM)
	}
	return h, nil
}

func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "sink: open lead file")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "sink: read row")
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readXLSXRows(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "sink: open workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("sink: workbook %s has no sheets", path)
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// normalizeHeader maps display names back to column names.
func normalizeHeader(h []string) []string {
	out := make([]string, len(h))
	for i, name := range h {
		name = strings.TrimSpace(strings.TrimPrefix(name, utf8BOM))
		if col, ok := columnByDisplay[name]; ok {
			out[i] = col
			continue
		}
		out[i] = strings.ToLower(strings.ReplaceAll(name, " ", "_"))
	}
	return out
}

func blank(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
