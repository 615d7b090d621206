// Package sink persists leads to a run target and renders reports from it.
package sink

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// CSVSink appends leads to a CSV run target. Every Persist opens, writes,
// syncs, and closes the file, so a crash loses at most the row in flight.
type CSVSink struct {
	path   string
	header []string
}

// NewCSVSink returns a sink for the given run target. The file is created
// on the first Persist.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

// Path returns the run target path.
func (s *CSVSink) Path() string { return s.path }

// Persist appends one lead. The header is written only when the target is
// new or empty. When appending to an existing file its header decides the
// column order.
func (s *CSVSink) Persist(lead model.Lead) error {
	if err := s.persist(lead); err != nil {
		return &model.PersistenceError{Target: s.path, Err: err}
	}
	return nil
}

func (s *CSVSink) persist(lead model.Lead) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "sink: create output dir")
		}
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return eris.Wrap(err, "sink: open target")
	}
	defer f.Close() //nolint:errcheck

	size, err := dropTornRow(f)
	if err != nil {
		return err
	}
	if _, err := f.Seek(size, io.SeekStart); err != nil {
		return eris.Wrap(err, "sink: seek end")
	}

	w := csv.NewWriter(f)
	if size == 0 {
		s.header = model.Columns
		if err := w.Write(s.header); err != nil {
			return eris.Wrap(err, "sink: write header")
		}
	} else if s.header == nil {
		h, err := readHeader(s.path)
		if err != nil {
			return err
		}
		s.header = h
	}

	if err := w.Write(project(lead, s.header)); err != nil {
		return eris.Wrap(err, "sink: write row")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "sink: flush")
	}
	if err := f.Sync(); err != nil {
		return eris.Wrap(err, "sink: sync")
	}
	return eris.Wrap(f.Close(), "sink: close")
}

// LoadExisting returns the leads already in the target. A missing target
// is not an error. A final row cut short by a crash is removed first.
func (s *CSVSink) LoadExisting() ([]model.Lead, error) {
	f, err := os.OpenFile(s.path, os.O_RDWR, 0)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &model.PersistenceError{Target: s.path, Err: eris.Wrap(err, "sink: open target")}
	}
	_, err = dropTornRow(f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = eris.Wrap(cerr, "sink: close")
	}
	if err != nil {
		return nil, &model.PersistenceError{Target: s.path, Err: err}
	}
	return ReadLeads(s.path)
}

// dropTornRow truncates f after its last newline and returns the new size.
// Every complete row ends in a newline, so anything after it is a partial
// write.
func dropTornRow(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, eris.Wrap(err, "sink: stat target")
	}
	size := info.Size()
	if size == 0 {
		return 0, nil
	}

	const chunk = 4096
	buf := make([]byte, chunk)
	end := size
	for end > 0 {
		start := max(end-chunk, 0)
		n, err := f.ReadAt(buf[:end-start], start)
		if err != nil && err != io.EOF {
			return 0, eris.Wrap(err, "sink: read tail")
		}
		if i := bytes.LastIndexByte(buf[:n], '\n'); i >= 0 {
			end = start + int64(i) + 1
			break
		}
		if start == 0 {
			end = 0
			break
		}
		end = start
	}
	if end == size {
		return size, nil
	}
	if err := f.Truncate(end); err != nil {
		return 0, eris.Wrap(err, "sink: drop partial row")
	}
	return end, nil
}

// project renders lead in the order of header. Header names the lead does
// not know are left blank.
func project(lead model.Lead, header []string) []string {
	row := lead.Row()
	if sameColumns(header) {
		return row
	}
	byName := make(map[string]string, len(row))
	for i, c := range model.Columns {
		byName[c] = row[i]
	}
	if _, ok := byName["city"]; !ok {
		byName["city"] = lead.TargetLocation
	}
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = byName[h]
	}
	return out
}

func sameColumns(header []string) bool {
	if len(header) != len(model.Columns) {
		return false
	}
	for i := range header {
		if header[i] != model.Columns[i] {
			return false
		}
	}
	return true
}
