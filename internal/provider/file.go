package provider

import (
	"context"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/sink"
)

// FileAdapter replays a lead file (CSV or XLSX) as a single page so it can
// be run through enrichment again. The query is the file path.
type FileAdapter struct{}

// NewFileAdapter creates a FileAdapter.
func NewFileAdapter() *FileAdapter { return &FileAdapter{} }

// Name implements Adapter.
func (a *FileAdapter) Name() string { return "lead_file" }

// Start implements Adapter.
func (a *FileAdapter) Start() Cursor { return "" }

// Validate implements Adapter.
func (a *FileAdapter) Validate() error { return nil }

// Fetch implements Adapter.
func (a *FileAdapter) Fetch(ctx context.Context, path string, _ Cursor) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, wrapErr(a.Name(), path, err)
	}
	if _, err := os.Stat(path); err != nil {
		return Page{}, wrapErr(a.Name(), path, eris.Wrap(err, "lead file"))
	}

	leads, err := sink.ReadLeads(path)
	if err != nil {
		return Page{}, wrapErr(a.Name(), path, err)
	}

	page := Page{Prior: leads}
	for _, l := range leads {
		page.Records = append(page.Records, l.RawRecord)
	}
	return page, nil
}
