package sink

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadgen-cli/internal/model"
)

func lead(name, phone, email string) model.Lead {
	l := model.NewLead(model.RawRecord{Name: name, Phone: phone, Website: "https://" + strings.ToLower(name) + ".example"}, "q", "Pune", "")
	l.Email = email
	return l
}

func TestCSVSink_HeaderWrittenOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "leads.csv")
	s := NewCSVSink(path)

	require.NoError(t, s.Persist(lead("Acme", "1", "a@acme.example")))
	require.NoError(t, s.Persist(lead("Beta", "2", "")))

	// A new sink on the same file (a resumed run) appends without a header.
	s2 := NewCSVSink(path)
	require.NoError(t, s2.Persist(lead("Gamma", "3", "")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, strings.Join(model.Columns, ","), lines[0])
	assert.Equal(t, 1, strings.Count(string(data), "title,address"))
}

func TestCSVSink_LoadExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.csv")
	s := NewCSVSink(path)

	leads, err := s.LoadExisting()
	require.NoError(t, err)
	assert.Empty(t, leads, "missing target is an empty run")

	want := lead("Acme", "555", "a@acme.example")
	want.Findings = []string{"slow site"}
	require.NoError(t, s.Persist(want))
	require.NoError(t, s.Persist(lead("Beta", "", "")))

	leads, err = s.LoadExisting()
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, want, leads[0])
	assert.Equal(t, "Beta", leads[1].Name)
}

func TestCSVSink_DropsTornRowBeforeAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.csv")
	require.NoError(t, NewCSVSink(path).Persist(lead("Acme", "111", "")))

	// A crash mid-write leaves a row without its trailing newline.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("Beta,Beta Rd,22")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	s := NewCSVSink(path)
	require.NoError(t, s.Persist(lead("Gamma", "333", "")))

	leads, err := s.LoadExisting()
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, "Acme", leads[0].Name)
	assert.Equal(t, "Gamma", leads[1].Name)
	key, ok := leads[1].Key()
	require.True(t, ok)
	assert.Equal(t, "333", key)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Beta")
	assert.True(t, strings.HasSuffix(string(data), "\n"))
}

func TestCSVSink_LoadExistingDropsTornRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.csv")
	s := NewCSVSink(path)
	require.NoError(t, s.Persist(lead("Acme", "111", "")))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("Beta,Beta Rd,22")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	leads, err := s.LoadExisting()
	require.NoError(t, err)
	require.Len(t, leads, 1)
	key, ok := leads[0].Key()
	require.True(t, ok)
	assert.Equal(t, "111", key)
}

func TestCSVSink_TornHeaderStartsOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.csv")
	require.NoError(t, os.WriteFile(path, []byte("title,addr"), 0o644))

	require.NoError(t, NewCSVSink(path).Persist(lead("Acme", "111", "")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(model.Columns, ","), lines[0])
}

func TestCSVSink_AppendsInExistingColumnOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.csv")
	legacy := "title,address,phone,website,email,rating,reviews,type,category,city,source_query\n" +
		"Old Co,1 Main,111,,,4.1,10,Bakery,VENDOR,Mumbai,bakery Mumbai\n"
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	s := NewCSVSink(path)
	existing, err := s.LoadExisting()
	require.NoError(t, err)
	require.Len(t, existing, 1)
	assert.Equal(t, "Mumbai", existing[0].TargetLocation)
	assert.Equal(t, "VENDOR", existing[0].TargetCategory)

	l := lead("New Co", "222", "x@new.example")
	l.TargetLocation = "Thane"
	require.NoError(t, s.Persist(l))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "New Co,,222,https://new co.example,x@new.example,,,,,Thane,q", lines[2])
}

func TestCSVSink_PersistError(t *testing.T) {
	dir := t.TempDir()
	// A directory where the file should be makes the open fail.
	path := filepath.Join(dir, "target.csv")
	require.NoError(t, os.Mkdir(path, 0o755))

	err := NewCSVSink(path).Persist(lead("Acme", "1", ""))
	var perr *model.PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, path, perr.Target)
}

func TestReadLeads_BOMAndBlankRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte("\ufefftitle,phone\nAcme,1\n,\nBeta,2\n"), 0o644))

	leads, err := ReadLeads(path)
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, "Acme", leads[0].Name)
	assert.Equal(t, "2", leads[1].Phone)
}

func TestTargetPath(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	got := TargetPath("generated_leads", "leads", "real estate", "New York, NY", now)
	assert.Equal(t, filepath.Join("generated_leads", "leads_real_estate_New_York__NY_20260304_050607.csv"), got)
	assert.Equal(t, filepath.Join("generated_leads", "leads_real_estate_New_York__NY_20260304_050607.xlsx"), ReportPath(got))
}

func TestXLSXExporter_Export(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.csv")
	s := NewCSVSink(path)

	a := lead("Acme", "1", "a@acme.example")
	a.Status = model.StatusPendingContact
	a.Findings = []string{"f1", "f2", "f3"}
	require.NoError(t, s.Persist(a))
	require.NoError(t, s.Persist(lead("Beta", "2", "")))

	out, err := NewXLSXExporter("report").Export(path)
	require.NoError(t, err)
	assert.Equal(t, ReportPath(path), out)

	f, err := xlsx.OpenFile(out)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	assert.Equal(t, "Leads", sheet.Name)
	require.Len(t, sheet.Rows, 3)

	var header []string
	for _, c := range sheet.Rows[0].Cells {
		header = append(header, c.String())
	}
	assert.Contains(t, header, "Business Name")
	assert.Contains(t, header, "Finding 1")
	assert.NotContains(t, header, "Owner LinkedIn", "empty columns are dropped")

	// Column widths are 1-based; the first column is the business name.
	require.NotNil(t, sheet.Cols)
	first := sheet.Cols.FindColByIndex(1)
	require.NotNil(t, first)
	assert.Equal(t, 30.0, first.Width)

	// The workbook reads back as the same leads.
	back, err := ReadLeads(out)
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.Equal(t, a.Name, back[0].Name)
	assert.Equal(t, a.Email, back[0].Email)
	assert.Equal(t, a.Findings, back[0].Findings)
}

func TestXLSXExporter_EmptyTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(model.Columns, ",")+"\n"), 0o644))

	out, err := NewXLSXExporter("b2b").Export(path)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Business Name", DisplayName("title"))
	assert.Equal(t, "Business Type", DisplayName("business_type"))
	assert.Equal(t, "Address", DisplayName("address"))
}

func TestNewXLSXExporter_UnknownThemeFallsBack(t *testing.T) {
	assert.Equal(t, "report", NewXLSXExporter("neon").Theme.Name)
	assert.Equal(t, "linkedin", NewXLSXExporter("linkedin").Theme.Name)
}
