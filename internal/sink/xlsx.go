package sink

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// Theme is the look of an exported report.
type Theme struct {
	Name       string
	SheetTitle string
	HeaderFill string
	StripeFill string
	BorderRGB  string
	// Highlight fills whole columns, e.g. the name column.
	Highlight map[string]string
}

// Themes are the built-in report styles.
var Themes = map[string]Theme{
	"report": {
		Name: "report", SheetTitle: "Leads",
		HeaderFill: "1F4E79", StripeFill: "F2F2F2", BorderRGB: "BFBFBF",
		Highlight: map[string]string{
			"finding_1": "FFF2CC",
			"finding_2": "D6E8F7",
			"finding_3": "E2EFDA",
		},
	},
	"b2b": {
		Name: "b2b", SheetTitle: "B2B Leads",
		HeaderFill: "1E3A2F", StripeFill: "F4F7F6", BorderRGB: "D9E1E7",
		Highlight: map[string]string{
			"title":               "E8F0EA",
			"decision_maker_name": "FFF3E0",
		},
	},
	"linkedin": {
		Name: "linkedin", SheetTitle: "LinkedIn Leads",
		HeaderFill: "0077B5", StripeFill: "F3F6F8", BorderRGB: "D9E1E7",
		Highlight: map[string]string{"title": "D9EBF7"},
	},
}

var displayNames = map[string]string{
	"title":                   "Business Name",
	"website":                 "Website",
	"email":                   "Email",
	"phone":                   "Phone",
	"website_phone":           "Website Phone",
	"rating":                  "Google Rating",
	"type":                    "Listing Type",
	"category":                "Target Category",
	"link":                    "Profile Link",
	"snippet":                 "Profile Summary",
	"decision_maker_name":     "Owner / Buyer Name",
	"decision_maker_linkedin": "Owner LinkedIn",
	"decision_maker_bio":      "Owner Bio / Context",
	"finding_1":               "Finding 1",
	"finding_2":               "Finding 2",
	"finding_3":               "Finding 3",
	"source_query":            "Search Query",
}

var columnByDisplay = func() map[string]string {
	m := make(map[string]string, len(displayNames))
	for col, name := range displayNames {
		m[name] = col
	}
	return m
}()

var columnWidths = map[string]float64{
	"title": 30, "address": 35, "website": 30, "email": 30, "link": 45, "snippet": 50,
	"decision_maker_bio": 50, "finding_1": 45, "finding_2": 45, "finding_3": 45,
	"source_query": 30,
}

// DisplayName returns the report header for a column.
func DisplayName(col string) string {
	if n, ok := displayNames[col]; ok {
		return n
	}
	return cases.Title(language.English).String(strings.ReplaceAll(col, "_", " "))
}

// XLSXExporter renders a run target as a styled workbook.
type XLSXExporter struct {
	Theme Theme
}

// NewXLSXExporter returns an exporter for the named theme, falling back to
// "report".
func NewXLSXExporter(theme string) *XLSXExporter {
	t, ok := Themes[theme]
	if !ok {
		t = Themes["report"]
	}
	return &XLSXExporter{Theme: t}
}

// Export reads the run target and writes a workbook next to it. It returns
// the workbook path, or "" when the target holds no leads.
func (e *XLSXExporter) Export(target string) (string, error) {
	leads, err := ReadLeads(target)
	if err != nil {
		return "", eris.Wrap(err, "export: read target")
	}
	if len(leads) == 0 {
		return "", nil
	}

	out := ReportPath(target)
	if err := e.write(leads, out); err != nil {
		return "", err
	}
	return out, nil
}

func (e *XLSXExporter) write(leads []model.Lead, path string) error {
	cols := usedColumns(leads)

	file := xlsx.NewFile()
	sheet, err := file.AddSheet(e.Theme.SheetTitle)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}
	sheet.SheetViews = []xlsx.SheetView{{Pane: &xlsx.Pane{
		YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft", State: "frozen",
	}}}

	header := sheet.AddRow()
	header.SetHeightCM(0.9)
	hs := e.style(11, "FFFFFF", e.Theme.HeaderFill)
	hs.Font.Bold = true
	hs.Alignment.Horizontal = "center"
	for _, c := range cols {
		cell := header.AddCell()
		cell.SetString(DisplayName(c))
		cell.SetStyle(hs)
	}

	index := make(map[string]int, len(model.Columns))
	for i, c := range model.Columns {
		index[c] = i
	}

	for n, l := range leads {
		row := sheet.AddRow()
		row.SetHeightCM(1.1)
		values := l.Row()
		for _, c := range cols {
			cell := row.AddCell()
			v := values[index[c]]
			cell.SetString(v)
			cell.SetStyle(e.cellStyle(c, v, n%2 == 1))
		}
	}

	for i, c := range cols {
		w, ok := columnWidths[c]
		if !ok {
			w = 18
		}
		sheet.SetColWidth(i+1, i+1, w)
	}

	if err := file.Save(path); err != nil {
		return eris.Wrap(err, "export: save workbook")
	}
	return nil
}

func (e *XLSXExporter) cellStyle(col, value string, stripe bool) *xlsx.Style {
	fill := ""
	if stripe {
		fill = e.Theme.StripeFill
	}
	if f, ok := e.Theme.Highlight[col]; ok {
		fill = f
	}
	s := e.style(10, "000000", fill)

	switch {
	case col == "status" && value == model.StatusPendingContact:
		s.Font.Bold = true
		s.Font.Color = argb("C65911")
		s.Fill = *xlsx.NewFill("solid", argb("FCE4D6"), argb("FCE4D6"))
	case col == "status" && value != "":
		s.Font.Italic = true
		s.Font.Color = argb("808080")
		s.Fill = *xlsx.NewFill("solid", argb("D9D9D9"), argb("D9D9D9"))
	case col == "link" || col == "decision_maker_linkedin" || col == "website":
		s.Font.Color = argb("0077B5")
		s.Font.Underline = true
	case col == "title":
		s.Font.Bold = true
	}
	return s
}

func (e *XLSXExporter) style(size int, fontRGB, fillRGB string) *xlsx.Style {
	s := xlsx.NewStyle()
	s.Font = *xlsx.NewFont(size, "Calibri")
	s.Font.Color = argb(fontRGB)
	if fillRGB != "" {
		s.Fill = *xlsx.NewFill("solid", argb(fillRGB), argb(fillRGB))
		s.ApplyFill = true
	}
	s.Border = *xlsx.NewBorder("thin", "thin", "thin", "thin")
	s.Border.LeftColor = argb(e.Theme.BorderRGB)
	s.Border.RightColor = argb(e.Theme.BorderRGB)
	s.Border.TopColor = argb(e.Theme.BorderRGB)
	s.Border.BottomColor = argb(e.Theme.BorderRGB)
	s.Alignment = xlsx.Alignment{Horizontal: "left", Vertical: "center", WrapText: true}
	s.ApplyFont = true
	s.ApplyBorder = true
	s.ApplyAlignment = true
	return s
}

func argb(rgb string) string { return "FF" + rgb }

// usedColumns keeps the columns that have a value in at least one lead.
// The name column is always kept.
func usedColumns(leads []model.Lead) []string {
	used := make([]bool, len(model.Columns))
	used[0] = true
	for _, l := range leads {
		for i, v := range l.Row() {
			if v != "" {
				used[i] = true
			}
		}
	}
	var cols []string
	for i, c := range model.Columns {
		if used[i] {
			cols = append(cols, c)
		}
	}
	return cols
}
