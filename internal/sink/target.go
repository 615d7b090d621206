package sink

import (
	"fmt"
	"path/filepath"
	"regexp"
	"time"
)

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9]`)

// SafeName replaces every non-alphanumeric character with an underscore.
func SafeName(s string) string {
	return unsafeName.ReplaceAllString(s, "_")
}

// TargetPath builds a fresh run target path:
// {dir}/{prefix}_{keyword}_{location}_{YYYYMMDD_HHMMSS}.csv.
func TargetPath(dir, prefix, keyword, location string, now time.Time) string {
	name := fmt.Sprintf("%s_%s_%s_%s.csv", prefix, SafeName(keyword), SafeName(location), now.Format("20060102_150405"))
	return filepath.Join(dir, name)
}

// ReportPath returns the workbook path that sits next to a run target.
func ReportPath(target string) string {
	return target[:len(target)-len(filepath.Ext(target))] + ".xlsx"
}
