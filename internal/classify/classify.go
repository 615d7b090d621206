// Package classify holds the pure classifiers applied to leads: business
// kind and contact quality.
package classify

import (
	"regexp"
	"slices"
	"strings"
)

// Kind is a lead's place in the supply chain.
type Kind string

// Kinds.
const (
	Manufacturer Kind = "MANUFACTURER"
	Vendor       Kind = "VENDOR"
	Unknown      Kind = "UNKNOWN"
)

var manufacturerTerms = []string{
	"manufacturer",
	"manufacturing",
	"factory",
	"industrial equipment",
	"chemical manufacturer",
	"machining manufacturer",
}

var vendorTerms = []string{
	"vendor",
	"dealer",
	"distributor",
	"supplier",
	"seller",
	"reseller",
	"showroom",
	"retail",
}

// BusinessKind classifies a listing from its provider category, falling back
// to the query that found it. The category wins when it is conclusive.
func BusinessKind(category, sourceQuery string) Kind {
	for _, s := range []string{category, sourceQuery} {
		if k := kindOf(strings.ToLower(s)); k != Unknown {
			return k
		}
	}
	return Unknown
}

func kindOf(s string) Kind {
	if s == "" {
		return Unknown
	}
	contains := func(term string) bool { return strings.Contains(s, term) }
	if slices.ContainsFunc(manufacturerTerms, contains) {
		return Manufacturer
	}
	if slices.ContainsFunc(vendorTerms, contains) {
		return Vendor
	}
	return Unknown
}

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
)

// maxEmailLen rejects matches that are really run-together page text.
const maxEmailLen = 50

var imageSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp"}

// DefaultJunkDomains are placeholder and vendor-tooling addresses that show
// up in page templates.
var DefaultJunkDomains = []string{
	"example.com", "yourdomain", "sentry.io", "wixpress.com", "google.com",
	"email.com", "website.com", "test.com", "domain.com", "placeholder",
}

// EmailFilter decides which harvested addresses are worth keeping.
type EmailFilter struct {
	Junk []string
}

// NewEmailFilter returns a filter that rejects the default junk domains plus
// extra.
func NewEmailFilter(extra ...string) EmailFilter {
	junk := slices.Clone(DefaultJunkDomains)
	for _, j := range extra {
		if j = strings.ToLower(strings.TrimSpace(j)); j != "" {
			junk = append(junk, j)
		}
	}
	return EmailFilter{Junk: junk}
}

// Valid reports whether email looks like a real contact address.
func (f EmailFilter) Valid(email string) bool {
	e := strings.ToLower(strings.TrimSpace(email))
	if e == "" || len(e) >= maxEmailLen || !strings.Contains(e, "@") {
		return false
	}
	for _, s := range imageSuffixes {
		if strings.Contains(e, s) {
			return false
		}
	}
	for _, j := range f.Junk {
		if strings.Contains(e, j) {
			return false
		}
	}
	return true
}

// Emails returns the valid addresses in text, in order of first appearance,
// without duplicates.
func (f EmailFilter) Emails(text string) []string {
	return f.Keep(emailRe.FindAllString(text, -1))
}

// Keep filters candidates, dropping invalid and repeated addresses.
func (f EmailFilter) Keep(candidates []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		k := strings.ToLower(c)
		if seen[k] || !f.Valid(c) {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}

// JoinEmails renders addresses the way they are stored on a lead.
func JoinEmails(emails []string) string {
	return strings.Join(emails, ", ")
}

// FirstPhone returns the first phone-number-shaped match in text.
func FirstPhone(text string) string {
	return phoneRe.FindString(text)
}
