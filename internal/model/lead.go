package model

import (
	"strconv"
	"strings"
)

// Placeholder values written when an enrichment step cannot produce data.
const (
	NotFound      = "Not Found"
	NotApplicable = "N/A"
)

// Lead status tags set by the pitch step.
const (
	StatusPendingContact = "Pending Contact"
	StatusUnreachable    = "Unreachable"
)

// RawRecord is a single result as returned by a search provider. Any field
// may be empty. It is a value type and is never modified after the provider
// returns it.
type RawRecord struct {
	Name     string  `json:"title"`
	Address  string  `json:"address,omitempty"`
	Phone    string  `json:"phone,omitempty"`
	Website  string  `json:"website,omitempty"`
	Rating   float64 `json:"rating,omitempty"`
	Reviews  int     `json:"reviews,omitempty"`
	Category string  `json:"type,omitempty"`
	Link     string  `json:"link,omitempty"`
	Snippet  string  `json:"snippet,omitempty"`
}

// IdentityKey returns the deduplication key for a record and whether the
// record has one. Records without a name never have a key.
func IdentityKey(r RawRecord) (string, bool) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return "", false
	}
	if phone := strings.TrimSpace(r.Phone); phone != "" {
		return phone, true
	}
	if addr := strings.TrimSpace(r.Address); addr != "" {
		return name + "|" + addr, true
	}
	if link := strings.TrimSpace(r.Link); link != "" {
		return name + "|" + link, true
	}
	return name, true
}

// Lead is a RawRecord that passed deduplication, plus enrichment output and
// provenance. Enrichment only fills the non-identity fields.
type Lead struct {
	RawRecord

	Email        string `json:"email,omitempty"`
	WebsitePhone string `json:"website_phone,omitempty"`

	DecisionMakerName    string `json:"decision_maker_name,omitempty"`
	DecisionMakerProfile string `json:"decision_maker_linkedin,omitempty"`
	DecisionMakerBio     string `json:"decision_maker_bio,omitempty"`

	Findings     []string `json:"findings,omitempty"`
	Status       string   `json:"status,omitempty"`
	BusinessType string   `json:"business_type,omitempty"`

	TargetCategory string `json:"category,omitempty"`
	TargetLocation string `json:"location,omitempty"`
	SourceQuery    string `json:"source_query,omitempty"`
}

// NewLead wraps an admitted record with its provenance.
func NewLead(r RawRecord, query, location, category string) Lead {
	return Lead{
		RawRecord:      r,
		SourceQuery:    query,
		TargetLocation: location,
		TargetCategory: category,
	}
}

// Key returns the lead's identity key.
func (l Lead) Key() (string, bool) {
	return IdentityKey(l.RawRecord)
}

// FindingSlots is the number of finding columns in the output file.
const FindingSlots = 3

// Columns is the stable column order of a run target file.
var Columns = []string{
	"title", "address", "phone", "website", "email", "website_phone",
	"rating", "reviews", "type", "link", "snippet",
	"decision_maker_name", "decision_maker_linkedin", "decision_maker_bio",
	"finding_1", "finding_2", "finding_3",
	"status", "business_type", "category", "location", "source_query",
}

// Row renders the lead in Columns order.
func (l Lead) Row() []string {
	findings := make([]string, FindingSlots)
	copy(findings, l.Findings)

	rating := ""
	if l.Rating != 0 {
		rating = strconv.FormatFloat(l.Rating, 'f', -1, 64)
	}
	reviews := ""
	if l.Reviews != 0 {
		reviews = strconv.Itoa(l.Reviews)
	}

	return []string{
		l.Name, l.Address, l.Phone, l.Website, l.Email, l.WebsitePhone,
		rating, reviews, l.Category, l.Link, l.Snippet,
		l.DecisionMakerName, l.DecisionMakerProfile, l.DecisionMakerBio,
		findings[0], findings[1], findings[2],
		l.Status, l.BusinessType, l.TargetCategory, l.TargetLocation, l.SourceQuery,
	}
}

// LeadFromRow rebuilds a lead from a row keyed by column name. Unknown
// columns are ignored and missing ones are left empty, so files written by
// older column layouts still load.
func LeadFromRow(row map[string]string) Lead {
	var l Lead
	l.Name = row["title"]
	l.Address = row["address"]
	l.Phone = row["phone"]
	l.Website = row["website"]
	l.Email = row["email"]
	l.WebsitePhone = row["website_phone"]
	l.Rating, _ = strconv.ParseFloat(strings.TrimSpace(row["rating"]), 64)
	l.Reviews, _ = strconv.Atoi(strings.TrimSpace(row["reviews"]))
	l.Category = row["type"]
	l.Link = row["link"]
	l.Snippet = row["snippet"]
	l.DecisionMakerName = row["decision_maker_name"]
	l.DecisionMakerProfile = row["decision_maker_linkedin"]
	l.DecisionMakerBio = row["decision_maker_bio"]
	for i := 1; i <= FindingSlots; i++ {
		if f := row["finding_"+strconv.Itoa(i)]; f != "" {
			l.Findings = append(l.Findings, f)
		}
	}
	l.Status = row["status"]
	l.BusinessType = row["business_type"]
	l.TargetCategory = row["category"]
	l.TargetLocation = row["location"]
	if l.TargetLocation == "" {
		l.TargetLocation = row["city"]
	}
	l.SourceQuery = row["source_query"]
	return l
}
