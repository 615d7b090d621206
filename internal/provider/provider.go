// Package provider adapts external search APIs to a uniform paged fetch.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/sells-group/leadgen-cli/internal/config"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/pkg/google"
	"github.com/sells-group/leadgen-cli/pkg/serpapi"
)

// Cursor is an opaque pagination position. Its meaning belongs to the
// adapter that produced it.
type Cursor string

// Page is one provider response.
type Page struct {
	Records []model.RawRecord
	// Prior, when set, holds earlier enrichment output for Records[i], as
	// read back from a lead file. Enrichment starts from it instead of an
	// empty lead.
	Prior []model.Lead
	// Next is where the following page starts. Only meaningful when More.
	Next Cursor
	// More is false once the provider is exhausted for the query.
	More bool
}

// Adapter fetches pages of raw records for a query.
type Adapter interface {
	// Name identifies the provider in logs and errors.
	Name() string
	// Start returns the cursor of a query's first page.
	Start() Cursor
	// Validate reports missing credentials as a *config.ConfigError.
	Validate() error
	// Fetch returns the page at cursor. Errors are *Error.
	Fetch(ctx context.Context, query string, cursor Cursor) (Page, error)
}

// Error is a failed provider call.
type Error struct {
	Provider   string
	Query      string
	StatusCode int
	Err        error
	fatal      bool
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: query %q: status %d: %v", e.Provider, e.Query, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: query %q: %v", e.Provider, e.Query, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fatal reports whether the failure is not tied to the query: a rejected
// credential or a provider that keeps failing. A fatal error ends the run.
func (e *Error) Fatal() bool { return e.fatal }

// IsFatal reports whether err carries a fatal provider error.
func IsFatal(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Fatal()
}

func wrapErr(provider, query string, err error) *Error {
	pe := &Error{Provider: provider, Query: query, Err: err}
	pe.StatusCode = statusOf(err)
	pe.fatal = resilience.IsAuthStatus(pe.StatusCode) || errors.Is(err, resilience.ErrCircuitOpen)
	return pe
}

func statusOf(err error) int {
	var serpErr *serpapi.APIError
	if errors.As(err, &serpErr) {
		return serpErr.StatusCode
	}
	var googleErr *google.APIError
	if errors.As(err, &googleErr) {
		return googleErr.StatusCode
	}
	return 0
}

// retryable marks throttling and server errors as transient so
// resilience.DoVal retries them.
func retryable(err error) error {
	if code := statusOf(err); resilience.IsTransientHTTPStatus(code) {
		return resilience.NewTransientError(err, code)
	}
	return err
}

func missingCredential(provider, key string) error {
	return &config.ConfigError{Feature: "provider " + provider, Missing: []string{key}}
}
