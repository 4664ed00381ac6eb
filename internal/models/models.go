// Package models defines the core data structures for baraholka-watch.
//
// It includes types for scraped listings, dedup records, and run reports, which are shared across modules.
package models

import (
	"errors"
	"strings"
	"time"
)

// PriceUnknown is the placeholder price used when a listing has no parseable price.
const PriceUnknown = "N/A"

// Error variables for better error handling and testability
var (
	ErrEmptyListingID = errors.New("listing id cannot be empty")
	ErrEmptyTitle     = errors.New("listing title cannot be empty")
	ErrEmptyDetailURL = errors.New("listing detail url cannot be empty")
	ErrEmptyRecipient = errors.New("recipient cannot be empty")
	ErrInvalidChatID  = errors.New("chat id must be a non-zero integer")
	ErrNoKeywords     = errors.New("at least one search keyword must be configured")
	ErrNoListingURLs  = errors.New("at least one listing URL must be configured")
)

// ListingItem represents a single classified ad scraped from a listing page.
// ChatLink stays empty until the detail page has been resolved.
type ListingItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Price     string `json:"price"`
	DetailURL string `json:"detail_url"`
	ChatLink  string `json:"chat_link,omitempty"`
}

// Validate performs validation on a ListingItem structure.
func (l *ListingItem) Validate() error {
	if l.ID == "" {
		return ErrEmptyListingID
	}
	if strings.TrimSpace(l.Title) == "" {
		return ErrEmptyTitle
	}
	if l.DetailURL == "" {
		return ErrEmptyDetailURL
	}
	return nil
}

// DedupRecord marks a listing that has already been notified.
type DedupRecord struct {
	ID         string    `json:"id"`
	NotifiedAt time.Time `json:"notified_at"`
}

// StateStats summarizes the contents of the dedup store.
type StateStats struct {
	TotalRecords int        `json:"total_records"`
	SentLast24h  int        `json:"sent_last_24h"`
	OldestRecord *time.Time `json:"oldest_record,omitempty"`
	NewestRecord *time.Time `json:"newest_record,omitempty"`
	Backend      string     `json:"backend"`
	StatePath    string     `json:"state_path,omitempty"`
	FileExists   bool       `json:"file_exists"`
}

// RunState identifies the phase a polling run is currently in.
type RunState string

const (
	// RunStateFetching downloads the configured listing pages.
	RunStateFetching RunState = "fetching"
	// RunStateFiltering applies the keyword filter to fetched candidates.
	RunStateFiltering RunState = "filtering"
	// RunStateResolving fetches detail pages to extract chat links.
	RunStateResolving RunState = "resolving"
	// RunStateDeduping drops items that were already notified.
	RunStateDeduping RunState = "deduping"
	// RunStateNotifying delivers notifications for the remaining items.
	RunStateNotifying RunState = "notifying"
	// RunStatePersisting records sent items and prunes old state.
	RunStatePersisting RunState = "persisting"
	// RunStateDone marks a completed run.
	RunStateDone RunState = "done"
	// RunStateErrored marks a run aborted by a listing fetch failure.
	RunStateErrored RunState = "errored"
)

// RunReport summarizes a single polling run.
type RunReport struct {
	RunID        string        `json:"run_id"`
	State        RunState      `json:"state"`
	Fetched      int           `json:"fetched"`
	Matched      int           `json:"matched"`
	Resolved     int           `json:"resolved"`
	Duplicates   int           `json:"duplicates"`
	Sent         int           `json:"sent"`
	SendFailures int           `json:"send_failures"`
	Pruned       int           `json:"pruned"`
	DryRun       bool          `json:"dry_run"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration_ns"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// API Response types for consistent JSON responses

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Convenience functions for common response patterns

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
