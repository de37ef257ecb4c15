// Package services holds the conversation logic: the Orchestrator runs one
// query through the model and product search, the ChatController drives a
// user's persisted threads, and Sessions hands out one controller per user.
//
// Errors declared here are translated to HTTP statuses by the handlers.
package services

import "errors"

var (
	// ErrEmptyQuery is returned for a query that is blank after trimming.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrTooLong is returned when a query exceeds the configured rune limit.
	ErrTooLong = errors.New("query too long")

	// ErrBusy is returned when a submission arrives while the previous one for
	// the same user is still in flight. Nothing is appended.
	ErrBusy = errors.New("a previous message is still being processed")

	// ErrNothingToRetry is returned by Retry when the active thread has no
	// user message.
	ErrNothingToRetry = errors.New("no user message to retry")

	// ErrResearchInput is returned when product research lacks a link or name.
	ErrResearchInput = errors.New("product link and product name are required")
)
