/*
errors.go - Centralized error types for the payout engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Stores and services wrap these errors with additional context; the HTTP
  layer maps them to status codes with the helpers at the bottom.

ERROR CATEGORIES:
  1. Store errors - Missing records, duplicate links
  2. Validation errors - Sale form rules, malformed keys
  3. Upstream errors - Remote document store unavailable

USAGE:
    if errors.Is(err, generic.ErrDuplicateLink) {
        // link already recorded this week
    }

SEE ALSO:
  - store.go: Ports that return these errors
  - commission/sale.go: Produces ValidationError
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateLink is returned when the same listing was already recorded
	// for the user in the same week. Expected for double submits.
	ErrDuplicateLink = errors.New("marketplace link already recorded")

	// ErrSaleNotFound is returned when a sale does not exist at the given key.
	ErrSaleNotFound = errors.New("sale not found")

	// ErrConfigNotFound is returned when no tier configuration has been saved.
	ErrConfigNotFound = errors.New("tier config not found")

	// ErrUserNotFound is returned when a user profile does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrClosureNotFound is returned when a month has no published closure.
	ErrClosureNotFound = errors.New("closure not found")

	// ErrInvalidSale is returned when a sale fails form validation.
	ErrInvalidSale = errors.New("invalid sale")

	// ErrInvalidKey is returned for malformed month, week or date keys.
	ErrInvalidKey = errors.New("invalid key")

	// ErrUpstreamUnavailable is returned when the remote store cannot be reached
	// after retries, or the circuit breaker is open.
	ErrUpstreamUnavailable = errors.New("upstream store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError lists every rule a record broke.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid sale: %s", strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidSale
}

// DuplicateLinkError identifies the colliding link.
type DuplicateLinkError struct {
	UID  UserID
	Week WeekKey
	Key  string
}

func (e *DuplicateLinkError) Error() string {
	return fmt.Sprintf("link %s already recorded for %s in %s", e.Key, e.UID, e.Week)
}

func (e *DuplicateLinkError) Unwrap() error {
	return ErrDuplicateLink
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidSale) ||
		errors.Is(err, ErrInvalidKey)
}

// IsConflict returns true if the write collided with an existing record.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateLink)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSaleNotFound) ||
		errors.Is(err, ErrConfigNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrClosureNotFound)
}
