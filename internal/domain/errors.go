package domain

import "errors"

var (
	// ErrInvalidRequest is returned when request parameters fail validation
	// (unsupported country, empty required list, non-positive max price).
	// Surfaced to the client as HTTP 400.
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrUnavailableAdapter is returned when no adapter is registered for a
	// product's retailer. The candidate is skipped, never surfaced as an error.
	ErrUnavailableAdapter = errors.New("no adapter registered for retailer")

	// ErrLiveCheckFailure is returned when an adapter could not verify a
	// product. Captured and logged; the candidate is dropped from results.
	ErrLiveCheckFailure = errors.New("live check failed")

	// ErrPersistenceFailure is returned when the post-verification database
	// write fails. The write is rolled back; the verified value is still
	// returned to the caller.
	ErrPersistenceFailure = errors.New("failed to persist verification result")

	// ErrMatchingFailure covers unexpected failures in filtering or scoring.
	// Surfaced to the client as HTTP 500.
	ErrMatchingFailure = errors.New("product matching failed")

	// ErrCacheMiss is returned when a key is absent or expired in the result cache.
	ErrCacheMiss = errors.New("cache miss")
)
