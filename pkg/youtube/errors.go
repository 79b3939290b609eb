package youtube

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInputFormat means the input holds no recognizable video id.
	ErrInvalidInputFormat = errors.New("invalid youtube video url format")
	// ErrVideoNotFound means the metadata lookup returned no video for the id.
	ErrVideoNotFound = errors.New("youtube video not found")
	// ErrQuotaExhausted is returned when the API quota is exceeded.
	ErrQuotaExhausted = errors.New("youtube API quota exhausted")
	// ErrMalformedResponse means a response did not have the expected shape.
	ErrMalformedResponse = errors.New("malformed youtube response")
	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("youtube API temporarily unavailable")
	// ErrMissingAPIKey is returned by every call made without an API key.
	ErrMissingAPIKey = errors.New("youtube: API key required (set YOUTUBE_API_KEY)")
)

// APIError is a non-200 answer from the YouTube Data API.
type APIError struct {
	Status  int
	Reason  string
	Message string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("youtube api status %d (%s): %s", e.Status, e.Reason, e.Message)
	}
	return fmt.Sprintf("youtube api status %d: %s", e.Status, e.Message)
}

// FetchError reports a failed call to the comment or metadata endpoints.
// Page is 1-based for comment pages and zero for metadata lookups.
type FetchError struct {
	VideoID string
	Op      string
	Page    int
	Err     error
}

func (e *FetchError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("fetch %s for %s (page %d): %v", e.Op, e.VideoID, e.Page, e.Err)
	}
	return fmt.Sprintf("fetch %s for %s: %v", e.Op, e.VideoID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
