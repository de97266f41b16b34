package fetcher

import (
	"errors"
	"fmt"
)

// Failure reasons carried by FetchError.
const (
	ReasonNetwork       = "network"
	ReasonTimeout       = "timeout"
	ReasonStatus        = "status"
	ReasonBody          = "body"
	ReasonRobotsBlocked = "robots_blocked"
	// ReasonOffsiteRedirect marks a page whose redirects ended on another site.
	ReasonOffsiteRedirect = "offsite_redirect"
)

// ErrUnexpectedStatus is wrapped by FetchError for non-2xx responses.
var ErrUnexpectedStatus = errors.New("unexpected status")

// FetchError describes why a single fetch attempt failed.
type FetchError struct {
	URL    string
	Reason string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d): %v", e.URL, e.Reason, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether the attempt ran out of time.
func (e *FetchError) IsTimeout() bool {
	return e.Reason == ReasonTimeout
}
