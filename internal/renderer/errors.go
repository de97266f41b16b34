package renderer

import (
	"errors"
	"fmt"
)

// Failure reasons carried by RenderError.
const (
	ReasonNavigate = "navigate"
	ReasonTimeout  = "timeout"
	ReasonSession  = "session"
	ReasonSnapshot = "snapshot"
)

var (
	// ErrNotStarted is returned by Render before Start succeeded.
	ErrNotStarted = errors.New("renderer: session not started")
	// ErrSessionClosed is returned once the browser session is gone.
	ErrSessionClosed = errors.New("renderer: session closed")
)

// RenderError describes why a render attempt failed.
type RenderError struct {
	URL    string
	Reason string
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %s: %v", e.URL, e.Reason, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
