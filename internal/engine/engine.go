// Package engine defines the browser automation surface the scanner drives.
//
// Implementations live in internal/browser (local Chrome and the remote
// sidecar); enginetest provides a scripted fake.
package engine

import (
	"context"
	"errors"
	"time"
)

// ErrUnusable marks a failure of the automation engine itself. It is the only
// error class that aborts a whole scan run.
var ErrUnusable = errors.New("engine: unusable")

// Engine is one browser session. It is not safe for concurrent use; the
// scanner drives it from a single goroutine.
type Engine interface {
	// Navigate loads url and waits for a basic load signal.
	Navigate(ctx context.Context, url string) error
	// QueryAll returns every element matching the XPath expression, in
	// document order.
	QueryAll(ctx context.Context, xpath string) ([]Element, error)
	// QueryOne returns the first match, or nil without error when there is none.
	QueryOne(ctx context.Context, xpath string) (Element, error)
	// Evaluate runs a JavaScript expression and decodes its JSON value into out.
	Evaluate(ctx context.Context, expression string, out any) error
	// WaitForNetworkIdle is best effort; false means the timeout elapsed.
	WaitForNetworkIdle(ctx context.Context, timeout time.Duration) bool
	// HTML returns the serialized document.
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, path string) error
	DumpHTML(ctx context.Context, path string) error
	Close() error
}

// Element is a handle to a node in the current render tree. Handles go
// stale after any action that re-renders the page.
type Element interface {
	Click(ctx context.Context) error
	Text(ctx context.Context) (string, error)
	// Attribute returns the attribute value and whether it is present.
	Attribute(ctx context.Context, name string) (string, bool, error)
	TagName() string
}

// Unusable wraps err so that errors.Is(err, ErrUnusable) holds.
func Unusable(err error) error {
	if err == nil {
		return nil
	}
	return &unusableError{err: err}
}

type unusableError struct {
	err error
}

func (e *unusableError) Error() string {
	return "engine: unusable: " + e.err.Error()
}

func (e *unusableError) Unwrap() []error {
	return []error{ErrUnusable, e.err}
}

// IsUnusable reports whether err marks a dead engine.
func IsUnusable(err error) bool {
	return errors.Is(err, ErrUnusable)
}
