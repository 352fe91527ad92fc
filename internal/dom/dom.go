// Package dom holds the driver-neutral view of a rendered admin console:
// elements, surfaces (a document or a frame's document), pages, and the
// lookup helpers the navigator and the reconciliation engine share.
package dom

import "context"

// Element is a live handle on one rendered node. Handles go stale once the
// document that owns them is replaced by a navigation.
type Element interface {
	// Property reads a live DOM property (id, textContent, innerText, value,
	// checked, href, tagName, ...) as a string. Missing properties read as "".
	Property(ctx context.Context, name string) (string, error)
	// Children returns the element children in document order.
	Children(ctx context.Context) ([]Element, error)
	Click(ctx context.Context) error
	// Type sends keystrokes to the element, appending to its current value.
	Type(ctx context.Context, text string) error
	// Clear sets the value property to the empty string.
	Clear(ctx context.Context) error
	// Select sets the value of a select control and fires change.
	Select(ctx context.Context, value string) error
}

// Surface is anything elements can be queried from: the top-level document or
// the document of a child frame.
type Surface interface {
	// QueryAll returns every element matching a CSS selector in document
	// order. No match is an empty slice, not an error.
	QueryAll(ctx context.Context, selector string) ([]Element, error)
}

// Frame is a snapshot of one child frame of the top-level document.
type Frame struct {
	Name    string
	ID      string
	Title   string
	Src     string
	Surface Surface
}

// Page is the single logical tab a run owns.
type Page interface {
	Surface
	// Frames snapshots the current child frames. The set changes on every
	// navigation, so callers fetch it again after each one.
	Frames(ctx context.Context) ([]Frame, error)
	// ClickAndWait clicks el and waits for the resulting navigation of the
	// page or any of its frames. A navigation that never arrives within the
	// driver's timeout is not an error: the console renders some transitions
	// in place.
	ClickAndWait(ctx context.Context, el Element) error
	// Screenshot captures the full page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
}
