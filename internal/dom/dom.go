// Package dom describes how the scraper sees a rendered page: selectors go in,
// elements or tagged faults come out. The concrete query language is left to
// the implementation (CSS for StaticPage, CSS or XPath for Chrome).
package dom

import (
	"context"
	"time"
)

// KeyEnter submits a focused input when passed to Element.Type.
const KeyEnter = "\r"

// Scope locates elements, either page-wide or inside a container element.
type Scope interface {
	// Find returns the first match or a MissingElement fault.
	Find(ctx context.Context, selector string) (Element, error)
	// FindAll returns every match; no match is an empty slice, not an error.
	FindAll(ctx context.Context, selector string) ([]Element, error)
}

// Element is a located node. Operations on an element that has been
// re-rendered away fail with a StaleElement fault.
type Element interface {
	Scope
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, bool, error)
	Click(ctx context.Context) error
	ScrollIntoView(ctx context.Context) error
	Type(ctx context.Context, text string) error
}

// Page is a navigable document.
type Page interface {
	Scope
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until selector matches or timeout elapses, in which case
	// it returns a MissingElement fault.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) (Element, error)
	ScrollBy(ctx context.Context, dy int) error
	ScrollToBottom(ctx context.Context) error
	ScrollHeight(ctx context.Context) (int64, error)
}

// TypeSlowly clicks el and types text one rune at a time, calling pause after
// every rune.
func TypeSlowly(ctx context.Context, el Element, text string, pause func(context.Context) error) error {
	if err := el.Click(ctx); err != nil {
		return err
	}
	for _, r := range text {
		if err := el.Type(ctx, string(r)); err != nil {
			return err
		}
		if err := pause(ctx); err != nil {
			return err
		}
	}
	return nil
}
