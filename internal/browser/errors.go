package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ibeckermayer/xscrape/internal/dom"
)

// opKind distinguishes bounded waits from operations on an already located
// element when a chromedp call runs out of time.
type opKind int

const (
	opQuery opKind = iota
	opWait
	opElement
)

// CDP messages that mean the node we hold was removed from the document.
var staleMarkers = []string{
	"No node with given id",
	"Could not find node with given id",
	"Node is detached from document",
	"Node with given id does not belong to the document",
	"Cannot find context with specified id",
}

// classify turns a chromedp error into a dom fault. parent is the caller's
// context; when it is done the error is returned unchanged so cancellation is
// never mistaken for a locator fault.
func classify(parent context.Context, selector string, kind opKind, err error) error {
	if err == nil {
		return nil
	}
	if parent.Err() != nil {
		return parent.Err()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		switch kind {
		case opWait:
			return dom.Missing(selector)
		case opElement, opQuery:
			// a page-level query timing out mid-render is retried like a detached node
			return dom.Stale(selector, err)
		}
	}

	msg := err.Error()
	for _, m := range staleMarkers {
		if strings.Contains(msg, m) {
			return dom.Stale(selector, err)
		}
	}

	return &dom.Fault{Kind: dom.Other, Selector: selector, Err: fmt.Errorf("chromedp: %w", err)}
}
