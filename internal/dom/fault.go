package dom

import (
	"errors"
	"fmt"
)

// FaultKind tags why a locator operation failed
type FaultKind int

const (
	// Other covers every failure that is not a locator fault.
	Other FaultKind = iota
	// MissingElement means the selector matched nothing.
	MissingElement
	// StaleElement means the element existed but the page re-rendered under it.
	StaleElement
)

func (k FaultKind) String() string {
	switch k {
	case MissingElement:
		return "MissingElement"
	case StaleElement:
		return "StaleElement"
	default:
		return "Other"
	}
}

// Fault is returned by locator implementations
type Fault struct {
	Kind     FaultKind
	Selector string
	Err      error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s %q: %v", f.Kind, f.Selector, f.Err)
	}
	return fmt.Sprintf("%s %q", f.Kind, f.Selector)
}

func (f *Fault) Unwrap() error { return f.Err }

// Missing builds a MissingElement fault for selector
func Missing(selector string) *Fault {
	return &Fault{Kind: MissingElement, Selector: selector}
}

// Stale builds a StaleElement fault for selector
func Stale(selector string, err error) *Fault {
	return &Fault{Kind: StaleElement, Selector: selector, Err: err}
}

// KindOf classifies err. Errors without a Fault in their chain are Other.
func KindOf(err error) FaultKind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return Other
}

// IsLocatorFault reports whether err is a MissingElement or StaleElement fault.
func IsLocatorFault(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case MissingElement, StaleElement:
		return true
	default:
		return false
	}
}
