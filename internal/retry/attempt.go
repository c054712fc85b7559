// Package retry runs a whole scrape attempt under a bounded retry policy.
// Each try starts from a fresh session and re-authenticates; the page state
// left behind by a locator fault is never reused.
package retry

import (
	"fmt"
	"time"

	"github.com/ibeckermayer/xscrape/internal/types"
)

// State is a step of the attempt state machine
type State string

const (
	StateAuthenticate State = "AUTHENTICATE"
	StateSearch       State = "SEARCH"
	StateExtract      State = "EXTRACT"
	StateSucceed      State = "SUCCEED"
	StateFail         State = "FAIL"
)

// Transition is one recorded state change
type Transition struct {
	Try   int       `json:"try"`
	From  State     `json:"from"`
	To    State     `json:"to"`
	Fault string    `json:"fault,omitempty"`
	At    time.Time `json:"at"`
}

// Attempt is the mutable state of one query's scrape across all of its tries.
// It is owned by a single task.
type Attempt struct {
	Query      types.Query
	RetryCount int
	LastFault  error

	state       State
	transitions []Transition
	now         func() time.Time
}

func newAttempt(q types.Query, now func() time.Time) *Attempt {
	return &Attempt{Query: q, now: now}
}

// State returns the current state
func (a *Attempt) State() State {
	return a.state
}

// Enter moves the attempt to s and records the transition.
func (a *Attempt) Enter(s State) {
	a.record(s, "")
}

func (a *Attempt) record(s State, fault string) {
	a.transitions = append(a.transitions, Transition{
		Try:   a.RetryCount,
		From:  a.state,
		To:    s,
		Fault: fault,
		At:    a.now(),
	})
	a.state = s
}

func (a *Attempt) fail(err error) {
	a.LastFault = err
	a.record(StateFail, err.Error())
}

// Transitions returns a copy of the recorded transitions
func (a *Attempt) Transitions() []Transition {
	return append([]Transition(nil), a.transitions...)
}

// AuthError reports a login sequence that did not complete. It is retryable.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Message)
}
