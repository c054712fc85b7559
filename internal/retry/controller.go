package retry

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ibeckermayer/xscrape/internal/dom"
	"github.com/ibeckermayer/xscrape/internal/pace"
	"github.com/ibeckermayer/xscrape/internal/types"
)

var tracer = otel.Tracer("xscrape/retry")

// MsgExhausted is the outcome message once every try hit a locator fault.
const MsgExhausted = "Element not found"

// Op runs one complete try: acquire a session, authenticate, search and
// extract, then release the session before returning.
type Op func(ctx context.Context, a *Attempt) (types.ResultSet, error)

// Outcome is the terminal result of Run
type Outcome struct {
	Success    bool
	Message    string
	Result     types.ResultSet
	RetryCount int
	Attempt    *Attempt
}

// Controller retries an Op on retryable faults
type Controller struct {
	MaxRetries int
	MinJitter  time.Duration
	MaxJitter  time.Duration
	Pacer      pace.Pacer
	Log        zerolog.Logger
	// Now defaults to time.Now
	Now func() time.Time
}

// Retryable reports whether err should trigger another try: locator faults
// and failed logins are, everything else is fatal.
func Retryable(err error) bool {
	var ae *AuthError
	if errors.As(err, &ae) {
		return true
	}
	return dom.IsLocatorFault(err)
}

// Run executes op until it succeeds, a fatal fault occurs or MaxRetries
// retries have been spent. Op is invoked at most MaxRetries+1 times.
// Exhaustion is reported through Outcome; err is only set for fatal faults and
// cancellation.
func (c *Controller) Run(ctx context.Context, q types.Query, op Op) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "retry.Run")
	defer span.End()
	span.SetAttributes(attribute.String("query.kind", string(q.Kind)))

	now := c.Now
	if now == nil {
		now = time.Now
	}
	pacer := c.Pacer
	if pacer == nil {
		pacer = pace.Random{}
	}

	a := newAttempt(q, now)
	for {
		a.Enter(StateAuthenticate)
		rs, err := op(ctx, a)
		if err == nil {
			a.Enter(StateSucceed)
			span.SetAttributes(attribute.Int("retry.count", a.RetryCount))
			return Outcome{Success: true, Result: rs, RetryCount: a.RetryCount, Attempt: a}, nil
		}

		a.fail(err)
		if ctx.Err() != nil {
			span.SetStatus(codes.Error, "cancelled")
			return Outcome{RetryCount: a.RetryCount, Attempt: a}, ctx.Err()
		}
		if !Retryable(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.Log.Error().Err(err).Int("retry", a.RetryCount).Msg("fatal fault, giving up")
			return Outcome{RetryCount: a.RetryCount, Attempt: a}, err
		}

		if a.RetryCount >= c.MaxRetries {
			msg := MsgExhausted
			var ae *AuthError
			if errors.As(err, &ae) {
				msg = ae.Message
			}
			span.SetStatus(codes.Error, msg)
			c.Log.Warn().Err(err).Int("retry", a.RetryCount).Msg("retries exhausted")
			return Outcome{Message: msg, RetryCount: a.RetryCount, Attempt: a}, nil
		}

		a.RetryCount++
		c.Log.Warn().Err(err).Int("retry", a.RetryCount).Int("max_retries", c.MaxRetries).Msg("retrying attempt")
		if err := pacer.Pause(ctx, c.MinJitter, c.MaxJitter); err != nil {
			return Outcome{RetryCount: a.RetryCount, Attempt: a}, err
		}
	}
}
