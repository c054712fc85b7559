// Package app wires the cache, worker pool, retry controller and browser
// sessions into the five scrape operations.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ibeckermayer/xscrape/internal/browser"
	"github.com/ibeckermayer/xscrape/internal/dom"
	"github.com/ibeckermayer/xscrape/internal/result"
	"github.com/ibeckermayer/xscrape/internal/retry"
	"github.com/ibeckermayer/xscrape/internal/scraper"
	"github.com/ibeckermayer/xscrape/internal/store"
	"github.com/ibeckermayer/xscrape/internal/types"
)

// Authenticator logs a fresh session in. ok=false with a message is a login
// that did not complete; err is for cancellation and unexpected faults.
type Authenticator interface {
	Authenticate(ctx context.Context, page dom.Page) (ok bool, msg string, err error)
}

// Cache stores finished result sets by request key
type Cache interface {
	Get(ctx context.Context, key string) (types.ResultSet, bool, error)
	Set(ctx context.Context, key string, rs types.ResultSet, ttl time.Duration) error
}

// Ledger records every orchestrated run
type Ledger interface {
	RecordRun(ctx context.Context, r store.Run) (string, error)
}

// Orchestrator executes scrape requests. It holds no per-request state; every
// attempt gets its own session.
type Orchestrator struct {
	provider  browser.Provider
	proxy     browser.ProxyMode
	auth      Authenticator
	scraper   *scraper.Scraper
	cache     Cache
	ttl       time.Duration
	ledger    Ledger
	assembler *result.Assembler
	retry     *retry.Controller
	pool      *Pool
	timeout   time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// Deps are the collaborators of an Orchestrator. Ledger may be nil.
type Deps struct {
	Provider  browser.Provider
	ProxyMode browser.ProxyMode
	Auth      Authenticator
	Scraper   *scraper.Scraper
	Cache     Cache
	CacheTTL  time.Duration
	Ledger    Ledger
	Assembler *result.Assembler
	Retry     *retry.Controller
	Pool      *Pool
	// AttemptTimeout bounds each try; zero means unbounded.
	AttemptTimeout time.Duration
	Log            zerolog.Logger
}

// New creates an orchestrator. The pool must be started by the caller.
func New(d Deps) *Orchestrator {
	return &Orchestrator{
		provider:  d.Provider,
		proxy:     d.ProxyMode,
		auth:      d.Auth,
		scraper:   d.Scraper,
		cache:     d.Cache,
		ttl:       d.CacheTTL,
		ledger:    d.Ledger,
		assembler: d.Assembler,
		retry:     d.Retry,
		pool:      d.Pool,
		timeout:   d.AttemptTimeout,
		now:       time.Now,
		log:       d.Log,
	}
}

// SetClock replaces the clock used for ledger timestamps.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// ScrapeProfile collects the latest posts of a profile.
func (o *Orchestrator) ScrapeProfile(ctx context.Context, name, key string) result.Envelope {
	return o.Scrape(ctx, types.ProfileQuery(name), key)
}

// ScrapeHashtag collects the latest posts for a hashtag search.
func (o *Orchestrator) ScrapeHashtag(ctx context.Context, hashtags, key string) result.Envelope {
	return o.Scrape(ctx, types.HashtagQuery(hashtags), key)
}

// ScrapeTrending collects the trending topics.
func (o *Orchestrator) ScrapeTrending(ctx context.Context, key string) result.Envelope {
	return o.Scrape(ctx, types.TrendingQuery(), key)
}

// ScrapePostsByID opens each post of user and reads its details.
func (o *Orchestrator) ScrapePostsByID(ctx context.Context, user string, ids []string, key string) result.Envelope {
	return o.Scrape(ctx, types.PostsQuery(user, ids), key)
}

// ScrapeComments collects the replies under each post of user.
func (o *Orchestrator) ScrapeComments(ctx context.Context, user string, ids []string, key string) result.Envelope {
	return o.Scrape(ctx, types.CommentsQuery(user, ids), key)
}

// Scrape answers q from the cache when a live entry exists under key and
// otherwise runs it on the worker pool. An empty key bypasses the cache.
func (o *Orchestrator) Scrape(ctx context.Context, q types.Query, key string) result.Envelope {
	return o.scrape(ctx, q, key, true)
}

// Refresh scrapes q even when a live cache entry exists and stores the new
// result under key.
func (o *Orchestrator) Refresh(ctx context.Context, q types.Query, key string) result.Envelope {
	return o.scrape(ctx, q, key, false)
}

func (o *Orchestrator) scrape(ctx context.Context, q types.Query, key string, readCache bool) result.Envelope {
	if err := q.Validate(); err != nil {
		return o.assembler.Fail(err.Error())
	}

	log := o.log.With().Str("kind", string(q.Kind)).Str("label", q.Label()).Logger()
	run := store.Run{Kind: string(q.Kind), Label: q.Label(), CacheKey: key, StartedAt: o.now()}

	if key != "" && readCache {
		rs, ok, err := o.cache.Get(ctx, key)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("cache lookup failed, scraping")
		case ok:
			log.Info().Int("records", len(rs.Records)).Msg("served from cache")
			run.FromCache = true
			run.Success = rs.Success
			run.RecordCount = len(rs.Records)
			env := o.assembler.Cached(rs, q)
			o.record(ctx, run, env)
			return env
		}
	}

	var (
		out    retry.Outcome
		runErr error
	)
	if err := o.pool.Do(ctx, func(ctx context.Context) {
		out, runErr = o.retry.Run(ctx, q, o.attempt)
	}); err != nil {
		runErr = err
	}
	run.RetryCount = out.RetryCount
	if out.Attempt != nil {
		run.Transitions = ledgerTransitions(out.Attempt.Transitions())
	}

	var env result.Envelope
	switch {
	case runErr != nil:
		log.Error().Err(runErr).Msg("scrape failed")
		env = o.assembler.Fail(runErr.Error())
	case !out.Success:
		env = o.assembler.Fail(out.Message)
	default:
		run.Success = true
		run.RecordCount = len(out.Result.Records)
		if key != "" {
			if err := o.cache.Set(ctx, key, out.Result, o.ttl); err != nil {
				log.Warn().Err(err).Msg("failed to cache result set")
			}
		}
		log.Info().Int("records", run.RecordCount).Int("retries", out.RetryCount).Msg("scrape succeeded")
		env = o.assembler.Assemble(out.Result, q)
	}

	o.record(ctx, run, env)
	return env
}

// attempt is one complete try on a fresh session. The session is closed on
// every return path.
func (o *Orchestrator) attempt(ctx context.Context, a *retry.Attempt) (types.ResultSet, error) {
	parent := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	rs, err := o.try(ctx, a)
	if err != nil && parent.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return types.ResultSet{}, fmt.Errorf("attempt timed out after %s: %w", o.timeout, err)
	}
	return rs, err
}

func (o *Orchestrator) try(ctx context.Context, a *retry.Attempt) (types.ResultSet, error) {
	sess, err := o.provider.Acquire(ctx, o.proxy)
	if err != nil {
		return types.ResultSet{}, fmt.Errorf("failed to acquire session: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			o.log.Warn().Err(err).Msg("failed to close session")
		}
	}()

	ok, msg, err := o.auth.Authenticate(ctx, sess)
	if err != nil {
		return types.ResultSet{}, err
	}
	if !ok {
		return types.ResultSet{}, &retry.AuthError{Message: msg}
	}

	a.Enter(retry.StateSearch)
	if err := o.scraper.Search(ctx, sess, a.Query); err != nil {
		return types.ResultSet{}, err
	}

	a.Enter(retry.StateExtract)
	return o.scraper.Extract(ctx, sess, a.Query)
}

func (o *Orchestrator) record(ctx context.Context, run store.Run, env result.Envelope) {
	if o.ledger == nil {
		return
	}
	run.Message = env.Message
	run.FinishedAt = o.now()
	// The run is recorded even when the request was cancelled.
	if _, err := o.ledger.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		o.log.Warn().Err(err).Msg("failed to record run")
	}
}

func ledgerTransitions(ts []retry.Transition) []store.Transition {
	out := make([]store.Transition, 0, len(ts))
	for _, t := range ts {
		out = append(out, store.Transition{
			Try:   t.Try,
			From:  string(t.From),
			To:    string(t.To),
			Fault: t.Fault,
			At:    t.At,
		})
	}
	return out
}
