// Package server exposes the scrape operations over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/ibeckermayer/xscrape/internal/cache"
	"github.com/ibeckermayer/xscrape/internal/instances"
	"github.com/ibeckermayer/xscrape/internal/result"
	"github.com/ibeckermayer/xscrape/internal/store"
)

// Scraper is the set of operations served under /api
type Scraper interface {
	ScrapeProfile(ctx context.Context, name, key string) result.Envelope
	ScrapeHashtag(ctx context.Context, hashtags, key string) result.Envelope
	ScrapeTrending(ctx context.Context, key string) result.Envelope
	ScrapePostsByID(ctx context.Context, user string, ids []string, key string) result.Envelope
	ScrapeComments(ctx context.Context, user string, ids []string, key string) result.Envelope
}

// RunLister reads the run ledger
type RunLister interface {
	RecentRuns(ctx context.Context, limit int) ([]store.Run, error)
}

// Instances proxies the remote instance worker
type Instances interface {
	Create(ctx context.Context, data string) (instances.Response, error)
	Get(ctx context.Context) (instances.Response, error)
	Release(ctx context.Context, data string) (instances.Response, error)
	Close(ctx context.Context, data string) (instances.Response, error)
}

const defaultRunsLimit = 20

// Server routes requests to the orchestrator. Runs and Instances may be nil,
// in which case their routes answer 503.
type Server struct {
	scraper   Scraper
	runs      RunLister
	instances Instances
	log       zerolog.Logger
}

// New creates a server
func New(s Scraper, runs RunLister, inst Instances, log zerolog.Logger) *Server {
	return &Server{scraper: s, runs: runs, instances: inst, log: log}
}

// Handler returns the routed handler. HTTP/2 without TLS is accepted so
// clients can multiplex long-running scrapes over one connection.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/profile", s.handleProfile)
	mux.HandleFunc("GET /api/hashtag", s.handleHashtag)
	mux.HandleFunc("GET /api/trending", s.handleTrending)
	mux.HandleFunc("GET /api/posts", s.handlePosts)
	mux.HandleFunc("GET /api/comments", s.handleComments)
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("POST /api/instances/create", s.handleInstance(Instances.Create))
	mux.HandleFunc("POST /api/instances/release", s.handleInstance(Instances.Release))
	mux.HandleFunc("POST /api/instances/close", s.handleInstance(Instances.Close))
	mux.HandleFunc("GET /api/instances/get", s.handleInstanceGet)
	return h2c.NewHandler(s.logRequests(mux), &http2.Server{})
}

// ListenAndServe serves on addr until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("Profile_name"))
	if name == "" {
		s.fail(w, "Profile_name is required")
		return
	}
	s.respond(w, s.scraper.ScrapeProfile(r.Context(), name, s.cacheKey(r)))
}

func (s *Server) handleHashtag(w http.ResponseWriter, r *http.Request) {
	tags := strings.TrimSpace(r.URL.Query().Get("hashtags"))
	if tags == "" {
		s.fail(w, "hashtags is required")
		return
	}
	s.respond(w, s.scraper.ScrapeHashtag(r.Context(), tags, s.cacheKey(r)))
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.scraper.ScrapeTrending(r.Context(), s.cacheKey(r)))
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	user, ids, ok := postParams(r)
	if !ok {
		s.fail(w, "Both user_name and post_ids are required.")
		return
	}
	s.respond(w, s.scraper.ScrapePostsByID(r.Context(), user, ids, s.cacheKey(r)))
}

func (s *Server) handleComments(w http.ResponseWriter, r *http.Request) {
	user, ids, ok := postParams(r)
	if !ok {
		s.fail(w, "Both user_name and post_ids are required.")
		return
	}
	s.respond(w, s.scraper.ScrapeComments(r.Context(), user, ids, s.cacheKey(r)))
}

// postParams reads user_name and the comma separated post_ids.
func postParams(r *http.Request) (string, []string, bool) {
	q := r.URL.Query()
	user := strings.TrimSpace(q.Get("user_name"))
	var ids []string
	for _, id := range strings.Split(q.Get("post_ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return user, ids, user != "" && len(ids) > 0
}

type runJSON struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Label       string    `json:"label"`
	FromCache   bool      `json:"from_cache"`
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	RetryCount  int       `json:"retry_count"`
	RecordCount int       `json:"record_count"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeJSON(w, http.StatusServiceUnavailable, result.Envelope{Code: http.StatusServiceUnavailable, Type: result.TypeError, Message: "run ledger is disabled"})
		return
	}

	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.fail(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to read runs")
		s.fail(w, "failed to read runs")
		return
	}

	out := make([]runJSON, 0, len(runs))
	for _, run := range runs {
		out = append(out, runJSON{
			ID: run.ID, Kind: run.Kind, Label: run.Label, FromCache: run.FromCache,
			Success: run.Success, Message: run.Message, RetryCount: run.RetryCount,
			RecordCount: run.RecordCount, StartedAt: run.StartedAt, FinishedAt: run.FinishedAt,
		})
	}
	writeJSON(w, http.StatusOK, result.Envelope{Code: result.CodeOK, Type: result.TypeSuccess, Message: "Runs retrieved successfully", Data: out})
}

func (s *Server) handleInstance(call func(Instances, context.Context, string) (instances.Response, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.instances == nil {
			writeJSON(w, http.StatusServiceUnavailable, result.Envelope{Code: http.StatusServiceUnavailable, Type: result.TypeError, Message: instances.ErrNotConfigured.Error()})
			return
		}
		res, err := call(s.instances, r.Context(), r.FormValue("instance_data"))
		s.passThrough(w, res, err)
	}
}

func (s *Server) handleInstanceGet(w http.ResponseWriter, r *http.Request) {
	if s.instances == nil {
		writeJSON(w, http.StatusServiceUnavailable, result.Envelope{Code: http.StatusServiceUnavailable, Type: result.TypeError, Message: instances.ErrNotConfigured.Error()})
		return
	}
	res, err := s.instances.Get(r.Context())
	s.passThrough(w, res, err)
}

func (s *Server) passThrough(w http.ResponseWriter, res instances.Response, err error) {
	if err != nil {
		s.log.Error().Err(err).Msg("instance service call failed")
		writeJSON(w, http.StatusBadGateway, result.Envelope{Code: http.StatusBadGateway, Type: result.TypeError, Message: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.Status)
	w.Write(res.Body)
}

// cacheKey is the normalized absolute URL of the request. An unparsable URL
// disables caching for the request.
func (s *Server) cacheKey(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	key, err := cache.Key(scheme + "://" + r.Host + r.URL.RequestURI())
	if err != nil {
		s.log.Warn().Err(err).Msg("request not cacheable")
		return ""
	}
	return key
}

func (s *Server) fail(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, result.Envelope{Code: result.CodeError, Type: result.TypeError, Message: msg})
}

// respond writes env with its code as the HTTP status.
func (s *Server) respond(w http.ResponseWriter, env result.Envelope) {
	writeJSON(w, env.Code, env)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
