// Package result turns a scrape outcome into the response envelope returned to
// callers and persists successful result sets.
package result

import (
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/ibeckermayer/xscrape/internal/types"
)

const (
	CodeOK    = 200
	CodeError = 400

	TypeSuccess = "success"
	TypeError   = "error"

	MsgTweets   = "Tweets retrieved successfully"
	MsgTrending = "Trending hashtags retrieved successfully"
	MsgComments = "Comments retrieved successfully"
)

// Envelope is the response shape for every scrape operation
type Envelope struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Persister stores a payload as <name>.json inside folder.
type Persister interface {
	Save(folder, name string, payload any) error
}

// Assembler builds envelopes
type Assembler struct {
	persister Persister
	outputDir string
	now       func() time.Time
	log       zerolog.Logger
}

// NewAssembler creates an assembler persisting under outputDir. A nil
// persister disables persistence.
func NewAssembler(p Persister, outputDir string, log zerolog.Logger) *Assembler {
	return &Assembler{persister: p, outputDir: outputDir, now: time.Now, log: log}
}

// SetClock replaces the clock used to name the dated output folder.
func (a *Assembler) SetClock(now func() time.Time) {
	a.now = now
}

// Assemble converts a successful result set into a success envelope and
// persists its records. A failed result set becomes an error envelope.
func (a *Assembler) Assemble(rs types.ResultSet, q types.Query) Envelope {
	if !rs.Success {
		return a.Fail(rs.Error)
	}

	if a.persister != nil {
		folder := filepath.Join(a.outputDir, a.now().Format("2006-01-02"))
		if err := a.persister.Save(folder, q.Label(), records(rs)); err != nil {
			a.log.Error().Err(err).Str("folder", folder).Str("name", q.Label()).Msg("failed to persist result set")
		}
	}
	return a.Cached(rs, q)
}

// Cached builds the envelope for a result set served from the cache. It was
// persisted when first scraped, so nothing is written.
func (a *Assembler) Cached(rs types.ResultSet, q types.Query) Envelope {
	if !rs.Success {
		return a.Fail(rs.Error)
	}
	msg := successMessage(q.Kind)
	if rs.Partial {
		msg += " (partial)"
	}
	return Envelope{Code: CodeOK, Type: TypeSuccess, Message: msg, Data: records(rs)}
}

func records(rs types.ResultSet) []types.Record {
	if rs.Records == nil {
		return []types.Record{}
	}
	return rs.Records
}

// Fail builds an error envelope
func (a *Assembler) Fail(msg string) Envelope {
	return Envelope{Code: CodeError, Type: TypeError, Message: msg}
}

func successMessage(k types.Kind) string {
	switch k {
	case types.KindTrending:
		return MsgTrending
	case types.KindComments:
		return MsgComments
	default:
		return MsgTweets
	}
}
