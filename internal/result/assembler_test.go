package result

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/xscrape/internal/types"
)

type saved struct {
	folder, name string
	payload      any
}

type recordingPersister struct {
	calls []saved
	err   error
}

func (p *recordingPersister) Save(folder, name string, payload any) error {
	p.calls = append(p.calls, saved{folder, name, payload})
	return p.err
}

func newTestAssembler(p Persister) *Assembler {
	a := NewAssembler(p, "out", zerolog.Nop())
	a.SetClock(func() time.Time { return time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC) })
	return a
}

func TestAssembleSuccessPersists(t *testing.T) {
	p := &recordingPersister{}
	rs := types.ResultSet{
		Kind:    types.KindProfile,
		Success: true,
		Records: []types.Record{types.Post{Name: "acme_corp", TweetContent: "Launching rockets"}},
	}

	env := newTestAssembler(p).Assemble(rs, types.ProfileQuery("acme_corp"))
	assert.Equal(t, CodeOK, env.Code)
	assert.Equal(t, TypeSuccess, env.Type)
	assert.Equal(t, MsgTweets, env.Message)
	assert.Equal(t, rs.Records, env.Data)

	require.Len(t, p.calls, 1)
	assert.Equal(t, filepath.Join("out", "2024-05-01"), p.calls[0].folder)
	assert.Equal(t, "acme_corp", p.calls[0].name)
}

func TestAssembleMessages(t *testing.T) {
	tests := []struct {
		q    types.Query
		want string
	}{
		{types.HashtagQuery("#go"), MsgTweets},
		{types.TrendingQuery(), MsgTrending},
		{types.PostsQuery("acme", []string{"1"}), MsgTweets},
		{types.CommentsQuery("acme", []string{"1"}), MsgComments},
	}
	for _, tt := range tests {
		t.Run(string(tt.q.Kind), func(t *testing.T) {
			env := newTestAssembler(nil).Assemble(types.ResultSet{Kind: tt.q.Kind, Success: true}, tt.q)
			assert.Equal(t, tt.want, env.Message)
		})
	}
}

func TestAssemblePartial(t *testing.T) {
	env := newTestAssembler(nil).Assemble(types.ResultSet{Success: true, Partial: true}, types.HashtagQuery("#go"))
	assert.Equal(t, MsgTweets+" (partial)", env.Message)
}

func TestPersistenceErrorKeepsEnvelope(t *testing.T) {
	p := &recordingPersister{err: errors.New("disk full")}
	env := newTestAssembler(p).Assemble(types.ResultSet{Success: true}, types.TrendingQuery())
	assert.Equal(t, CodeOK, env.Code)
}

func TestFailOmitsData(t *testing.T) {
	env := newTestAssembler(nil).Fail("Element not found")
	b, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":400,"type":"error","message":"Element not found"}`, string(b))
}

func TestAssembleFailedResultSet(t *testing.T) {
	p := &recordingPersister{}
	env := newTestAssembler(p).Assemble(types.ResultSet{Error: "Twitter Authentication Error"}, types.TrendingQuery())
	assert.Equal(t, CodeError, env.Code)
	assert.Equal(t, "Twitter Authentication Error", env.Message)
	assert.Empty(t, p.calls)
}

func TestCachedDoesNotPersist(t *testing.T) {
	p := &recordingPersister{}
	rs := types.ResultSet{Kind: types.KindTrending, Success: true}
	env := newTestAssembler(p).Cached(rs, types.TrendingQuery())
	assert.Equal(t, MsgTrending, env.Message)
	assert.Empty(t, p.calls)
}
