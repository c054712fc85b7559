package auth

import (
	"errors"
	"math/rand/v2"

	"github.com/ibeckermayer/xscrape/internal/types"
)

// ErrEmptyPool is returned when no credentials are configured
var ErrEmptyPool = errors.New("credential pool is empty")

// Pool is a fixed set of accounts. It is never modified after construction,
// so concurrent Pick calls need no locking.
type Pool struct {
	creds []types.Credential
}

// NewPool copies creds into a pool
func NewPool(creds []types.Credential) (*Pool, error) {
	if len(creds) == 0 {
		return nil, ErrEmptyPool
	}
	return &Pool{creds: append([]types.Credential(nil), creds...)}, nil
}

// Pick returns a credential chosen uniformly at random.
func (p *Pool) Pick() types.Credential {
	return p.creds[rand.IntN(len(p.creds))]
}

// Len returns the number of credentials in the pool
func (p *Pool) Len() int {
	return len(p.creds)
}
