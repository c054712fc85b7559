package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/xscrape/internal/types"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func openTest(t *testing.T) (*Cache, *fakeClock) {
	t.Helper()
	c, err := Open("", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	c.SetClock(clock.Now)
	return c, clock
}

var trending = types.ResultSet{
	Kind:    types.KindTrending,
	Success: true,
	Records: []types.Record{
		types.TrendingTopic{ID: "1", Category: "Sports", Type: "Trending", Trending: "#Final", Posts: "12K posts"},
	},
}

func TestGetAfterSetUntilTTL(t *testing.T) {
	ctx := context.Background()
	c, clock := openTest(t)
	key := "https://api/trending"

	require.NoError(t, c.Set(ctx, key, trending, 15*time.Minute))

	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(trending, got); diff != "" {
		t.Errorf("cached value mismatch (-want +got):\n%s", diff)
	}

	clock.Advance(10 * time.Minute)
	_, ok, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok, "hit at t=10min")

	clock.Advance(10 * time.Minute)
	_, ok, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "miss at t=20min")
}

func TestGetUnknownKey(t *testing.T) {
	c, _ := openTest(t)
	_, ok, err := c.Get(context.Background(), "https://api/profile?Profile_name=nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetReplacesEntry(t *testing.T) {
	ctx := context.Background()
	c, _ := openTest(t)
	key := "k"

	require.NoError(t, c.Set(ctx, key, trending, time.Minute))
	updated := types.ResultSet{Kind: types.KindTrending, Success: true, Partial: true}
	require.NoError(t, c.Set(ctx, key, updated, time.Minute))

	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Partial)
	assert.Empty(t, got.Records)
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c, _ := openTest(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := []string{"a", "b", "c"}[i%3]
			assert.NoError(t, c.Set(ctx, key, trending, time.Minute))
			_, _, err := c.Get(ctx, key)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
}

func TestKey(t *testing.T) {
	a, err := Key("HTTP://API.example.com:80/api/posts?user_name=acme&post_ids=1,2#top")
	require.NoError(t, err)
	b, err := Key("http://api.example.com/api/posts?post_ids=1,2&user_name=acme")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Key("http://api.example.com/api/posts?post_ids=1,3&user_name=acme")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestCompactInMemory(t *testing.T) {
	c, _ := openTest(t)
	assert.NoError(t, c.Compact())
}
