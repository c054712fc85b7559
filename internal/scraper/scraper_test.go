package scraper

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/xscrape/internal/config"
	"github.com/ibeckermayer/xscrape/internal/dom"
	"github.com/ibeckermayer/xscrape/internal/pace"
	"github.com/ibeckermayer/xscrape/internal/types"
)

func testScraper() *Scraper {
	return New(config.ScrapingConfig{
		PostsPerScrape:  2,
		CommentsPerPost: 2,
		ScrollOffset:    200,
		MaxScrolls:      10,
		StallLimit:      3,
		SlowElementWait: time.Second,
	}, config.PacingConfig{}, pace.Nop{}, zerolog.Nop())
}

func cell(handle, ts, text string) string {
	return fmt.Sprintf(`<div data-testid="cellInnerDiv"><article>
<div data-testid="User-Name"><span>Acme Corp</span><span>%s</span></div>
<time datetime="%s">1h</time>
<div data-testid="tweetText">%s</div>
<div data-testid="reply">3</div><div data-testid="retweet">1</div><div data-testid="like">10</div>
</article></div>`, handle, ts, text)
}

func screen(cells ...string) string {
	return "<html><body><main>" + strings.Join(cells, "") + "</main></body></html>"
}

var (
	c1 = cell("@acme_corp", "2024-05-01T10:00:00.000Z", "Launching rockets")
	c2 = cell("@acme_corp", "2024-05-02T10:00:00.000Z", "Anvils on sale")
	c3 = cell("@acme_corp", "2024-05-03T10:00:00.000Z", "Roadrunner sighted")

	promo = `<div data-testid="cellInnerDiv"><div data-testid="tweetText">Buy now</div></div>`
)

func acmePost(ts, text string) types.Post {
	return types.Post{
		Name: "acme_corp", UserTag: "@acme_corp", Timestamp: ts, TweetContent: text,
		Reply: "3", Retweet: "1", Likes: "10",
	}
}

func feedPage(t *testing.T, screens ...string) *dom.StaticPage {
	t.Helper()
	p, err := dom.NewStaticPage(screens...)
	require.NoError(t, err)
	return p
}

func TestProfileScenario(t *testing.T) {
	ctx := context.Background()
	page := feedPage(t, `<form action="/search?q=acme_corp"><input data-testid="SearchBox_Search_Input"></form>`)
	require.NoError(t, page.AddRoute("/search?q=acme_corp", `<nav><a href="/search?q=acme_corp&amp;f=user">People</a></nav>`))
	require.NoError(t, page.AddRoute("/search?q=acme_corp&f=user",
		`<div data-testid="UserCell"><a role="link" href="/acme_corp">Acme Corp</a></div>`))
	require.NoError(t, page.AddRoute("/acme_corp", screen(c1), screen(c2), screen(c1), screen(c3)))

	s := testScraper()
	q := types.ProfileQuery("acme_corp")
	require.NoError(t, s.Search(ctx, page, q))
	assert.Equal(t, "acme_corp", page.Typed(SearchBox))
	assert.Equal(t, []string{"/search?q=acme_corp", "/search?q=acme_corp&f=user", "/acme_corp"}, page.Navigations())

	rs, err := s.Extract(ctx, page, q)
	require.NoError(t, err)

	want := []types.Record{
		acmePost("2024-05-01T10:00:00.000Z", "Launching rockets"),
		acmePost("2024-05-02T10:00:00.000Z", "Anvils on sale"),
	}
	if diff := cmp.Diff(want, rs.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, rs.Success)
	assert.False(t, rs.Partial)
	assert.Equal(t, 1, page.Scrolls(), "no scroll after the target is reached")
}

func TestCollectStopsAtTargetWithoutScrolling(t *testing.T) {
	page := feedPage(t, screen(c1, c2, c3), screen(c3))
	rs, err := testScraper().Extract(context.Background(), page, types.HashtagQuery("#acme"))
	require.NoError(t, err)
	assert.Len(t, rs.Records, 2)
	assert.Equal(t, 0, page.Scrolls())
	assert.Equal(t, "#acme", rs.Records[0].(types.Post).Name)
}

func TestCollectDeduplicates(t *testing.T) {
	page := feedPage(t, screen(c1), screen(c1, c1), screen(c1, c2))
	rs, err := testScraper().Extract(context.Background(), page, types.HashtagQuery("#acme"))
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, r := range rs.Records {
		assert.False(t, seen[r.DedupKey()], "duplicate %q", r.DedupKey())
		seen[r.DedupKey()] = true
	}
	assert.Len(t, rs.Records, 2)
}

func TestCollectSkipsIncompleteContainers(t *testing.T) {
	page := feedPage(t, screen(promo, c1, promo, c2))
	rs, err := testScraper().Extract(context.Background(), page, types.HashtagQuery("#acme"))
	require.NoError(t, err)
	require.Len(t, rs.Records, 2)
	assert.Equal(t, "Launching rockets", rs.Records[0].DedupKey())
}

func TestCollectStallIsPartial(t *testing.T) {
	page := feedPage(t, screen(c1))
	rs, err := testScraper().Extract(context.Background(), page, types.HashtagQuery("#acme"))
	require.NoError(t, err)
	assert.True(t, rs.Partial)
	assert.Len(t, rs.Records, 1)
	assert.Equal(t, 3, page.Scrolls())
}

func TestCollectEmptyFeedIsMissingElement(t *testing.T) {
	page := feedPage(t, screen(promo))
	_, err := testScraper().Extract(context.Background(), page, types.HashtagQuery("#acme"))
	assert.Equal(t, dom.MissingElement, dom.KindOf(err))
}

func TestCollectHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	page := feedPage(t, screen(c1))
	_, err := testScraper().Extract(ctx, page, types.HashtagQuery("#acme"))
	assert.ErrorIs(t, err, context.Canceled)
}

const trends = `<div data-testid="cellInnerDiv"><span>1</span><span>·</span><span>Sports · Trending</span><span>#Final</span><span>12.5K posts</span></div>
<div data-testid="cellInnerDiv"><span>2</span><span>·</span><span>Politics</span><span>Election</span></div>
<div data-testid="cellInnerDiv"><span>Show more</span></div>`

func TestTrending(t *testing.T) {
	ctx := context.Background()
	page := feedPage(t, `<a href="/explore">Explore</a>`)
	require.NoError(t, page.AddRoute("/explore", `<a href="/explore/tabs/trending">Trending</a>`))
	require.NoError(t, page.AddRoute("/explore/tabs/trending", trends))
	page.SetHeights(100, 200, 200, 300)

	s := testScraper()
	q := types.TrendingQuery()
	require.NoError(t, s.Search(ctx, page, q))
	rs, err := s.Extract(ctx, page, q)
	require.NoError(t, err)

	assert.Equal(t, 2, page.Scrolls(), "stops once two readings agree")
	want := []types.Record{
		types.TrendingTopic{ID: "1", Category: "Sports", Type: "Trending", Trending: "#Final", Posts: "12.5K posts"},
		types.TrendingTopic{ID: "2", Category: "Politics", Type: "Trending", Trending: "Election", Posts: "N/A"},
	}
	if diff := cmp.Diff(want, rs.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestTrendingEqualHeightsStopImmediately(t *testing.T) {
	page := feedPage(t, trends)
	page.SetHeights(500)
	_, err := testScraper().Extract(context.Background(), page, types.TrendingQuery())
	require.NoError(t, err)
	assert.Equal(t, 1, page.Scrolls())
}

func TestParseTrendingText(t *testing.T) {
	got, ok := parseTrendingText("3\n·\nMusic · Trending in US\nNew album\n")
	require.True(t, ok)
	assert.Equal(t, types.TrendingTopic{ID: "3", Category: "Music", Type: "Trending in US", Trending: "New album", Posts: "N/A"}, got)

	_, ok = parseTrendingText("What's happening\nx")
	assert.False(t, ok)
}

const statusPage = `<span class="css-1jxf684">Trending in Rockets</span>
<article data-testid="tweet">
<div data-testid="User-Name"><span>Acme Corp</span><span>@acme_corp</span></div>
<time datetime="2024-05-01T10:00:00.000Z">May 1</time>
<div data-testid="tweetText">Launching rockets</div>
<div data-testid="tweetPhoto"><img src="https://pbs.twimg.com/media/rocket.jpg"></div>
<button data-testid="reply"><span data-testid="app-text-transition-container"><span>4</span></span></button>
<button data-testid="like"><span data-testid="app-text-transition-container"><span>40</span></span></button>
<button data-testid="retweet"><span data-testid="app-text-transition-container"><span>7</span></span></button>
<a href="/acme_corp/status/1/analytics"><span class="css-1jxf684">1,024</span></a>
</article>
<span class="css-1jxf684">Relevant people</span>`

func TestPostsByID(t *testing.T) {
	page := feedPage(t, "<p>home</p>")
	require.NoError(t, page.AddRoute(StatusURL("acme_corp", "1"), statusPage))

	rs, err := testScraper().Extract(context.Background(), page, types.PostsQuery("acme_corp", []string{"1"}))
	require.NoError(t, err)
	require.Len(t, rs.Records, 1)
	assert.Equal(t, types.PostDetail{
		Post: types.Post{
			Name: "Acme Corp", UserTag: "@acme_corp", Timestamp: "2024-05-01T10:00:00.000Z",
			TweetContent: "Launching rockets", Reply: "4", Retweet: "7", Likes: "40",
		},
		ContentImage: "https://pbs.twimg.com/media/rocket.jpg",
		Views:        "1,024",
	}, rs.Records[0])
}

func TestPostsByIDMissingArticle(t *testing.T) {
	page := feedPage(t, "<p>home</p>")
	_, err := testScraper().Extract(context.Background(), page, types.PostsQuery("acme_corp", []string{"404"}))
	assert.Equal(t, dom.MissingElement, dom.KindOf(err))
}

func comment(name, body string) string {
	return fmt.Sprintf(`<div role="article"><span>%s</span><span>@%s</span><span>·</span><span>2h</span>
<div>%s</div><span>5 likes</span><span>1</span><span>300</span></div>`, name, strings.ToLower(name), body)
}

func TestComments(t *testing.T) {
	page := feedPage(t, "<p>home</p>")
	main := strings.Replace(comment("Acme", "Launching rockets"), `role="article"`, `role="article" tabindex="-1"`, 1)
	require.NoError(t, page.AddRoute(StatusURL("acme_corp", "1"),
		main+comment("Wile", "Need one"),
		main+comment("Wile", "Need one")+comment("Road", "Meep meep")))

	rs, err := testScraper().Extract(context.Background(), page, types.CommentsQuery("acme_corp", []string{"1"}))
	require.NoError(t, err)
	want := []types.Record{
		types.Comment{Name: "Wile", Username: "@wile", Time: "2h", Comment: "Need one", Likes: "5", Views: "300"},
		types.Comment{Name: "Road", Username: "@road", Time: "2h", Comment: "Meep meep", Likes: "5", Views: "300"},
	}
	if diff := cmp.Diff(want, rs.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, page.Scrolls())
}

func TestPostsByIDViewsOnlyFromStatusArticle(t *testing.T) {
	page := feedPage(t, "<p>home</p>")
	require.NoError(t, page.AddRoute(StatusURL("acme_corp", "2"), `<span class="css-1jxf684">Trending in Rockets</span>
<article data-testid="tweet">
<time datetime="2024-05-02T10:00:00.000Z">May 2</time>
<div data-testid="tweetText">Anvils on sale</div>
</article>`))

	rs, err := testScraper().Extract(context.Background(), page, types.PostsQuery("acme_corp", []string{"2"}))
	require.NoError(t, err)
	require.Len(t, rs.Records, 1)
	assert.Empty(t, rs.Records[0].(types.PostDetail).Views)
}

func TestCommentsSkipFocalPost(t *testing.T) {
	page := feedPage(t, "<p>home</p>")
	focal := strings.Replace(comment("Acme", "Launching rockets"), `role="article"`, `role="article" tabindex="-1"`, 1)
	require.NoError(t, page.AddRoute(StatusURL("acme_corp", "1"), focal+comment("Wile", "Need one")))

	s := testScraper()
	s.scraping.CommentsPerPost = 1
	rs, err := s.Extract(context.Background(), page, types.CommentsQuery("acme_corp", []string{"1"}))
	require.NoError(t, err)
	want := []types.Record{
		types.Comment{Name: "Wile", Username: "@wile", Time: "2h", Comment: "Need one", Likes: "5", Views: "300"},
	}
	if diff := cmp.Diff(want, rs.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestAccumulator(t *testing.T) {
	acc := NewAccumulator()
	p := acmePost("t", "same")
	assert.True(t, acc.Add(p))
	assert.False(t, acc.Add(p))
	assert.False(t, acc.Add(acmePost("other time", "same")))
	assert.Equal(t, 1, acc.Len())
}
