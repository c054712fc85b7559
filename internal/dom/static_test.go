package dom

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedScreen = `<html><body>
<div data-testid="cellInnerDiv">
  <div data-testid="User-Name"><span>Acme Corp</span><span>@acme_corp</span></div>
  <time datetime="2024-05-01T10:00:00.000Z">May 1</time>
  <div data-testid="tweetText">Hello   <b>world</b></div>
</div>
</body></html>`

func TestStaticPageFind(t *testing.T) {
	ctx := context.Background()
	p, err := NewStaticPage(feedScreen)
	require.NoError(t, err)

	cell, err := p.Find(ctx, `div[data-testid="cellInnerDiv"]`)
	require.NoError(t, err)

	name, err := cell.Find(ctx, `[data-testid="User-Name"]`)
	require.NoError(t, err)
	text, err := name.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp\n@acme_corp", text)

	tm, err := cell.Find(ctx, "time")
	require.NoError(t, err)
	dt, ok, err := tm.Attribute(ctx, "datetime")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2024-05-01T10:00:00.000Z", dt)

	_, err = cell.Find(ctx, `[data-testid="like"]`)
	assert.Equal(t, MissingElement, KindOf(err))

	all, err := p.FindAll(ctx, `[data-testid="nope"]`)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStaticPageScrollMakesElementsStale(t *testing.T) {
	ctx := context.Background()
	p, err := NewStaticPage(feedScreen, `<div data-testid="cellInnerDiv">second</div>`)
	require.NoError(t, err)

	cell, err := p.Find(ctx, `div[data-testid="cellInnerDiv"]`)
	require.NoError(t, err)
	require.NoError(t, p.ScrollBy(ctx, 200))
	assert.Equal(t, 1, p.Scrolls())

	_, err = cell.Text(ctx)
	assert.Equal(t, StaleElement, KindOf(err))

	cell, err = p.Find(ctx, `div[data-testid="cellInnerDiv"]`)
	require.NoError(t, err)
	text, err := cell.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", text)

	// The last screen stays put.
	require.NoError(t, p.ScrollToBottom(ctx))
	_, err = cell.Text(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 2, p.Scrolls())
}

func TestStaticPageHeights(t *testing.T) {
	ctx := context.Background()
	p, err := NewStaticPage("<p>a</p>")
	require.NoError(t, err)
	p.SetHeights(100, 200)

	h, err := p.ScrollHeight(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 100, h)

	require.NoError(t, p.ScrollToBottom(ctx))
	require.NoError(t, p.ScrollToBottom(ctx))
	h, err = p.ScrollHeight(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 200, h)
}

func TestStaticPageRoutes(t *testing.T) {
	ctx := context.Background()
	p, err := NewStaticPage(`<form action="/search"><input name="q"></form><a href="/explore">Explore</a>`)
	require.NoError(t, err)
	require.NoError(t, p.AddRoute("/search", "<p>results</p>"))
	require.NoError(t, p.AddRoute("/explore", "<p>explore</p>"))

	in, err := p.Find(ctx, `input[name="q"]`)
	require.NoError(t, err)
	require.NoError(t, in.Type(ctx, "acme"))
	require.NoError(t, in.Type(ctx, KeyEnter))
	assert.Equal(t, "acme", p.Typed(`input[name="q"]`))
	assert.Equal(t, []string{"/search"}, p.Navigations())

	got, err := p.Find(ctx, "p")
	require.NoError(t, err)
	text, err := got.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "results", text)

	require.NoError(t, p.Navigate(ctx, "https://x.com/home"))
	got, err = p.Find(ctx, "p")
	require.NoError(t, err, "unrouted navigation keeps the current document")
	text, err = got.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "results", text)
}

func TestStaticPageRejectsXPath(t *testing.T) {
	p, err := NewStaticPage("<p>a</p>")
	require.NoError(t, err)
	_, err = p.Find(context.Background(), "//span[contains(text(),'Next')]")
	require.Error(t, err)
	assert.Equal(t, Other, KindOf(err))
}
