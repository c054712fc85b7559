package dom

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var errXPathUnsupported = errors.New("static pages only understand CSS selectors")

// StaticPage is a Page over saved HTML. A page holds an ordered list of
// screens; every scroll reveals the next screen and replaces the previous
// one, the way a virtualized feed recycles its rows. Elements located on an
// earlier screen report StaleElement.
type StaticPage struct {
	mu      sync.Mutex
	screens []*goquery.Document
	heights []int64
	routes  map[string][]*goquery.Document
	current int
	scrolls int

	url         string
	navigations []string
	clicks      []string
	typed       map[string]string
}

// NewStaticPage parses each screen of HTML
func NewStaticPage(screens ...string) (*StaticPage, error) {
	docs, err := parseScreens(screens)
	if err != nil {
		return nil, err
	}
	return &StaticPage{
		screens: docs,
		routes:  make(map[string][]*goquery.Document),
		typed:   make(map[string]string),
	}, nil
}

func parseScreens(screens []string) ([]*goquery.Document, error) {
	docs := make([]*goquery.Document, 0, len(screens))
	for i, s := range screens {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
		if err != nil {
			return nil, fmt.Errorf("failed to parse screen %d: %w", i, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// AddRoute registers the screens shown after navigating to url.
func (p *StaticPage) AddRoute(url string, screens ...string) error {
	docs, err := parseScreens(screens)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[url] = docs
	return nil
}

// SetHeights scripts the values ScrollHeight returns; the n-th reading after
// n scrolls. The last value repeats once the script runs out.
func (p *StaticPage) SetHeights(heights ...int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.heights = heights
}

// Scrolls returns how many scroll commands the page received.
func (p *StaticPage) Scrolls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrolls
}

// Navigations returns every URL navigated to, in order.
func (p *StaticPage) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigations...)
}

// Clicks returns the selectors of clicked elements.
func (p *StaticPage) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

// Typed returns everything typed into elements matched by selector.
func (p *StaticPage) Typed(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.typed[selector]
}

func (p *StaticPage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigateLocked(url)
	return nil
}

func (p *StaticPage) navigateLocked(url string) {
	p.url = url
	p.navigations = append(p.navigations, url)
	if docs, ok := p.routes[url]; ok {
		p.screens = docs
		p.current = 0
	}
}

func (p *StaticPage) Find(ctx context.Context, selector string) (Element, error) {
	all, err := p.FindAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, Missing(selector)
	}
	return all[0], nil
}

func (p *StaticPage) FindAll(ctx context.Context, selector string) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if isXPath(selector) {
		return nil, &Fault{Kind: Other, Selector: selector, Err: errXPathUnsupported}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.screens) == 0 {
		return nil, nil
	}
	return p.wrap(p.screens[p.current].Find(selector), selector), nil
}

func (p *StaticPage) WaitFor(ctx context.Context, selector string, _ time.Duration) (Element, error) {
	return p.Find(ctx, selector)
}

func (p *StaticPage) ScrollBy(ctx context.Context, _ int) error {
	return p.scroll(ctx)
}

func (p *StaticPage) ScrollToBottom(ctx context.Context) error {
	return p.scroll(ctx)
}

func (p *StaticPage) scroll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrolls++
	if p.current < len(p.screens)-1 {
		p.current++
	}
	return nil
}

func (p *StaticPage) ScrollHeight(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.heights) > 0 {
		i := p.scrolls
		if i >= len(p.heights) {
			i = len(p.heights) - 1
		}
		return p.heights[i], nil
	}
	if len(p.screens) == 0 {
		return 0, nil
	}
	h, _ := p.screens[p.current].Html()
	return int64(len(h)), nil
}

func (p *StaticPage) wrap(sel *goquery.Selection, selector string) []Element {
	out := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &staticElement{page: p, sel: s, selector: selector, screen: p.current})
	})
	return out
}

type staticElement struct {
	page     *StaticPage
	sel      *goquery.Selection
	selector string
	screen   int
}

// live must be called with page.mu held.
func (e *staticElement) live() error {
	if e.page.current != e.screen {
		return Stale(e.selector, errors.New("element belongs to a previous screen"))
	}
	return nil
}

func (e *staticElement) Find(ctx context.Context, selector string) (Element, error) {
	all, err := e.FindAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, Missing(selector)
	}
	return all[0], nil
}

func (e *staticElement) FindAll(ctx context.Context, selector string) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if isXPath(selector) {
		return nil, &Fault{Kind: Other, Selector: selector, Err: errXPathUnsupported}
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if err := e.live(); err != nil {
		return nil, err
	}
	return e.page.wrap(e.sel.Find(selector), selector), nil
}

func (e *staticElement) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if err := e.live(); err != nil {
		return "", err
	}
	return innerText(e.sel), nil
}

func (e *staticElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if err := e.live(); err != nil {
		return "", false, err
	}
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

func (e *staticElement) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if err := e.live(); err != nil {
		return err
	}
	e.page.clicks = append(e.page.clicks, e.selector)
	if href, ok := e.sel.Attr("href"); ok {
		if _, routed := e.page.routes[href]; routed {
			e.page.navigateLocked(href)
		}
	}
	return nil
}

func (e *staticElement) ScrollIntoView(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.live()
}

func (e *staticElement) Type(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if err := e.live(); err != nil {
		return err
	}
	if text == KeyEnter {
		// Submitting an input inside a form follows the form action.
		if action, ok := e.sel.Closest("form").Attr("action"); ok {
			if _, routed := e.page.routes[action]; routed {
				e.page.navigateLocked(action)
			}
		}
		return nil
	}
	e.page.typed[e.selector] += text
	return nil
}

// innerText approximates the browser's innerText: every non-blank text node
// on its own line.
func innerText(sel *goquery.Selection) string {
	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				lines = append(lines, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(lines, "\n")
}

func isXPath(selector string) bool {
	return strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(")
}
