package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/ibeckermayer/xscrape/internal/dom"
)

// elementTimeout bounds every call on an already located node. A node that
// does not answer within it has been re-rendered away.
const elementTimeout = 5 * time.Second

// chromePage implements dom.Page on top of a chromedp tab context.
type chromePage struct {
	tab context.Context
}

var _ dom.Page = (*chromePage)(nil)

// run executes actions against the tab, bounded by timeout and by the
// caller's context.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func isXPath(selector string) bool {
	return strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(")
}

func byFor(selector string) chromedp.QueryOption {
	if isXPath(selector) {
		return chromedp.BySearch
	}
	return chromedp.ByQueryAll
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	err := p.run(ctx, time.Minute, chromedp.Navigate(url))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *chromePage) Find(ctx context.Context, selector string) (dom.Element, error) {
	all, err := p.FindAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, dom.Missing(selector)
	}
	return all[0], nil
}

func (p *chromePage) FindAll(ctx context.Context, selector string) ([]dom.Element, error) {
	var nodes []*cdp.Node
	err := p.run(ctx, elementTimeout,
		chromedp.Nodes(selector, &nodes, byFor(selector), chromedp.AtLeast(0)))
	if err != nil {
		return nil, classify(ctx, selector, opQuery, err)
	}
	return p.wrap(selector, nodes), nil
}

func (p *chromePage) WaitFor(ctx context.Context, selector string, timeout time.Duration) (dom.Element, error) {
	var nodes []*cdp.Node
	err := p.run(ctx, timeout, chromedp.Nodes(selector, &nodes, byFor(selector)))
	if err != nil {
		return nil, classify(ctx, selector, opWait, err)
	}
	if len(nodes) == 0 {
		return nil, dom.Missing(selector)
	}
	return &chromeElement{page: p, node: nodes[0], selector: selector}, nil
}

func (p *chromePage) ScrollBy(ctx context.Context, dy int) error {
	return p.eval(ctx, fmt.Sprintf("window.scrollBy(0, %d)", dy), nil)
}

func (p *chromePage) ScrollToBottom(ctx context.Context) error {
	return p.eval(ctx, "window.scrollTo(0, document.body.scrollHeight)", nil)
}

func (p *chromePage) ScrollHeight(ctx context.Context) (int64, error) {
	var h int64
	if err := p.eval(ctx, "document.body.scrollHeight", &h); err != nil {
		return 0, err
	}
	return h, nil
}

func (p *chromePage) eval(ctx context.Context, js string, res any) error {
	if err := p.run(ctx, elementTimeout, chromedp.Evaluate(js, res)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to evaluate %q: %w", js, err)
	}
	return nil
}

func (p *chromePage) wrap(selector string, nodes []*cdp.Node) []dom.Element {
	out := make([]dom.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &chromeElement{page: p, node: n, selector: selector})
	}
	return out
}

// chromeElement addresses a node by its CDP node id.
type chromeElement struct {
	page     *chromePage
	node     *cdp.Node
	selector string
}

func (e *chromeElement) ids() []cdp.NodeID {
	return []cdp.NodeID{e.node.NodeID}
}

func (e *chromeElement) Find(ctx context.Context, selector string) (dom.Element, error) {
	all, err := e.FindAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, dom.Missing(selector)
	}
	return all[0], nil
}

func (e *chromeElement) FindAll(ctx context.Context, selector string) ([]dom.Element, error) {
	var nodes []*cdp.Node
	err := e.page.run(ctx, elementTimeout,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0), chromedp.FromNode(e.node)))
	if err != nil {
		return nil, classify(ctx, selector, opElement, err)
	}
	return e.page.wrap(selector, nodes), nil
}

func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var text string
	err := e.page.run(ctx, elementTimeout, chromedp.Text(e.ids(), &text, chromedp.ByNodeID))
	if err != nil {
		return "", classify(ctx, e.selector, opElement, err)
	}
	return text, nil
}

func (e *chromeElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	err := e.page.run(ctx, elementTimeout, chromedp.AttributeValue(e.ids(), name, &value, &ok, chromedp.ByNodeID))
	if err != nil {
		return "", false, classify(ctx, e.selector, opElement, err)
	}
	return value, ok, nil
}

func (e *chromeElement) Click(ctx context.Context) error {
	err := e.page.run(ctx, elementTimeout, chromedp.Click(e.ids(), chromedp.ByNodeID))
	return classify(ctx, e.selector, opElement, err)
}

func (e *chromeElement) ScrollIntoView(ctx context.Context) error {
	err := e.page.run(ctx, elementTimeout, chromedp.ScrollIntoView(e.ids(), chromedp.ByNodeID))
	return classify(ctx, e.selector, opElement, err)
}

func (e *chromeElement) Type(ctx context.Context, text string) error {
	err := e.page.run(ctx, elementTimeout, chromedp.SendKeys(e.ids(), text, chromedp.ByNodeID))
	return classify(ctx, e.selector, opElement, err)
}
