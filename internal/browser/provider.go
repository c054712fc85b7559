package browser

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ibeckermayer/xscrape/internal/config"
	"github.com/ibeckermayer/xscrape/internal/dom"
)

// ProxyMode selects how a session reaches the network
type ProxyMode string

const (
	ProxyNone ProxyMode = "none"
	ProxyFree ProxyMode = "free"
	ProxyPaid ProxyMode = "paid"
)

// ParseProxyMode accepts the config spelling; empty means none.
func ParseProxyMode(s string) (ProxyMode, error) {
	switch ProxyMode(s) {
	case "", ProxyNone:
		return ProxyNone, nil
	case ProxyFree, ProxyPaid:
		return ProxyMode(s), nil
	default:
		return "", fmt.Errorf("unknown proxy mode: %s", s)
	}
}

// Session is one exclusively owned browser session. Close releases it and is
// safe to call more than once.
type Session interface {
	dom.Page
	Close() error
}

// Provider hands out fresh sessions
type Provider interface {
	Acquire(ctx context.Context, mode ProxyMode) (Session, error)
}

// ChromeProvider launches a new Chrome process per session.
type ChromeProvider struct {
	headless bool
	proxy    config.ProxyConfig
	limiter  *rate.Limiter
	log      zerolog.Logger
}

// NewChromeProvider creates a provider. Launches are spaced by at least
// launchInterval so concurrent workers do not start browsers in a burst.
func NewChromeProvider(headless bool, proxy config.ProxyConfig, launchInterval time.Duration, log zerolog.Logger) *ChromeProvider {
	limit := rate.Inf
	if launchInterval > 0 {
		limit = rate.Every(launchInterval)
	}
	return &ChromeProvider{
		headless: headless,
		proxy:    proxy,
		limiter:  rate.NewLimiter(limit, 1),
		log:      log,
	}
}

// proxyServer resolves the --proxy-server value for mode.
func (p *ChromeProvider) proxyServer(mode ProxyMode) (string, error) {
	switch mode {
	case ProxyNone, "":
		return "", nil
	case ProxyFree:
		if len(p.proxy.FreeServers) == 0 {
			return "", errors.New("free proxy mode needs at least one server")
		}
		return p.proxy.FreeServers[rand.IntN(len(p.proxy.FreeServers))], nil
	case ProxyPaid:
		if p.proxy.PaidServer == "" {
			return "", errors.New("paid proxy mode needs a server")
		}
		return p.proxy.PaidServer, nil
	default:
		return "", fmt.Errorf("unknown proxy mode: %s", mode)
	}
}

// Acquire launches Chrome and opens a tab. The browser outlives ctx; only
// Close tears it down.
func (p *ChromeProvider) Acquire(ctx context.Context, mode ProxyMode) (Session, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	server, err := p.proxyServer(mode)
	if err != nil {
		return nil, err
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), Options(p.headless, server)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		chromePage: chromePage{tab: tabCtx},
		cancel: func() {
			tabCancel()
			allocCancel()
		},
	}

	// The first Run must use the tab context itself; a derived context would
	// tie the browser's lifetime to it.
	stop := context.AfterFunc(ctx, func() { s.Close() })
	err = chromedp.Run(tabCtx)
	if !stop() {
		return nil, ctx.Err()
	}
	if err != nil {
		s.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	if mode == ProxyPaid && p.proxy.PaidUser != "" {
		p.answerProxyAuth(tabCtx)
		if err := s.run(ctx, elementTimeout, fetch.Enable().WithHandleAuthRequests(true)); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to enable proxy auth: %w", err)
		}
	}

	p.log.Debug().Str("proxy_mode", string(mode)).Msg("browser session started")
	return s, nil
}

// answerProxyAuth replies to proxy challenges with the paid credentials and
// lets every other paused request continue.
func (p *ChromeProvider) answerProxyAuth(tabCtx context.Context) {
	user, pass := p.proxy.PaidUser, p.proxy.PaidPassword
	chromedp.ListenTarget(tabCtx, func(ev any) {
		switch e := ev.(type) {
		case *fetch.EventAuthRequired:
			go func() {
				_ = chromedp.Run(tabCtx, fetch.ContinueWithAuth(e.RequestID, &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: user,
					Password: pass,
				}))
			}()
		case *fetch.EventRequestPaused:
			go func() {
				_ = chromedp.Run(tabCtx, fetch.ContinueRequest(e.RequestID))
			}()
		}
	})
}

type chromeSession struct {
	chromePage
	once   sync.Once
	cancel context.CancelFunc
}

func (s *chromeSession) Close() error {
	s.once.Do(s.cancel)
	return nil
}
