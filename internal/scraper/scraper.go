package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ibeckermayer/xscrape/internal/config"
	"github.com/ibeckermayer/xscrape/internal/dom"
	"github.com/ibeckermayer/xscrape/internal/pace"
	"github.com/ibeckermayer/xscrape/internal/types"
)

// controlWait bounds the wait for navigation controls that normally render
// with the page.
const controlWait = 15 * time.Second

// Scraper handles extracting posts from X.com
type Scraper struct {
	scraping config.ScrapingConfig
	pacing   config.PacingConfig
	pacer    pace.Pacer
	log      zerolog.Logger
}

// New creates a new scraper
func New(scraping config.ScrapingConfig, pacing config.PacingConfig, pacer pace.Pacer, log zerolog.Logger) *Scraper {
	if scraping.PostsPerScrape < 1 {
		scraping.PostsPerScrape = 1
	}
	if scraping.CommentsPerPost < 1 {
		scraping.CommentsPerPost = 1
	}
	if scraping.StallLimit < 1 {
		scraping.StallLimit = 1
	}
	return &Scraper{scraping: scraping, pacing: pacing, pacer: pacer, log: log}
}

func (s *Scraper) pause(ctx context.Context) error {
	return s.pacer.Pause(ctx, s.pacing.MinPause, s.pacing.MaxPause)
}

// Search brings an authenticated page to the feed q is extracted from.
// Posts and comments navigate per post during extraction, so Search is a no-op
// for them.
func (s *Scraper) Search(ctx context.Context, page dom.Page, q types.Query) error {
	switch q.Kind {
	case types.KindProfile:
		if err := s.search(ctx, page, q.Profile); err != nil {
			return err
		}
		if err := s.click(ctx, page, PeopleTab, controlWait); err != nil {
			return err
		}
		// Account results load slowly.
		return s.click(ctx, page, FirstUser, s.scraping.SlowElementWait)
	case types.KindHashtag:
		return s.search(ctx, page, q.Hashtags)
	case types.KindTrending:
		if err := s.click(ctx, page, ExploreLink, controlWait); err != nil {
			return err
		}
		return s.click(ctx, page, TrendingTab, controlWait)
	case types.KindPosts, types.KindComments:
		return nil
	default:
		return fmt.Errorf("unknown query kind %q", q.Kind)
	}
}

// Extract runs the extraction loop for q on a page prepared by Search.
func (s *Scraper) Extract(ctx context.Context, page dom.Page, q types.Query) (types.ResultSet, error) {
	log := s.log.With().Str("kind", string(q.Kind)).Str("label", q.Label()).Logger()
	log.Info().Msg("extracting")

	switch q.Kind {
	case types.KindProfile, types.KindHashtag:
		return s.extractFeed(ctx, page, q)
	case types.KindTrending:
		return s.extractTrending(ctx, page)
	case types.KindPosts:
		return s.extractPosts(ctx, page, q)
	case types.KindComments:
		return s.extractComments(ctx, page, q)
	default:
		return types.ResultSet{}, fmt.Errorf("unknown query kind %q", q.Kind)
	}
}

// search types term into the search box and submits it.
func (s *Scraper) search(ctx context.Context, page dom.Page, term string) error {
	box, err := page.WaitFor(ctx, SearchBox, controlWait)
	if err != nil {
		return err
	}
	err = dom.TypeSlowly(ctx, box, term, func(ctx context.Context) error {
		return s.pacer.Pause(ctx, s.pacing.KeystrokeDelay, s.pacing.KeystrokeDelay)
	})
	if err != nil {
		return err
	}
	if err := box.Type(ctx, dom.KeyEnter); err != nil {
		return err
	}
	s.log.Debug().Str("term", term).Msg("search submitted")
	return s.pause(ctx)
}

func (s *Scraper) click(ctx context.Context, page dom.Page, sel string, wait time.Duration) error {
	el, err := page.WaitFor(ctx, sel, wait)
	if err != nil {
		return err
	}
	if err := el.Click(ctx); err != nil {
		return err
	}
	return s.pause(ctx)
}
