package scraper

import (
	"context"
	"fmt"

	"github.com/ibeckermayer/xscrape/internal/dom"
	"github.com/ibeckermayer/xscrape/internal/types"
)

// collect scrolls through a feed, parsing every container matching sel into
// acc, until acc holds target records. It stops without scrolling again as
// soon as the target is reached. A feed that yields nothing new for
// StallLimit consecutive passes, or that has been scrolled MaxScrolls times,
// ends the loop early and is reported as partial.
//
// Containers that fail with a locator fault are skipped; any other fault
// aborts.
func (s *Scraper) collect(ctx context.Context, page dom.Page, sel string, target int, parse parseFunc, acc *Accumulator) (partial bool, err error) {
	stalls, scrolls := 0, 0
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		containers, err := page.FindAll(ctx, sel)
		if err != nil {
			return false, err
		}

		added := 0
		for _, c := range containers {
			rec, err := parse(ctx, c)
			if err != nil {
				if dom.IsLocatorFault(err) {
					s.log.Debug().Err(err).Msg("skipping container")
					continue
				}
				return false, err
			}
			if rec == nil || !acc.Add(rec) {
				continue
			}
			added++
			if acc.Len() >= target {
				s.log.Info().Int("records", acc.Len()).Int("scrolls", scrolls).Msg("target reached")
				return false, nil
			}
		}

		if added == 0 {
			stalls++
		} else {
			stalls = 0
		}
		if stalls >= s.scraping.StallLimit || scrolls >= s.scraping.MaxScrolls {
			s.log.Warn().
				Int("records", acc.Len()).
				Int("target", target).
				Int("scrolls", scrolls).
				Msg("feed stopped yielding records")
			return true, nil
		}

		if err := page.ScrollBy(ctx, s.scraping.ScrollOffset); err != nil {
			return false, err
		}
		scrolls++
		if err := s.pause(ctx); err != nil {
			return false, err
		}
	}
}

// settle scrolls to the bottom until two consecutive height readings agree,
// giving up after MaxScrolls scrolls.
func (s *Scraper) settle(ctx context.Context, page dom.Page) error {
	last, err := page.ScrollHeight(ctx)
	if err != nil {
		return err
	}
	for i := 0; i < s.scraping.MaxScrolls; i++ {
		if err := page.ScrollToBottom(ctx); err != nil {
			return err
		}
		if err := s.pause(ctx); err != nil {
			return err
		}
		h, err := page.ScrollHeight(ctx)
		if err != nil {
			return err
		}
		if h == last {
			return nil
		}
		last = h
	}
	s.log.Warn().Int("scrolls", s.scraping.MaxScrolls).Msg("page height never settled")
	return nil
}

func (s *Scraper) extractFeed(ctx context.Context, page dom.Page, q types.Query) (types.ResultSet, error) {
	acc := NewAccumulator()
	partial, err := s.collect(ctx, page, CellInner, s.scraping.PostsPerScrape, feedPost(q.Label()), acc)
	if err != nil {
		return types.ResultSet{}, err
	}
	if acc.Len() == 0 {
		return types.ResultSet{}, dom.Missing(CellInner)
	}
	return types.ResultSet{Kind: q.Kind, Records: acc.Records(), Success: true, Partial: partial}, nil
}

func (s *Scraper) extractTrending(ctx context.Context, page dom.Page) (types.ResultSet, error) {
	if err := s.settle(ctx, page); err != nil {
		return types.ResultSet{}, err
	}

	rows, err := page.FindAll(ctx, CellInner)
	if err != nil {
		return types.ResultSet{}, err
	}

	acc := NewAccumulator()
	for _, row := range rows {
		rec, err := trendingRow(ctx, row)
		if err != nil {
			if dom.IsLocatorFault(err) {
				continue
			}
			return types.ResultSet{}, err
		}
		if rec != nil {
			acc.Add(rec)
		}
	}
	if acc.Len() == 0 {
		return types.ResultSet{}, dom.Missing(CellInner)
	}
	return types.ResultSet{Kind: types.KindTrending, Records: acc.Records(), Success: true}, nil
}

// StatusURL is the address of a single post
func StatusURL(user, id string) string {
	return fmt.Sprintf("https://x.com/%s/status/%s", user, id)
}

func (s *Scraper) openStatus(ctx context.Context, page dom.Page, user, id string) error {
	if err := page.Navigate(ctx, StatusURL(user, id)); err != nil {
		return err
	}
	return s.pause(ctx)
}

func (s *Scraper) extractPosts(ctx context.Context, page dom.Page, q types.Query) (types.ResultSet, error) {
	acc := NewAccumulator()
	for _, id := range q.PostIDs {
		if err := s.openStatus(ctx, page, q.UserName, id); err != nil {
			return types.ResultSet{}, err
		}
		post, err := s.postDetail(ctx, page, q.UserName)
		if err != nil {
			return types.ResultSet{}, fmt.Errorf("post %s: %w", id, err)
		}
		acc.Add(post)
	}
	return types.ResultSet{Kind: types.KindPosts, Records: acc.Records(), Success: true}, nil
}

// postDetail reads the open status page. Text and timestamp are required,
// engagement counts and the image are left empty when not rendered.
func (s *Scraper) postDetail(ctx context.Context, page dom.Page, user string) (types.PostDetail, error) {
	article, err := page.WaitFor(ctx, StatusArticle, s.scraping.SlowElementWait)
	if err != nil {
		return types.PostDetail{}, err
	}

	d := types.PostDetail{Post: types.Post{Name: user, UserTag: "@" + user}}
	if d.TweetContent, err = requiredText(ctx, article, TweetText); err != nil {
		return types.PostDetail{}, err
	}
	if d.Timestamp, err = requiredAttr(ctx, article, TweetTimestamp, "datetime"); err != nil {
		return types.PostDetail{}, err
	}
	if d.ContentImage, err = optionalAttr(ctx, article, TweetPhoto, "src"); err != nil {
		return types.PostDetail{}, err
	}

	if author, err := optionalText(ctx, article, TweetAuthor); err != nil {
		return types.PostDetail{}, err
	} else if author != "" {
		d.Name = lines(author)[0]
	}

	for _, f := range []struct {
		sel string
		dst *string
	}{
		{StatusReply, &d.Reply},
		{StatusLike, &d.Likes},
		{StatusRetweet, &d.Retweet},
		{StatusBookmark, &d.Bookmarks},
	} {
		if *f.dst, err = optionalText(ctx, article, f.sel); err != nil {
			return types.PostDetail{}, err
		}
	}

	// The view counter renders lazily below the fold.
	if err := page.ScrollToBottom(ctx); err != nil {
		return types.PostDetail{}, err
	}
	if article, err = page.Find(ctx, StatusArticle); err != nil {
		return types.PostDetail{}, err
	}
	if d.Views, err = optionalText(ctx, article, StatusViews); err != nil {
		return types.PostDetail{}, err
	}
	return d, nil
}

func (s *Scraper) extractComments(ctx context.Context, page dom.Page, q types.Query) (types.ResultSet, error) {
	acc := NewAccumulator()
	partial := false
	for _, id := range q.PostIDs {
		if err := s.openStatus(ctx, page, q.UserName, id); err != nil {
			return types.ResultSet{}, err
		}
		if _, err := page.WaitFor(ctx, CommentArticles, controlWait); err != nil {
			return types.ResultSet{}, fmt.Errorf("post %s: %w", id, err)
		}
		p, err := s.collect(ctx, page, CommentArticles, acc.Len()+s.scraping.CommentsPerPost, commentArticle, acc)
		if err != nil {
			return types.ResultSet{}, err
		}
		partial = partial || p
	}
	if acc.Len() == 0 {
		return types.ResultSet{}, dom.Missing(CommentArticles)
	}
	return types.ResultSet{Kind: types.KindComments, Records: acc.Records(), Success: true, Partial: partial}, nil
}
