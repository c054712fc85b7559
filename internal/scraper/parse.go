package scraper

import (
	"context"
	"strings"

	"github.com/ibeckermayer/xscrape/internal/dom"
	"github.com/ibeckermayer/xscrape/internal/types"
)

// parseFunc turns one container into a record. A nil record with a nil error
// means the container holds nothing of interest.
type parseFunc func(ctx context.Context, container dom.Element) (types.Record, error)

func requiredText(ctx context.Context, s dom.Scope, sel string) (string, error) {
	el, err := s.Find(ctx, sel)
	if err != nil {
		return "", err
	}
	return el.Text(ctx)
}

// optionalText returns "" when sel matches nothing.
func optionalText(ctx context.Context, s dom.Scope, sel string) (string, error) {
	el, err := s.Find(ctx, sel)
	if dom.KindOf(err) == dom.MissingElement {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return el.Text(ctx)
}

func requiredAttr(ctx context.Context, s dom.Scope, sel, name string) (string, error) {
	el, err := s.Find(ctx, sel)
	if err != nil {
		return "", err
	}
	v, ok, err := el.Attribute(ctx, name)
	if err != nil {
		return "", err
	}
	if !ok || v == "" {
		return "", dom.Missing(sel + "@" + name)
	}
	return v, nil
}

func optionalAttr(ctx context.Context, s dom.Scope, sel, name string) (string, error) {
	el, err := s.Find(ctx, sel)
	if dom.KindOf(err) == dom.MissingElement {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	v, _, err := el.Attribute(ctx, name)
	return v, err
}

func lines(text string) []string {
	return strings.Split(strings.TrimSpace(text), "\n")
}

// feedPost builds the parser for timeline and search rows. name is recorded
// as the post's Name, the handle comes from the row's author block. Rows
// without a timestamp or text (promotions, "who to follow") fail with a
// MissingElement fault.
func feedPost(name string) parseFunc {
	return func(ctx context.Context, row dom.Element) (types.Record, error) {
		ts, err := requiredAttr(ctx, row, TweetTimestamp, "datetime")
		if err != nil {
			return nil, err
		}
		text, err := requiredText(ctx, row, TweetText)
		if err != nil {
			return nil, err
		}

		post := types.Post{Name: name, Timestamp: ts, TweetContent: text}

		author, err := optionalText(ctx, row, TweetAuthor)
		if err != nil {
			return nil, err
		}
		if author != "" {
			l := lines(author)
			post.UserTag = strings.TrimSpace(l[len(l)-1])
		}

		for _, f := range []struct {
			sel string
			dst *string
		}{
			{ReplyCount, &post.Reply},
			{RetweetCount, &post.Retweet},
			{LikeCount, &post.Likes},
		} {
			if *f.dst, err = optionalText(ctx, row, f.sel); err != nil {
				return nil, err
			}
		}
		return post, nil
	}
}

// parseTrendingText reads a trend row rendered as
//
//	<rank>
//	·
//	<category> · <type>
//	<topic>
//	<post count>
//
// Rows with fewer than four lines are not trends.
func parseTrendingText(text string) (types.TrendingTopic, bool) {
	l := lines(text)
	if len(l) < 4 {
		return types.TrendingTopic{}, false
	}

	meta := strings.Split(l[2], " · ")
	t := types.TrendingTopic{
		ID:       strings.TrimSpace(l[0]),
		Category: strings.TrimSpace(meta[0]),
		Type:     "Trending",
		Trending: strings.TrimSpace(l[3]),
		Posts:    "N/A",
	}
	if len(meta) > 1 {
		t.Type = strings.TrimSpace(meta[1])
	}
	if len(l) > 4 {
		t.Posts = strings.TrimSpace(l[4])
	}
	return t, true
}

func trendingRow(ctx context.Context, row dom.Element) (types.Record, error) {
	text, err := row.Text(ctx)
	if err != nil {
		return nil, err
	}
	if t, ok := parseTrendingText(text); ok {
		return t, nil
	}
	return nil, nil
}

// parseCommentText reads a reply article. The layout is name, handle,
// separator, relative time, body, like count, reply count and views; anything
// shorter is not a reply.
func parseCommentText(text string) (types.Comment, bool) {
	l := lines(text)
	if len(l) < 8 {
		return types.Comment{}, false
	}

	c := types.Comment{
		Name:     l[0],
		Username: l[1],
		Time:     l[3],
		Comment:  l[4],
		Views:    l[7],
	}
	if f := strings.Fields(l[5]); len(f) > 0 {
		c.Likes = f[0]
	}
	return c, true
}

func commentArticle(ctx context.Context, article dom.Element) (types.Record, error) {
	text, err := article.Text(ctx)
	if err != nil {
		return nil, err
	}
	if c, ok := parseCommentText(text); ok {
		return c, nil
	}
	return nil, nil
}
