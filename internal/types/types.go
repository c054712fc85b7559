package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind identifies what a Query scrapes
type Kind string

const (
	KindProfile  Kind = "profile"
	KindHashtag  Kind = "hashtag"
	KindTrending Kind = "trending"
	KindPosts    Kind = "posts"
	KindComments Kind = "comments"
)

// Query is the user-supplied scrape target. It must not be modified once a
// scrape has started.
type Query struct {
	Kind     Kind     `json:"kind"`
	Profile  string   `json:"profile,omitempty"`
	Hashtags string   `json:"hashtags,omitempty"`
	UserName string   `json:"user_name,omitempty"`
	PostIDs  []string `json:"post_ids,omitempty"`
}

// ProfileQuery builds a profile timeline query
func ProfileQuery(name string) Query {
	return Query{Kind: KindProfile, Profile: name}
}

// HashtagQuery builds a hashtag search query
func HashtagQuery(hashtags string) Query {
	return Query{Kind: KindHashtag, Hashtags: hashtags}
}

// TrendingQuery builds the trending topics query
func TrendingQuery() Query {
	return Query{Kind: KindTrending}
}

// PostsQuery builds a query for individual posts of one user
func PostsQuery(userName string, postIDs []string) Query {
	return Query{Kind: KindPosts, UserName: userName, PostIDs: append([]string(nil), postIDs...)}
}

// CommentsQuery builds a query for the comments under posts of one user
func CommentsQuery(userName string, postIDs []string) Query {
	return Query{Kind: KindComments, UserName: userName, PostIDs: append([]string(nil), postIDs...)}
}

// Label is the name results for this query are persisted under.
func (q Query) Label() string {
	switch q.Kind {
	case KindProfile:
		return q.Profile
	case KindHashtag:
		return q.Hashtags
	case KindTrending:
		return "Trending"
	default:
		return q.UserName
	}
}

// Validate checks the fields the query kind requires
func (q Query) Validate() error {
	switch q.Kind {
	case KindProfile:
		if strings.TrimSpace(q.Profile) == "" {
			return fmt.Errorf("Profile_name is required")
		}
	case KindHashtag:
		if strings.TrimSpace(q.Hashtags) == "" {
			return fmt.Errorf("hashtags is required")
		}
	case KindTrending:
	case KindPosts, KindComments:
		if strings.TrimSpace(q.UserName) == "" || len(q.PostIDs) == 0 {
			return fmt.Errorf("Both user_name and post_ids are required.")
		}
	default:
		return fmt.Errorf("unknown query kind %q", q.Kind)
	}
	return nil
}

// Credential is one login from the account pool
type Credential struct {
	Username string `toml:"username"`
	Email    string `toml:"email"`
	Password string `toml:"password"`
}

// String masks the password so a Credential is safe to log.
func (c Credential) String() string {
	return fmt.Sprintf("%s <%s> %s", c.Username, c.Email, strings.Repeat("*", len(c.Password)))
}

// Record is one scraped unit of content
type Record interface {
	// DedupKey returns the distinguishing text field.
	DedupKey() string
}

// Post represents a post scraped from a timeline or search feed
type Post struct {
	Name         string `json:"Name"`
	UserTag      string `json:"UserTag"`
	Timestamp    string `json:"Timestamp"`
	TweetContent string `json:"TweetContent"`
	Reply        string `json:"Reply"`
	Retweet      string `json:"Retweet"`
	Likes        string `json:"Likes"`
}

func (p Post) DedupKey() string { return p.TweetContent }

// PostDetail is a post opened on its own status page
type PostDetail struct {
	Post
	ContentImage string `json:"content_image"`
	Views        string `json:"views_count"`
	Bookmarks    string `json:"bookmark_count"`
}

func (p PostDetail) DedupKey() string { return p.TweetContent }

// Comment is a reply rendered under a post
type Comment struct {
	Name     string `json:"Name"`
	Username string `json:"Username"`
	Time     string `json:"Time"`
	Comment  string `json:"Comment"`
	Likes    string `json:"Likes"`
	Views    string `json:"Views"`
}

func (c Comment) DedupKey() string { return c.Comment }

// TrendingTopic is one row of the trending tab
type TrendingTopic struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Type     string `json:"type"`
	Trending string `json:"trending"`
	Posts    string `json:"posts"`
}

func (t TrendingTopic) DedupKey() string { return t.Trending }

// ResultSet is the ordered output of one scrape
type ResultSet struct {
	Kind    Kind
	Records []Record
	Success bool
	Error   string
	// Partial is set when the feed stopped producing content before the
	// requested number of records was reached.
	Partial bool
}

type resultSetJSON struct {
	Kind    Kind              `json:"kind"`
	Records []json.RawMessage `json:"records"`
	Success bool              `json:"success"`
	Error   string            `json:"error,omitempty"`
	Partial bool              `json:"partial,omitempty"`
}

// MarshalJSON encodes the records alongside the kind needed to decode them.
func (rs ResultSet) MarshalJSON() ([]byte, error) {
	out := resultSetJSON{
		Kind:    rs.Kind,
		Records: make([]json.RawMessage, 0, len(rs.Records)),
		Success: rs.Success,
		Error:   rs.Error,
		Partial: rs.Partial,
	}
	for _, r := range rs.Records {
		b, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		out.Records = append(out.Records, b)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes records into the concrete type for the set's kind.
func (rs *ResultSet) UnmarshalJSON(data []byte) error {
	var in resultSetJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	records := make([]Record, 0, len(in.Records))
	for _, raw := range in.Records {
		r, err := decodeRecord(in.Kind, raw)
		if err != nil {
			return err
		}
		records = append(records, r)
	}

	*rs = ResultSet{
		Kind:    in.Kind,
		Records: records,
		Success: in.Success,
		Error:   in.Error,
		Partial: in.Partial,
	}
	return nil
}

func decodeRecord(kind Kind, raw json.RawMessage) (Record, error) {
	switch kind {
	case KindProfile, KindHashtag:
		var p Post
		err := json.Unmarshal(raw, &p)
		return p, err
	case KindPosts:
		var p PostDetail
		err := json.Unmarshal(raw, &p)
		return p, err
	case KindComments:
		var c Comment
		err := json.Unmarshal(raw, &c)
		return c, err
	case KindTrending:
		var t TrendingTopic
		err := json.Unmarshal(raw, &t)
		return t, err
	default:
		return nil, fmt.Errorf("cannot decode records of kind %q", kind)
	}
}
