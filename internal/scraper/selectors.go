package scraper

// X.com DOM selectors
// These are isolated here because X changes their DOM frequently
// Update these when scraping breaks

const (
	// Navigation
	SearchBox   = `input[data-testid="SearchBox_Search_Input"]`
	PeopleTab   = `a[href*="f=user"]`
	FirstUser   = `[data-testid="UserCell"] a[role="link"]`
	ExploreLink = `a[href="/explore"]`
	TrendingTab = `a[href="/explore/tabs/trending"]`

	// Feed rows; timelines, search results and trends all render inside these
	CellInner = `div[data-testid="cellInnerDiv"]`

	// Tweet content selectors, scoped to a row or article
	TweetAuthor    = `[data-testid="User-Name"]`
	TweetTimestamp = `time`
	TweetText      = `[data-testid="tweetText"]`
	TweetPhoto     = `div[data-testid="tweetPhoto"] img`

	// Engagement selectors
	ReplyCount   = `[data-testid="reply"]`
	RetweetCount = `[data-testid="retweet"]`
	LikeCount    = `[data-testid="like"]`

	// Status page
	StatusArticle   = `article[data-testid="tweet"]`
	StatusReply     = `button[data-testid="reply"] span[data-testid="app-text-transition-container"] span`
	StatusLike      = `button[data-testid="like"] span[data-testid="app-text-transition-container"] span`
	StatusRetweet   = `button[data-testid="retweet"] span[data-testid="app-text-transition-container"] span`
	StatusBookmark  = `button[data-testid="bookmark"] span[data-testid="app-text-transition-container"] span`
	StatusViews     = `a[href$="/analytics"] span.css-1jxf684`
	// replies only; the focal post renders with tabindex -1
	CommentArticles = `[role="article"]:not([tabindex="-1"])`
)
