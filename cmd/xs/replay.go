package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xscrape/internal/dom"
	"github.com/ibeckermayer/xscrape/internal/pace"
	"github.com/ibeckermayer/xscrape/internal/scraper"
	"github.com/ibeckermayer/xscrape/internal/types"
)

var (
	replayKind  string
	replayLabel string
	replayIDs   string
)

func init() {
	replayCmd.Flags().StringVar(&replayKind, "kind", "profile", "extractor to run: profile, hashtag, trending, posts or comments")
	replayCmd.Flags().StringVar(&replayLabel, "label", "replay", "profile name, hashtag or user name recorded in the records")
	replayCmd.Flags().StringVar(&replayIDs, "ids", "snapshot", "comma separated post ids for posts and comments")
	rootCmd.AddCommand(replayCmd)
}

var replayCmd = &cobra.Command{
	Use:   "replay <snapshot.html>...",
	Short: "Run an extractor over saved page snapshots",
	Long: `replay loads one or more saved HTML snapshots as consecutive scroll
positions of a page and runs the extractor for --kind over them, printing the
records as JSON. No browser is started.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}

		screens := make([]string, 0, len(args))
		for _, path := range args {
			b, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			screens = append(screens, string(b))
		}
		page, err := dom.NewStaticPage(screens...)
		if err != nil {
			return err
		}

		q, err := replayQuery()
		if err != nil {
			return err
		}

		s := scraper.New(cfg.Scraping, cfg.Pacing, pace.Nop{}, log)
		rs, err := s.Extract(cmd.Context(), page, q)
		if err != nil {
			return fmt.Errorf("extraction failed: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "    ")
		return enc.Encode(rs.Records)
	},
}

func replayQuery() (types.Query, error) {
	ids := strings.Split(replayIDs, ",")
	switch types.Kind(replayKind) {
	case types.KindProfile:
		return types.ProfileQuery(replayLabel), nil
	case types.KindHashtag:
		return types.HashtagQuery(replayLabel), nil
	case types.KindTrending:
		return types.TrendingQuery(), nil
	case types.KindPosts:
		return types.PostsQuery(replayLabel, ids), nil
	case types.KindComments:
		return types.CommentsQuery(replayLabel, ids), nil
	default:
		return types.Query{}, fmt.Errorf("unknown kind: %s", replayKind)
	}
}
