package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xscrape/internal/app"
	"github.com/ibeckermayer/xscrape/internal/result"
)

var (
	scrapeUser string
	scrapeIDs  string
)

func init() {
	scrapeCmd.PersistentFlags().StringVar(&scrapeUser, "user", "", "user name for posts and comments")
	scrapeCmd.PersistentFlags().StringVar(&scrapeIDs, "ids", "", "comma separated post ids for posts and comments")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:       "scrape <profile|hashtag|trending|posts|comments> [name]",
	Short:     "Run one scrape through the full orchestrator, bypassing the cache",
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: []string{"profile", "hashtag", "trending", "posts", "comments"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}

		rt, err := app.Build(cfg, log)
		if err != nil {
			return err
		}
		defer rt.Close()

		name := ""
		if len(args) > 1 {
			name = args[1]
		}
		var ids []string
		for _, id := range strings.Split(scrapeIDs, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}

		ctx := cmd.Context()
		o := rt.Orchestrator
		var env result.Envelope
		switch args[0] {
		case "profile":
			env = o.ScrapeProfile(ctx, name, "")
		case "hashtag":
			env = o.ScrapeHashtag(ctx, name, "")
		case "trending":
			env = o.ScrapeTrending(ctx, "")
		case "posts":
			env = o.ScrapePostsByID(ctx, scrapeUser, ids, "")
		case "comments":
			env = o.ScrapeComments(ctx, scrapeUser, ids, "")
		default:
			return fmt.Errorf("unknown kind: %s", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "    ")
		if err := enc.Encode(env); err != nil {
			return err
		}
		if env.Code != result.CodeOK {
			return fmt.Errorf("scrape failed: %s", env.Message)
		}
		return nil
	},
}
