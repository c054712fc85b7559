package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xscrape/internal/config"
	"github.com/ibeckermayer/xscrape/internal/store"
)

var runsLimit int

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(runsCmd)
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Print the most recent runs from the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path := cfg.Ledger.Path
		if path == "" {
			dir, err := config.CacheDir()
			if err != nil {
				return err
			}
			path = filepath.Join(dir, "ledger.db")
		}

		ledger, err := store.OpenLedger(path)
		if err != nil {
			return err
		}
		defer ledger.Close()

		runs, err := ledger.RecentRuns(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Started", "Kind", "Label", "Cache", "Result", "Retries", "Records", "Took"})
		for _, r := range runs {
			res := "ok"
			if !r.Success {
				res = r.Message
			}
			cached := ""
			if r.FromCache {
				cached = "hit"
			}
			t.AppendRow(table.Row{
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Kind, r.Label, cached, res, r.RetryCount, r.RecordCount,
				r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()

		if len(runs) == 0 {
			fmt.Println("No runs recorded yet.")
		}
		return nil
	},
}
