package main

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xscrape/internal/browser"
)

func init() {
	rootCmd.AddCommand(botTestCmd)
}

var botTestCmd = &cobra.Command{
	Use:   "bot-test",
	Short: "Open bot.sannysoft.com with the stealth options to audit the browser fingerprint",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Opening bot.sannysoft.com with stealth browser options...")

		// Non-headless so the page can be inspected.
		allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), browser.Options(false, "")...)
		defer cancel()

		ctx, cancel := chromedp.NewContext(allocCtx)
		defer cancel()

		err := chromedp.Run(ctx,
			chromedp.Navigate("https://bot.sannysoft.com"),
			chromedp.WaitVisible("body", chromedp.ByQuery),
		)
		if err != nil {
			return fmt.Errorf("failed to navigate: %w", err)
		}

		fmt.Println("Press Enter to close the browser...")
		fmt.Scanln()
		return nil
	},
}
