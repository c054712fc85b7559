package main

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xscrape/internal/config"
)

func init() {
	rootCmd.AddCommand(openCmd)
}

var openCmd = &cobra.Command{
	Use:       "open <config|output>",
	Short:     "Open the config file or the JSON output directory",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"config", "output"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			path string
			err  error
		)
		switch args[0] {
		case "config":
			if configFile != "" {
				path = configFile
			} else {
				path, err = config.ConfigPath()
			}
		case "output":
			var cfg *config.Config
			if cfg, err = loadConfig(); err == nil {
				path, err = filepath.Abs(cfg.Output.Dir)
			}
		default:
			return fmt.Errorf("unknown target: %s", args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to get path: %w", err)
		}

		return browser.OpenFile(path)
	},
}
