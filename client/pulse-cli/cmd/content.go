package cmd

import (
	"net/url"
	"path"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	section string
	period  string
	mode    string
	depth   int
)

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Show aggregated news for a section and period",
	RunE: func(cmd *cobra.Command, args []string) error {
		return fetchContent(cmd, "/api/v1/news")
	},
}

var patentsCmd = &cobra.Command{
	Use:   "patents",
	Short: "Show aggregated patents for a section and period",
	RunE: func(cmd *cobra.Command, args []string) error {
		return fetchContent(cmd, "/api/v1/patents")
	},
}

var deepDiveCmd = &cobra.Command{
	Use:   "deep-dive [item-id]",
	Short: "Expand a news item into a tree of related items",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(serverAddr, authToken)
		if err != nil {
			return err
		}
		p := path.Join("/api/v1/deep-dive", url.PathEscape(section), url.PathEscape(period))
		if len(args) == 1 {
			p = path.Join(p, url.PathEscape(args[0]))
		}
		query := url.Values{}
		if depth > 0 {
			query.Set("depth", strconv.Itoa(depth))
		}
		data, err := client.get(p, query)
		if err != nil {
			return err
		}
		printJSON(cmd.OutOrStdout(), data)
		return nil
	},
}

func fetchContent(cmd *cobra.Command, endpoint string) error {
	client, err := newAPIClient(serverAddr, authToken)
	if err != nil {
		return err
	}
	query := url.Values{"section": {section}, "timePeriod": {period}}
	if mode != "" {
		query.Set("mode", mode)
	}
	data, err := client.get(endpoint, query)
	if err != nil {
		return err
	}
	printJSON(cmd.OutOrStdout(), data)
	return nil
}

func init() {
	for _, c := range []*cobra.Command{newsCmd, patentsCmd, deepDiveCmd} {
		c.Flags().StringVarP(&section, "section", "s", "ai", "section: ml, ai, iot or quantum")
		c.Flags().StringVarP(&period, "period", "p", "daily", "period: daily, weekly, monthly or yearly")
		rootCmd.AddCommand(c)
	}
	newsCmd.Flags().StringVar(&mode, "mode", "", `"refresh" bypasses the cache`)
	patentsCmd.Flags().StringVar(&mode, "mode", "", `"refresh" bypasses the cache`)
	deepDiveCmd.Flags().IntVarP(&depth, "depth", "d", 0, "expansion depth (1-5, server default 3)")
}
