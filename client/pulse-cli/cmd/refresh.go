package cmd

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	refreshSections    []string
	refreshPeriods     []string
	refreshConnections []string
	sweepLimit         int
)

// refreshRequest mirrors the body accepted by POST /api/v1/refresh.
type refreshRequest struct {
	Sections    []string `json:"sections,omitempty"`
	Periods     []string `json:"timePeriods,omitempty"`
	Connections []string `json:"connections,omitempty"`
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Trigger a refresh sweep",
	Long:  `Trigger a refresh sweep. Without --section or --period every section and period is refreshed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(serverAddr, authToken)
		if err != nil {
			return err
		}
		body := refreshRequest{Sections: refreshSections, Periods: refreshPeriods, Connections: refreshConnections}
		data, err := client.do(http.MethodPost, "/api/v1/refresh", nil, body, http.StatusAccepted)
		if err != nil {
			return err
		}
		printJSON(cmd.OutOrStdout(), data)
		fmt.Fprintln(cmd.OutOrStdout(), "To follow the sweep, run: pulse-cli watch")
		return nil
	},
}

var sweepsCmd = &cobra.Command{
	Use:   "sweeps",
	Short: "List recent refresh sweeps",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(serverAddr, authToken)
		if err != nil {
			return err
		}
		query := url.Values{}
		if sweepLimit > 0 {
			query.Set("limit", strconv.Itoa(sweepLimit))
		}
		data, err := client.get("/api/v1/sweeps", query)
		if err != nil {
			return err
		}
		printJSON(cmd.OutOrStdout(), data)
		return nil
	},
}

func init() {
	refreshCmd.Flags().StringSliceVar(&refreshSections, "section", nil, "sections to refresh (repeatable)")
	refreshCmd.Flags().StringSliceVar(&refreshPeriods, "period", nil, "periods to refresh (repeatable)")
	refreshCmd.Flags().StringSliceVar(&refreshConnections, "connection", nil, "connection ids to notify (default: all)")
	sweepsCmd.Flags().IntVarP(&sweepLimit, "limit", "n", 0, "number of sweeps to list")
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(sweepsCmd)
}
