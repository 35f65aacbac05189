package cmd

import (
	"fmt"
	"log"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var sessionID string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open a live connection and print refresh notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(serverAddr, authToken)
		if err != nil {
			return err
		}
		u := client.websocketURL(sessionID)
		log.Printf("Connecting to %s", u)

		c, _, err := websocket.DefaultDialer.Dial(u, nil)
		if err != nil {
			return fmt.Errorf("dial: %w", err)
		}
		defer c.Close()

		fmt.Fprintln(cmd.OutOrStdout(), "WebSocket connected. Waiting for notifications...")
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return nil
				}
				return fmt.Errorf("read: %w", err)
			}
			printJSON(cmd.OutOrStdout(), message)
		}
	},
}

func init() {
	watchCmd.Flags().StringVar(&sessionID, "session", "", "session id to attach the connection to")
	rootCmd.AddCommand(watchCmd)
}
