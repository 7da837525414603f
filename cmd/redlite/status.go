package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"redlite/pkg/types"
)

func newStatusCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query a running serve process and print its status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli := &http.Client{Timeout: 5 * time.Second}
			resp, err := cli.Get("http://" + addr + "/status")
			if err != nil {
				return fmt.Errorf("querying %s: %w", addr, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("status endpoint returned %s", resp.Status)
			}
			var st types.StatusResponse
			if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
				return fmt.Errorf("decoding status: %w", err)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", envOr("REDLITE_ADDR", "127.0.0.1:8080"), "Address of the serve process")
	return cmd
}
