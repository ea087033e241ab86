package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check daemon status",
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	c := newClient()
	if !c.Ping() {
		fmt.Println("erpkb daemon is not running")
		return nil
	}
	h, err := c.Health()
	if err != nil {
		return err
	}
	fmt.Printf("status:   %s\nuptime:   %s\nbackends: %d\n", h.Status, h.Uptime, h.Backends)
	return nil
}
