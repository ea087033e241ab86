package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List registered ERP backends",
	RunE:  runBackends,
}

func runBackends(cmd *cobra.Command, args []string) error {
	c := newClient()
	res, err := c.Backends()
	if err != nil {
		return err
	}
	for _, b := range res.Backends {
		line := b.Key
		if b.Version != "" {
			line += " " + b.Version
		}
		if len(b.Aliases) > 0 {
			line += fmt.Sprintf(" (aka %s)", strings.Join(b.Aliases, ", "))
		}
		fmt.Printf("%s\n  capabilities: %s\n", line, strings.Join(b.Capabilities, ", "))
		if b.Description != "" {
			fmt.Printf("  %s\n", b.Description)
		}
	}
	return nil
}
