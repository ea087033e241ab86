package cmd

import (
	"github.com/spf13/cobra"

	"github.com/corey/erpkb/internal/adapters/socket"
	"github.com/corey/erpkb/internal/app"
)

var (
	cfgPath  string
	sockFlag string
)

var rootCmd = &cobra.Command{
	Use:           "erpkb",
	Short:         "erpkb — ERP knowledge resolution engine",
	Long:          "Typo-tolerant catalog lookups, keyword search and payload validation\nfor ERP integration agents, served over a Unix socket.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// socketPath resolves the daemon socket: flag first, then config, then the
// path derived from the first backend's store location.
func socketPath() string {
	if sockFlag != "" {
		return sockFlag
	}
	if cfg, err := app.LoadConfig(cfgPath); err == nil {
		if cfg.Socket != "" {
			return cfg.Socket
		}
		return socket.SocketPath(cfg.Backends[0].Store.Path)
	}
	return socket.SocketPath(".")
}

func newClient() *socket.Client {
	return socket.NewClient(socketPath())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "erpkb.yaml", "path to the daemon config file")
	rootCmd.PersistentFlags().StringVar(&sockFlag, "socket", "", "daemon socket path (overrides config)")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(backendsCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(namesCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(referenceCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(importCmd)
}
