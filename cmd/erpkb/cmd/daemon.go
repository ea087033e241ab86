package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/corey/erpkb/internal/app"
)

var daemonForeground bool

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the erpkb daemon",
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon",
	RunE:  runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the daemon",
	RunE:  runDaemonStop,
}

func init() {
	daemonStartCmd.Flags().BoolVar(&daemonForeground, "foreground", true, "run in the foreground (log to stderr)")
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	cfg, err := app.LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	if sockFlag != "" {
		cfg.Socket = sockFlag
	}
	log := app.NewLogger(cfg.LogLevel, daemonForeground)

	a, err := app.New(*cfg, log)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	if err := a.Start(); err != nil {
		return err
	}
	fmt.Printf("erpkb daemon listening at %s\n", a.SocketPath())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		fmt.Println("\nshutting down...")
	case <-a.ShutdownCh():
		fmt.Println("shutdown requested, stopping...")
	}
	return a.Stop()
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	c := newClient()
	if !c.Ping() {
		fmt.Println("daemon is not running")
		return nil
	}
	if err := c.Shutdown(); err != nil {
		return err
	}
	fmt.Println("daemon stopped")
	return nil
}
