package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "bloomin-presence",
	Short:         "Presence overlay for Bloomin8 e-ink frames",
	Long:          `Watches Home Assistant person entities and pushes a presence-badged image to an e-ink frame, waking it over BLE, a Home Assistant service or HTTP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, updateCmd, uploadCmd, discoverCmd)
}
