package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/micro-ha/bloomin-presence/internal/domain/frame"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find and cache the frame's BLE wake characteristic",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		target := a.pipeline.Target()
		if !target.BLEEnabled() {
			return frame.ErrBLEDisabled
		}
		cache, err := a.ble.Discover(cmd.Context(), target)
		if err != nil {
			return fmt.Errorf("ble discovery for %s: %w", target.BLEAddr, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "service:        %s\ncharacteristic: %s\n", cache.ServiceUUID, cache.CharacteristicUUID)
		return nil
	},
}
