package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/micro-ha/bloomin-presence/internal/pipeline"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Run one display update with the configured image source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runOnce(cmd, pipeline.UpdateDisplay())
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <image-path>",
	Short: "Overlay and push a specific image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd, pipeline.UploadImage(args[0]))
	},
}

func runOnce(cmd *cobra.Command, trig pipeline.Trigger) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	report, runErr := a.pipeline.Run(cmd.Context(), trig)
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return runErr
}
