package cli

import (
	"github.com/spf13/cobra"

	"voiceagent/internal/output"
)

func NewDevicesCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio capture devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(deps.Stdout)

			devices, err := deps.ListDevices()
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				formatter.Info("No capture devices found")
				return nil
			}

			formatter.DeviceListHeader()
			for _, device := range devices {
				formatter.DeviceListItem(device)
			}
			return nil
		},
	}
}
