package audio

import (
	"log/slog"

	"github.com/gen2brain/malgo"
)

// Device describes an audio capture endpoint.
type Device struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"isDefault"`
}

// ListCaptureDevices enumerates the capture devices visible to miniaudio.
func ListCaptureDevices(logger *slog.Logger) ([]Device, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	mctx, err := initContext(logger)
	if err != nil {
		return nil, err
	}
	defer freeContext(mctx, logger)

	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, classifyDeviceErr("list capture devices", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, Device{
			ID:        info.ID.String(),
			Name:      info.Name(),
			IsDefault: info.IsDefault != 0,
		})
	}
	return devices, nil
}
