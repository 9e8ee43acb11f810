//go:build !linux

package native

import (
	"context"

	"tinygo.org/x/bluetooth"

	"github.com/muurk/blescan/internal/radio"
)

// enumerate reports the single system adapter; CoreBluetooth and WinRT do
// not expose controller selection
func enumerate(ctx context.Context) ([]radio.AdapterInfo, error) {
	return []radio.AdapterInfo{{ID: defaultControllerID, Name: "System Bluetooth", Powered: true}}, nil
}

const defaultControllerID = "default"

func platformAdapter(id string) (*bluetooth.Adapter, bool) {
	if id != defaultControllerID {
		return nil, false
	}
	return bluetooth.DefaultAdapter, true
}
