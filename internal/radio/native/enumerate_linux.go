//go:build linux

package native

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"
	"tinygo.org/x/bluetooth"

	"github.com/muurk/blescan/internal/radio"
)

const (
	bluezService      = "org.bluez"
	bluezAdapterIface = "org.bluez.Adapter1"
	getManagedObjects = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"
)

type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// enumerate lists BlueZ adapters from the system bus object tree
func enumerate(ctx context.Context) ([]radio.AdapterInfo, error) {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}
	defer conn.Close()

	var objects managedObjects
	call := conn.Object(bluezService, dbus.ObjectPath("/")).CallWithContext(ctx, getManagedObjects, 0)
	if err := call.Store(&objects); err != nil {
		return nil, fmt.Errorf("failed to query BlueZ objects: %w", err)
	}

	return adaptersFromObjects(objects), nil
}

// adaptersFromObjects extracts adapters sorted by controller index (hci0, hci1, ..., hci10)
func adaptersFromObjects(objects managedObjects) []radio.AdapterInfo {
	var infos []radio.AdapterInfo
	for objPath, ifaces := range objects {
		props, ok := ifaces[bluezAdapterIface]
		if !ok {
			continue
		}

		info := radio.AdapterInfo{ID: path.Base(string(objPath))}
		if v, ok := props["Alias"]; ok {
			info.Name, _ = v.Value().(string)
		}
		if info.Name == "" {
			if v, ok := props["Name"]; ok {
				info.Name, _ = v.Value().(string)
			}
		}
		if v, ok := props["Address"]; ok {
			info.Address, _ = v.Value().(string)
		}
		if v, ok := props["Powered"]; ok {
			info.Powered, _ = v.Value().(bool)
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		ni, iok := controllerIndex(infos[i].ID)
		nj, jok := controllerIndex(infos[j].ID)
		if iok && jok && ni != nj {
			return ni < nj
		}
		return infos[i].ID < infos[j].ID
	})
	return infos
}

func controllerIndex(id string) (int, bool) {
	digits := strings.TrimLeft(id, "abcdefghijklmnopqrstuvwxyz")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// defaultControllerID is the controller tinygo's DefaultAdapter drives on Linux
const defaultControllerID = "hci0"

// platformAdapter returns the tinygo handle for controller id. tinygo only
// exposes a handle for hci0, so other controllers cannot be scanned.
func platformAdapter(id string) (*bluetooth.Adapter, bool) {
	if id != defaultControllerID {
		return nil, false
	}
	return bluetooth.DefaultAdapter, true
}
