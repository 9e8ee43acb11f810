// Package native drives the host's real Bluetooth LE radio.
//
// Scanning is done with tinygo.org/x/bluetooth, which wraps BlueZ on Linux,
// CoreBluetooth on macOS and WinRT on Windows. On Linux, adapters are
// enumerated from BlueZ's object tree over the system D-Bus. tinygo only
// hands out a scanning handle for hci0, so that is the one adapter the Host
// reports there; other platforms expose the single system adapter.
//
// tinygo's Scan blocks and delivers advertisements through a callback. The
// Adapter here runs it on its own goroutine and turns each advertisement
// into a radio.Event on a buffered channel, while keeping a peripheral table
// that backs Peripheral and Peripherals. A new identity, or a known identity
// advertising a new name, produces EventDeviceDiscovered; anything else is
// EventDeviceUpdated.
//
// # Permissions
//
// On Linux the user must be allowed to talk to org.bluez (usually membership
// of the "bluetooth" group). On macOS the terminal needs Bluetooth access in
// System Settings.
package native
