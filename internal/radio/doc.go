// Package radio defines the host radio capability set that the scan core
// drives, independent of any particular Bluetooth stack.
//
// A substrate is valid if it exposes six operations:
//
//  1. Adapter enumeration (Host.Adapters)
//  2. Start scan with a filter (Adapter.StartScan)
//  3. Stop scan (Adapter.StopScan)
//  4. Discovery event subscription (Adapter.Events)
//  5. Per-identity property resolution (Adapter.Peripheral)
//  6. Whole-adapter peripheral snapshot (Adapter.Peripherals)
//
// Two substrates ship with blescan: package native (tinygo bluetooth, with
// BlueZ enumeration over D-Bus on Linux) and package sim (a scripted
// in-process radio used by tests and the --simulate flag).
//
// # Errors
//
// Every failure the scan core can surface is a *ScanError carrying an
// ErrorKind. Use IsKind to branch on the category without string matching:
//
//	if radio.IsKind(err, radio.ErrKindNoAdapterFound) {
//	    fmt.Println("plug in a Bluetooth dongle")
//	}
package radio
