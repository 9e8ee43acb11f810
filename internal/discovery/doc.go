// Package discovery runs time-bounded Bluetooth LE scan sessions and returns
// a deduplicated list of discovered devices.
//
// # Components
//
//   - SelectAdapter: enumerates the host's adapters and picks the first one
//   - Registry: session-scoped devices keyed by address, in first-seen order
//   - Session: the scan lifecycle (start, consume or poll, stop)
//   - Export: turns a registry into the ordered list handed to callers
//
// # Session Lifecycle
//
//	Idle → Starting → Scanning → Stopping → Completed
//	          │           │          │
//	          └───────────┴──────────┴──→ Failed
//
// Stopping is entered on every path out of Scanning, including errors and
// cancellation, and the radio's StopScan is called exactly once there. If
// the scan never started, the session goes straight from Starting to Failed.
//
// # Acquisition Modes
//
// ModeEvent (the default) subscribes to the adapter's discovery stream right
// after starting the scan and, for each EventDeviceDiscovered, resolves the
// peripheral's properties and upserts them. It ends at the time bound or
// when the stream closes, whichever is first. Other event kinds are ignored.
//
// ModePoll waits out the full bound and then snapshots the adapter's known
// peripherals once. It only reflects what the adapter still remembers at
// that moment.
//
// # Usage Example
//
//	devices, err := discovery.ScanForDevices(ctx, native.NewHost(native.Options{}), 10)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range devices {
//	    fmt.Printf("%s  %s\n", d.Address, d.Name)
//	}
//
// # Errors
//
// Failures are *radio.ScanError values. A peripheral whose properties are
// missing or fail to resolve is skipped (unless StrictProperties is set);
// every other failure aborts the session. Callers get either the complete
// list or one error, never both.
package discovery
