package sim

import (
	"time"

	"github.com/google/uuid"
)

var (
	heartRateService = uuid.MustParse("0000180d-0000-1000-8000-00805f9b34fb")
	batteryService   = uuid.MustParse("0000180f-0000-1000-8000-00805f9b34fb")
	xiaomiService    = uuid.MustParse("0000fee0-0000-1000-8000-00805f9b34fb")
)

// DemoScript is a small neighbourhood of peripherals used by --simulate
func DemoScript() Script {
	return Script{
		Steps: []Step{
			Discover(300*time.Millisecond, "C8:3F:26:11:0A:01", "Pixel 8"),
			Discover(400*time.Millisecond, "F4:12:FA:9B:33:20", ""),
			Discover(600*time.Millisecond, "D0:03:4B:5E:77:E1", "Polar H10 8A1C", heartRateService, batteryService),
			Update(200*time.Millisecond, "C8:3F:26:11:0A:01"),
			Discover(900*time.Millisecond, "5C:F3:70:A2:10:9B", "LE-Bose QC45", batteryService),
			Discover(700*time.Millisecond, "F4:12:FA:9B:33:20", "Desk 4A21"),
			Ghost(500*time.Millisecond, "00:00:00:00:00:00"),
			Discover(1200*time.Millisecond, "E2:7B:C0:44:19:5D", "Mi Band 7", xiaomiService, heartRateService),
		},
	}
}

// DemoHost returns a host with a single adapter "sim0" replaying DemoScript
func DemoHost() *Host {
	return NewHost(NewAdapter("sim0", DemoScript()))
}
