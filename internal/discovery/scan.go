package discovery

import (
	"context"
	"time"

	"github.com/muurk/blescan/internal/radio"
)

// Scanner runs scan sessions against the first adapter of a host
type Scanner struct {
	Host    radio.Host
	Options SessionOptions
}

// NewScanner creates a scanner with default settings (10s, event mode)
func NewScanner(host radio.Host) *Scanner {
	return &Scanner{
		Host: host,
		Options: SessionOptions{
			Duration: DefaultScanDuration,
			Mode:     ModeEvent,
		},
	}
}

// ScanForDevices selects an adapter and runs one session on it
func (s *Scanner) ScanForDevices(ctx context.Context) ([]Device, error) {
	adapter, err := SelectAdapter(ctx, s.Host)
	if err != nil {
		return nil, err
	}
	return NewSession(adapter, s.Options).Run(ctx)
}

// ScanForDevices is the command surface: scan for durationSeconds
// (0 or less means the 10 second default) and return name/address pairs
func ScanForDevices(ctx context.Context, host radio.Host, durationSeconds int) ([]Device, error) {
	scanner := NewScanner(host)
	if durationSeconds > 0 {
		scanner.Options.Duration = time.Duration(durationSeconds) * time.Second
	}
	return scanner.ScanForDevices(ctx)
}
