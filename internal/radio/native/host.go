package native

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/blescan/internal/logging"
	"github.com/muurk/blescan/internal/radio"
)

const (
	// DefaultEventBuffer is the subscriber channel capacity
	DefaultEventBuffer = 64

	// DefaultStartGrace is how long StartScan waits for tinygo's Scan to
	// fail synchronously before treating the scan as started
	DefaultStartGrace = 250 * time.Millisecond

	// stopWait bounds how long StopScan waits for the scan goroutine to exit
	stopWait = 2 * time.Second
)

// Options tunes native adapters
type Options struct {
	EventBuffer int
	StartGrace  time.Duration
}

func (o Options) withDefaults() Options {
	if o.EventBuffer <= 0 {
		o.EventBuffer = DefaultEventBuffer
	}
	if o.StartGrace <= 0 {
		o.StartGrace = DefaultStartGrace
	}
	return o
}

// Host is the radio.Host backed by the operating system's Bluetooth stack
type Host struct {
	opts Options
}

// NewHost creates a native host
func NewHost(opts Options) *Host {
	return &Host{opts: opts.withDefaults()}
}

// Adapters implements radio.Host. Order is the platform's enumeration order;
// controllers without a scanning handle are left out.
func (h *Host) Adapters(ctx context.Context) ([]radio.Adapter, error) {
	infos, err := enumerate(ctx)
	if err != nil {
		return nil, err
	}
	return h.bind(infos), nil
}

func (h *Host) bind(infos []radio.AdapterInfo) []radio.Adapter {
	adapters := make([]radio.Adapter, 0, len(infos))
	for _, info := range infos {
		bt, ok := platformAdapter(info.ID)
		if !ok {
			logging.Debug("Skipping adapter without scan support", zap.String("adapter", info.ID))
			continue
		}
		adapters = append(adapters, newAdapter(info, bt, h.opts))
	}
	return adapters
}
