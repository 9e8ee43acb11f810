package native

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"

	"github.com/muurk/blescan/internal/logging"
	"github.com/muurk/blescan/internal/radio"
)

var (
	// ErrNotScanning is returned by Events when no scan is running
	ErrNotScanning = errors.New("native: scan not started")
	// ErrAlreadyScanning is returned by StartScan while a scan is running
	ErrAlreadyScanning = errors.New("native: already scanning")
	// ErrAlreadySubscribed is returned by a second Events call during one scan
	ErrAlreadySubscribed = errors.New("native: event stream already subscribed")
)

// Adapter is a radio.Adapter over a tinygo bluetooth adapter
type Adapter struct {
	info radio.AdapterInfo
	bt   *bluetooth.Adapter
	opts Options

	enableOnce sync.Once
	enableErr  error

	mu          sync.Mutex
	scanning    bool
	subscribed  bool
	subscriber  chan radio.Event
	scanDone    chan struct{}
	services    []uuid.UUID
	btServices  []bluetooth.UUID
	peripherals map[radio.PeripheralID]radio.Properties
	order       []radio.PeripheralID

	// undelivered holds identities whose discovery event was dropped on a
	// full buffer; their next advertisement is reported as a discovery.
	undelivered map[radio.PeripheralID]bool
}

func newAdapter(info radio.AdapterInfo, bt *bluetooth.Adapter, opts Options) *Adapter {
	return &Adapter{
		info:        info,
		bt:          bt,
		opts:        opts.withDefaults(),
		peripherals: make(map[radio.PeripheralID]radio.Properties),
	}
}

// ID implements radio.Adapter
func (a *Adapter) ID() string {
	return a.info.ID
}

// Info implements radio.Describer
func (a *Adapter) Info() radio.AdapterInfo {
	return a.info
}

func (a *Adapter) enable() error {
	a.enableOnce.Do(func() {
		a.enableErr = a.bt.Enable()
	})
	return a.enableErr
}

// StartScan implements radio.Adapter. tinygo's Scan blocks until StopScan,
// so it runs on its own goroutine; a failure within the start grace period
// is reported as a start failure.
func (a *Adapter) StartScan(ctx context.Context, filter radio.Filter) error {
	if err := a.enable(); err != nil {
		return fmt.Errorf("failed to enable adapter: %w", err)
	}

	btServices := make([]bluetooth.UUID, 0, len(filter.Services))
	for _, s := range filter.Services {
		u, err := bluetooth.ParseUUID(s.String())
		if err != nil {
			return fmt.Errorf("invalid service filter %s: %w", s, err)
		}
		btServices = append(btServices, u)
	}

	a.mu.Lock()
	if a.scanning {
		a.mu.Unlock()
		return ErrAlreadyScanning
	}
	a.beginLocked(filter.Services, btServices)
	a.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		err := a.bt.Scan(a.onScanResult)
		a.finish(err)
		errCh <- err
	}()

	grace := time.NewTimer(a.opts.StartGrace)
	defer grace.Stop()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		// Scan ended cleanly at once; the closed stream reports exhaustion.
		return nil
	case <-grace.C:
		return nil
	case <-ctx.Done():
		_ = a.bt.StopScan()
		return ctx.Err()
	}
}

// beginLocked resets per-scan state. Caller holds a.mu.
func (a *Adapter) beginLocked(services []uuid.UUID, btServices []bluetooth.UUID) {
	a.scanning = true
	a.subscribed = false
	a.subscriber = make(chan radio.Event, a.opts.EventBuffer)
	a.scanDone = make(chan struct{})
	a.services = services
	a.btServices = btServices
	a.peripherals = make(map[radio.PeripheralID]radio.Properties)
	a.order = nil
	a.undelivered = make(map[radio.PeripheralID]bool)
}

// finish runs when the scan goroutine returns. A scan error is always
// delivered ahead of the close, waiting up to stopWait for buffer space.
func (a *Adapter) finish(scanErr error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if sub := a.subscriber; sub != nil {
		a.subscriber = nil
		if scanErr != nil {
			go deliverTerminal(sub, radio.Event{Kind: radio.EventStreamError, Err: scanErr})
		} else {
			close(sub)
		}
	}
	if a.scanDone != nil {
		close(a.scanDone)
		a.scanDone = nil
	}
	a.scanning = false
}

// deliverTerminal sends ev as the last event on sub and closes it. If no one
// drains the buffer within stopWait the stream is closed without it.
func deliverTerminal(sub chan radio.Event, ev radio.Event) {
	defer close(sub)

	select {
	case sub <- ev:
		return
	default:
	}

	wait := time.NewTimer(stopWait)
	defer wait.Stop()
	select {
	case sub <- ev:
	case <-wait.C:
		logging.Warn("Dropped scan error, event stream not drained", zap.Error(ev.Err))
	}
}

// StopScan implements radio.Adapter
func (a *Adapter) StopScan(ctx context.Context) error {
	a.mu.Lock()
	done := a.scanDone
	a.mu.Unlock()

	if err := a.bt.StopScan(); err != nil {
		return err
	}
	if done == nil {
		return nil
	}

	wait := time.NewTimer(stopWait)
	defer wait.Stop()
	select {
	case <-done:
	case <-wait.C:
		logging.Warn("Scan goroutine did not exit after StopScan", zap.String("adapter", a.info.ID))
	case <-ctx.Done():
	}
	return nil
}

// Events implements radio.Adapter. Only one subscriber is supported per scan.
func (a *Adapter) Events(ctx context.Context) (<-chan radio.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.scanning || a.subscriber == nil {
		return nil, ErrNotScanning
	}
	if a.subscribed {
		return nil, ErrAlreadySubscribed
	}
	a.subscribed = true
	return a.subscriber, nil
}

// Peripheral implements radio.Adapter
func (a *Adapter) Peripheral(ctx context.Context, id radio.PeripheralID) (radio.Properties, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.peripherals[id]
	return p, ok, nil
}

// Peripherals implements radio.Adapter
func (a *Adapter) Peripherals(ctx context.Context) ([]radio.PeripheralID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]radio.PeripheralID, len(a.order))
	copy(ids, a.order)
	return ids, nil
}

func (a *Adapter) onScanResult(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
	a.mu.Lock()
	btServices := a.btServices
	services := a.services
	a.mu.Unlock()

	var matched []uuid.UUID
	for i, s := range btServices {
		if result.HasServiceUUID(s) {
			matched = append(matched, services[i])
		}
	}
	if len(btServices) > 0 && len(matched) == 0 {
		return
	}

	a.observe(result.Address.String(), result.LocalName(), result.RSSI, matched)
}

// observe records one advertisement and notifies the subscriber
func (a *Adapter) observe(address, name string, rssi int16, services []uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.scanning {
		return
	}

	id := radio.PeripheralID(address)
	prev, seen := a.peripherals[id]

	kind := radio.EventDeviceUpdated
	switch {
	case !seen:
		kind = radio.EventDeviceDiscovered
		a.order = append(a.order, id)
	case name != "" && name != prev.LocalName, a.undelivered[id]:
		kind = radio.EventDeviceDiscovered
	}

	props := radio.Properties{
		Address:   address,
		LocalName: name,
		RSSI:      rssi,
		Services:  services,
	}
	if props.LocalName == "" {
		props.LocalName = prev.LocalName
	}
	if len(props.Services) == 0 {
		props.Services = prev.Services
	}
	a.peripherals[id] = props

	if a.subscriber == nil {
		return
	}
	// Events before subscription wait in the buffer.
	select {
	case a.subscriber <- radio.Event{Kind: kind, ID: id}:
		if kind == radio.EventDeviceDiscovered {
			delete(a.undelivered, id)
		}
	default:
		if kind == radio.EventDeviceDiscovered {
			a.undelivered[id] = true
		}
		if !a.subscribed {
			return
		}
		logging.Debug("Dropped discovery event, subscriber buffer full",
			zap.String("adapter", a.info.ID),
			zap.String("address", address),
			zap.String("kind", kind.String()),
		)
	}
}
