// Package sim provides a scripted, in-process radio substrate.
//
// A sim Adapter replays a Script of timed steps once a scan starts, keeps a
// peripheral table like a real stack would, and counts every host call so
// tests can assert lifecycle guarantees (e.g. StopScan called exactly once).
// Failures are injected by setting the exported *Err fields before use.
package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/muurk/blescan/internal/radio"
)

var (
	// ErrNotScanning is returned by Events when no scan is active
	ErrNotScanning = errors.New("sim: scan not started")
	// ErrAlreadyScanning is returned by StartScan while a scan is active
	ErrAlreadyScanning = errors.New("sim: already scanning")
)

// Step is one scripted happening during a scan
type Step struct {
	// After is the delay since the previous step (or since StartScan).
	After time.Duration

	// Props, when set, is stored in the peripheral table before Event is emitted.
	Props *radio.Properties

	Event radio.Event
}

// Discover scripts a discovery of address with the given name ("" for none)
// advertising services
func Discover(after time.Duration, address, name string, services ...uuid.UUID) Step {
	return Step{
		After: after,
		Props: &radio.Properties{Address: address, LocalName: name, Services: services},
		Event: radio.Event{Kind: radio.EventDeviceDiscovered, ID: radio.PeripheralID(address)},
	}
}

// Update scripts a non-identifying re-advertisement of address
func Update(after time.Duration, address string) Step {
	return Step{
		After: after,
		Event: radio.Event{Kind: radio.EventDeviceUpdated, ID: radio.PeripheralID(address)},
	}
}

// Ghost scripts a discovery event for an identity with no property set
func Ghost(after time.Duration, id string) Step {
	return Step{
		After: after,
		Event: radio.Event{Kind: radio.EventDeviceDiscovered, ID: radio.PeripheralID(id)},
	}
}

// StreamError scripts a producer failure
func StreamError(after time.Duration, err error) Step {
	return Step{
		After: after,
		Event: radio.Event{Kind: radio.EventStreamError, Err: err},
	}
}

// Script is the sequence an Adapter replays per scan
type Script struct {
	Steps []Step

	// CloseAfter closes the event stream once the last step is emitted.
	// Otherwise the stream stays open until StopScan.
	CloseAfter bool
}

// Adapter is a scripted radio.Adapter
type Adapter struct {
	id     string
	script Script

	// Injected failures
	StartErr    error
	StopErr     error
	EventsErr   error
	SnapshotErr error
	PropertyErr map[radio.PeripheralID]error

	mu            sync.Mutex
	peripherals   map[radio.PeripheralID]radio.Properties
	order         []radio.PeripheralID
	events        chan radio.Event
	done          chan struct{}
	scanning      bool
	lastFilter    radio.Filter
	starts        int
	stops         int
	subscriptions int
	resolutions   int
}

// NewAdapter creates a sim adapter that replays script on every StartScan
func NewAdapter(id string, script Script) *Adapter {
	return &Adapter{
		id:          id,
		script:      script,
		peripherals: make(map[radio.PeripheralID]radio.Properties),
	}
}

// ID implements radio.Adapter
func (a *Adapter) ID() string {
	return a.id
}

// StartScan implements radio.Adapter
func (a *Adapter) StartScan(ctx context.Context, filter radio.Filter) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.starts++
	if a.StartErr != nil {
		return a.StartErr
	}
	if a.scanning {
		return ErrAlreadyScanning
	}

	a.scanning = true
	a.lastFilter = filter
	// Buffered so the player never blocks when nobody subscribes (poll mode)
	a.events = make(chan radio.Event, len(a.script.Steps)+1)
	a.done = make(chan struct{})

	go a.play(filter, a.events, a.done)
	return nil
}

// play emits the script. Steps for peripherals the filter rejects are
// dropped the way a radio stack would never report them.
func (a *Adapter) play(filter radio.Filter, events chan radio.Event, done chan struct{}) {
	defer close(events)

	for _, step := range a.script.Steps {
		if step.After > 0 {
			timer := time.NewTimer(step.After)
			select {
			case <-done:
				timer.Stop()
				return
			case <-timer.C:
			}
		} else {
			select {
			case <-done:
				return
			default:
			}
		}

		if !a.admit(filter, step) {
			continue
		}
		if step.Props != nil {
			a.store(*step.Props)
		}
		events <- step.Event
	}

	if a.script.CloseAfter {
		return
	}
	<-done
}

// admit reports whether step passes filter. Services already advertised by
// the peripheral count when a step carries none; a step with no properties
// for an unknown identity never matches.
func (a *Adapter) admit(filter radio.Filter, step Step) bool {
	if filter.IsEmpty() || step.Event.Kind == radio.EventStreamError {
		return true
	}

	a.mu.Lock()
	known, seen := a.peripherals[step.Event.ID]
	a.mu.Unlock()

	if step.Props == nil {
		return seen && filter.Matches(known.Services)
	}
	services := step.Props.Services
	if len(services) == 0 {
		services = known.Services
	}
	return filter.Matches(services)
}

func (a *Adapter) store(p radio.Properties) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := radio.PeripheralID(p.Address)
	prev, ok := a.peripherals[id]
	if !ok {
		a.order = append(a.order, id)
	}
	if len(p.Services) == 0 {
		p.Services = prev.Services
	}
	a.peripherals[id] = p
}

// StopScan implements radio.Adapter
func (a *Adapter) StopScan(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stops++
	if a.scanning {
		a.scanning = false
		close(a.done)
	}
	return a.StopErr
}

// Events implements radio.Adapter
func (a *Adapter) Events(ctx context.Context) (<-chan radio.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.subscriptions++
	if a.EventsErr != nil {
		return nil, a.EventsErr
	}
	if !a.scanning {
		return nil, ErrNotScanning
	}
	return a.events, nil
}

// Peripheral implements radio.Adapter
func (a *Adapter) Peripheral(ctx context.Context, id radio.PeripheralID) (radio.Properties, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.resolutions++
	if err, ok := a.PropertyErr[id]; ok {
		return radio.Properties{}, false, err
	}
	p, ok := a.peripherals[id]
	return p, ok, nil
}

// Peripherals implements radio.Adapter
func (a *Adapter) Peripherals(ctx context.Context) ([]radio.PeripheralID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.SnapshotErr != nil {
		return nil, a.SnapshotErr
	}
	ids := make([]radio.PeripheralID, len(a.order))
	copy(ids, a.order)
	return ids, nil
}

// Starts returns how many times StartScan was called
func (a *Adapter) Starts() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.starts
}

// Stops returns how many times StopScan was called
func (a *Adapter) Stops() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stops
}

// Subscriptions returns how many times Events was called
func (a *Adapter) Subscriptions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.subscriptions
}

// Resolutions returns how many times Peripheral was called
func (a *Adapter) Resolutions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resolutions
}

// Scanning reports whether a scan is active
func (a *Adapter) Scanning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scanning
}

// LastFilter returns the filter passed to the most recent StartScan
func (a *Adapter) LastFilter() radio.Filter {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastFilter
}

// Host is a radio.Host over a fixed set of sim adapters
type Host struct {
	adapters []*Adapter

	// EnumerateErr makes Adapters fail
	EnumerateErr error

	mu    sync.Mutex
	calls int
}

// NewHost creates a host exposing adapters in the given order
func NewHost(adapters ...*Adapter) *Host {
	return &Host{adapters: adapters}
}

// Adapters implements radio.Host
func (h *Host) Adapters(ctx context.Context) ([]radio.Adapter, error) {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()

	if h.EnumerateErr != nil {
		return nil, h.EnumerateErr
	}
	out := make([]radio.Adapter, 0, len(h.adapters))
	for _, a := range h.adapters {
		out = append(out, a)
	}
	return out, nil
}

// Calls returns how many times Adapters was called
func (h *Host) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

// Info implements radio.Describer
func (a *Adapter) Info() radio.AdapterInfo {
	return radio.AdapterInfo{
		ID:      a.id,
		Name:    "Simulated radio " + a.id,
		Powered: true,
	}
}
