package radio

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PeripheralID is the substrate's handle for a discovered peripheral. It is
// only meaningful to the adapter that produced it.
type PeripheralID string

// Filter restricts which advertisements a scan reports.
type Filter struct {
	// Services lists service UUIDs of interest. A peripheral matches if it
	// advertises any of them. Empty means no filtering.
	Services []uuid.UUID
}

// IsEmpty reports whether the filter accepts every peripheral
func (f Filter) IsEmpty() bool {
	return len(f.Services) == 0
}

// Matches reports whether a peripheral advertising the given services passes the filter
func (f Filter) Matches(advertised []uuid.UUID) bool {
	if f.IsEmpty() {
		return true
	}
	for _, want := range f.Services {
		for _, got := range advertised {
			if want == got {
				return true
			}
		}
	}
	return false
}

// baseUUIDSuffix completes a 16-bit SIG-assigned UUID to 128 bits
const baseUUIDSuffix = "-0000-1000-8000-00805f9b34fb"

// ParseServiceUUID parses a full UUID or a 4-digit SIG short form such as "180d"
func ParseServiceUUID(s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if len(s) == 4 {
		s = "0000" + s + baseUUIDSuffix
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid service UUID %q: %w", s, err)
	}
	return id, nil
}

// ParseFilter builds a Filter from textual service UUIDs
func ParseFilter(services []string) (Filter, error) {
	var f Filter
	for _, s := range services {
		id, err := ParseServiceUUID(s)
		if err != nil {
			return Filter{}, err
		}
		f.Services = append(f.Services, id)
	}
	return f, nil
}

// EventKind identifies the type of a discovery event
type EventKind int

const (
	// EventDeviceDiscovered means an identity was observed and its
	// properties are worth resolving.
	EventDeviceDiscovered EventKind = iota
	// EventDeviceUpdated means a known identity advertised again with no
	// new identifying information (e.g. RSSI only).
	EventDeviceUpdated
	// EventStreamError means the producer hit an error. Err is set.
	EventStreamError
)

// String returns the event kind name used in logs
func (k EventKind) String() string {
	switch k {
	case EventDeviceDiscovered:
		return "device_discovered"
	case EventDeviceUpdated:
		return "device_updated"
	case EventStreamError:
		return "stream_error"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Event is one asynchronous notification from an active scan
type Event struct {
	Kind EventKind
	ID   PeripheralID
	Err  error
}

// Properties is the resolved, best-known state of a peripheral
type Properties struct {
	// Address is the textual hardware address, the identity key.
	Address string

	// LocalName is the advertised name. Empty means the radio has not
	// supplied one.
	LocalName string

	RSSI     int16
	Services []uuid.UUID
}

// Host enumerates the radio adapters available on this machine
type Host interface {
	Adapters(ctx context.Context) ([]Adapter, error)
}

// Adapter is a handle to one radio interface capable of scanning.
//
// An Adapter is owned by at most one scan session at a time; implementations
// are not required to support interleaved sessions.
type Adapter interface {
	// ID returns a stable, human-readable identifier (e.g. "hci0").
	ID() string

	// StartScan begins discovery with the given filter.
	StartScan(ctx context.Context, filter Filter) error

	// StopScan ends discovery. It is called exactly once per successful StartScan.
	StopScan(ctx context.Context) error

	// Events subscribes to discovery events. The channel is closed when the
	// producer is exhausted.
	Events(ctx context.Context) (<-chan Event, error)

	// Peripheral resolves the current properties of an identity. The bool
	// is false when the adapter has no property set for it.
	Peripheral(ctx context.Context, id PeripheralID) (Properties, bool, error)

	// Peripherals returns every identity currently known to the adapter.
	Peripherals(ctx context.Context) ([]PeripheralID, error)
}

// AdapterInfo describes an adapter for listings
type AdapterInfo struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
	Powered bool   `json:"powered" yaml:"powered"`
}

// Describer is implemented by adapters that can report descriptive metadata
type Describer interface {
	Info() AdapterInfo
}

// Describe returns the adapter's info, falling back to its ID alone
func Describe(a Adapter) AdapterInfo {
	if d, ok := a.(Describer); ok {
		return d.Info()
	}
	return AdapterInfo{ID: a.ID()}
}
