package native

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/muurk/blescan/internal/radio"
)

// newTestAdapter returns an adapter in scanning state without touching hardware
func newTestAdapter(buffer int) *Adapter {
	a := newAdapter(radio.AdapterInfo{ID: "hci9"}, nil, Options{EventBuffer: buffer})
	a.mu.Lock()
	a.beginLocked(nil, nil)
	a.mu.Unlock()
	return a
}

func TestAdapter_ObserveEventKinds(t *testing.T) {
	a := newTestAdapter(16)
	events, err := a.Events(context.Background())
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}

	a.observe("AA:BB:CC:DD:EE:01", "", -70, nil)      // new identity
	a.observe("AA:BB:CC:DD:EE:01", "", -68, nil)      // rssi only
	a.observe("AA:BB:CC:DD:EE:01", "Phone", -65, nil) // name learned
	a.observe("AA:BB:CC:DD:EE:01", "Phone", -60, nil) // same name
	a.observe("AA:BB:CC:DD:EE:02", "Watch", -80, nil) // second identity

	expected := []radio.EventKind{
		radio.EventDeviceDiscovered,
		radio.EventDeviceUpdated,
		radio.EventDeviceDiscovered,
		radio.EventDeviceUpdated,
		radio.EventDeviceDiscovered,
	}
	for i, want := range expected {
		ev := <-events
		if ev.Kind != want {
			t.Errorf("event[%d].Kind = %v, want %v", i, ev.Kind, want)
		}
	}
}

func TestAdapter_ObserveKeepsKnownName(t *testing.T) {
	a := newTestAdapter(16)
	ctx := context.Background()

	a.observe("AA:BB:CC:DD:EE:01", "Phone", -70, nil)
	a.observe("AA:BB:CC:DD:EE:01", "", -50, nil)

	props, ok, err := a.Peripheral(ctx, "AA:BB:CC:DD:EE:01")
	if err != nil || !ok {
		t.Fatalf("Peripheral() = %v, %v, %v", props, ok, err)
	}
	if props.LocalName != "Phone" {
		t.Errorf("LocalName = %q, want %q", props.LocalName, "Phone")
	}
	if props.RSSI != -50 {
		t.Errorf("RSSI = %d, want -50", props.RSSI)
	}
}

func TestAdapter_PeripheralsInsertionOrder(t *testing.T) {
	a := newTestAdapter(16)

	a.observe("03", "", 0, nil)
	a.observe("01", "", 0, nil)
	a.observe("03", "x", 0, nil)
	a.observe("02", "", 0, nil)

	ids, err := a.Peripherals(context.Background())
	if err != nil {
		t.Fatalf("Peripherals() error = %v", err)
	}
	expected := []radio.PeripheralID{"03", "01", "02"}
	if len(ids) != len(expected) {
		t.Fatalf("Peripherals() = %v, want %v", ids, expected)
	}
	for i := range expected {
		if ids[i] != expected[i] {
			t.Errorf("Peripherals()[%d] = %v, want %v", i, ids[i], expected[i])
		}
	}
}

func TestAdapter_FullBufferDoesNotBlock(t *testing.T) {
	a := newTestAdapter(1)

	for i := 0; i < 10; i++ {
		a.observe(uuid.NewString(), "", 0, nil)
	}

	ids, _ := a.Peripherals(context.Background())
	if len(ids) != 10 {
		t.Errorf("Peripherals() has %d entries, want 10", len(ids))
	}
}

func TestAdapter_RedeliversDroppedDiscovery(t *testing.T) {
	a := newTestAdapter(1)

	// Buffer holds AA; BB's discovery is dropped before anyone subscribes.
	a.observe("AA", "Phone", -60, nil)
	a.observe("BB", "", -70, nil)

	events, err := a.Events(context.Background())
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	if ev := <-events; ev.ID != "AA" || ev.Kind != radio.EventDeviceDiscovered {
		t.Fatalf("first event = %+v, want AA discovered", ev)
	}

	a.observe("BB", "", -65, nil)
	if ev := <-events; ev.ID != "BB" || ev.Kind != radio.EventDeviceDiscovered {
		t.Errorf("re-advertisement event = %+v, want BB discovered", ev)
	}

	a.observe("BB", "", -64, nil)
	if ev := <-events; ev.ID != "BB" || ev.Kind != radio.EventDeviceUpdated {
		t.Errorf("later event = %+v, want BB updated", ev)
	}
}

func TestAdapter_FinishDeliversErrorOnFullBuffer(t *testing.T) {
	a := newTestAdapter(1)
	events, _ := a.Events(context.Background())
	boom := errors.New("bluez went away")

	a.observe("AA", "", 0, nil)
	a.finish(boom)

	var got []radio.Event
	timeout := time.After(time.Second)
	for done := false; !done; {
		select {
		case ev, ok := <-events:
			if !ok {
				done = true
				break
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatal("stream not closed after finish")
		}
	}

	if len(got) != 2 {
		t.Fatalf("received %d events, want 2: %+v", len(got), got)
	}
	if got[0].ID != "AA" {
		t.Errorf("event[0] = %+v, want AA", got[0])
	}
	if got[1].Kind != radio.EventStreamError || !errors.Is(got[1].Err, boom) {
		t.Errorf("event[1] = %+v, want stream error %v", got[1], boom)
	}
}

func TestAdapter_SingleSubscriber(t *testing.T) {
	a := newTestAdapter(4)
	ctx := context.Background()

	if _, err := a.Events(ctx); err != nil {
		t.Fatalf("first Events() error = %v", err)
	}
	if _, err := a.Events(ctx); err != ErrAlreadySubscribed {
		t.Errorf("second Events() error = %v, want %v", err, ErrAlreadySubscribed)
	}
}

func TestAdapter_FinishClosesStream(t *testing.T) {
	a := newTestAdapter(4)
	events, _ := a.Events(context.Background())

	a.finish(nil)

	if _, ok := <-events; ok {
		t.Error("expected closed stream after finish")
	}
	if _, err := a.Events(context.Background()); err != ErrNotScanning {
		t.Errorf("Events() after finish error = %v, want %v", err, ErrNotScanning)
	}
}

func TestAdapter_EventsBeforeStart(t *testing.T) {
	a := newAdapter(radio.AdapterInfo{ID: "hci9"}, nil, Options{})
	if _, err := a.Events(context.Background()); err != ErrNotScanning {
		t.Errorf("Events() error = %v, want %v", err, ErrNotScanning)
	}
}

func TestOptions_withDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	if o.EventBuffer != DefaultEventBuffer {
		t.Errorf("EventBuffer = %d, want %d", o.EventBuffer, DefaultEventBuffer)
	}
	if o.StartGrace != DefaultStartGrace {
		t.Errorf("StartGrace = %v, want %v", o.StartGrace, DefaultStartGrace)
	}
}
