package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muurk/blescan/internal/logging"
	"github.com/muurk/blescan/internal/radio"
)

const (
	// DefaultScanDuration is the default wall-clock bound for a session
	DefaultScanDuration = 10 * time.Second

	// DefaultStopTimeout bounds the stop-scan call, which runs even after
	// the caller's context is cancelled
	DefaultStopTimeout = 5 * time.Second
)

// ErrSessionReused is returned when Run is called on a session that already ran
var ErrSessionReused = errors.New("scan session already run")

// Mode selects how a session acquires discovery input
type Mode int

const (
	// ModeEvent consumes the adapter's discovery event stream until the
	// time bound or stream exhaustion
	ModeEvent Mode = iota
	// ModePoll waits out the time bound and takes one peripheral snapshot
	ModePoll
)

// String returns the mode name used in flags and config
func (m Mode) String() string {
	switch m {
	case ModeEvent:
		return "event"
	case ModePoll:
		return "poll"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses "event" or "poll" (case-insensitive). Empty means event.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "event", "events":
		return ModeEvent, nil
	case "poll":
		return ModePoll, nil
	default:
		return ModeEvent, fmt.Errorf("unknown scan mode %q (expected event or poll)", s)
	}
}

// State is a session lifecycle state
type State int

const (
	StateIdle State = iota
	StateStarting
	StateScanning
	StateStopping
	StateCompleted
	StateFailed
)

// String returns the state name used in logs
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateScanning:
		return "scanning"
	case StateStopping:
		return "stopping"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transitions can happen
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// SessionOptions configures one scan session
type SessionOptions struct {
	// Duration is the wall-clock bound measured from scan start.
	// Zero means DefaultScanDuration.
	Duration time.Duration

	Mode   Mode
	Filter radio.Filter

	// StrictProperties aborts the session when a peripheral's properties
	// cannot be resolved. By default the peripheral is skipped.
	StrictProperties bool

	// StopTimeout bounds the stop-scan call. Zero means DefaultStopTimeout.
	StopTimeout time.Duration

	// OnObservation is called with the stored device after every upsert.
	// It runs on the session goroutine and must not block.
	OnObservation func(Device)

	// OnStateChange is called on every lifecycle transition.
	OnStateChange func(from, to State)
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.Duration <= 0 {
		o.Duration = DefaultScanDuration
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = DefaultStopTimeout
	}
	return o
}

// Session is one bounded start-scan/observe/stop-scan lifecycle on an adapter.
//
// The session exclusively owns its adapter and registry while Run executes.
// Running two sessions on the same adapter concurrently is a caller error.
type Session struct {
	id       string
	adapter  radio.Adapter
	opts     SessionOptions
	registry *Registry

	mu        sync.Mutex
	state     State
	startedAt time.Time
}

// NewSession creates an idle session on adapter
func NewSession(adapter radio.Adapter, opts SessionOptions) *Session {
	return &Session{
		id:       uuid.NewString(),
		adapter:  adapter,
		opts:     opts.withDefaults(),
		registry: NewRegistry(),
		state:    StateIdle,
	}
}

// ID returns the session's correlation ID used in logs
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StartedAt returns when the scan successfully started (zero if it never did)
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// Run executes the session and returns the discovered devices in
// first-discovery order. On any error no devices are returned.
//
// Once the scan has started, StopScan is called exactly once on every exit
// path, including cancellation of ctx.
func (s *Session) Run(ctx context.Context) (devices []Device, err error) {
	if !s.claim() {
		return nil, ErrSessionReused
	}

	logging.Info("Scan session starting",
		zap.String("session", s.id),
		zap.String("adapter", s.adapter.ID()),
		zap.String("mode", s.opts.Mode.String()),
		zap.Duration("duration", s.opts.Duration),
	)

	release, err := s.startScan(ctx)
	if err != nil {
		s.transition(StateFailed)
		logging.Error("Scan session failed", zap.String("session", s.id), zap.Error(err))
		return nil, err
	}

	defer func() {
		s.transition(StateStopping)
		if stopErr := release(); stopErr != nil {
			if err == nil {
				err = stopErr
			} else {
				logging.Warn("Stop scan failed after session error",
					zap.String("session", s.id),
					zap.Error(stopErr),
				)
			}
		}

		if err != nil {
			devices = nil
			s.transition(StateFailed)
			logging.Error("Scan session failed", zap.String("session", s.id), zap.Error(err))
			return
		}
		s.transition(StateCompleted)
		logging.Info("Scan session completed",
			zap.String("session", s.id),
			zap.Int("devices", len(devices)),
			zap.Duration("elapsed", time.Since(s.StartedAt())),
		)
	}()

	switch s.opts.Mode {
	case ModePoll:
		err = s.poll(ctx)
	default:
		err = s.consume(ctx)
	}
	if err != nil {
		return nil, err
	}
	return Export(s.registry), nil
}

// claim moves an idle session to Starting
func (s *Session) claim() bool {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()
	s.transition(StateStarting)
	return true
}

// startScan starts the radio scan and returns its release action. The
// release stops the scan once; later calls return the first result.
func (s *Session) startScan(ctx context.Context) (func() error, error) {
	if err := s.adapter.StartScan(ctx, s.opts.Filter); err != nil {
		if ctx.Err() != nil {
			return nil, radio.NewCancelledError(s.adapter.ID(), ctx.Err())
		}
		return nil, radio.NewStartError(s.adapter.ID(), err)
	}

	s.mu.Lock()
	s.startedAt = time.Now()
	s.mu.Unlock()
	s.transition(StateScanning)

	var (
		once    sync.Once
		stopErr error
	)
	release := func() error {
		once.Do(func() {
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.StopTimeout)
			defer cancel()
			if err := s.adapter.StopScan(stopCtx); err != nil {
				stopErr = radio.NewStopError(s.adapter.ID(), err)
			}
		})
		return stopErr
	}
	return release, nil
}

// remaining returns the time left before the duration bound
func (s *Session) remaining() time.Duration {
	left := s.opts.Duration - time.Since(s.StartedAt())
	if left < 0 {
		return 0
	}
	return left
}

// consume is the event-driven acquisition loop. It waits on the next event,
// the time bound and ctx at once, so an idle stream costs nothing.
func (s *Session) consume(ctx context.Context) error {
	events, err := s.adapter.Events(ctx)
	if err != nil {
		return radio.NewEventStreamError(s.adapter.ID(), err)
	}

	deadline := time.NewTimer(s.remaining())
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return radio.NewCancelledError(s.adapter.ID(), ctx.Err())

		case <-deadline.C:
			logging.Debug("Scan duration reached",
				zap.String("session", s.id),
				zap.Int("devices", s.registry.Len()),
			)
			return nil

		case ev, ok := <-events:
			if !ok {
				logging.Debug("Discovery event stream ended",
					zap.String("session", s.id),
					zap.Int("devices", s.registry.Len()),
				)
				return nil
			}

			switch ev.Kind {
			case radio.EventDeviceDiscovered:
				if err := s.resolve(ctx, ev.ID); err != nil {
					return err
				}
			case radio.EventStreamError:
				return radio.NewEventStreamError(s.adapter.ID(), ev.Err)
			}
		}
	}
}

// poll is the fallback acquisition: wait out the bound, then snapshot once
func (s *Session) poll(ctx context.Context) error {
	wait := time.NewTimer(s.remaining())
	defer wait.Stop()

	select {
	case <-ctx.Done():
		return radio.NewCancelledError(s.adapter.ID(), ctx.Err())
	case <-wait.C:
	}

	ids, err := s.adapter.Peripherals(ctx)
	if err != nil {
		return radio.NewSnapshotError(s.adapter.ID(), err)
	}
	for _, id := range ids {
		if err := s.resolve(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// resolve reads an identity's properties and upserts them. A missing
// property set is skipped; a resolution error is skipped unless strict.
func (s *Session) resolve(ctx context.Context, id radio.PeripheralID) error {
	props, ok, err := s.adapter.Peripheral(ctx, id)
	if err != nil {
		propErr := radio.NewPropertyError(s.adapter.ID(), id, err)
		if s.opts.StrictProperties {
			return propErr
		}
		logging.Warn("Skipping peripheral",
			zap.String("session", s.id),
			zap.String("peripheral", string(id)),
			zap.Error(err),
		)
		return nil
	}
	if !ok {
		logging.Debug("No properties for peripheral, skipping",
			zap.String("session", s.id),
			zap.String("peripheral", string(id)),
		)
		return nil
	}

	address := props.Address
	if address == "" {
		address = string(id)
	}

	device, known := s.registry.Upsert(Observation{Address: address, Name: props.LocalName})
	logging.LogObservation(s.id, device.Address, device.Name, known)
	if s.opts.OnObservation != nil {
		s.opts.OnObservation(device)
	}
	return nil
}

// transition moves to state to. A terminal state is never left.
func (s *Session) transition(to State) {
	s.mu.Lock()
	from := s.state
	if from.Terminal() {
		s.mu.Unlock()
		return
	}
	s.state = to
	s.mu.Unlock()

	logging.LogSessionState(s.id, s.adapter.ID(), from.String(), to.String())
	if s.opts.OnStateChange != nil {
		s.opts.OnStateChange(from, to)
	}
}
