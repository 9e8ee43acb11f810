package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/blescan/internal/discovery"
)

const refreshInterval = 250 * time.Millisecond

// Messages fed to ScanModel from the running session
type (
	// DeviceMsg is one observation (progress only)
	DeviceMsg discovery.Device

	// StateMsg is a session lifecycle transition
	StateMsg struct {
		From, To discovery.State
	}

	// DoneMsg carries the session's final outcome
	DoneMsg struct {
		Devices []discovery.Device
		Err     error
	}

	tickMsg time.Time
)

// ScanFunc runs one session with the given options. RunLive wires the
// options' hooks to the TUI before calling it.
type ScanFunc func(ctx context.Context, opts discovery.SessionOptions) ([]discovery.Device, error)

// ScanModel is the live scan view: spinner, time-bound progress bar,
// lifecycle steps and the devices seen so far
type ScanModel struct {
	Adapter  string
	Duration time.Duration
	Mode     discovery.Mode

	spinner spinner.Model
	bar     progress.Model

	state     discovery.State
	startedAt time.Time
	now       time.Time

	live  []discovery.Device
	index map[string]int

	result     []discovery.Device
	err        error
	done       bool
	cancelling bool
	cancel     context.CancelFunc

	width, height int
}

// NewScanModel creates the live view. cancel is called when the user quits
// before the session ends; the model then waits for DoneMsg.
func NewScanModel(adapter string, opts discovery.SessionOptions, cancel context.CancelFunc) ScanModel {
	width, height := GetTerminalSize()
	return ScanModel{
		Adapter:  adapter,
		Duration: opts.Duration,
		Mode:     opts.Mode,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(SpinnerStyle),
		),
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		index:  make(map[string]int),
		cancel: cancel,
		width:  width,
		height: height,
	}
}

// Init implements tea.Model
func (m ScanModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model
func (m ScanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if m.done {
				return m, tea.Quit
			}
			if !m.cancelling && m.cancel != nil {
				m.cancelling = true
				m.cancel()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = clampWidth(msg.Width)
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		m.now = time.Time(msg)
		if m.done {
			return m, nil
		}
		return m, tick()

	case StateMsg:
		m.state = msg.To
		if msg.To == discovery.StateScanning {
			m.startedAt = time.Now()
			m.now = m.startedAt
		}
		return m, nil

	case DeviceMsg:
		d := discovery.Device(msg)
		if i, ok := m.index[d.Address]; ok {
			m.live[i] = d
		} else {
			m.index[d.Address] = len(m.live)
			m.live = append(m.live, d)
		}
		return m, nil

	case DoneMsg:
		m.done = true
		m.result = msg.Devices
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

// Percent returns the elapsed share of the time bound
func (m ScanModel) Percent() float64 {
	if m.done && m.err == nil {
		return 1
	}
	if m.startedAt.IsZero() || m.Duration <= 0 {
		return 0
	}
	p := float64(m.now.Sub(m.startedAt)) / float64(m.Duration)
	return min(max(p, 0), 1)
}

// Seen returns the devices observed so far in first-seen order
func (m ScanModel) Seen() []discovery.Device {
	return m.live
}

// View implements tea.Model
func (m ScanModel) View() string {
	if m.done {
		return m.renderDone()
	}

	title := fmt.Sprintf("%s SCANNING  %s · %s · %s",
		m.spinner.View(), m.Adapter, m.Mode, m.Duration)
	if m.cancelling {
		title = fmt.Sprintf("%s STOPPING  %s", m.spinner.View(), m.Adapter)
	}

	elapsed := time.Duration(0)
	if !m.startedAt.IsZero() {
		elapsed = m.now.Sub(m.startedAt).Truncate(time.Second)
	}

	rows := lipgloss.JoinVertical(lipgloss.Left,
		"",
		HeaderTitleStyle.Render(title),
		"",
		"  "+m.bar.ViewAs(m.Percent()),
		"",
		"  "+m.renderSteps(),
		HeaderCommandStyle.Render(fmt.Sprintf("Elapsed %s · %d seen", elapsed, len(m.live))),
		"",
		RenderDeviceTable(m.visible(), m.width),
		"",
		HelpStyle.Render("q cancel"),
	)
	return rows + "\n"
}

// visible returns the most recent devices that fit the terminal
func (m ScanModel) visible() []discovery.Device {
	room := m.height - 14
	if room <= 0 || len(m.live) <= room {
		return m.live
	}
	return m.live[len(m.live)-room:]
}

// renderSteps renders the lifecycle as a step list
func (m ScanModel) renderSteps() string {
	steps := []discovery.State{discovery.StateStarting, discovery.StateScanning, discovery.StateStopping}
	parts := make([]string, 0, len(steps))
	for _, s := range steps {
		switch {
		case s == m.state:
			parts = append(parts, StepRunningStyle.Render(StepMarkerRunning+" "+s.String()))
		case s < m.state:
			parts = append(parts, StepCompleteStyle.Render(StepMarkerComplete+" "+s.String()))
		default:
			parts = append(parts, StepPendingStyle.Render(StepMarkerPending+" "+s.String()))
		}
	}
	return strings.Join(parts, "  ")
}

func (m ScanModel) renderDone() string {
	if m.err != nil {
		return RenderFailure("BLE scan", m.err, m.width) + "\n"
	}
	elapsed := m.now.Sub(m.startedAt)
	if m.startedAt.IsZero() || elapsed < 0 {
		elapsed = 0
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		"",
		RenderDeviceTable(m.result, m.width),
		"",
		RenderScanSummary(len(m.result), elapsed),
	) + "\n"
}

// RunLive runs scan under the live view and returns the session's own
// result. Quitting the view cancels the session, which still stops its scan.
func RunLive(ctx context.Context, adapter string, opts discovery.SessionOptions, scan ScanFunc) ([]discovery.Device, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewScanModel(adapter, opts, cancel))

	onObservation, onStateChange := opts.OnObservation, opts.OnStateChange
	opts.OnObservation = func(d discovery.Device) {
		if onObservation != nil {
			onObservation(d)
		}
		p.Send(DeviceMsg(d))
	}
	opts.OnStateChange = func(from, to discovery.State) {
		if onStateChange != nil {
			onStateChange(from, to)
		}
		p.Send(StateMsg{From: from, To: to})
	}

	type outcome struct {
		devices []discovery.Device
		err     error
	}
	results := make(chan outcome, 1)
	go func() {
		devices, err := scan(ctx, opts)
		results <- outcome{devices, err}
		p.Send(DoneMsg{Devices: devices, Err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-results
		return nil, fmt.Errorf("live view failed: %w", err)
	}

	res := <-results
	return res.devices, res.err
}
