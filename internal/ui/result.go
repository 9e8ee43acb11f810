package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/blescan/internal/discovery"
	"github.com/muurk/blescan/internal/radio"
)

// RenderDeviceTable renders devices as a two-column name/address table in
// the order given
func RenderDeviceTable(devices []discovery.Device, width int) string {
	if len(devices) == 0 {
		return WarningTitleStyle.Render("  " + WarningMarker + " No devices found")
	}

	nameWidth := lipgloss.Width("NAME")
	for _, d := range devices {
		nameWidth = max(nameWidth, lipgloss.Width(d.Name))
	}
	// Leave room for the address column (17 chars for a MAC) and gutters
	nameWidth = min(nameWidth, max(width-25, 10))

	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(TableHeaderStyle.Render(padRight("NAME", nameWidth)))
	b.WriteString("  ")
	b.WriteString(TableHeaderStyle.Render("ADDRESS"))
	b.WriteString("\n")

	for _, d := range devices {
		name := truncate(d.Name, nameWidth)
		style := DeviceNameStyle
		if !d.HasName() {
			style = UnknownNameStyle
		}
		b.WriteString("  ")
		b.WriteString(style.Render(padRight(name, nameWidth)))
		b.WriteString("  ")
		b.WriteString(AddressStyle.Render(d.Address))
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// RenderAdapterTable renders the adapters a host reports, first one marked
// as the one scans will use
func RenderAdapterTable(adapters []radio.AdapterInfo) string {
	if len(adapters) == 0 {
		return WarningTitleStyle.Render("  " + WarningMarker + " No Bluetooth adapters found")
	}

	idWidth, nameWidth := lipgloss.Width("ID"), lipgloss.Width("NAME")
	for _, a := range adapters {
		idWidth = max(idWidth, lipgloss.Width(a.ID))
		nameWidth = max(nameWidth, lipgloss.Width(a.Name))
	}

	var b strings.Builder
	b.WriteString("    ")
	b.WriteString(TableHeaderStyle.Render(padRight("ID", idWidth)))
	b.WriteString("  ")
	b.WriteString(TableHeaderStyle.Render(padRight("NAME", nameWidth)))
	b.WriteString("  ")
	b.WriteString(TableHeaderStyle.Render(padRight("ADDRESS", 17)))
	b.WriteString("  ")
	b.WriteString(TableHeaderStyle.Render("POWERED"))
	b.WriteString("\n")

	for i, a := range adapters {
		marker := "  "
		if i == 0 {
			marker = StepCompleteStyle.Render(StepMarkerRunning) + " "
		}
		powered := StepPendingStyle.Render("no")
		if a.Powered {
			powered = StepCompleteStyle.Render("yes")
		}
		b.WriteString("  ")
		b.WriteString(marker)
		b.WriteString(DeviceNameStyle.Render(padRight(a.ID, idWidth)))
		b.WriteString("  ")
		b.WriteString(DeviceNameStyle.Render(padRight(a.Name, nameWidth)))
		b.WriteString("  ")
		b.WriteString(AddressStyle.Render(padRight(a.Address, 17)))
		b.WriteString("  ")
		b.WriteString(powered)
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// RenderScanSummary renders the one-line success summary after a scan
func RenderScanSummary(count int, elapsed time.Duration) string {
	noun := "devices"
	if count == 1 {
		noun = "device"
	}
	return SuccessTitleStyle.Render(fmt.Sprintf("  %s Found %d %s in %s",
		SuccessMarker, count, noun, elapsed.Round(100*time.Millisecond)))
}

// RenderFailure renders a failed operation with troubleshooting for its error kind
func RenderFailure(title string, err error, width int) string {
	var lines []string
	lines = append(lines, "")
	lines = append(lines, ErrorTitleStyle.Render(fmt.Sprintf("   %s  FAILED  ─  %s", FailureMarker, title)))
	lines = append(lines, "")

	if err != nil {
		lines = append(lines, ErrorMessageStyle.Render("   Error: "+err.Error()))
		lines = append(lines, "")
	}

	if tips := Troubleshooting(err); len(tips) > 0 {
		lines = append(lines, "   "+TroubleshootingTitleStyle.Render("Troubleshooting:"))
		for _, tip := range tips {
			lines = append(lines, TroubleshootingItemStyle.Render("     • "+tip))
		}
		lines = append(lines, "")
	}

	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(ErrorColor).
		Width(max(width, MinTerminalWidth) - 2).
		Render(strings.Join(lines, "\n"))
}

// Troubleshooting returns user-facing hints for a scan error
func Troubleshooting(err error) []string {
	kind, ok := radio.KindOf(err)
	if !ok {
		return nil
	}
	switch kind {
	case radio.ErrKindAdapterEnumerationFailed:
		return []string{
			"Check that bluetoothd is running (systemctl status bluetooth)",
			"Ensure your user may talk to org.bluez on the system bus",
		}
	case radio.ErrKindNoAdapterFound:
		return []string{
			"Plug in or enable a Bluetooth controller",
			"Run 'rfkill list' to check for a soft block",
			"Use --simulate to try blescan without hardware",
		}
	case radio.ErrKindScanStartFailed:
		return []string{
			"Power the adapter on (bluetoothctl power on)",
			"Another program may already be scanning",
		}
	case radio.ErrKindEventStreamUnavailable:
		return []string{"Retry with --mode poll"}
	case radio.ErrKindSnapshotFailed:
		return []string{"Retry with --mode event"}
	case radio.ErrKindPropertyResolutionFailed:
		return []string{"Rerun without --strict to skip unreadable devices"}
	case radio.ErrKindScanStopFailed:
		return []string{"The adapter may still be scanning; run 'bluetoothctl scan off'"}
	default:
		return nil
	}
}

func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if width <= 1 || len(runes) == 0 {
		return "…"
	}
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
