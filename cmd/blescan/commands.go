package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/blescan/internal/discovery"
	"github.com/muurk/blescan/internal/radio"
	"github.com/muurk/blescan/internal/radio/native"
	"github.com/muurk/blescan/internal/radio/sim"
	"github.com/muurk/blescan/internal/server"
	"github.com/muurk/blescan/internal/ui"
)

// Scan command flags
var (
	scanDuration int
	scanMode     string
	scanServices []string
	scanStrict   bool
	outputFormat string
	liveView     bool
)

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(adaptersCmd)
	rootCmd.AddCommand(serveCmd)
}

// newHost returns the radio host commands run against
func newHost() radio.Host {
	if simulate {
		return sim.DemoHost()
	}
	return native.NewHost(native.Options{EventBuffer: cfg.Scan.EventBuffer})
}

func newPrinter(cmd *cobra.Command, format string) (*ui.Printer, error) {
	f, err := ui.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return ui.NewPrinter(cmd.OutOrStdout(), f), nil
}

// signalContext is cancelled on SIGINT or SIGTERM so sessions still stop their scan
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// scanOptions merges config defaults with the flags the user set
func scanOptions(cmd *cobra.Command) (discovery.SessionOptions, error) {
	scan := cfg.Scan
	flags := cmd.Flags()
	if flags.Changed("duration") {
		scan.DurationSeconds = scanDuration
	}
	if flags.Changed("mode") {
		scan.Mode = scanMode
	}
	if flags.Changed("service") {
		scan.Services = scanServices
	}
	if flags.Changed("strict") {
		scan.StrictProperties = scanStrict
	}
	if scan.DurationSeconds <= 0 {
		return discovery.SessionOptions{}, fmt.Errorf("--duration must be positive, got %d", scan.DurationSeconds)
	}
	return scan.SessionOptions()
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for nearby BLE peripherals",
	Long: `Run one bounded scan session and list every peripheral seen.

Peripherals are listed in the order they were first discovered. A peripheral
that never advertised a name is listed as "Unknown". If anything goes wrong
no partial list is printed; the scan is stopped either way.

Event mode (default) consumes discovery events as they arrive. Poll mode
waits out the duration and reads the adapter's peripheral table once, for
stacks whose event stream is unreliable.`,
	Example: `  # Scan for 10 seconds (default)
  blescan scan

  # Quick 3-second scan as JSON
  blescan scan --duration 3 --format json

  # Only heart-rate monitors, watched live
  blescan scan --service 180d --live

  # Try it without hardware
  blescan scan --simulate`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVarP(&scanDuration, "duration", "d", 10, "Scan duration in seconds")
	scanCmd.Flags().StringVar(&scanMode, "mode", "event", "Acquisition mode (event, poll)")
	scanCmd.Flags().StringSliceVar(&scanServices, "service", nil, "Only report peripherals advertising this service UUID (repeatable, 16-bit short form allowed)")
	scanCmd.Flags().BoolVar(&scanStrict, "strict", false, "Fail the scan when a peripheral's properties cannot be read")
	scanCmd.Flags().StringVarP(&outputFormat, "format", "o", "table", "Output format (table, json, yaml)")
	scanCmd.Flags().BoolVar(&liveView, "live", false, "Show an interactive live view while scanning (table format only)")
}

func runScan(cmd *cobra.Command, args []string) error {
	printer, err := newPrinter(cmd, outputFormat)
	if err != nil {
		return err
	}
	opts, err := scanOptions(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	host := newHost()

	// Machine output: no header, no live view, just the command surface
	if !printer.Styled() {
		scanner := &discovery.Scanner{Host: host, Options: opts}
		devices, err := scanner.ScanForDevices(ctx)
		if err != nil {
			_ = printer.PrintFailure("BLE scan", err)
			return reportedError{err}
		}
		return printer.PrintDevices(devices)
	}

	adapter, err := discovery.SelectAdapter(ctx, host)
	if err != nil {
		printer.Println(ui.RenderFailure("BLE scan", err, printer.Width()))
		return reportedError{err}
	}

	params := []ui.Param{
		{Key: "Adapter", Value: adapter.ID()},
		{Key: "Duration", Value: opts.Duration.String()},
		{Key: "Mode", Value: opts.Mode.String()},
	}
	if !opts.Filter.IsEmpty() {
		params = append(params, ui.Param{Key: "Services", Value: fmt.Sprint(opts.Filter.Services)})
	}
	printer.PrintHeader(ui.NewHeader("BLE scan", "blescan scan", params...))

	run := func(ctx context.Context, opts discovery.SessionOptions) ([]discovery.Device, error) {
		return discovery.NewSession(adapter, opts).Run(ctx)
	}

	if liveView && ui.IsTerminal() {
		// The live view renders its own result or failure
		if _, err := ui.RunLive(ctx, adapter.ID(), opts, run); err != nil {
			return reportedError{err}
		}
		return nil
	}

	started := time.Now()
	devices, err := run(ctx, opts)
	if err != nil {
		printer.Println(ui.RenderFailure("BLE scan", err, printer.Width()))
		return reportedError{err}
	}
	if err := printer.PrintDevices(devices); err != nil {
		return err
	}
	printer.Newline()
	printer.Println(ui.RenderScanSummary(len(devices), time.Since(started)))
	return nil
}

var adaptersCmd = &cobra.Command{
	Use:   "adapters",
	Short: "List Bluetooth adapters",
	Long: `List the Bluetooth adapters the host reports, in enumeration order.

Scans always use the first adapter listed (marked with ●).`,
	RunE: runAdapters,
}

func init() {
	adaptersCmd.Flags().StringVarP(&outputFormat, "format", "o", "table", "Output format (table, json, yaml)")
}

func runAdapters(cmd *cobra.Command, args []string) error {
	printer, err := newPrinter(cmd, outputFormat)
	if err != nil {
		return err
	}

	adapters, err := newHost().Adapters(cmd.Context())
	if err != nil {
		err = radio.NewEnumerationError(err)
		_ = printer.PrintFailure("List adapters", err)
		return reportedError{err}
	}

	infos := make([]radio.AdapterInfo, 0, len(adapters))
	for _, a := range adapters {
		infos = append(infos, radio.Describe(a))
	}
	return printer.PrintValue(infos, func() string {
		return ui.RenderAdapterTable(infos)
	})
}

// Serve command flags
var (
	serveHost        string
	servePort        int
	serveNoAdvertise bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve scans over HTTP and WebSocket",
	Long: `Start an HTTP server that runs scan sessions on request.

  GET /scan?duration=N&mode=event|poll   one-shot JSON result
  GET /ws                                live stream of observations
  GET /healthz                           liveness and busy state

Only one session runs at a time; concurrent requests get 409 Conflict.
Unless --no-advertise is given the server announces itself over mDNS as
_blescan._tcp.`,
	Example: `  # Serve on the default port (8765)
  blescan serve

  # Local only, without mDNS
  blescan serve --host 127.0.0.1 --no-advertise

  # Demo server with simulated peripherals
  blescan serve --simulate --log-level info`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen address (empty = all interfaces)")
	serveCmd.Flags().IntVar(&servePort, "port", 8765, "Listen port")
	serveCmd.Flags().BoolVar(&serveNoAdvertise, "no-advertise", false, "Do not announce the server over mDNS")
}

func runServe(cmd *cobra.Command, args []string) error {
	settings := cfg.Server
	if cmd.Flags().Changed("host") {
		settings.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		settings.Port = servePort
	}
	if serveNoAdvertise {
		settings.Advertise = false
	}

	opts, err := cfg.Scan.SessionOptions()
	if err != nil {
		return err
	}

	srv := server.New(&server.Config{
		Host:      settings.Host,
		Port:      settings.Port,
		Advertise: settings.Advertise,
		Scan:      opts,
	}, newHost())

	fmt.Fprintf(cmd.ErrOrStderr(), "Serving BLE scans on %s (Ctrl+C to stop)\n", settings.Addr())
	return srv.Start(cmd.Context())
}
