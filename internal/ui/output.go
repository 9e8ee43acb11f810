package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/muurk/blescan/internal/discovery"
)

// Format selects how command results are written
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates an output format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (expected table, json or yaml)", s)
	}
}

// Printer writes styled or machine-readable output to a writer
type Printer struct {
	out    io.Writer
	width  int
	format Format
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer, format Format) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:    w,
		width:  GetTerminalWidth(),
		format: format,
	}
}

// SetWidth overrides the detected terminal width
func (p *Printer) SetWidth(width int) *Printer {
	p.width = width
	return p
}

// Width returns the width used for styled output
func (p *Printer) Width() int {
	return p.width
}

// Styled reports whether the printer renders for humans
func (p *Printer) Styled() bool {
	return p.format == FormatTable
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box. Machine formats skip it.
func (p *Printer) PrintHeader(h *Header) {
	if !p.Styled() {
		return
	}
	p.Println(h.SetWidth(p.width).Render())
	p.Newline()
}

// PrintDevices writes a scan result in the printer's format
func (p *Printer) PrintDevices(devices []discovery.Device) error {
	if devices == nil {
		devices = []discovery.Device{}
	}
	if p.Styled() {
		p.Println(RenderDeviceTable(devices, p.width))
		return nil
	}
	return p.encode(devices)
}

// PrintValue writes any value as json or yaml, or via fallback for tables
func (p *Printer) PrintValue(v any, table func() string) error {
	if p.Styled() {
		p.Println(table())
		return nil
	}
	return p.encode(v)
}

// PrintFailure prints an error box for humans or {"error": ...} for machines
func (p *Printer) PrintFailure(title string, err error) error {
	if p.Styled() {
		p.Println(RenderFailure(title, err, p.width))
		return nil
	}
	return p.encode(map[string]string{"error": err.Error()})
}

func (p *Printer) encode(v any) error {
	switch p.format {
	case FormatYAML:
		enc := yaml.NewEncoder(p.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	}
}
