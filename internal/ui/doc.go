// Package ui provides terminal output for the blescan CLI.
//
// It uses Bubble Tea and Lipgloss. Most output follows a "render once and
// exit" pattern: a header, then a device or adapter table, or a failure box
// with troubleshooting hints keyed on the scan error kind. The exception
// is the live scan view (RunLive), which streams observations while a
// session runs and lets the user cancel it.
//
// # Output Formats
//
// Printer renders tables for humans and JSON or YAML for
// scripts. Machine formats never include headers or styling.
//
// # Logging Integration
//
// This package expects logging to be controlled via the BLESCAN_LOG_LEVEL
// environment variable. When unset or empty, zap logging is silent, allowing
// the curated UI output to be displayed cleanly.
package ui
