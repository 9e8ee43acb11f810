// Package config provides user configuration management for blescan.
//
// The configuration is a small YAML file holding scan defaults, server
// settings and the log level. Command-line flags always override values
// read from the file. Scan results are never written here.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/blescan/config.yaml or $HOME/.config/blescan/config.yaml
//   - macOS: $HOME/.config/blescan/config.yaml
//   - Windows: %LOCALAPPDATA%\blescan\config.yaml
//
// # Usage Example
//
//	cfg, err := config.LoadDefault()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cfg.Scan.DurationSeconds = 20
//	if err := cfg.Save(path); err != nil {
//	    log.Fatal(err)
//	}
//
// A missing file is not an error: LoadDefault returns Default().
package config
