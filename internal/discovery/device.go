package discovery

import "fmt"

// UnknownName is stored for a device whose radio never supplied a name
const UnknownName = "Unknown"

// Device is one discovered peripheral as handed back to callers.
// Address is the identity key: two devices with the same Address are the
// same logical device.
type Device struct {
	// Name is the best-known human-readable label (e.g. "Polar H10 8A1C")
	Name string `json:"name" yaml:"name"`

	// Address is the textual hardware identifier (e.g. "D0:03:4B:5E:77:E1")
	Address string `json:"address" yaml:"address"`
}

// String returns a human-readable string representation of the device
func (d Device) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.Address)
}

// HasName reports whether the device has a learned name
func (d Device) HasName() bool {
	return d.Name != "" && d.Name != UnknownName
}
