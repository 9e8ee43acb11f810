package discovery

import "testing"

func TestDevice_String(t *testing.T) {
	device := Device{Name: "Pixel 8", Address: "C8:3F:26:11:0A:01"}

	expected := "Pixel 8 (C8:3F:26:11:0A:01)"
	if device.String() != expected {
		t.Errorf("Device.String() = %v, want %v", device.String(), expected)
	}
}

func TestDevice_HasName(t *testing.T) {
	tests := []struct {
		name     string
		device   Device
		expected bool
	}{
		{"named", Device{Name: "Pixel 8"}, true},
		{"unknown sentinel", Device{Name: UnknownName}, false},
		{"empty", Device{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.device.HasName(); got != tt.expected {
				t.Errorf("Device.HasName() = %v, want %v", got, tt.expected)
			}
		})
	}
}
