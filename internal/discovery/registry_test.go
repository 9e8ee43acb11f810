package discovery

import (
	"fmt"
	"testing"
)

func TestRegistry_Upsert(t *testing.T) {
	tests := []struct {
		name         string
		observations []Observation
		expected     []Device
	}{
		{
			name:         "default naming",
			observations: []Observation{{Address: "A"}},
			expected:     []Device{{Name: UnknownName, Address: "A"}},
		},
		{
			name:         "name non-regression",
			observations: []Observation{{Address: "A", Name: "Alice"}, {Address: "A"}},
			expected:     []Device{{Name: "Alice", Address: "A"}},
		},
		{
			name:         "name refined",
			observations: []Observation{{Address: "A"}, {Address: "A", Name: "Alice"}},
			expected:     []Device{{Name: "Alice", Address: "A"}},
		},
		{
			name:         "name overwritten",
			observations: []Observation{{Address: "A", Name: "Phone"}, {Address: "A", Name: "Phone-2"}},
			expected:     []Device{{Name: "Phone-2", Address: "A"}},
		},
		{
			name: "insertion order kept across re-observations",
			observations: []Observation{
				{Address: "C", Name: "c"},
				{Address: "A", Name: "a"},
				{Address: "C"},
				{Address: "B"},
				{Address: "A", Name: "a2"},
				{Address: "C", Name: "c2"},
			},
			expected: []Device{
				{Name: "c2", Address: "C"},
				{Name: "a2", Address: "A"},
				{Name: UnknownName, Address: "B"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			for _, obs := range tt.observations {
				r.Upsert(obs)
			}

			got := r.Snapshot()
			if len(got) != len(tt.expected) {
				t.Fatalf("Snapshot() = %v, want %v", got, tt.expected)
			}
			for i := range tt.expected {
				if got[i] != tt.expected[i] {
					t.Errorf("Snapshot()[%d] = %v, want %v", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestRegistry_UpsertReportsKnown(t *testing.T) {
	r := NewRegistry()

	device, known := r.Upsert(Observation{Address: "A", Name: "Alice"})
	if known {
		t.Error("first Upsert() known = true, want false")
	}
	if device.Name != "Alice" {
		t.Errorf("first Upsert() device.Name = %v, want Alice", device.Name)
	}

	device, known = r.Upsert(Observation{Address: "A"})
	if !known {
		t.Error("second Upsert() known = false, want true")
	}
	if device.Name != "Alice" {
		t.Errorf("second Upsert() device.Name = %v, want Alice", device.Name)
	}
}

func TestRegistry_IdentityUniqueness(t *testing.T) {
	r := NewRegistry()
	addresses := []string{"A", "B", "C", "D", "E"}

	for i := 0; i < 200; i++ {
		addr := addresses[(i*7)%len(addresses)]
		name := ""
		if i%3 == 0 {
			name = fmt.Sprintf("dev-%d", i)
		}
		r.Upsert(Observation{Address: addr, Name: name})
	}

	seen := make(map[string]bool)
	for _, d := range r.Snapshot() {
		if seen[d.Address] {
			t.Errorf("address %s appears more than once", d.Address)
		}
		seen[d.Address] = true
	}
	if r.Len() != len(addresses) {
		t.Errorf("Len() = %d, want %d", r.Len(), len(addresses))
	}
}

func TestRegistry_SnapshotStable(t *testing.T) {
	r := NewRegistry()
	r.Upsert(Observation{Address: "B"})
	r.Upsert(Observation{Address: "A"})

	first := r.Snapshot()
	second := r.Snapshot()
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Snapshot() not stable at %d: %v vs %v", i, first[i], second[i])
		}
	}

	// Mutating a snapshot must not touch the registry
	first[0].Name = "tampered"
	if d := r.Snapshot()[0]; d.Name != UnknownName {
		t.Errorf("registry modified through snapshot: %v", d)
	}
}

func TestExport(t *testing.T) {
	if got := Export(nil); got == nil || len(got) != 0 {
		t.Errorf("Export(nil) = %#v, want empty non-nil slice", got)
	}
	if got := Export(NewRegistry()); got == nil {
		t.Error("Export(empty) = nil, want empty non-nil slice")
	}

	r := NewRegistry()
	r.Upsert(Observation{Address: "A", Name: "Alice"})
	got := Export(r)
	if len(got) != 1 || got[0] != (Device{Name: "Alice", Address: "A"}) {
		t.Errorf("Export() = %v", got)
	}
}
