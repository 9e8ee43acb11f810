package discovery

// Observation is one sighting of a peripheral fed to the Registry.
// An empty Name means the radio did not supply one.
type Observation struct {
	Address string
	Name    string
}

// Registry is the session-scoped collection of discovered devices, keyed by
// address and kept in first-discovery order.
//
// Naming policy: a new address is stored with its observed name, or
// UnknownName if none was supplied. A repeat observation overwrites the
// stored name only when it carries one, so a learned name never regresses.
//
// A Registry is owned by a single session and is not safe for concurrent use.
type Registry struct {
	index   map[string]int
	devices []Device
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]int),
	}
}

// Upsert records an observation. It returns the stored device and whether
// the address was already known.
func (r *Registry) Upsert(obs Observation) (Device, bool) {
	if i, ok := r.index[obs.Address]; ok {
		if obs.Name != "" {
			r.devices[i].Name = obs.Name
		}
		return r.devices[i], true
	}

	name := obs.Name
	if name == "" {
		name = UnknownName
	}
	r.index[obs.Address] = len(r.devices)
	r.devices = append(r.devices, Device{Name: name, Address: obs.Address})
	return r.devices[len(r.devices)-1], false
}

// Len returns the number of distinct devices
func (r *Registry) Len() int {
	return len(r.devices)
}

// Snapshot returns a copy of all devices in first-discovery order
func (r *Registry) Snapshot() []Device {
	out := make([]Device, len(r.devices))
	copy(out, r.devices)
	return out
}
