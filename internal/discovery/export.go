package discovery

// Export converts a registry into the ordered list returned to callers.
// The result never aliases registry storage and is never nil.
func Export(r *Registry) []Device {
	if r == nil {
		return []Device{}
	}
	return r.Snapshot()
}
