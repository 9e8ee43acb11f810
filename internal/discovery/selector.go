package discovery

import (
	"context"

	"github.com/muurk/blescan/internal/radio"
)

// SelectAdapter enumerates the host's adapters and returns the first one in
// enumeration order. No ranking is applied.
func SelectAdapter(ctx context.Context, host radio.Host) (radio.Adapter, error) {
	adapters, err := host.Adapters(ctx)
	if err != nil {
		return nil, radio.NewEnumerationError(err)
	}
	if len(adapters) == 0 {
		return nil, radio.NewNoAdapterError()
	}
	return adapters[0], nil
}
