package server

import (
	"fmt"
	"os"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/blescan/internal/logging"
	"github.com/muurk/blescan/internal/version"
)

const (
	// ServiceType is the DNS-SD service type of the scan API
	ServiceType = "_blescan._tcp"

	// Domain is the mDNS domain
	Domain = "local."
)

// Advertiser keeps the mDNS registration of a running server
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise registers the server on all interfaces under ServiceType.
// The instance name is "blescan on <hostname>".
func Advertise(port int) (*Advertiser, error) {
	instance := instanceName()
	txt := TXTRecords()

	server, err := zeroconf.Register(instance, ServiceType, Domain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("Advertising scan server over mDNS",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
		zap.Strings("txt", txt),
	)
	return &Advertiser{server: server}, nil
}

// Shutdown withdraws the registration
func (a *Advertiser) Shutdown() {
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// TXTRecords returns the key=value pairs published with the service
func TXTRecords() []string {
	return []string{
		"version=" + version.Version,
		"path=/scan",
		"ws=/ws",
	}
}

func instanceName() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "blescan"
	}
	return "blescan on " + hostname
}
