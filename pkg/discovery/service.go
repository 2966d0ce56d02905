package discovery

import (
	"context"
	"net"
	"strconv"
)

const (
	DefaultServerType = "_dropline._tcp"
	DefaultDomain     = "local"
)

type ServiceInfo struct {
	Name   string // instance name, the receiver's short id
	Type   string // service name, e.g., "_dropline._tcp"
	Domain string // domain, e.g., "local"
	Addr   net.IP
	Port   int
}

// Address is the host:port the receiver's API listens on.
func (s ServiceInfo) Address() string {
	return net.JoinHostPort(s.Addr.String(), strconv.Itoa(s.Port))
}

// DiscoveryResult is either a snapshot of the services currently visible or
// a lookup error.
type DiscoveryResult struct {
	Services []ServiceInfo
	Error    error
}

type Adapter interface {
	Announce(ctx context.Context, service ServiceInfo) error
	Discover(ctx context.Context, service string) <-chan DiscoveryResult
}

// ServiceType is the fully qualified browse type for DefaultServerType.
func ServiceType() string {
	return DefaultServerType + "." + DefaultDomain + "."
}
