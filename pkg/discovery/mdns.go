package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"

	"github.com/brutella/dnssd"
)

// LookupFunc browses for instances of service until ctx ends.
type LookupFunc func(ctx context.Context, service string, add dnssd.AddFunc, rmv dnssd.RmvFunc) error

// MDNSAdapter announces and browses receivers over multicast DNS. The zero
// value is ready to use.
type MDNSAdapter struct {
	// Lookup replaces dnssd.LookupType.
	Lookup LookupFunc
}

var _ Adapter = (*MDNSAdapter)(nil)

// Announce publishes info as <name>.<type>.<domain> until ctx ends.
func (m *MDNSAdapter) Announce(ctx context.Context, info ServiceInfo) error {
	if info.Name == "" {
		return errors.New("mDNS announcement needs an instance name")
	}
	if info.Port <= 0 {
		return fmt.Errorf("mDNS announcement needs a port, got %d", info.Port)
	}
	if info.Type == "" {
		info.Type = DefaultServerType
	}
	if info.Domain == "" {
		info.Domain = DefaultDomain
	}

	service, err := dnssd.NewService(dnssd.Config{
		Name:   info.Name,
		Type:   info.Type,
		Domain: info.Domain,
		Port:   info.Port,
		Text:   map[string]string{"id": info.Name},
	})
	if err != nil {
		return fmt.Errorf("failed to create mDNS service: %w", err)
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("failed to create mDNS responder: %w", err)
	}
	if _, err := responder.Add(service); err != nil {
		return fmt.Errorf("failed to add mDNS service: %w", err)
	}

	slog.Info("Announcing receiver", "name", info.Name, "type", info.Type, "port", info.Port)
	if err := responder.Respond(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mDNS responder stopped: %w", err)
	}
	slog.Info("Stopped announcing receiver", "name", info.Name)
	return nil
}

// Discover browses for service and sends the full set of visible receivers
// each time it changes. The channel is closed when browsing ends.
func (m *MDNSAdapter) Discover(ctx context.Context, service string) <-chan DiscoveryResult {
	lookup := m.Lookup
	if lookup == nil {
		lookup = dnssd.LookupType
	}

	out := make(chan DiscoveryResult, 10)
	publish := func(r DiscoveryResult) {
		select {
		case out <- r:
		case <-ctx.Done():
		}
	}

	table := &serviceTable{entries: make(map[string]ServiceInfo)}
	add := func(e dnssd.BrowseEntry) {
		if table.add(e) {
			publish(DiscoveryResult{Services: table.snapshot()})
		}
	}
	remove := func(e dnssd.BrowseEntry) {
		if table.remove(e) {
			publish(DiscoveryResult{Services: table.snapshot()})
		}
	}

	go func() {
		defer close(out)
		err := lookup(ctx, service, add, remove)
		// Cancelling ctx is how browsing normally stops.
		if err != nil && ctx.Err() == nil {
			publish(DiscoveryResult{Error: fmt.Errorf("mDNS lookup failed: %w", err)})
		}
	}()
	return out
}

// serviceTable holds the receivers currently visible, keyed by instance.
type serviceTable struct {
	mu      sync.Mutex
	entries map[string]ServiceInfo
}

func entryKey(e dnssd.BrowseEntry) string {
	return e.Name + "." + e.Type + "." + e.Domain
}

// add records e and reports whether the table changed. Entries without an
// address cannot be dialed and are ignored.
func (t *serviceTable) add(e dnssd.BrowseEntry) bool {
	addr := pickAddr(e.IPs)
	if addr == nil {
		slog.Debug("Ignoring mDNS entry without addresses", "name", e.Name)
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[entryKey(e)] = ServiceInfo{
		Name:   e.Name,
		Type:   e.Type,
		Domain: e.Domain,
		Addr:   addr,
		Port:   e.Port,
	}
	return true
}

func (t *serviceTable) remove(e dnssd.BrowseEntry) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := entryKey(e)
	if _, ok := t.entries[key]; !ok {
		return false
	}
	delete(t.entries, key)
	return true
}

// snapshot lists the entries ordered by name.
func (t *serviceTable) snapshot() []ServiceInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	services := make([]ServiceInfo, 0, len(t.entries))
	for _, s := range t.entries {
		services = append(services, s)
	}
	sort.Slice(services, func(i, j int) bool { return services[i].Name < services[j].Name })
	return services
}

// pickAddr prefers IPv4, which needs no zone to dial.
func pickAddr(ips []net.IP) net.IP {
	for _, ip := range ips {
		if ip.To4() != nil {
			return ip
		}
	}
	if len(ips) > 0 {
		return ips[0]
	}
	return nil
}
