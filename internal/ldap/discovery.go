package ldap

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
)

// ServerInfo describes a discovered directory server.
type ServerInfo struct {
	Host     string
	Port     int
	UseTLS   bool
	Priority int
	Weight   int
	Source   string // "srv" or "fallback"
}

// URL renders the server as an LDAP URL.
func (s *ServerInfo) URL() string {
	scheme := "ldap"
	if s.UseTLS {
		scheme = "ldaps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, s.Host, s.Port)
}

// SRVDiscovery resolves domain controllers via DNS SRV records.
type SRVDiscovery struct {
	resolver *net.Resolver
	log      Logger
}

// NewSRVDiscovery creates a new SRV discovery instance.
func NewSRVDiscovery(log Logger) *SRVDiscovery {
	if log == nil {
		log = NopLogger{}
	}
	return &SRVDiscovery{
		resolver: net.DefaultResolver,
		log:      log,
	}
}

// DiscoverServers discovers LDAP servers for a domain using SRV records.
// LDAPS records are preferred; plain LDAP records are the fallback. When no
// SRV records exist at all, the domain itself is returned on the standard
// ports so that environments without SRV zones still connect.
func (d *SRVDiscovery) DiscoverServers(ctx context.Context, domain string) ([]*ServerInfo, error) {
	if domain == "" {
		return nil, fmt.Errorf("domain cannot be empty")
	}

	services := []struct {
		service string
		useTLS  bool
	}{
		{"_ldaps._tcp." + domain, true},
		{"_ldap._tcp." + domain, false},
	}

	var all []*ServerInfo
	for _, record := range services {
		servers, err := d.lookupSRV(ctx, record.service, record.useTLS)
		if err != nil {
			d.log.Debug("SRV lookup failed, continuing", map[string]any{
				"service": record.service,
				"error":   err.Error(),
			})
			continue
		}
		all = append(all, servers...)

		// LDAPS servers found: prefer them and stop looking
		if record.useTLS && len(servers) > 0 {
			break
		}
	}

	if len(all) == 0 {
		d.log.Debug("No SRV records found, using fallback servers", map[string]any{
			"domain": domain,
		})
		return fallbackServers(domain), nil
	}

	sortServersByPriority(all)

	d.log.Debug("Server discovery completed", map[string]any{
		"domain":       domain,
		"server_count": len(all),
	})
	return all, nil
}

// lookupSRV performs SRV record lookup for a specific service.
func (d *SRVDiscovery) lookupSRV(ctx context.Context, service string, useTLS bool) ([]*ServerInfo, error) {
	_, records, err := d.resolver.LookupSRV(ctx, "", "", service)
	if err != nil {
		return nil, err
	}

	servers := make([]*ServerInfo, 0, len(records))
	for _, record := range records {
		servers = append(servers, &ServerInfo{
			Host:     strings.TrimSuffix(record.Target, "."),
			Port:     int(record.Port),
			UseTLS:   useTLS,
			Priority: int(record.Priority),
			Weight:   int(record.Weight),
			Source:   "srv",
		})
	}
	return servers, nil
}

func fallbackServers(domain string) []*ServerInfo {
	return []*ServerInfo{
		{Host: domain, Port: 636, UseTLS: true, Source: "fallback"},
		{Host: domain, Port: 389, UseTLS: false, Priority: 1, Source: "fallback"},
	}
}

// sortServersByPriority orders servers by SRV priority, heavier weight first
// within the same priority.
func sortServersByPriority(servers []*ServerInfo) {
	sort.SliceStable(servers, func(i, j int) bool {
		if servers[i].Priority != servers[j].Priority {
			return servers[i].Priority < servers[j].Priority
		}
		return servers[i].Weight > servers[j].Weight
	})
}
