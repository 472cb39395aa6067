package directory

import (
	"context"
	"fmt"

	"github.com/Samael-fhts/admc/internal/ldap"
)

// Replication topology entries live in the configuration naming context,
// not under the domain search base.

const (
	sitesContainer     = "CN=Sites,CN=Configuration"
	subnetsContainer   = "CN=Subnets,CN=Sites,CN=Configuration"
	siteLinksContainer = "CN=IP,CN=Inter-Site Transports,CN=Sites,CN=Configuration"

	defaultSiteLinkCost     = 100
	defaultSiteLinkInterval = 180
)

func (s *Session) configDN(container string) string {
	return container + "," + s.searchBase
}

// CreateSite creates a replication site.
func (s *Session) CreateSite(ctx context.Context, name string) error {
	dn := "CN=" + ldap.EscapeDNValue(name) + "," + s.configDN(sitesContainer)
	return s.createTopologyEntry(ctx, name, dn, EntrySite)
}

// CreateSubnet creates a subnet assigned to a site. The CIDR prefix is the
// subnet's name.
func (s *Session) CreateSubnet(ctx context.Context, cidr, siteDN string) error {
	dn := "CN=" + ldap.EscapeDNValue(cidr) + "," + s.configDN(subnetsContainer)

	err := s.client.Add(ctx, dn, ldap.Attributes{
		"objectClass": {"top", "subnet"},
		"cn":          {cidr},
		"siteObject":  {siteDN},
	})
	if err != nil {
		s.emit(EntryCreateFailed{DN: dn, Type: EntrySubnet, Error: s.client.LastError()})
		return err
	}

	s.emit(EntryCreated{DN: dn, Type: EntrySubnet})
	return nil
}

// CreateSiteLink creates an IP-transport site link connecting the given
// sites with default cost and replication interval.
func (s *Session) CreateSiteLink(ctx context.Context, name string, siteDNs []string) error {
	dn := "CN=" + ldap.EscapeDNValue(name) + "," + s.configDN(siteLinksContainer)

	err := s.client.Add(ctx, dn, ldap.Attributes{
		"objectClass":  {"top", "siteLink"},
		"cn":           {name},
		"siteList":     siteDNs,
		"cost":         {fmt.Sprintf("%d", defaultSiteLinkCost)},
		"replInterval": {fmt.Sprintf("%d", defaultSiteLinkInterval)},
	})
	if err != nil {
		s.emit(EntryCreateFailed{DN: dn, Type: EntrySiteLink, Error: s.client.LastError()})
		return err
	}

	s.emit(EntryCreated{DN: dn, Type: EntrySiteLink})
	return nil
}

// createTopologyEntry handles the topology entry types of CreateEntry.
func (s *Session) createTopologyEntry(ctx context.Context, name, dn string, entryType EntryType) error {
	var attrs ldap.Attributes
	switch entryType {
	case EntrySite:
		attrs = ldap.Attributes{
			"objectClass": {"top", "site"},
			"cn":          {name},
		}
	case EntrySubnet:
		attrs = ldap.Attributes{
			"objectClass": {"top", "subnet"},
			"cn":          {name},
		}
	case EntrySiteLink:
		attrs = ldap.Attributes{
			"objectClass":  {"top", "siteLink"},
			"cn":           {name},
			"cost":         {fmt.Sprintf("%d", defaultSiteLinkCost)},
			"replInterval": {fmt.Sprintf("%d", defaultSiteLinkInterval)},
		}
	default:
		err := fmt.Errorf("unsupported entry type %v", entryType)
		s.emit(EntryCreateFailed{DN: dn, Type: entryType, Error: err.Error()})
		return err
	}

	if err := s.client.Add(ctx, dn, attrs); err != nil {
		s.emit(EntryCreateFailed{DN: dn, Type: entryType, Error: s.client.LastError()})
		return err
	}

	s.emit(EntryCreated{DN: dn, Type: entryType})
	return nil
}
