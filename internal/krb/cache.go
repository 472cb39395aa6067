package krb

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	krb5client "github.com/jcmturner/gokrb5/v8/client"
	krb5config "github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/credentials"
	"github.com/jcmturner/gokrb5/v8/iana/nametype"
	"github.com/jcmturner/gokrb5/v8/types"
)

const defaultTicketLifetime = 10 * time.Hour

// loginClient is the slice of the Kerberos client used by the cache:
// obtaining credentials, keeping them current, and releasing them.
type loginClient interface {
	Login() error
	AffirmLogin() error
	Destroy()
}

// loginFunc constructs a login client for a username/realm/password triple.
type loginFunc func(username, realm, password string) loginClient

// cacheHandle owns the resources behind one principal's credential cache.
// It is released exactly once, either at teardown or when superseded by a
// fresh authentication for the same principal.
type cacheHandle struct {
	name     string
	client   loginClient
	released bool
}

func (h *cacheHandle) release() {
	if h == nil || h.released {
		return
	}
	h.released = true
	if h.client != nil {
		h.client.Destroy()
		h.client = nil
	}
}

// CredentialCache tracks ticket-granting tickets for every known principal.
// It discovers existing credential caches at construction, authenticates
// new principals against the KDC, and renews tickets on demand.
//
// The cache performs blocking network calls synchronously and holds no
// internal locking; it is not safe for unsynchronized concurrent use.
type CredentialCache struct {
	cfg             *krb5config.Config
	useDefaultCache bool
	login           loginFunc

	current          string
	defaultPrincipal string
	tickets          map[string]Ticket
	handles          map[string]*cacheHandle
	closed           bool
}

// New creates a credential cache from a krb5 configuration file and
// discovers existing ticket caches on the system. A configuration that
// cannot be loaded is fatal; a discovered cache that fails to yield a
// principal or ticket is skipped.
func New(krb5confPath string, useDefaultCache bool) (*CredentialCache, error) {
	if krb5confPath == "" {
		krb5confPath = "/etc/krb5.conf"
	}

	cfg, err := krb5config.Load(krb5confPath)
	if err != nil {
		return nil, &Error{
			Kind:    InitializationFailed,
			Message: fmt.Sprintf("loading kerberos configuration from %s", krb5confPath),
			Cause:   err,
		}
	}

	c := &CredentialCache{
		cfg:             cfg,
		useDefaultCache: useDefaultCache,
		tickets:         make(map[string]Ticket),
		handles:         make(map[string]*cacheHandle),
	}
	c.login = func(username, realm, password string) loginClient {
		return krb5client.NewWithPassword(username, realm, password, cfg, krb5client.DisablePAFXFAST(true))
	}

	c.loadCaches()
	return c, nil
}

// loadCaches enumerates existing file-based credential caches: the default
// cache first, then sibling caches of the same uid. Partial success is
// expected when stale caches exist.
func (c *CredentialCache) loadCaches() {
	defaultPath := defaultCachePath()
	c.loadCacheData(defaultPath, true)

	siblings, err := filepath.Glob(fmt.Sprintf("/tmp/krb5cc_%d_*", os.Getuid()))
	if err != nil {
		return
	}
	for _, path := range siblings {
		if path == defaultPath {
			continue
		}
		c.loadCacheData(path, false)
	}
}

// loadCacheData reads one credential cache, locates the krbtgt credential
// for the cache's client realm and records its ticket. Failures skip the
// cache silently.
func (c *CredentialCache) loadCacheData(path string, isDefault bool) {
	ccache, err := credentials.LoadCCache(path)
	if err != nil {
		return
	}

	realm := ccache.GetClientRealm()
	clientName := ccache.GetClientPrincipalName().PrincipalNameString()
	if clientName == "" || realm == "" {
		return
	}
	principal := clientName + "@" + realm

	tgtName := types.PrincipalName{
		NameType:   nametype.KRB_NT_SRV_INST,
		NameString: []string{"krbtgt", realm},
	}
	tgt, ok := ccache.GetEntry(tgtName)
	if !ok {
		return
	}

	// Duplicate principals keep the first (default-cache) entry.
	if _, exists := c.handles[principal]; exists {
		return
	}

	handle := &cacheHandle{name: path}
	if cl, clErr := krb5client.NewFromCCache(ccache, c.cfg, krb5client.DisablePAFXFAST(true)); clErr == nil {
		handle.client = cl
	}

	c.tickets[principal] = Ticket{
		Principal:  principal,
		Realm:      realm,
		Starts:     tgt.StartTime,
		Expires:    tgt.EndTime,
		RenewUntil: tgt.RenewTill,
	}
	c.handles[principal] = handle

	if isDefault {
		c.defaultPrincipal = principal
	}
}

// Authenticate obtains fresh credentials for a principal. Re-authenticating
// the current principal is a no-op. The current principal changes only
// after every step succeeds; partially created resources are released on
// every failure path.
func (c *CredentialCache) Authenticate(principal, password string) error {
	if principal == c.current {
		return nil
	}

	username, realm := splitPrincipal(principal, c.cfg.LibDefaults.DefaultRealm)
	if username == "" || realm == "" {
		return &Error{
			Kind:      AuthenticationFailed,
			Principal: principal,
			Message:   "principal must include a name and a realm",
		}
	}

	cl := c.login(username, realm, password)
	if err := cl.Login(); err != nil {
		cl.Destroy()
		return &Error{
			Kind:      AuthenticationFailed,
			Principal: principal,
			Message:   "authentication failed",
			Cause:     err,
		}
	}

	now := time.Now()
	lifetime := c.ticketLifetime()
	canonical := username + "@" + realm

	// A fresh authentication for a known principal supersedes its old
	// cache handle.
	c.handles[canonical].release()
	c.handles[canonical] = &cacheHandle{
		name:   fmt.Sprintf("KEYRING:persistent:%d:krb5cc_%s", os.Getuid(), canonical),
		client: cl,
	}
	c.tickets[canonical] = Ticket{
		Principal:  canonical,
		Realm:      realm,
		Starts:     now,
		Expires:    now.Add(lifetime),
		RenewUntil: now.Add(c.renewLifetime()),
	}

	if c.defaultPrincipal == "" {
		c.defaultPrincipal = canonical
	}
	c.current = principal
	return nil
}

// RefreshTicket renews the ticket of a principal using its stored cache
// handle.
func (c *CredentialCache) RefreshTicket(principal string) error {
	handle, ok := c.handles[principal]
	if !ok || handle.client == nil {
		return &Error{
			Kind:      NoSuchPrincipal,
			Principal: principal,
			Message:   "no credential cache held for principal",
		}
	}

	if err := handle.client.AffirmLogin(); err != nil {
		return &Error{
			Kind:      RenewalFailed,
			Principal: principal,
			Message:   "failed to refresh ticket",
			Cause:     err,
		}
	}

	now := time.Now()
	ticket := c.tickets[principal]
	ticket.Starts = now
	expires := now.Add(c.ticketLifetime())
	// The renewed lifetime never extends past the renewable window.
	if !ticket.RenewUntil.IsZero() && expires.After(ticket.RenewUntil) {
		expires = ticket.RenewUntil
	}
	ticket.Expires = expires
	c.tickets[principal] = ticket

	return nil
}

// TicketData returns the last-computed ticket snapshot for a principal.
// The snapshot's state is derived from its timestamps on every read; an
// unknown principal yields a zero ticket whose state is StateInvalid.
func (c *CredentialCache) TicketData(principal string) Ticket {
	return c.tickets[principal]
}

// CurrentPrincipal returns the last successfully authenticated principal.
func (c *CredentialCache) CurrentPrincipal() string {
	return c.current
}

// DefaultPrincipal returns the principal of the default credential cache.
func (c *CredentialCache) DefaultPrincipal() string {
	return c.defaultPrincipal
}

// PrincipalHasCache reports whether a cache is held for the principal.
func (c *CredentialCache) PrincipalHasCache(principal string) bool {
	_, ok := c.handles[principal]
	return ok
}

// AvailablePrincipals returns every principal with a held cache, sorted.
func (c *CredentialCache) AvailablePrincipals() []string {
	principals := make([]string, 0, len(c.handles))
	for principal := range c.handles {
		principals = append(principals, principal)
	}
	sort.Strings(principals)
	return principals
}

// SetDefaultCacheUsage controls whether the default system cache is
// preferred for new connections.
func (c *CredentialCache) SetDefaultCacheUsage(useDefault bool) {
	c.useDefaultCache = useDefault
}

// UseDefaultCache reports whether the default system cache is preferred.
func (c *CredentialCache) UseDefaultCache() bool {
	return c.useDefaultCache
}

// Close releases every held cache handle exactly once.
func (c *CredentialCache) Close() {
	if c.closed {
		return
	}
	c.closed = true
	for _, handle := range c.handles {
		handle.release()
	}
}

func (c *CredentialCache) ticketLifetime() time.Duration {
	if c.cfg != nil && c.cfg.LibDefaults.TicketLifetime > 0 {
		return c.cfg.LibDefaults.TicketLifetime
	}
	return defaultTicketLifetime
}

func (c *CredentialCache) renewLifetime() time.Duration {
	if c.cfg != nil && c.cfg.LibDefaults.RenewLifetime > 0 {
		return c.cfg.LibDefaults.RenewLifetime
	}
	return c.ticketLifetime()
}

// splitPrincipal splits user@REALM, falling back to the default realm when
// the principal carries none.
func splitPrincipal(principal, defaultRealm string) (string, string) {
	if at := strings.LastIndex(principal, "@"); at >= 0 {
		return principal[:at], principal[at+1:]
	}
	return principal, defaultRealm
}

// defaultCachePath returns the default credential cache location, honoring
// KRB5CCNAME with its optional FILE: prefix.
func defaultCachePath() string {
	if ccname := os.Getenv("KRB5CCNAME"); ccname != "" {
		return strings.TrimPrefix(ccname, "FILE:")
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}
