package ldap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// client implements the Client interface over a single LDAP connection.
type client struct {
	config *ConnectionConfig
	log    Logger

	conn    *ldap.Conn
	secure  bool
	lastErr error
}

// NewClient creates a new directory client. Connect must be called before
// any operation.
func NewClient(config *ConnectionConfig, log Logger) Client {
	if config == nil {
		config = DefaultConfig()
	}
	if log == nil {
		log = NopLogger{}
	}
	return &client{
		config: config,
		log:    log,
	}
}

// Connect establishes the underlying directory binding. An empty uri falls
// back to the configured URI, or to SRV discovery of the configured domain.
func (c *client) Connect(ctx context.Context, uri, bindDN, password string) error {
	if uri == "" {
		uri = c.config.URI
	}
	if bindDN == "" {
		bindDN = c.config.BindDN
	}
	if password == "" {
		password = c.config.BindPassword
	}

	servers, err := c.resolveServers(ctx, uri)
	if err != nil {
		return c.fail("connect", err)
	}

	return LogOperation(c.log, "connect", map[string]any{
		"uri":     uri,
		"bind_dn": bindDN,
	}, func() error {
		var lastErr error
		for _, server := range servers {
			conn, connErr := c.dial(server)
			if connErr != nil {
				lastErr = connErr
				c.log.Debug("Failed to dial server, trying next", map[string]any{
					"server": server.URL(),
					"error":  connErr.Error(),
				})
				continue
			}

			if bindErr := c.bind(ctx, conn, server, bindDN, password); bindErr != nil {
				conn.Close()
				lastErr = bindErr
				continue
			}

			c.conn = conn
			c.secure = server.UseTLS
			c.setLastError(nil)
			return nil
		}

		if lastErr == nil {
			lastErr = fmt.Errorf("no directory servers available")
		}
		return c.fail("connect", lastErr)
	})
}

// resolveServers turns the uri or configured domain into a server list.
func (c *client) resolveServers(ctx context.Context, uri string) ([]*ServerInfo, error) {
	if uri != "" {
		server, err := ParseLDAPURL(uri)
		if err != nil {
			return nil, err
		}
		return []*ServerInfo{server}, nil
	}

	if c.config.Domain != "" {
		return NewSRVDiscovery(c.log).DiscoverServers(ctx, c.config.Domain)
	}

	return nil, fmt.Errorf("no server URI or domain configured")
}

// ParseLDAPURL parses an ldap:// or ldaps:// URL into server info.
func ParseLDAPURL(uri string) (*ServerInfo, error) {
	var useTLS bool
	var rest string

	switch {
	case strings.HasPrefix(uri, "ldaps://"):
		useTLS = true
		rest = strings.TrimPrefix(uri, "ldaps://")
	case strings.HasPrefix(uri, "ldap://"):
		rest = strings.TrimPrefix(uri, "ldap://")
	default:
		return nil, fmt.Errorf("unsupported URL scheme in %q", uri)
	}

	rest = strings.TrimSuffix(rest, "/")
	if rest == "" {
		return nil, fmt.Errorf("no hostname in URL %q", uri)
	}

	host := rest
	port := 389
	if useTLS {
		port = 636
	}

	if h, p, err := net.SplitHostPort(rest); err == nil {
		host = h
		parsed, convErr := net.LookupPort("tcp", p)
		if convErr != nil {
			return nil, fmt.Errorf("invalid port in URL %q: %w", uri, convErr)
		}
		port = parsed
	}

	return &ServerInfo{
		Host:   host,
		Port:   port,
		UseTLS: useTLS,
		Source: "config",
	}, nil
}

func (c *client) dial(server *ServerInfo) (*ldap.Conn, error) {
	dialer := &net.Dialer{Timeout: c.config.Timeout}

	if server.UseTLS {
		tlsConfig := c.config.TLSConfig
		if tlsConfig == nil {
			tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		return ldap.DialURL(server.URL(),
			ldap.DialWithDialer(dialer),
			ldap.DialWithTLSConfig(tlsConfig))
	}

	conn, err := ldap.DialURL(server.URL(), ldap.DialWithDialer(dialer))
	if err != nil {
		return nil, err
	}

	// Upgrade to TLS when the config demands it
	if c.config.UseTLS {
		tlsConfig := c.config.TLSConfig
		if tlsConfig == nil {
			tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		tlsConfig = tlsConfig.Clone()
		tlsConfig.ServerName = server.Host
		if err := conn.StartTLS(tlsConfig); err != nil {
			conn.Close()
			return nil, err
		}
		server.UseTLS = true
	}

	return conn, nil
}

func (c *client) bind(ctx context.Context, conn *ldap.Conn, server *ServerInfo, bindDN, password string) error {
	if c.config.KerberosCCache != "" {
		return performKerberosBind(conn, c.config, server)
	}

	if bindDN == "" {
		return fmt.Errorf("bind identity is required")
	}
	_ = ctx
	return conn.Bind(bindDN, password)
}

// Close closes the underlying connection.
func (c *client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// IsSecure reports whether the connection uses transport-layer encryption.
func (c *client) IsSecure() bool {
	return c.conn != nil && c.secure
}

// Search performs a directory search and returns entries keyed by DN.
func (c *client) Search(ctx context.Context, base string, scope Scope, filter string, attributes []string) (map[string]Attributes, error) {
	if err := c.checkConnected("search"); err != nil {
		return nil, err
	}
	if filter == "" {
		filter = "(objectClass=*)"
	}

	req := ldap.NewSearchRequest(
		base,
		ldapScope(scope),
		ldap.NeverDerefAliases,
		0,
		int(c.config.Timeout.Seconds()),
		false,
		filter,
		attributes,
		nil,
	)

	var result *ldap.SearchResult
	err := c.withRetry(ctx, func() error {
		var searchErr error
		result, searchErr = c.conn.Search(req)
		return searchErr
	})
	if err != nil {
		return nil, c.fail("search", err)
	}

	entries := make(map[string]Attributes, len(result.Entries))
	for _, entry := range result.Entries {
		attrs := make(Attributes, len(entry.Attributes))
		for _, attr := range entry.Attributes {
			values := make([]string, len(attr.Values))
			copy(values, attr.Values)
			attrs[attr.Name] = values
		}
		entries[entry.DN] = attrs
	}

	c.setLastError(nil)
	return entries, nil
}

// Add creates a new directory entry.
func (c *client) Add(ctx context.Context, dn string, attributes Attributes) error {
	if err := c.checkConnected("add"); err != nil {
		return err
	}

	req := ldap.NewAddRequest(dn, nil)
	for attr, values := range attributes {
		req.Attribute(attr, values)
	}

	err := c.withRetry(ctx, func() error {
		return c.conn.Add(req)
	})
	if err != nil {
		return c.fail("add", err)
	}

	c.setLastError(nil)
	return nil
}

// Delete removes a directory entry.
func (c *client) Delete(ctx context.Context, dn string) error {
	if err := c.checkConnected("delete"); err != nil {
		return err
	}
	if dn == "" {
		return c.fail("delete", &DirectoryError{Operation: "delete", Code: InvalidDN, Message: "DN cannot be empty"})
	}

	err := c.withRetry(ctx, func() error {
		return c.conn.Del(ldap.NewDelRequest(dn, nil))
	})
	if err != nil {
		return c.fail("delete", err)
	}

	c.setLastError(nil)
	return nil
}

// ModifyReplace replaces all values of an attribute.
func (c *client) ModifyReplace(ctx context.Context, dn, attribute string, values []string) error {
	return c.modify(ctx, "modify_replace", dn, func(req *ldap.ModifyRequest) {
		req.Replace(attribute, values)
	})
}

// ModifyAdd adds values to an attribute.
func (c *client) ModifyAdd(ctx context.Context, dn, attribute string, values []string) error {
	return c.modify(ctx, "modify_add", dn, func(req *ldap.ModifyRequest) {
		req.Add(attribute, values)
	})
}

// ModifyDelete removes values from an attribute. An empty value list removes
// the attribute entirely.
func (c *client) ModifyDelete(ctx context.Context, dn, attribute string, values []string) error {
	return c.modify(ctx, "modify_delete", dn, func(req *ldap.ModifyRequest) {
		req.Delete(attribute, values)
	})
}

func (c *client) modify(ctx context.Context, op, dn string, build func(*ldap.ModifyRequest)) error {
	if err := c.checkConnected(op); err != nil {
		return err
	}

	req := ldap.NewModifyRequest(dn, nil)
	build(req)

	err := c.withRetry(ctx, func() error {
		return c.conn.Modify(req)
	})
	if err != nil {
		return c.fail(op, err)
	}

	c.setLastError(nil)
	return nil
}

// Rename changes an entry's leaf RDN in place.
func (c *client) Rename(ctx context.Context, dn, newRDN string) error {
	return c.modifyDN(ctx, "rename", dn, newRDN, "")
}

// Move relocates an entry under a new parent, keeping its RDN.
func (c *client) Move(ctx context.Context, dn, newParent string) error {
	segments := strings.SplitN(dn, ",", 2)
	return c.modifyDN(ctx, "move", dn, segments[0], newParent)
}

func (c *client) modifyDN(ctx context.Context, op, dn, newRDN, newSuperior string) error {
	if err := c.checkConnected(op); err != nil {
		return err
	}
	if dn == "" || newRDN == "" {
		return c.fail(op, &DirectoryError{Operation: op, Code: InvalidDN, Message: "DN and new RDN are required"})
	}

	req := ldap.NewModifyDNRequest(dn, newRDN, true, newSuperior)

	err := c.withRetry(ctx, func() error {
		return c.conn.ModifyDN(req)
	})
	if err != nil {
		return c.fail(op, err)
	}

	c.setLastError(nil)
	return nil
}

// checkConnected fails an operation when Connect was never called or the
// last connection attempt failed.
func (c *client) checkConnected(op string) error {
	if c.conn == nil {
		return c.fail(op, &DirectoryError{
			Operation: op,
			Code:      ServerConnectFailure,
			Message:   "not connected to a directory server",
		})
	}
	return nil
}

// fail records and returns the error for an operation.
func (c *client) fail(op string, err error) error {
	wrapped := WrapError(op, err)
	c.setLastError(wrapped)
	return wrapped
}

func (c *client) setLastError(err error) {
	c.lastErr = err
}

// LastError returns the error string of the most recent operation, empty on
// success.
func (c *client) LastError() string {
	if c.lastErr == nil {
		return ""
	}
	return c.lastErr.Error()
}

// LastErrorCode returns the result code of the most recent operation.
func (c *client) LastErrorCode() ResultCode {
	return ErrorCode(c.lastErr)
}

func ldapScope(scope Scope) int {
	switch scope {
	case ScopeBase:
		return ldap.ScopeBaseObject
	case ScopeOneLevel:
		return ldap.ScopeSingleLevel
	default:
		return ldap.ScopeWholeSubtree
	}
}

// withRetry executes an operation with exponential backoff for retryable
// failures.
func (c *client) withRetry(ctx context.Context, operation func() error) error {
	var lastErr error
	backoff := c.config.InitialBackoff

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.log.Debug("Retrying operation", map[string]any{
				"attempt":    attempt,
				"max_retry":  c.config.MaxRetries,
				"backoff_ms": backoff.Milliseconds(),
				"last_error": lastErr.Error(),
			})
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !c.isRetryableError(err) {
			return err
		}

		if attempt == c.config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff = min(time.Duration(float64(backoff)*c.config.BackoffFactor), c.config.MaxBackoff)
		}
	}

	c.log.Error("Operation failed after all retries exhausted", map[string]any{
		"total_attempts": c.config.MaxRetries + 1,
		"final_error":    lastErr.Error(),
	})

	return lastErr
}

// isRetryableError determines if an error should be retried.
func (c *client) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if retryable, ok := err.(RetryableError); ok {
		return retryable.IsRetryable()
	}

	if ldap.IsErrorWithCode(err, ldap.LDAPResultBusy) ||
		ldap.IsErrorWithCode(err, ldap.LDAPResultUnavailable) ||
		ldap.IsErrorWithCode(err, ldap.LDAPResultServerDown) {
		return true
	}

	return isGenericErrorRetryable(err)
}
