package ldap

import (
	"context"
	"crypto/tls"
	"time"
)

// Attributes maps an attribute name to its ordered list of string values.
// Multi-valued attributes keep duplicates and ordering as received from the
// server.
type Attributes map[string][]string

// Clone returns a deep copy of the attribute map.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for name, values := range a {
		copied := make([]string, len(values))
		copy(copied, values)
		out[name] = copied
	}
	return out
}

// ResultCode classifies the outcome of a directory operation.
type ResultCode int

const (
	Success ResultCode = iota
	CouldNotOpenConfig
	MissingConfigParameter
	ServerConnectFailure
	OperationFailure
	ObjectNotFound
	AttributeEntryNotFound
	InvalidDN
)

// String returns the string representation of a result code.
func (c ResultCode) String() string {
	switch c {
	case Success:
		return "success"
	case CouldNotOpenConfig:
		return "could_not_open_config"
	case MissingConfigParameter:
		return "missing_config_parameter"
	case ServerConnectFailure:
		return "server_connect_failure"
	case OperationFailure:
		return "operation_failure"
	case ObjectNotFound:
		return "object_not_found"
	case AttributeEntryNotFound:
		return "attribute_entry_not_found"
	case InvalidDN:
		return "invalid_dn"
	default:
		return "unknown"
	}
}

// Scope defines LDAP search scope.
type Scope int

const (
	ScopeBase Scope = iota
	ScopeOneLevel
	ScopeSubtree
)

// String returns the string representation of a search scope.
func (s Scope) String() string {
	switch s {
	case ScopeBase:
		return "base"
	case ScopeOneLevel:
		return "onelevel"
	case ScopeSubtree:
		return "subtree"
	default:
		return "unknown"
	}
}

// ConnectionConfig holds configuration for directory connections.
type ConnectionConfig struct {
	// Connection settings
	URI     string        // Direct LDAP URL (ldap:// or ldaps://)
	Domain  string        // Domain for SRV discovery (used when URI is empty)
	Timeout time.Duration // Dial and operation timeout

	// Authentication settings
	BindDN         string // Bind identity (DN, UPN, or SAM format)
	BindPassword   string // Password for simple bind
	KerberosRealm  string // Kerberos realm for GSSAPI bind
	KerberosConfig string // Path to krb5.conf
	KerberosCCache string // Path to a credential cache for GSSAPI bind

	// TLS settings
	TLSConfig *tls.Config
	UseTLS    bool

	// Retry settings
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultConfig returns a secure default configuration.
func DefaultConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Timeout:        30 * time.Second,
		UseTLS:         true,
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
}

// Client issues operations against the remote directory. It is the external
// collaborator consumed by the directory session: every call reports success
// or failure, and the last error string/code can be retrieved afterwards via
// LastError/LastErrorCode.
type Client interface {
	// Connection management
	Connect(ctx context.Context, uri, bindDN, password string) error
	Close() error
	IsSecure() bool

	// Basic operations
	Search(ctx context.Context, base string, scope Scope, filter string, attributes []string) (map[string]Attributes, error)
	Add(ctx context.Context, dn string, attributes Attributes) error
	Delete(ctx context.Context, dn string) error
	ModifyReplace(ctx context.Context, dn, attribute string, values []string) error
	ModifyAdd(ctx context.Context, dn, attribute string, values []string) error
	ModifyDelete(ctx context.Context, dn, attribute string, values []string) error
	Rename(ctx context.Context, dn, newRDN string) error
	Move(ctx context.Context, dn, newParent string) error

	// Specialized variants (schema-aware mutations)
	RenameUser(ctx context.Context, dn, newName string) error
	RenameGroup(ctx context.Context, dn, newName string) error
	MoveUser(ctx context.Context, dn, newParent string) error
	CreateUser(ctx context.Context, name, dn string) error
	CreateComputer(ctx context.Context, name, dn string) error
	CreateGroup(ctx context.Context, name, dn string) error
	CreateOU(ctx context.Context, name, dn string) error
	SetPassword(ctx context.Context, dn, password string) error

	// Status of the most recent operation
	LastError() string
	LastErrorCode() ResultCode
}

// RetryableError indicates an error that can be retried.
type RetryableError interface {
	error
	IsRetryable() bool
}
