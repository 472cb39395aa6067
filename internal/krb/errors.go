package krb

import "fmt"

// ErrorKind classifies credential cache failures.
type ErrorKind int

const (
	// InitializationFailed means the Kerberos configuration could not be
	// loaded. This is fatal at construction time.
	InitializationFailed ErrorKind = iota
	// AuthenticationFailed means obtaining fresh credentials failed.
	AuthenticationFailed
	// RenewalFailed means renewing an existing ticket failed.
	RenewalFailed
	// NoSuchPrincipal means no cache is held for the requested principal.
	NoSuchPrincipal
)

// String returns the string representation of an error kind.
func (k ErrorKind) String() string {
	switch k {
	case InitializationFailed:
		return "initialization_failed"
	case AuthenticationFailed:
		return "authentication_failed"
	case RenewalFailed:
		return "renewal_failed"
	case NoSuchPrincipal:
		return "no_such_principal"
	default:
		return "unknown"
	}
}

// Error carries the failed operation, a human-readable message and the
// underlying Kerberos error.
type Error struct {
	Kind      ErrorKind
	Principal string
	Message   string
	Cause     error
}

// Error returns a formatted error message.
func (e *Error) Error() string {
	msg := e.Message
	if e.Principal != "" {
		msg = fmt.Sprintf("%s (principal %s)", msg, e.Principal)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the kind of a credential cache error, or -1 for other
// errors.
func KindOf(err error) ErrorKind {
	if cacheErr, ok := err.(*Error); ok {
		return cacheErr.Kind
	}
	return -1
}
