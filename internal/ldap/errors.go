package ldap

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// DirectoryError provides enhanced error information for directory
// operations. It carries the mapped result code and the server-provided
// message so that callers can surface the underlying failure verbatim.
type DirectoryError struct {
	Operation string     // The operation that failed
	Code      ResultCode // Mapped result code
	LDAPCode  uint16     // Raw LDAP result code, if any
	Message   string     // Human-readable message
	ServerMsg string     // Server-provided message
	DN        string     // DN involved in the operation (if applicable)
	Retryable bool       // Whether the error is retryable
	Cause     error      // Underlying error
}

func (e *DirectoryError) Error() string {
	var parts []string

	if e.LDAPCode > 0 {
		parts = append(parts, fmt.Sprintf("directory %s failed (code %d)", e.Operation, e.LDAPCode))
	} else {
		parts = append(parts, fmt.Sprintf("directory %s failed", e.Operation))
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.ServerMsg != "" && e.ServerMsg != e.Message {
		parts = append(parts, fmt.Sprintf("server: %s", e.ServerMsg))
	}

	if e.DN != "" {
		parts = append(parts, fmt.Sprintf("DN: %s", e.DN))
	}

	return strings.Join(parts, " - ")
}

func (e *DirectoryError) IsRetryable() bool {
	return e.Retryable
}

func (e *DirectoryError) Unwrap() error {
	return e.Cause
}

// NewDirectoryError creates a new directory error from an underlying failure.
func NewDirectoryError(operation string, err error) *DirectoryError {
	if err == nil {
		return nil
	}

	dirErr := &DirectoryError{
		Operation: operation,
		Cause:     err,
	}

	if ldapErr, ok := err.(*ldap.Error); ok {
		dirErr.LDAPCode = ldapErr.ResultCode
		dirErr.ServerMsg = ldapErr.Err.Error()
		dirErr.Code = mapResultCode(ldapErr.ResultCode)
		dirErr.Retryable = isLDAPCodeRetryable(ldapErr.ResultCode)
		dirErr.Message = ldap.LDAPResultCodeMap[ldapErr.ResultCode]
	} else {
		dirErr.Code = categorizeGenericError(err)
		dirErr.Retryable = isGenericErrorRetryable(err)
		dirErr.Message = err.Error()
	}

	return dirErr
}

// WrapError wraps an error with operation context.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}

	if dirErr, ok := err.(*DirectoryError); ok {
		if dirErr.Operation == "" {
			dirErr.Operation = operation
		}
		return dirErr
	}

	return NewDirectoryError(operation, err)
}

// mapResultCode maps a raw LDAP result code onto the coarse result codes the
// session layer works with.
func mapResultCode(code uint16) ResultCode {
	switch code {
	case ldap.LDAPResultSuccess:
		return Success

	case ldap.LDAPResultNoSuchObject:
		return ObjectNotFound

	case ldap.LDAPResultNoSuchAttribute,
		ldap.LDAPResultUndefinedAttributeType:
		return AttributeEntryNotFound

	case ldap.LDAPResultInvalidDNSyntax,
		ldap.LDAPResultNamingViolation:
		return InvalidDN

	case ldap.LDAPResultServerDown,
		ldap.LDAPResultConnectError,
		ldap.LDAPResultUnavailable:
		return ServerConnectFailure

	default:
		return OperationFailure
	}
}

// categorizeGenericError maps non-LDAP errors by message inspection.
func categorizeGenericError(err error) ResultCode {
	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset") {
		return ServerConnectFailure
	}

	return OperationFailure
}

// isLDAPCodeRetryable determines if an LDAP result code indicates a
// retryable condition.
func isLDAPCodeRetryable(code uint16) bool {
	switch code {
	case ldap.LDAPResultBusy,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultServerDown,
		ldap.LDAPResultTimeLimitExceeded,
		ldap.LDAPResultConnectError:
		return true
	default:
		return false
	}
}

// isGenericErrorRetryable determines if a generic error is retryable.
func isGenericErrorRetryable(err error) bool {
	errStr := strings.ToLower(err.Error())

	retryablePatterns := []string{
		"connection",
		"timeout",
		"network",
		"broken pipe",
		"connection reset",
		"temporary failure",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsRetryableError checks if an error is retryable.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if retryable, ok := err.(RetryableError); ok {
		return retryable.IsRetryable()
	}

	return isGenericErrorRetryable(err)
}

// ErrorCode returns the mapped result code of an error, OperationFailure
// when the error carries no code, and Success for nil.
func ErrorCode(err error) ResultCode {
	if err == nil {
		return Success
	}

	if dirErr, ok := err.(*DirectoryError); ok {
		return dirErr.Code
	}

	if ldapErr, ok := err.(*ldap.Error); ok {
		return mapResultCode(ldapErr.ResultCode)
	}

	return categorizeGenericError(err)
}

// IsNotFoundError checks if an error indicates a missing object.
func IsNotFoundError(err error) bool {
	return ErrorCode(err) == ObjectNotFound
}

// IsConnectError checks if an error indicates a connectivity problem.
func IsConnectError(err error) bool {
	return ErrorCode(err) == ServerConnectFailure
}
