package ldap

import (
	"errors"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapResultCode(t *testing.T) {
	testCases := []struct {
		name     string
		ldapCode uint16
		expected ResultCode
	}{
		{"no such object", ldap.LDAPResultNoSuchObject, ObjectNotFound},
		{"no such attribute", ldap.LDAPResultNoSuchAttribute, AttributeEntryNotFound},
		{"undefined attribute type", ldap.LDAPResultUndefinedAttributeType, AttributeEntryNotFound},
		{"invalid dn syntax", ldap.LDAPResultInvalidDNSyntax, InvalidDN},
		{"naming violation", ldap.LDAPResultNamingViolation, InvalidDN},
		{"server down", ldap.LDAPResultServerDown, ServerConnectFailure},
		{"connect error", ldap.LDAPResultConnectError, ServerConnectFailure},
		{"unavailable", ldap.LDAPResultUnavailable, ServerConnectFailure},
		{"insufficient rights", ldap.LDAPResultInsufficientAccessRights, OperationFailure},
		{"success", ldap.LDAPResultSuccess, Success},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, mapResultCode(tc.ldapCode))
		})
	}
}

func TestNewDirectoryError(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		assert.Nil(t, NewDirectoryError("search", nil))
	})

	t.Run("ldap error keeps server message", func(t *testing.T) {
		cause := ldap.NewError(ldap.LDAPResultNoSuchObject, errors.New("no such entry"))
		dirErr := NewDirectoryError("search", cause)
		require.NotNil(t, dirErr)
		assert.Equal(t, ObjectNotFound, dirErr.Code)
		assert.Equal(t, uint16(ldap.LDAPResultNoSuchObject), dirErr.LDAPCode)
		assert.Equal(t, "no such entry", dirErr.ServerMsg)
		assert.ErrorIs(t, dirErr, cause)
	})

	t.Run("generic connection error", func(t *testing.T) {
		dirErr := NewDirectoryError("connect", errors.New("connection refused"))
		require.NotNil(t, dirErr)
		assert.Equal(t, ServerConnectFailure, dirErr.Code)
		assert.True(t, dirErr.IsRetryable())
	})
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, Success, ErrorCode(nil))
	assert.Equal(t, ObjectNotFound, ErrorCode(&DirectoryError{Code: ObjectNotFound}))
	assert.Equal(t, ServerConnectFailure, ErrorCode(errors.New("network timeout")))
	assert.Equal(t, OperationFailure, ErrorCode(errors.New("something else")))
}

func TestIsNotFoundError(t *testing.T) {
	notFound := NewDirectoryError("search", ldap.NewError(ldap.LDAPResultNoSuchObject, errors.New("gone")))
	assert.True(t, IsNotFoundError(notFound))
	assert.False(t, IsNotFoundError(errors.New("boom")))
	assert.False(t, IsNotFoundError(nil))
}

func TestRetryability(t *testing.T) {
	assert.True(t, isLDAPCodeRetryable(ldap.LDAPResultBusy))
	assert.True(t, isLDAPCodeRetryable(ldap.LDAPResultServerDown))
	assert.False(t, isLDAPCodeRetryable(ldap.LDAPResultNoSuchObject))

	assert.True(t, IsRetryableError(errors.New("broken pipe")))
	assert.False(t, IsRetryableError(errors.New("invalid credentials")))
	assert.False(t, IsRetryableError(nil))
}
