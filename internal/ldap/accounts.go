package ldap

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// userAccountControl flags (from Microsoft documentation).
const (
	uacAccountDisabled         int32 = 0x00000002
	uacNormalAccount           int32 = 0x00000200
	uacWorkstationTrustAccount int32 = 0x00001000
)

// RenameUser renames a user entry: the RDN, sAMAccountName and the local
// part of userPrincipalName are all rewritten to the new name.
func (c *client) RenameUser(ctx context.Context, dn, newName string) error {
	if err := c.checkConnected("rename_user"); err != nil {
		return err
	}
	if newName == "" {
		return c.fail("rename_user", &DirectoryError{Operation: "rename_user", Code: InvalidDN, Message: "new name cannot be empty"})
	}

	upnSuffix, err := c.userPrincipalSuffix(ctx, dn)
	if err != nil {
		return c.fail("rename_user", err)
	}

	if err := c.Rename(ctx, dn, "cn="+EscapeDNValue(newName)); err != nil {
		return err
	}

	renamedDN := RenameDN(dn, newName)
	if err := c.ModifyReplace(ctx, renamedDN, "sAMAccountName", []string{newName}); err != nil {
		return err
	}
	if upnSuffix != "" {
		if err := c.ModifyReplace(ctx, renamedDN, "userPrincipalName", []string{newName + "@" + upnSuffix}); err != nil {
			return err
		}
	}

	c.setLastError(nil)
	return nil
}

// userPrincipalSuffix resolves the realm part of an entry's UPN, falling
// back to the configured realm.
func (c *client) userPrincipalSuffix(ctx context.Context, dn string) (string, error) {
	entries, err := c.Search(ctx, dn, ScopeBase, "", []string{"userPrincipalName"})
	if err != nil {
		return "", err
	}
	for _, attrs := range entries {
		for _, upn := range attrs["userPrincipalName"] {
			if at := strings.LastIndex(upn, "@"); at >= 0 {
				return upn[at+1:], nil
			}
		}
	}
	if c.config.KerberosRealm != "" {
		return strings.ToLower(c.config.KerberosRealm), nil
	}
	return strings.ToLower(c.config.Domain), nil
}

// RenameGroup renames a group entry: RDN and sAMAccountName.
func (c *client) RenameGroup(ctx context.Context, dn, newName string) error {
	if err := c.checkConnected("rename_group"); err != nil {
		return err
	}
	if newName == "" {
		return c.fail("rename_group", &DirectoryError{Operation: "rename_group", Code: InvalidDN, Message: "new name cannot be empty"})
	}

	if err := c.Rename(ctx, dn, "cn="+EscapeDNValue(newName)); err != nil {
		return err
	}
	if err := c.ModifyReplace(ctx, RenameDN(dn, newName), "sAMAccountName", []string{newName}); err != nil {
		return err
	}

	c.setLastError(nil)
	return nil
}

// MoveUser relocates a user entry under a new parent container.
func (c *client) MoveUser(ctx context.Context, dn, newParent string) error {
	return c.Move(ctx, dn, newParent)
}

// CreateUser creates a user entry. New accounts start disabled until a
// password is set.
func (c *client) CreateUser(ctx context.Context, name, dn string) error {
	return c.Add(ctx, dn, Attributes{
		"objectClass":        {"top", "person", "organizationalPerson", "user"},
		"cn":                 {name},
		"sAMAccountName":     {name},
		"userAccountControl": {fmt.Sprintf("%d", uacNormalAccount|uacAccountDisabled)},
	})
}

// CreateComputer creates a computer entry. The SAM account name is the
// uppercased computer name with a trailing dollar sign, per AD convention.
func (c *client) CreateComputer(ctx context.Context, name, dn string) error {
	return c.Add(ctx, dn, Attributes{
		"objectClass":        {"top", "person", "organizationalPerson", "user", "computer"},
		"cn":                 {name},
		"sAMAccountName":     {strings.ToUpper(name) + "$"},
		"userAccountControl": {fmt.Sprintf("%d", uacWorkstationTrustAccount)},
	})
}

// CreateGroup creates a global security group entry.
func (c *client) CreateGroup(ctx context.Context, name, dn string) error {
	return c.Add(ctx, dn, Attributes{
		"objectClass":    {"top", "group"},
		"cn":             {name},
		"sAMAccountName": {name},
	})
}

// CreateOU creates an organizational unit entry.
func (c *client) CreateOU(ctx context.Context, name, dn string) error {
	return c.Add(ctx, dn, Attributes{
		"objectClass": {"top", "organizationalUnit"},
		"ou":          {name},
	})
}

// SetPassword sets the unicodePwd attribute of an entry. The server only
// accepts this over an encrypted connection, so callers on a plaintext
// connection fail before any bytes reach the wire.
func (c *client) SetPassword(ctx context.Context, dn, password string) error {
	if err := c.checkConnected("set_password"); err != nil {
		return err
	}
	if !c.IsSecure() {
		return c.fail("set_password", &DirectoryError{
			Operation: "set_password",
			Code:      OperationFailure,
			Message:   "password changes require an encrypted connection",
			DN:        dn,
		})
	}

	encoded, err := encodeUnicodePwd(password)
	if err != nil {
		return c.fail("set_password", err)
	}

	return c.ModifyReplace(ctx, dn, "unicodePwd", []string{encoded})
}

// encodeUnicodePwd produces the UTF-16LE encoding of the quoted password,
// the wire format AD requires for unicodePwd.
func encodeUnicodePwd(password string) (string, error) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	encoded, err := enc.String(`"` + password + `"`)
	if err != nil {
		return "", fmt.Errorf("encoding password: %w", err)
	}
	return encoded, nil
}
