package ldap

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

// performKerberosBind authenticates an LDAP connection via GSSAPI using an
// existing credential cache.
func performKerberosBind(conn *ldap.Conn, cfg *ConnectionConfig, server *ServerInfo) error {
	krb5confPath := cfg.KerberosConfig
	if krb5confPath == "" {
		krb5confPath = "/etc/krb5.conf"
	}
	if !fileExists(krb5confPath) {
		return &DirectoryError{
			Operation: "kerberos_bind",
			Code:      CouldNotOpenConfig,
			Message:   fmt.Sprintf("kerberos configuration file not found at %s", krb5confPath),
		}
	}

	ccachePath := cfg.KerberosCCache
	if ccachePath == "" {
		ccachePath = DefaultCCachePath()
	}
	if !fileExists(ccachePath) {
		return &DirectoryError{
			Operation: "kerberos_bind",
			Code:      ServerConnectFailure,
			Message:   fmt.Sprintf("credential cache not found at %s", ccachePath),
		}
	}

	gssapiClient, err := gssapi.NewClientFromCCache(ccachePath, krb5confPath, krb5client.DisablePAFXFAST(true))
	if err != nil {
		return fmt.Errorf("creating GSSAPI client: %w", err)
	}
	defer func() {
		_ = gssapiClient.DeleteSecContext()
	}()

	spn, err := buildServicePrincipal(server)
	if err != nil {
		return err
	}

	if err := conn.GSSAPIBind(gssapiClient, spn, ""); err != nil {
		return fmt.Errorf("GSSAPI bind failed: %w", err)
	}

	return nil
}

// buildServicePrincipal constructs the ldap/<host> service principal for a
// server. The SPN never carries a port.
func buildServicePrincipal(server *ServerInfo) (string, error) {
	if server == nil || server.Host == "" {
		return "", fmt.Errorf("server hostname is required for service principal")
	}

	hostname := server.Host
	if colon := strings.Index(hostname, ":"); colon != -1 {
		hostname = hostname[:colon]
	}

	return "ldap/" + hostname, nil
}

// DefaultCCachePath returns the default credential cache location, honoring
// KRB5CCNAME with its optional FILE: prefix.
func DefaultCCachePath() string {
	if ccache := os.Getenv("KRB5CCNAME"); ccache != "" {
		return strings.TrimPrefix(ccache, "FILE:")
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}

// fileExists checks if a file exists and is readable.
func fileExists(path string) bool {
	if path == "" {
		return false
	}
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	file.Close()
	return true
}
