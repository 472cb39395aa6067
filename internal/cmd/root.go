// Package cmd implements the admc command line interface.
package cmd

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Samael-fhts/admc/internal/config"
	"github.com/Samael-fhts/admc/internal/directory"
	"github.com/Samael-fhts/admc/internal/ldap"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "admc",
	Short:         "Directory management tool",
	Long:          "admc queries and manages entries of an LDAP directory.",
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.ArbitraryArgs,
	// Unknown commands and a bare invocation print the usage message to
	// standard output and perform no directory operation.
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprint(cmd.OutOrStdout(), cmd.UsageString())
		return nil
	},
}

// ExecuteContext runs the root command.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "configuration file (default: user config falling back to system config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// checkArgs validates the argument count. A wrong count prints the usage
// message to standard output and reports false, so the command performs no
// directory operation.
func checkArgs(cmd *cobra.Command, args []string, want int) bool {
	if len(args) == want {
		return true
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Command %q needs %d arguments!\n", cmd.Name(), want)
	fmt.Fprint(cmd.OutOrStdout(), cmd.UsageString())
	return false
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFrom(configPath)
	}
	return config.Load()
}

// newSession builds a connected session from the configuration file. The
// returned closer releases the connection and flushes the logger.
func newSession(ctx context.Context) (*directory.Session, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	zapLogger := zap.NewNop()
	if verbose {
		if zapLogger, err = zap.NewDevelopment(); err != nil {
			return nil, nil, fmt.Errorf("initializing logger: %w", err)
		}
	}
	logger := ldap.NewZapLogger(zapLogger)

	connCfg := ldap.DefaultConfig()
	connCfg.URI = cfg.URI
	connCfg.Domain = cfg.Domain
	connCfg.BindDN = cfg.BindIdentity
	connCfg.BindPassword = cfg.BindSecret
	connCfg.KerberosConfig = cfg.Krb5Conf
	connCfg.KerberosCCache = cfg.Krb5CCache
	connCfg.UseTLS = cfg.UseTLS
	connCfg.MaxRetries = cfg.MaxRetries
	if cfg.TimeoutSeconds > 0 {
		connCfg.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	connCfg.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}

	client := ldap.NewClient(connCfg, logger)
	session := directory.NewSession(client, cfg.SearchBase, logger)

	closer := func() {
		_ = session.Close()
		_ = zapLogger.Sync()
	}

	if err := session.Connect(ctx, cfg.URI, cfg.BindIdentity, cfg.BindSecret); err != nil {
		closer()
		return nil, nil, err
	}

	return session, closer, nil
}
