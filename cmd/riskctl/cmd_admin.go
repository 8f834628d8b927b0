package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/bibbank/loginrisk/pkg/auth"
	"github.com/bibbank/loginrisk/pkg/postgres"
	"github.com/bibbank/loginrisk/pkg/tlsutil"
)

func newTokenCmd() *cobra.Command {
	var (
		subject, tenant, issuer, keyFile string
		roles                            []string
		ttl                              time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the risk API",
		Long: `Signs with the RSA private key from --key-file, or with the HMAC
secret in $JWT_SECRET.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := auth.JWTConfig{Issuer: issuer, Expiration: ttl}
			if keyFile != "" {
				key, err := auth.LoadKeyFromFile(keyFile)
				if err != nil {
					return err
				}
				cfg.PrivateKeyPEM = key
			} else {
				cfg.Secret, _ = lookupEnv("JWT_SECRET")
			}

			svc, err := auth.NewJWTService(cfg)
			if err != nil {
				return err
			}
			token, err := svc.GenerateToken(subject, tenant, roles)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "caller identity recorded as the actor")
	cmd.Flags().StringVar(&tenant, "tenant", "", "restrict the token to one tenant")
	cmd.Flags().StringVar(&issuer, "issuer", "loginrisk", "token issuer")
	cmd.Flags().StringVar(&keyFile, "key-file", "", "PEM RSA private key")
	cmd.Flags().StringSliceVar(&roles, "role", []string{auth.RoleClient}, "role to grant (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", 15*time.Minute, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newKeysCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Generate an RSA key pair for signing tokens",
		Long: `Writes jwt-key.pem for token --key-file and jwt-pub.pem for the
service's JWT_PUBLIC_KEY_FILE.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			priv, pub, err := auth.GenerateKeyPair()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", outDir, err)
			}
			if err := os.WriteFile(filepath.Join(outDir, "jwt-key.pem"), priv, 0o600); err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(outDir, "jwt-pub.pem"), pub, 0o644); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote jwt-key.pem, jwt-pub.pem to %s\n", outDir)
			return err
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "keys", "output directory")
	return cmd
}

func newCertsCmd() *cobra.Command {
	var (
		hosts    []string
		outDir   string
		validFor time.Duration
	)

	cmd := &cobra.Command{
		Use:   "certs",
		Short: "Generate a development CA and server certificate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := tlsutil.GenerateSelfSignedCert(hosts, outDir, validFor); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote ca.pem, ca-key.pem, server.pem, server-key.pem to %s\n", outDir)
			return err
		},
	}
	cmd.Flags().StringSliceVar(&hosts, "host", []string{"localhost", "127.0.0.1"}, "DNS name or IP for the server certificate (repeatable)")
	cmd.Flags().StringVar(&outDir, "out", "certs", "output directory")
	cmd.Flags().DurationVar(&validFor, "valid-for", 365*24*time.Hour, "certificate lifetime")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate <up|down>",
		Short: "Apply or roll back the database schema",
		Long:  `Uses $DATABASE_URL.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, _ := lookupEnv("DATABASE_URL")
			if dsn == "" {
				return errors.New("DATABASE_URL is not set")
			}

			switch args[0] {
			case "up":
				if err := postgres.RunMigrations(dsn, dir); err != nil {
					return err
				}
			case "down":
				if err := postgres.RunMigrationsDown(dsn, dir); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown direction %q, want up or down", args[0])
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "migrations %s: done\n", args[0])
			return err
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "migrations", "migrations directory")
	return cmd
}
