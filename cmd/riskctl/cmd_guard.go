package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	grpcpresentation "github.com/bibbank/loginrisk/internal/presentation/grpc"
	"github.com/bibbank/loginrisk/pkg/tlsutil"
)

// connFlags are shared by the commands that talk to a running service.
type connFlags struct {
	addr      string
	token     string
	caFile    string
	plaintext bool
	timeout   time.Duration
}

func (f *connFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&f.addr, "addr", "localhost:8090", "gRPC address of the service")
	cmd.PersistentFlags().StringVar(&f.token, "token", "", "bearer token (default $RISKCTL_TOKEN)")
	cmd.PersistentFlags().StringVar(&f.caFile, "ca-file", "", "CA bundle for the server certificate")
	cmd.PersistentFlags().BoolVar(&f.plaintext, "plaintext", false, "connect without TLS")
	cmd.PersistentFlags().DurationVar(&f.timeout, "timeout", 10*time.Second, "per-call timeout")
}

// dial connects and returns a context carrying the bearer token.
func (f *connFlags) dial(parent context.Context) (grpcpresentation.LoginRiskServiceClient, context.Context, func(), error) {
	token := f.token
	if token == "" {
		token, _ = lookupEnv("RISKCTL_TOKEN")
	}
	if token == "" {
		return nil, nil, nil, errors.New("a token is required: pass --token or set RISKCTL_TOKEN")
	}

	creds := insecure.NewCredentials()
	if !f.plaintext {
		tlsCfg, err := tlsutil.ClientConfig(f.caFile, false)
		if err != nil {
			return nil, nil, nil, err
		}
		creds = credentials.NewTLS(tlsCfg)
	}

	conn, err := grpc.NewClient(f.addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to %s: %w", f.addr, err)
	}

	ctx, cancel := context.WithTimeout(parent, f.timeout)
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	cleanup := func() {
		cancel()
		_ = conn.Close()
	}
	return grpcpresentation.NewLoginRiskServiceClient(conn), ctx, cleanup, nil
}

func newGuardCmd() *cobra.Command {
	var conn connFlags

	cmd := &cobra.Command{
		Use:   "guard",
		Short: "Inspect or reset the safety guard",
	}
	conn.register(cmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the guard state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, ctx, done, err := conn.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			resp, err := client.GetGuardState(ctx, &grpcpresentation.GetGuardStateRequest{})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp.Guard)
		},
	})

	var (
		v2, shadow int32
		tenants    []string
		buckets    []int32
		useDefault bool
	)
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Re-arm a rolled-back guard",
		Long: `Re-arms the guard with the given rollout, or with the service's
configured rollout when --default is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := &grpcpresentation.ResetGuardRequest{}
			if !useDefault {
				req.Rollout = &grpcpresentation.RolloutMsg{
					V2Percentage:     v2,
					ShadowPercentage: shadow,
					TenantAllowList:  tenants,
					BucketAllowList:  buckets,
				}
			}

			client, ctx, done, err := conn.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			resp, err := client.ResetGuard(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "guard reset")
			return writeJSON(cmd.OutOrStdout(), resp.Guard)
		},
	}
	reset.Flags().Int32Var(&v2, "v2", 0, "percentage of traffic on v2")
	reset.Flags().Int32Var(&shadow, "shadow", 0, "percentage of v1 traffic shadowed by v2")
	reset.Flags().StringSliceVar(&tenants, "tenant", nil, "tenant forced onto v2 (repeatable)")
	reset.Flags().Int32SliceVar(&buckets, "bucket", nil, "bucket 0..99 forced onto v2 (repeatable)")
	reset.Flags().BoolVar(&useDefault, "default", false, "use the service's configured rollout")
	reset.MarkFlagsMutuallyExclusive("default", "v2")
	cmd.AddCommand(reset)

	return cmd
}

func newAuditCmd() *cobra.Command {
	var (
		conn  connFlags
		kind  string
		limit int32
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List recent audit entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, ctx, done, err := conn.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			resp, err := client.ListAuditEntries(ctx, &grpcpresentation.ListAuditEntriesRequest{Kind: kind, Limit: limit})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp.Entries)
		},
	}
	conn.register(cmd)
	cmd.Flags().StringVar(&kind, "kind", "", "only entries of this kind")
	cmd.Flags().Int32Var(&limit, "limit", 50, "maximum number of entries")
	return cmd
}
