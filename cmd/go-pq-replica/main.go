package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	replica "github.com/pgtools/go-pq-replica"
	"github.com/pgtools/go-pq-replica/config"
	replhttp "github.com/pgtools/go-pq-replica/internal/http"
	"github.com/pgtools/go-pq-replica/logger"
	"github.com/pgtools/go-pq-replica/pq"
	"github.com/pgtools/go-pq-replica/pq/preflight"
	"github.com/pgtools/go-pq-replica/pq/status"
	"github.com/pgtools/go-pq-replica/schema"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "go-pq-replica",
		Short:        "Set up PostgreSQL logical replication between a primary and a replica",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML or JSON config file (defaults to environment variables)")

	cmd.AddCommand(
		setupCmd(&configPath),
		preflightCmd(&configPath),
		statusCmd(&configPath),
		serveCmd(&configPath),
		schemaCmd(&configPath),
	)

	return cmd
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.FromEnv()
	}

	if strings.HasSuffix(path, ".json") {
		return config.ReadConfigJSON(path)
	}

	return config.ReadConfigYAML(path)
}

func newReplicator(path string) (replica.Replicator, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}

	return replica.New(cfg)
}

func setupCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Configure publication, subscription and report sync status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := newReplicator(*configPath)
			if err != nil {
				return err
			}

			result, err := r.Setup(cmd.Context())
			if err != nil {
				return err
			}

			printReport(result.Report)
			return nil
		},
	}
}

func preflightCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check the primary server's logical replication settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := newReplicator(*configPath)
			if err != nil {
				return err
			}

			result, err := r.Preflight(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("wal_level: %s\n", result.Config.WalLevel)
			fmt.Printf("max_replication_slots: %d\n", result.Config.MaxReplicationSlots)
			fmt.Printf("max_wal_senders: %d\n", result.Config.MaxWalSenders)
			for _, warning := range result.Warnings {
				fmt.Println("warning: " + warning)
			}

			if !result.Ready {
				return &preflight.Error{WalLevel: result.Config.WalLevel}
			}

			fmt.Println("primary is ready for logical replication")
			return nil
		},
	}
}

func statusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report subscription and per-relation sync state on the replica",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := newReplicator(*configPath)
			if err != nil {
				return err
			}

			report, err := r.Status(cmd.Context())
			if err != nil {
				return err
			}

			printReport(report)
			return nil
		},
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run setup, then serve metrics and replication status over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := newReplicator(*configPath)
			if err != nil {
				return err
			}

			if _, err = r.Setup(cmd.Context()); err != nil {
				return err
			}

			server := replhttp.NewServer(*r.GetConfig(), r.Registry(), r)
			go server.Listen()

			cancelCh := make(chan os.Signal, 1)
			signal.Notify(cancelCh, syscall.SIGTERM, syscall.SIGINT)
			<-cancelCh

			server.Shutdown()
			return nil
		},
	}
}

func schemaCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage the fixed products/orders tables on one endpoint",
	}

	cmd.AddCommand(schemaCreateCmd(configPath), schemaDropCmd(configPath))

	return cmd
}

func schemaCreateCmd(configPath *string) *cobra.Command {
	var (
		target   string
		recreate bool
		yes      bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the tables (idempotent unless --recreate)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			definer, closeConn, err := newDefiner(*configPath, target, yes)
			if err != nil {
				return err
			}
			defer closeConn()

			if recreate {
				return definer.Recreate(cmd.Context())
			}

			return definer.Create(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&target, "target", "primary", "endpoint to act on: primary or replica")
	cmd.Flags().BoolVar(&recreate, "recreate", false, "drop existing tables before creating")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm destructive actions")

	return cmd
}

func schemaDropCmd(configPath *string) *cobra.Command {
	var (
		target string
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop the tables (requires --yes)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			definer, closeConn, err := newDefiner(*configPath, target, yes)
			if err != nil {
				return err
			}
			defer closeConn()

			return definer.Drop(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&target, "target", "primary", "endpoint to act on: primary or replica")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm destructive actions")

	return cmd
}

func newDefiner(configPath, target string, yes bool) (*schema.Definer, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	cfg.SetDefault()
	logger.InitLogger(cfg.Logger.Logger)

	var endpoint config.Endpoint
	switch target {
	case "primary":
		endpoint = cfg.Primary
	case "replica":
		endpoint = cfg.Replica
	default:
		return nil, nil, fmt.Errorf("unknown target %q, expected primary or replica", target)
	}

	ctx := context.Background()
	conn, err := pq.NewConnection(ctx, endpoint.DSN())
	if err != nil {
		return nil, nil, &pq.ConnectivityError{Host: endpoint.Host, Err: err}
	}

	closeConn := func() {
		_ = conn.Close(ctx)
	}

	return schema.NewDefiner(conn, func(string) bool { return yes }), closeConn, nil
}

func printReport(report *status.Report) {
	if report == nil {
		return
	}

	if report.Empty() {
		fmt.Println("no subscriptions found")
		return
	}

	fmt.Println("subscriptions:")
	for _, sub := range report.Subscriptions {
		fmt.Printf("  %s enabled=%t connection=%s\n", sub.Name, sub.Enabled, sub.ConnInfo)
	}

	if len(report.Relations) > 0 {
		fmt.Println("relations:")
		for _, rel := range report.Relations {
			fmt.Printf("  %s %s state=%s received_lsn=%s\n", rel.Subscription, rel.Relation, rel.State, rel.ReceivedLSN)
		}
	}
}
