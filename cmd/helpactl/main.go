package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/yourhelpa/helpa-server-go/internal/config"
	"github.com/yourhelpa/helpa-server-go/internal/database"
	"github.com/yourhelpa/helpa-server-go/internal/jobs"
	"github.com/yourhelpa/helpa-server-go/internal/repository"
	"github.com/yourhelpa/helpa-server-go/internal/util"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "helpactl",
		Short:         "Operator tools for the Helpa webhook server",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(signCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(pruneEventsCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func signCmd() *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:       "sign <meta|monnify> < payload.json",
		Short:     "Print the signature header for a webhook payload read from stdin",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"meta", "monnify"},
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}
			header, err := signatureHeader(args[0], secret, body)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), header)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (defaults to META_APP_SECRET or MONNIFY_SECRET_KEY)")
	return cmd
}

func signatureHeader(provider, secret string, body []byte) (string, error) {
	switch provider {
	case "meta":
		if secret == "" {
			secret = os.Getenv("META_APP_SECRET")
		}
		return "X-Hub-Signature-256: sha256=" + util.HmacSHA256(secret, body), nil
	case "monnify":
		if secret == "" {
			secret = os.Getenv("MONNIFY_SECRET_KEY")
		}
		return "monnify-signature: " + util.HmacSHA512(secret, body), nil
	default:
		return "", fmt.Errorf("unknown provider %q", provider)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := database.Connect(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
}

func pruneEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune-events",
		Short: "Delete payment events older than PAYMENT_EVENT_RETENTION_DAYS",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := database.Connect(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			job := jobs.NewCleanupJob(repository.NewPaymentEventRepository(db.DB), cfg.PaymentEventRetention(), config.CleanupJobInterval)
			n, err := job.Prune(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d payment events\n", n)
			return nil
		},
	}
}
