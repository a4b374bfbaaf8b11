// Package cli is the storefront command line: the HTTP server, schema
// migration, the outbox relay and an ops token issuer.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"gitlab.connectwisedev.com/storefront-service/pkg/app"
	"gitlab.connectwisedev.com/storefront-service/pkg/config"
	"gitlab.connectwisedev.com/storefront-service/pkg/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Driver  string // overrides STORAGE_DRIVER when set
}

// NewRootCommand creates the storefront root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "storefront",
		Short: "Storefront checkout service",
		Long:  "Catalog, cart and checkout API with its order, payment and transaction ledger.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Driver != "" && opts.Driver != config.DriverPostgres && opts.Driver != config.DriverMemory {
				return fmt.Errorf("invalid driver %q: must be %q or %q", opts.Driver, config.DriverPostgres, config.DriverMemory)
			}
			config.LoadEnv()
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "storage driver (postgres|memory); defaults to STORAGE_DRIVER")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewRelayCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

// logger builds the process logger for one subcommand.
func (o *RootOptions) logger(service string) *slog.Logger {
	if o.Verbose {
		return logging.NewWithWriter(os.Stdout, service, "debug")
	}
	return logging.New(service)
}

// loadConfig reads the environment and applies flag overrides.
func (o *RootOptions) loadConfig() (config.Config, error) {
	if o.Driver != "" {
		os.Setenv("STORAGE_DRIVER", o.Driver)
	}
	return config.Load()
}

// open loads the config and wires the application.
func (o *RootOptions) open(service string) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return app.New(cfg, o.logger(service), app.Options{Service: service})
}
