package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gitlab.connectwisedev.com/storefront-service/pkg/outbox"
)

// RelayOptions holds flags for the relay command.
type RelayOptions struct {
	*RootOptions
	Batch    int
	Interval time.Duration
	Once     bool
}

// NewRelayCommand creates the relay command.
func NewRelayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RelayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Publish pending outbox events to Kafka",
		Long: `Poll the outbox table and publish order events to KAFKA_BROKERS.

Example:
  storefront relay --interval 500ms
  storefront relay --once`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open("relay")
			if err != nil {
				return err
			}
			defer a.Close()

			pub, err := outbox.NewKafkaPublisher(a.Config.KafkaBrokers)
			if err != nil {
				return fmt.Errorf("relay needs KAFKA_BROKERS: %w", err)
			}
			defer pub.Close()

			relay := outbox.NewRelay(a.Store, pub, a.Log, a.Metrics).WithPolling(opts.Batch, opts.Interval)
			if opts.Once {
				n, err := relay.RunOnce(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "relayed %d events\n", n)
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a.Log.Info("outbox relay started", "topic", a.Config.KafkaTopic, "brokers", a.Config.KafkaBrokers)
			return relay.Run(ctx)
		},
	}

	cmd.Flags().IntVar(&opts.Batch, "batch", 100, "events per poll")
	cmd.Flags().DurationVar(&opts.Interval, "interval", time.Second, "idle wait between polls")
	cmd.Flags().BoolVar(&opts.Once, "once", false, "publish one batch and exit")

	return cmd
}
