package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gitlab.connectwisedev.com/storefront-service/pkg/outbox"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr            string
	Migrate         bool
	Relay           bool
	ShutdownTimeout time.Duration
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the storefront HTTP API until SIGINT or SIGTERM.

Example:
  storefront serve --migrate
  storefront serve --driver memory --addr :8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address; defaults to :$PORT")
	cmd.Flags().BoolVar(&opts.Migrate, "migrate", false, "apply the schema before serving")
	cmd.Flags().BoolVar(&opts.Relay, "relay", false, "also run the outbox relay in this process")
	cmd.Flags().DurationVar(&opts.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "grace period for in-flight requests")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	a, err := opts.open("api")
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.Log

	if opts.Migrate {
		if err := a.Migrate(ctx); err != nil {
			return err
		}
	}

	if opts.Relay {
		pub, err := outbox.NewKafkaPublisher(a.Config.KafkaBrokers)
		switch {
		case errors.Is(err, outbox.ErrDisabled):
			log.Warn("KAFKA_BROKERS not set, outbox relay not started")
		case err != nil:
			return err
		default:
			defer pub.Close()
			go outbox.NewRelay(a.Store, pub, log, a.Metrics).Run(ctx)
		}
	}

	addr := opts.Addr
	if addr == "" {
		addr = ":" + a.Config.Port
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("storefront listening", "addr", addr, "driver", a.Config.StorageDriver)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
