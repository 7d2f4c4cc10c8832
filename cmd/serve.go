package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/anushkapunekar/agentops/internal/config"
	"github.com/anushkapunekar/agentops/internal/review"
	"github.com/anushkapunekar/agentops/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server and the review workers.",
		Example: "agentops serve\n" +
			"agentops serve --listen :9000 --workers 8",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(cmd.Flags(), map[string]string{
				config.KeyListenAddr: "listen",
				config.KeyWorkers:    "workers",
				config.KeyQueueSize:  "queue-size",
				config.KeyDBPath:     "db",
			})
			if err != nil {
				return err
			}
			if err := conf.Validate(); err != nil {
				return err
			}

			logger := newLogger(cmd.ErrOrStderr(), conf)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, conf, logger)
		},
	}

	serveCmd.Flags().String("listen", "", "address to listen on (default :8000)")
	serveCmd.Flags().Int("workers", 0, "number of review workers (default 4)")
	serveCmd.Flags().Int("queue-size", 0, "pending reviews held before new events are dropped (default 100)")
	serveCmd.Flags().String("db", "", "SQLite file for review history")
	return serveCmd
}

// serve runs the HTTP ingress and the queue workers until ctx is done.
func serve(ctx context.Context, conf config.Config, logger *slog.Logger) error {
	p, err := newPipeline(conf, logger, true)
	if err != nil {
		return err
	}
	defer p.Close()

	queue := review.NewQueue(p.orchestrator, conf.QueueSize, conf.Workers, logger)
	srv := server.New(server.Config{
		Address:       conf.ListenAddr,
		WebhookSecret: conf.WebhookSecret,
		Settings:      conf.Redacted(),
	}, queue, p.history(), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return queue.Run(gctx)
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})
	return g.Wait()
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}
