package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/signalsim/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve run control and progress over HTTP",
	Long: `Serve starts the HTTP API. Runs and comparisons are started with
POST /api/run and POST /api/compare; progress is polled from
/api/progress or streamed from the /ws websocket.

Example:
  signalsim serve -f signalsim.yaml --addr :9090`,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	feed, err := loadFeed(out, cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	j, err := cfg.OpenJournal(ctx)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer j.Close()

	srv, err := api.NewServer(api.Options{
		Addr:           cfg.Server.Addr,
		Provider:       feed,
		InitialCapital: cfg.Account.InitialCapital,
		Commission:     cfg.Account.Commission,
		Horizon:        cfg.Simulation.Horizon,
		Journal:        j,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(); err != nil {
			logger.Warn("shutdown", "err", err)
		}
	}()

	fmt.Fprintf(out, "Listening on %s\n", cfg.Server.Addr)
	return srv.Start()
}
