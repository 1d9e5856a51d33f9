package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	logAdapter "github.com/bft-labs/reqguard/internal/adapters/log"
	"github.com/bft-labs/reqguard/internal/cliconfig"
	"github.com/bft-labs/reqguard/internal/httpserver"
	"github.com/bft-labs/reqguard/pkg/reqguard"
	"github.com/bft-labs/reqguard/plugins/configwatcher"
	"github.com/bft-labs/reqguard/plugins/queuereplay"
)

func (a *app) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the client daemon: queue replay, config reload and a status server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&a.cfg.ListenAddr, "listen", a.cfg.ListenAddr, "status server address")
	return cmd
}

func (a *app) serve(parent context.Context) error {
	cfgFile := a.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}
	if !cliconfig.FileExists(cfgFile) {
		cfgFile = ""
	}

	a.log.Info().Interface("config", a.cfg).Msg("configuration")

	client, closeStore, err := a.newClient(parent,
		reqguard.WithEventHandler(&logEvents{a: a}),
		configwatcher.WithConfigWatcher(configwatcher.Config{
			Path:  cfgFile,
			Apply: applySettings,
		}),
		queuereplay.WithQueueReplay(queuereplay.Config{
			CheckInterval:  a.cfg.ReplayInterval,
			RunImmediately: true,
		}),
	)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("start client: %w", err)
	}

	srv := httpserver.NewServer(client, logAdapter.NewZerologAdapterWithLogger(a.log).Component("httpserver"))
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.Serve(ctx, a.cfg.ListenAddr) }()
	a.log.Info().Str("addr", a.cfg.ListenAddr).Msg("status server listening")

	select {
	case <-sigCh:
		a.log.Info().Msg("received signal, stopping...")
	case err = <-srvErr:
		if err != nil {
			a.log.Error().Err(err).Msg("status server failed")
		}
	}

	cancel()
	if stopErr := client.Stop(); stopErr != nil {
		return fmt.Errorf("stop client: %w", stopErr)
	}
	return err
}

// applySettings applies a reloaded config file to the running daemon.
func applySettings(ctx context.Context, client *reqguard.Client, s configwatcher.Settings) error {
	if s.LogLevel != "" {
		if err := cliconfig.SetLogLevel(s.LogLevel); err != nil {
			return err
		}
	}
	return configwatcher.ApplyOfflineMode(ctx, client, s)
}

type logEvents struct {
	reqguard.BaseEventHandler
	a *app
}

func (h *logEvents) OnStateChange(e reqguard.StateChangeEvent) {
	h.a.log.Debug().Str("from", e.Previous.String()).Str("to", e.Current.String()).Str("reason", e.Reason).Msg("state change")
}

func (h *logEvents) OnConnectivityChange(online bool) {
	h.a.log.Info().Bool("online", online).Msg("connectivity changed")
}
