package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	logAdapter "github.com/bft-labs/reqguard/internal/adapters/log"
	"github.com/bft-labs/reqguard/internal/auth"
	"github.com/bft-labs/reqguard/internal/cliconfig"
	"github.com/bft-labs/reqguard/pkg/reqguard"
)

const helpDescription = `
Issue requests to your backend through a resilient client.

Highlights:
  - Successful GET responses are cached and served when the backend is down.
  - Transient failures retry with backoff; expired sessions refresh themselves.
  - Mutations made while offline are queued on disk and replayed on reconnect.
  - Configure via file ($HOME/.reqguard/config.toml), REQGUARD_* env, or flags.
`

var exampleUsage = strings.TrimSpace(`
  reqguard request GET /widgets --param page=2 --base-url https://api.example.com
  reqguard request POST /orders --data '{"sku":"a-1"}'
  reqguard serve --listen 127.0.0.1:9470
  reqguard queue list
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// app carries the configuration shared by every subcommand.
type app struct {
	cfg     cliconfig.Config
	cfgPath string
	log     zerolog.Logger
	out     io.Writer
}

func main() {
	a := &app{cfg: cliconfig.DefaultConfig(), log: cliconfig.Logger(), out: os.Stdout}
	if err := a.rootCommand().Execute(); err != nil {
		a.log.Error().Err(err).Msg("reqguard")
		os.Exit(1)
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "reqguard",
		Short:         "Resilient HTTP client with caching, retries and an offline queue",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cliconfig.Load(&a.cfg, cmd.Flags(), a.cfgPath); err != nil {
				return err
			}
			return cliconfig.SetLogLevel(a.cfg.LogLevel)
		},
	}

	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "path to config file (default: $HOME/.reqguard/config.toml)")
	cliconfig.BindFlags(root.PersistentFlags(), &a.cfg)

	root.AddCommand(
		a.requestCommand(),
		a.serveCommand(),
		a.statusCommand(),
		a.cacheCommand(),
		a.queueCommand(),
	)
	return root
}

// newClient opens the configured store and builds a client over it. The
// returned function closes the store.
func (a *app) newClient(ctx context.Context, extra ...reqguard.Option) (*reqguard.Client, func(), error) {
	store, closer, err := cliconfig.OpenStore(ctx, a.cfg)
	if err != nil {
		return nil, nil, err
	}

	opts := []reqguard.Option{
		reqguard.WithStore(store),
		reqguard.WithLogger(logAdapter.NewZerologAdapterWithLogger(a.log)),
	}
	if a.cfg.KeyringService != "" {
		opts = append(opts,
			reqguard.WithTokenStore(auth.NewKeyringStore(a.cfg.KeyringService, "")),
			reqguard.WithLoginPrompt(func(ctx context.Context, reason string) {
				a.log.Warn().Str("reason", reason).Msg("login required: store fresh tokens in the keyring")
			}))
	}
	opts = append(opts, extra...)

	client, err := reqguard.New(a.cfg.ClientConfig(), opts...)
	if err != nil {
		closer.Close()
		return nil, nil, fmt.Errorf("create client: %w", err)
	}
	return client, func() { closer.Close() }, nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
