package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"oasis.ledger/oasis/internal/abci"
	"oasis.ledger/oasis/internal/api"
	"oasis.ledger/oasis/internal/config"
	"oasis.ledger/oasis/internal/docs"
	"oasis.ledger/oasis/internal/events"
	"oasis.ledger/oasis/internal/identity"
	"oasis.ledger/oasis/internal/ledger"
	"oasis.ledger/oasis/internal/logger"
	"oasis.ledger/oasis/internal/metrics"
	"oasis.ledger/oasis/internal/store"
	"oasis.ledger/oasis/internal/tendermint"
	"oasis.ledger/oasis/internal/types"
	"oasis.ledger/oasis/internal/web"
)

func newStartCmd(g *globals) *cobra.Command {
	var launchTendermint bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the ledger node",
		Long: `Start the ABCI application, the HTTP API and dashboard. Tendermint
connects to the ABCI address from the config; pass --tendermint to launch a
local Tendermint node as a child process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runNode(ctx, g, launchTendermint)
		},
	}
	cmd.Flags().BoolVar(&launchTendermint, "tendermint", false, "launch a local tendermint node")
	return cmd
}

// genesisFor returns the genesis file from the config, or a genesis built
// from the economy and staking sections with admin as administrator.
func genesisFor(g *globals, admin types.Address) (ledger.Genesis, error) {
	cfg := g.cfg
	if cfg.Node.GenesisFile != "" {
		return ledger.LoadGenesis(g.homePath(cfg.Node.GenesisFile))
	}
	gen := ledger.DefaultGenesis(admin)
	gen.Economy.MintReward = cfg.Economy.MintReward
	gen.Economy.BurnReward = cfg.Economy.BurnReward
	if cfg.Economy.PricePerToken != "" {
		price, err := uint256.FromDecimal(cfg.Economy.PricePerToken)
		if err != nil {
			return ledger.Genesis{}, fmt.Errorf("economy.price_per_token %q: %w", cfg.Economy.PricePerToken, err)
		}
		gen.Economy.PricePerToken = price
	}
	gen.Staking.RewardPerDay = cfg.Staking.RewardPerDay
	gen.MaxBatch = cfg.Ledger.MaxBatch
	return gen, nil
}

func nodeLogger(g *globals) (*zap.Logger, *logger.Ring, error) {
	lc := g.cfg.Log
	return logger.New(logger.Options{
		Level:      lc.Level,
		File:       g.homePath(lc.File),
		MaxSizeMB:  lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAgeDays: lc.MaxAgeDays,
		RingSize:   lc.RingSize,
		Console:    true,
	})
}

func runNode(ctx context.Context, g *globals, launchTendermint bool) error {
	cfg := g.cfg
	if err := g.ensureHome(); err != nil {
		return fmt.Errorf("create node home: %w", err)
	}

	log, ring, err := nodeLogger(g)
	if err != nil {
		return err
	}
	defer log.Sync()

	id, err := identity.LoadOrCreateIdentity(g.homePath(cfg.Node.KeyFile))
	if err != nil {
		return fmt.Errorf("load node key: %w", err)
	}
	genesis, err := genesisFor(g, id.Address())
	if err != nil {
		return err
	}

	st, err := store.Open(store.Backend(cfg.Store.Backend), g.homePath(cfg.Store.Path))
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	bus := events.NewBus(cfg.Log.RingSize)
	app, err := abci.NewABCIApplication(genesis,
		abci.WithStore(st, cfg.Store.KeepSnapshots),
		abci.WithEvents(bus),
		abci.WithMetrics(m),
		abci.WithLogger(log))
	if err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	if err := metrics.RegisterSupply(reg, app.SupplyMetrics); err != nil {
		return err
	}

	abciServer, err := tendermint.NewABCIServer(app, &tendermint.Config{
		TendermintHome: tendermint.TendermintHome(),
		SocketAddress:  cfg.ABCI.Address,
		Transport:      cfg.ABCI.Transport,
	}, log)
	if err != nil {
		return err
	}

	client, err := tendermint.NewBroadcastClient(cfg.RPC.URL, cfg.RPC.Timeout)
	if err != nil {
		return err
	}
	apiOpts := []api.Option{api.WithBroadcaster(client), api.WithEvents(bus)}
	if backups, ok := st.(api.Backups); ok {
		apiOpts = append(apiOpts, api.WithBackups(backups, cfg.Store.MaxBackups))
	}
	svc := api.NewService(app, ring, log, apiOpts...)
	server, err := web.NewServer(app, svc, cfg.API.Port, log,
		web.WithEvents(bus), web.WithMetrics(reg), web.WithLogRing(ring),
		web.WithDocs(docs.NewService(docs.Manual())))
	if err != nil {
		return err
	}

	log.Info("oasis node starting",
		zap.String("version", abci.Version),
		zap.String("chain_id", cfg.Node.ChainID),
		zap.String("node", string(id.Address())),
		zap.String("store", cfg.Store.Backend))

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return abciServer.Run(gctx) })
	group.Go(func() error { return server.Run(gctx) })
	if launchTendermint {
		group.Go(func() error { return runTendermint(gctx, cfg, log) })
	}

	err = group.Wait()
	log.Info("oasis node stopped")
	return err
}

// runTendermint initialises a Tendermint home if needed and runs the node
// until ctx is done.
func runTendermint(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	home := tendermint.TendermintHome()
	if err := tendermint.InitTendermint(ctx, home); err != nil {
		return err
	}
	cmd := tendermint.TendermintCommand(ctx, home, cfg.ABCI.Address)
	log.Info("launching tendermint", zap.String("home", home))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("tendermint exited with code %d", exitErr.ExitCode())
		}
		return fmt.Errorf("run tendermint: %w", err)
	}
	return nil
}
