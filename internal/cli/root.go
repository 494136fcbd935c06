// Package cli implements the oasis command line: running a node, managing
// the node key, and submitting transactions and queries to a running chain.
package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"oasis.ledger/oasis/internal/config"
	"oasis.ledger/oasis/internal/logger"
	"oasis.ledger/oasis/internal/tendermint"
)

// chainClient is the part of the Tendermint RPC client the commands use.
type chainClient interface {
	Query(ctx context.Context, path string) ([]byte, error)
	BroadcastTxSync(ctx context.Context, tx []byte) (*tendermint.Result, error)
	BroadcastTxCommit(ctx context.Context, tx []byte) (*tendermint.Result, error)
}

// globals is state shared by every command.
type globals struct {
	configPath string
	rpcURL     string
	cfg        *config.Config
	log        *zap.Logger

	// newClient connects to the chain; replaced in tests.
	newClient func(cfg *config.Config) (chainClient, error)
}

func defaultClient(cfg *config.Config) (chainClient, error) {
	return tendermint.NewBroadcastClient(cfg.RPC.URL, cfg.RPC.Timeout)
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&globals{newClient: defaultClient})
}

func newRootCmd(g *globals) *cobra.Command {
	root := &cobra.Command{
		Use:   "oasis",
		Short: "Asset custody and incentive ledger node",
		Long: `oasis runs a replicated ledger of collectible assets and fungible
tokens on top of Tendermint consensus: staking with time-based rewards,
an evolution economy and a fixed-price marketplace.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(g.configPath)
			if err != nil {
				return err
			}
			if g.rpcURL != "" {
				cfg.RPC.URL = g.rpcURL
			}
			g.cfg = cfg

			log, _, err := logger.New(logger.Options{Level: "warn", Console: true})
			if err != nil {
				return err
			}
			g.log = log
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "oasis.yaml", "config file (JSON, YAML or TOML)")
	root.PersistentFlags().StringVar(&g.rpcURL, "rpc", "", "Tendermint RPC URL (overrides rpc.url)")

	root.AddCommand(
		newStartCmd(g),
		newKeysCmd(g),
		newGenesisCmd(g),
		newTxCmd(g),
		newQueryCmd(g),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command line.
func Execute() error {
	return NewRootCmd().Execute()
}

// homePath resolves p against the node home directory.
func (g *globals) homePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(g.cfg.Node.Home, p)
}

func (g *globals) ensureHome() error {
	return os.MkdirAll(g.cfg.Node.Home, 0o755)
}
