package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"oasis.ledger/oasis/internal/abci"
	"oasis.ledger/oasis/internal/identity"
)

func newKeysCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the node signing key",
	}

	var force bool
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new ed25519 key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := g.homePath(g.cfg.Node.KeyFile)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("key file %s exists; use --force to replace it", path)
			}
			id, err := identity.CreateIdentity(path)
			if err != nil {
				return fmt.Errorf("create key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "key written to %s\naddress: %s\n", path, id.Address())
			return nil
		},
	}
	generate.Flags().BoolVar(&force, "force", false, "replace an existing key file")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the address of the node key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := identity.LoadIdentity(g.homePath(g.cfg.Node.KeyFile))
			if err != nil {
				return fmt.Errorf("load key: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), id.Address())
			return nil
		},
	}

	cmd.AddCommand(generate, show)
	return cmd
}

func newGenesisCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "genesis",
		Short: "Create genesis app state",
	}

	var admin, out string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a genesis file from the economy and staking config",
		Long: `Write the ledger genesis used as Tendermint app_state. The admin
defaults to the node key. Balances and base mints can be added to the file
before the chain is started.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr := admin
			if addr == "" {
				id, err := identity.LoadOrCreateIdentity(g.homePath(g.cfg.Node.KeyFile))
				if err != nil {
					return fmt.Errorf("load node key: %w", err)
				}
				addr = string(id.Address())
			}
			adminAddr, err := identity.ParseAddress(addr)
			if err != nil {
				return err
			}

			// The file being written is not a source.
			g.cfg.Node.GenesisFile = ""
			gen, err := genesisFor(g, adminAddr)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(gen, "", "  ")
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write genesis: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "genesis written to %s\n", out)
			return nil
		},
	}
	initCmd.Flags().StringVar(&admin, "admin", "", "admin address (default: node key)")
	initCmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")

	cmd.AddCommand(initCmd)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "oasis %s (app version %d, %s %s/%s)\n",
				abci.Version, abci.AppVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
