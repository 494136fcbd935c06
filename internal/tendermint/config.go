package tendermint

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// InitTendermint initializes a Tendermint home directory with config and
// genesis files. It does nothing when the home is already initialized.
//
// It runs: `tendermint init --home <tmHome>`
func InitTendermint(ctx context.Context, tmHome string) error {
	if tmHome == "" {
		tmHome = TendermintHome()
	}

	configFile := filepath.Join(tmHome, "config", "config.toml")
	if _, err := os.Stat(configFile); err == nil {
		return nil
	}

	cmd := exec.CommandContext(ctx, "tendermint", "init", "--home", tmHome)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to initialize Tendermint: %w", err)
	}
	return nil
}

// TendermintCommand returns the command that starts a Tendermint node
// against the ABCI server at socketAddr. The process is killed when ctx
// is done.
func TendermintCommand(ctx context.Context, tmHome, socketAddr string) *exec.Cmd {
	if tmHome == "" {
		tmHome = TendermintHome()
	}
	if socketAddr == "" {
		socketAddr = "unix://oasis.sock"
	}

	cmd := exec.CommandContext(ctx, "tendermint", "node",
		"--home", tmHome,
		"--proxy_app", socketAddr,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

// TendermintHome returns the default Tendermint home directory.
func TendermintHome() string {
	if home := os.Getenv("TMHOME"); home != "" {
		return home
	}
	return filepath.Join(os.Getenv("HOME"), ".tendermint")
}
