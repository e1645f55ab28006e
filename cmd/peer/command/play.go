package command

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/INDA25PlusPlus/nhg-net/internal/transport"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Wait for the peer to connect and play white",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return play(cmd, string(transport.RoleListener))
	},
}

var connectCmd = &cobra.Command{
	Use:   "connect [addr]",
	Short: "Connect to a listening peer and play black",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			cfg.PeerAddr = args[0]
		}
		return play(cmd, string(transport.RoleConnector))
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(connectCmd)
}

// play validates the final config and runs one game until quit, disconnect or signal
func play(cmd *cobra.Command, role string) error {
	cfg.PeerRole = role
	if err := cfg.Validate(); err != nil {
		return err
	}
	parsed, err := transport.ParseRole(role)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cfg, os.Stderr)
	if err := runPeer(ctx, cfg, parsed, logger, os.Stdin, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("game ended with error: %w", err)
	}
	return nil
}
