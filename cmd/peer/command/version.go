package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/INDA25PlusPlus/nhg-net/internal/protocol"
)

// Version is set at build time with -ldflags "-X .../command.Version=..."
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and wire format",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "nhg-peer %s (frame %d bytes, %s/%s)\n",
			Version, protocol.FrameSize, protocol.KindMove, protocol.KindQuit)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
