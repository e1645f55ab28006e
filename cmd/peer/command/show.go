package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/INDA25PlusPlus/nhg-net/internal/history"
)

var errNoArchive = errors.New("show needs DATABASE_URL or --database")

var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print an archived game",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DatabaseURL == "" {
			return errNoArchive
		}
		archive, err := history.OpenArchive(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer archive.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), archiveTimeout)
		defer cancel()
		rec, err := archive.Get(ctx, args[0])
		if err != nil {
			return err
		}
		printGameRecord(cmd.OutOrStdout(), rec)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}

// printGameRecord lists the moves two per line, white first
func printGameRecord(w io.Writer, rec *history.GameRecord) {
	fmt.Fprintf(w, "Game %s (%s, peer %s)\n", rec.ID, rec.Role, rec.RemoteAddr)
	fmt.Fprintf(w, "Played %s to %s\n",
		rec.StartedAt.Format("2006-01-02 15:04:05"), rec.EndedAt.Format("15:04:05"))

	moves := strings.Fields(rec.Moves)
	for i := 0; i < len(moves); i += 2 {
		if i+1 < len(moves) {
			fmt.Fprintf(w, "%3d. %s %s\n", i/2+1, moves[i], moves[i+1])
		} else {
			fmt.Fprintf(w, "%3d. %s\n", i/2+1, moves[i])
		}
	}
	fmt.Fprintf(w, "Result %s after %d plies (%s)\n", rec.GameState, rec.Plies, rec.QuitReason)
}
