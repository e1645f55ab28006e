package command

// root.go defines the root command for nhg-peer.
// global flags override the values loaded from the environment / .env

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/INDA25PlusPlus/nhg-net/internal/config"
)

var (
	cfg *config.Config // loaded once in PersistentPreRunE

	flagAddr      string
	flagLogLevel  string
	flagLogFormat string
	flagRedis     string
	flagDatabase  string
	flagStatus    string
	flagDirect    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nhg-peer",
	Short: "nhg-peer - play chess against one peer over TCP",
	Long: `nhg-peer connects two players directly. One side listens, the other connects,
then both exchange moves as fixed 128-byte frames. The listener plays white.

Without a subcommand the role comes from PEER_ROLE (default listen).

Console commands during a game:
  e2e4, e7e8q   make a move (promotion piece optional, queen by default)
  board         print the board
  moves         list the moves so far
  quit [reason] end the game and tell the peer`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		loaded, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		applyFlags(cmd, loaded)
		cfg = loaded
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return play(cmd, cfg.PeerRole)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err) // Print error to standard error
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags = available to all subcommands
	rootCmd.PersistentFlags().StringVarP(&flagAddr, "addr", "a", "", "peer address host:port (PEER_ADDR)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error (LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "text or json (LOG_FORMAT)")
	rootCmd.PersistentFlags().StringVar(&flagRedis, "redis", "", "record moves in Redis, redis://host:port/db (REDIS_URL)")
	rootCmd.PersistentFlags().StringVar(&flagDatabase, "database", "", "archive finished games in Postgres (DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&flagStatus, "status", "", "serve /board, /moves and /metrics on host:port (STATUS_ADDR)")
	rootCmd.PersistentFlags().BoolVar(&flagDirect, "direct", false, "apply peer moves on the receive goroutine instead of an inbound queue (DIRECT_APPLY)")
}

// applyFlags copies explicitly set flags over the loaded config
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		c.PeerAddr = flagAddr
	}
	if flags.Changed("log-level") {
		c.LogLevel = flagLogLevel
	}
	if flags.Changed("log-format") {
		c.LogFormat = flagLogFormat
	}
	if flags.Changed("redis") {
		c.RedisURL = flagRedis
	}
	if flags.Changed("database") {
		c.DatabaseURL = flagDatabase
	}
	if flags.Changed("status") {
		c.StatusAddr = flagStatus
	}
	if flags.Changed("direct") {
		c.DirectApply = flagDirect
	}
}

// newLogger builds the process logger; logs go to w so the board keeps stdout
func newLogger(c *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
