package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/MRamiBalles/DiningPhilosophers/server/internal/platform/config"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/platform/logger"
)

var cfgFile string // Path to config file

// rootCmd runs the server when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dining-server",
	Short: "Live dining philosophers table with a websocket dashboard feed",
	Long: `dining-server seats philosophers around a table of shared forks and
lets observers watch and retime them over HTTP and WebSocket.

Running it without a subcommand is the same as "dining-server serve".`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./.dining-philosophers.yaml or $HOME/.dining-philosophers.yaml)")
	flags.Int("philosophers", 5, "number of seats at the table")
	flags.Int64("pickup-ms", 1000, "fork pick-up delay in milliseconds")
	flags.Int64("putdown-ms", 1000, "fork put-down delay in milliseconds")
	flags.Int64("eating-ms", 5000, "eating delay in milliseconds")
	flags.Int64("thinking-ms", 5000, "thinking delay in milliseconds")
	flags.String("listen", ":8080", "HTTP listen address")
	flags.String("database", "dining.db", "SQLite file holding presets (\":memory:\" for none)")
	flags.Duration("snapshot-interval", 250*time.Millisecond, "how often observers receive a full snapshot")
	flags.Duration("wait-timeout", 100*time.Millisecond, "upper bound on a blocked philosopher's wait before it rechecks its fork")
	flags.Uint64("seed", 0, "jitter seed (0 picks one from the clock)")
	flags.String("tuning", "default", "hub and store sizing profile: default, stress or low")
	flags.Bool("debug", false, "log every philosopher transition")
	flags.Bool("no-colour", false, "disable colour output")
}

// bindings maps persistent flags onto config keys.
var bindings = map[string]string{
	config.KeyPhilosophers:     "philosophers",
	config.KeyPickUpMs:         "pickup-ms",
	config.KeyPutDownMs:        "putdown-ms",
	config.KeyEatingMs:         "eating-ms",
	config.KeyThinkingMs:       "thinking-ms",
	config.KeyListen:           "listen",
	config.KeyDatabase:         "database",
	config.KeySnapshotInterval: "snapshot-interval",
	config.KeyWaitTimeout:      "wait-timeout",
	config.KeySeed:             "seed",
	config.KeyTuning:           "tuning",
	config.KeyDebug:            "debug",
	config.KeyNoColour:         "no-colour",
}

// loadConfig reads flags, environment and the config file, in that priority.
// Only flags the user actually set override the other sources.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	v, err := config.NewViper(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	for key, name := range bindings {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.Load(v)
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *logger.Logger {
	log := logger.NewLogger()
	if cfg.Log.NoColour {
		log = logger.New(logger.Options{Out: os.Stdout, Err: os.Stderr})
	}
	log.SetDebug(cfg.Log.Debug)
	return log
}
