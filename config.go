package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/robalobadob/unscramble/internal/game"
)

const (
	releaseVersion   = "0.1.0"
	defaultJWTSecret = "dev_secret_change_me"
)

type Config struct {
	bind           string
	clientOrigin   string
	dailySalt      string
	dbPath         string
	jwtSecret      string
	logLevel       string
	maxAttempts    int
	maxRounds      int
	port           int
	scoreIncrement int
	sessionTimeout time.Duration
	wordsFile      string
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.maxRounds < 1 || c.scoreIncrement < 1 || c.maxAttempts < 1 {
		return errors.New("--max-rounds, --score-increment and --max-attempts must be positive")
	}
	if c.jwtSecret == "" {
		return errors.New("--jwt-secret must not be empty")
	}
	if _, err := zerolog.ParseLevel(c.logLevel); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", c.logLevel, err)
	}
	return nil
}

func (c *Config) gameConfig() game.Config {
	return game.Config{
		MaxRounds:      c.maxRounds,
		ScoreIncrement: c.scoreIncrement,
		MaxAttempts:    c.maxAttempts,
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("UNSCRAMBLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:     "unscramble",
		Short:   "Serves the unscramble word game over HTTP and websockets.",
		Args:    cobra.ExactArgs(0),
		Version: releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			lvl, _ := zerolog.ParseLevel(cfg.logLevel)
			zerolog.SetGlobalLevel(lvl)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.jwtSecret == defaultJWTSecret {
				log.Warn().Msg("using the default jwt secret; set UNSCRAMBLE_JWT_SECRET in production")
			}
			return serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.PersistentFlags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: UNSCRAMBLE_BIND)")
	fs.StringVar(&cfg.clientOrigin, "client-origin", "http://localhost:5173", "origin allowed for CORS and websockets (env: UNSCRAMBLE_CLIENT_ORIGIN)")
	fs.StringVar(&cfg.dailySalt, "daily-salt", "local_dev_salt", "salt for the daily word sequence (env: UNSCRAMBLE_DAILY_SALT)")
	fs.StringVar(&cfg.dbPath, "db", "", "sqlite word bank path; empty disables it (env: UNSCRAMBLE_DB)")
	fs.StringVar(&cfg.jwtSecret, "jwt-secret", defaultJWTSecret, "secret used to sign session tokens (env: UNSCRAMBLE_JWT_SECRET)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "trace, debug, info, warn or error (env: UNSCRAMBLE_LOG_LEVEL)")
	fs.IntVar(&cfg.maxAttempts, "max-attempts", game.DefaultMaxAttempts, "resampling ceiling for word pick and shuffle (env: UNSCRAMBLE_MAX_ATTEMPTS)")
	fs.IntVar(&cfg.maxRounds, "max-rounds", game.DefaultMaxRounds, "words per game (env: UNSCRAMBLE_MAX_ROUNDS)")
	fs.IntVarP(&cfg.port, "port", "p", 5175, "port to listen on (env: UNSCRAMBLE_PORT)")
	fs.IntVar(&cfg.scoreIncrement, "score-increment", game.DefaultScoreIncrement, "points per correct guess (env: UNSCRAMBLE_SCORE_INCREMENT)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 30*time.Minute, "time before idle sessions are dropped; 0 keeps them (env: UNSCRAMBLE_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.wordsFile, "words-file", "", "word list file, one word per line (env: UNSCRAMBLE_WORDS_FILE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.AddCommand(newWordsCmd(cfg))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("unscramble v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func newWordsCmd(cfg *Config) *cobra.Command {
	words := &cobra.Command{
		Use:   "words",
		Short: "Manage the sqlite word bank.",
	}
	words.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Add the words of a file (one per line) to the word bank.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return importWords(cmd.Context(), cfg, args[0])
		},
	})
	words.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show where the word list comes from and how many words it has.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wordStats(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	})
	return words
}
