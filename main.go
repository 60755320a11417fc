package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/unscramble/internal/database"
	"github.com/robalobadob/unscramble/internal/game"
	"github.com/robalobadob/unscramble/internal/httpserver"
	"github.com/robalobadob/unscramble/internal/store"
	"github.com/robalobadob/unscramble/internal/words"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &Config{}
	if err := newCmd(cfg).ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("unscramble exited")
	}
}

// serve loads and checks the word list, then runs the HTTP server and the
// session reaper until ctx is cancelled.
func serve(ctx context.Context, cfg *Config) error {
	src := words.Source{File: cfg.wordsFile}
	if cfg.dbPath != "" {
		db, err := openBank(cfg.dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		src.Bank = words.NewBank(db)
	}

	list, origin, err := words.Load(ctx, src)
	if err != nil {
		return fmt.Errorf("failed to load word list: %w", err)
	}
	// Build one engine up front so a bad list or config stops startup instead
	// of failing the first player.
	if _, err := game.NewEngine(list, cfg.gameConfig()); err != nil {
		return fmt.Errorf("word list from %s: %w", origin, err)
	}
	log.Info().Str("origin", string(origin)).Int("words", len(list)).
		Int("maxRounds", cfg.maxRounds).Int("scoreIncrement", cfg.scoreIncrement).
		Msg("loaded word list")

	st := store.NewMemoryStore()
	go store.RunReaper(ctx, st, cfg.sessionTimeout)

	// Open sockets must ping well inside the idle window or the reaper drops them.
	keepAlive := 30 * time.Second
	if cfg.sessionTimeout > 0 {
		keepAlive = min(keepAlive, cfg.sessionTimeout/2)
	}
	srv := httpserver.New(st, httpserver.Options{
		Game:         cfg.gameConfig(),
		Words:        list,
		JWTSecret:    cfg.jwtSecret,
		DailySalt:    cfg.dailySalt,
		ClientOrigin: cfg.clientOrigin,
		KeepAlive:    keepAlive,
	})
	addr := net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port))
	log.Info().Str("addr", addr).Msg("starting unscramble server")
	if err := srv.Start(ctx, addr); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

// openBank opens the sqlite database and brings its schema up to date.
func openBank(path string) (*sql.DB, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func importWords(ctx context.Context, cfg *Config, file string) error {
	if cfg.dbPath == "" {
		return errors.New("--db is required to import words")
	}
	list, err := words.ReadFile(file)
	if err != nil {
		return err
	}
	db, err := openBank(cfg.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	bank := words.NewBank(db)
	added, err := bank.Import(ctx, list)
	if err != nil {
		return fmt.Errorf("import %s: %w", file, err)
	}
	total, err := bank.Count(ctx)
	if err != nil {
		return err
	}
	log.Info().Str("file", file).Int("read", len(list)).Int("added", added).Int("total", total).Msg("imported words")
	return nil
}

func wordStats(ctx context.Context, cfg *Config, out io.Writer) error {
	src := words.Source{File: cfg.wordsFile}
	if cfg.dbPath != "" {
		db, err := openBank(cfg.dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		src.Bank = words.NewBank(db)
	}
	list, origin, err := words.Load(ctx, src)
	if err != nil {
		return err
	}
	status := "ok"
	if _, err := game.NewEngine(list, cfg.gameConfig()); err != nil {
		status = err.Error()
	}
	_, err = fmt.Fprintf(out, "origin: %s\nwords: %d\nmax rounds: %d\nstatus: %s\n", origin, len(list), cfg.maxRounds, status)
	return err
}
