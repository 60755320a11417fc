// internal/game/types.go
//
// Core type definitions for the unscramble game engine.
// Defines:
//   - State: immutable snapshot of a session, replaced on every transition.
//   - Config: per-session constants (rounds, points per word, retry ceiling).
//   - Sentinel errors returned by construction and transitions.

package game

import "errors"

const (
	DefaultMaxRounds      = 10
	DefaultScoreIncrement = 20
	DefaultMaxAttempts    = 1000
)

// State is the snapshot handed to presentation code.
// It is copied by value, so holders can never change engine state through it.
type State struct {
	CurrentScrambledWord string `json:"currentScrambledWord"` // shuffled form of the active word
	CurrentWordCount     int    `json:"currentWordCount"`     // 1-based round number
	Score                int    `json:"score"`                // cumulative points
	IsGuessedWordWrong   bool   `json:"isGuessedWordWrong"`   // set by a wrong guess, cleared on the next transition
	IsGameOver           bool   `json:"isGameOver"`           // true once the last round has been played
}

// Config holds the constants of a session. They never change after construction.
type Config struct {
	MaxRounds      int // words per game
	ScoreIncrement int // points for a correct guess
	MaxAttempts    int // random draws before word pick and shuffle fall back to a direct choice
}

// DefaultConfig returns the classic 10 rounds / 20 points setup.
func DefaultConfig() Config {
	return Config{
		MaxRounds:      DefaultMaxRounds,
		ScoreIncrement: DefaultScoreIncrement,
		MaxAttempts:    DefaultMaxAttempts,
	}
}

var (
	ErrInvalidConfig     = errors.New("game: invalid config")
	ErrWordListTooSmall  = errors.New("game: word list needs at least one distinct word per round")
	ErrDegenerateWord    = errors.New("game: word cannot be scrambled")
	ErrGameOver          = errors.New("game: game is over")
	ErrNotStarted        = errors.New("game: reset the game before playing")
	ErrWordPickExhausted = errors.New("game: no unused word left")
	ErrShuffleExhausted  = errors.New("game: word has no distinct arrangement")
)
