// internal/game/engine.go
//
// Core game engine for a single unscramble session.
// Responsibilities:
//   - Pick words at random without repeating within a session.
//   - Scramble the picked word so it never reads as the word itself.
//   - Check guesses (case-insensitive), award points, advance rounds.
//   - Detect game over after the last round and reject further play.
//   - Publish each new State to subscribers.
//
// Notes:
//   - Every transition runs under one mutex: read state, compute, publish.
//     Observers are called after the lock is released, in transition order.
//   - Word pick and shuffle draw at random up to Config.MaxAttempts times,
//     then choose directly, so neither fails for a list NewEngine accepted.
//   - The engine does not start itself; call ResetGame once after NewEngine.
package game

import (
	crand "crypto/rand"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
)

// Engine owns the State of one session and applies user intents to it.
type Engine struct {
	mu sync.Mutex

	cfg   Config
	words []string // distinct, in source order
	rng   *rand.Rand

	state       State
	started     bool
	usedWords   map[string]struct{}
	currentWord string
	userGuess   string

	observers []observer
	nextObsID int
	published uint64 // transitions committed, guarded by mu

	notifyMu   sync.Mutex
	notifyCond *sync.Cond
	delivered  uint64 // transitions whose observers have run, guarded by notifyMu
}

type observer struct {
	id int
	fn func(State)
}

// Option customizes an Engine at construction.
type Option func(*Engine)

// WithRand sets the random source used for word pick and shuffle.
// The engine serializes access to it.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		if r != nil {
			e.rng = r
		}
	}
}

// NewEngine validates the word list and config and returns an engine that is
// not yet started. Both failure modes that would otherwise loop forever at run
// time are reported here instead:
//   - fewer distinct words than rounds → ErrWordListTooSmall
//   - a word of one letter or one repeated letter → ErrDegenerateWord
func NewEngine(words []string, cfg Config, opts ...Option) (*Engine, error) {
	if cfg.MaxRounds <= 0 || cfg.ScoreIncrement <= 0 || cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("%w: rounds=%d increment=%d attempts=%d",
			ErrInvalidConfig, cfg.MaxRounds, cfg.ScoreIncrement, cfg.MaxAttempts)
	}

	distinct := make([]string, 0, len(words))
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		if !Scramblable(w) {
			return nil, fmt.Errorf("%w: %q", ErrDegenerateWord, w)
		}
		seen[w] = struct{}{}
		distinct = append(distinct, w)
	}
	if len(distinct) < cfg.MaxRounds {
		return nil, fmt.Errorf("%w: %d words for %d rounds", ErrWordListTooSmall, len(distinct), cfg.MaxRounds)
	}

	e := &Engine{
		cfg:       cfg,
		words:     distinct,
		usedWords: make(map[string]struct{}, cfg.MaxRounds),
	}
	e.notifyCond = sync.NewCond(&e.notifyMu)
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = newRand()
	}
	return e, nil
}

// Scramblable reports whether some permutation of w differs from w, i.e. w has
// at least two distinct characters.
func Scramblable(w string) bool {
	rs := []rune(w)
	for _, r := range rs[min(1, len(rs)):] {
		if r != rs[0] {
			return true
		}
	}
	return false
}

// Config returns the constants the engine was built with.
func (e *Engine) Config() Config { return e.cfg }

// State returns the current snapshot.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// UserGuess returns the in-progress guess text.
func (e *Engine) UserGuess() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userGuess
}

// Snapshot returns state and guess text read under a single lock.
func (e *Engine) Snapshot() (State, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.userGuess
}

// Subscribe registers fn to receive every new State. Calls are made one at a
// time in the order the transitions happened, even when transitions race.
// fn may read the engine but must not start a transition itself.
// The returned func removes the subscription; calling it more than once is
// harmless.
func (e *Engine) Subscribe(fn func(State)) (cancel func()) {
	e.mu.Lock()
	id := e.nextObsID
	e.nextObsID++
	e.observers = append(e.observers, observer{id: id, fn: fn})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			for i, o := range e.observers {
				if o.id == id {
					e.observers = append(e.observers[:i:i], e.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// ResetGame starts a new session: used words are forgotten, the guess text is
// cleared and the first word is picked.
func (e *Engine) ResetGame() error {
	return e.transition(func() error {
		word, scrambled, err := e.pickWordAndShuffle(nil)
		if err != nil {
			return err
		}
		clear(e.usedWords)
		e.commitWord(word)
		e.state = State{
			CurrentScrambledWord: scrambled,
			CurrentWordCount:     1,
		}
		e.started = true
		e.userGuess = ""
		return nil
	})
}

// UpdateUserGuess replaces the in-progress guess text. State is not touched.
func (e *Engine) UpdateUserGuess(text string) {
	e.mu.Lock()
	e.userGuess = text
	e.mu.Unlock()
}

// CheckUserGuess compares the guess text with the current word.
// Correct: score += ScoreIncrement and the game advances.
// Wrong: IsGuessedWordWrong is set, nothing else changes.
// The guess text is cleared either way.
func (e *Engine) CheckUserGuess() error {
	return e.transition(func() error {
		if err := e.playable(); err != nil {
			return err
		}
		return e.check()
	})
}

// CheckGuess sets the guess text and checks it in one transition, so no
// concurrent UpdateUserGuess can slip in between. After game over the guess
// text is left as it was.
func (e *Engine) CheckGuess(text string) error {
	return e.transition(func() error {
		if err := e.playable(); err != nil {
			return err
		}
		e.userGuess = text
		return e.check()
	})
}

func (e *Engine) check() error {
	if strings.EqualFold(e.userGuess, e.currentWord) {
		if err := e.advance(e.state.Score + e.cfg.ScoreIncrement); err != nil {
			return err
		}
	} else {
		next := e.state
		next.IsGuessedWordWrong = true
		e.state = next
	}
	e.userGuess = ""
	return nil
}

// SkipWord moves on without awarding points and clears the guess text.
func (e *Engine) SkipWord() error {
	return e.transition(func() error {
		if err := e.playable(); err != nil {
			return err
		}
		if err := e.advance(e.state.Score); err != nil {
			return err
		}
		e.userGuess = ""
		return nil
	})
}

func (e *Engine) playable() error {
	switch {
	case !e.started:
		return ErrNotStarted
	case e.state.IsGameOver:
		return ErrGameOver
	}
	return nil
}

// advance ends the current round with newScore. On the last round the game is
// over and the final word stays on screen; otherwise the next word is picked.
func (e *Engine) advance(newScore int) error {
	next := e.state
	next.IsGuessedWordWrong = false
	next.Score = newScore

	if len(e.usedWords) == e.cfg.MaxRounds {
		next.IsGameOver = true
		e.state = next
		return nil
	}

	word, scrambled, err := e.pickWordAndShuffle(e.usedWords)
	if err != nil {
		return err
	}
	e.commitWord(word)
	next.CurrentScrambledWord = scrambled
	next.CurrentWordCount++
	e.state = next
	return nil
}

// pickWordAndShuffle picks a word not in used, uniformly at random, and
// scrambles it. Nothing is recorded here; the caller commits the word once the
// whole transition has succeeded.
func (e *Engine) pickWordAndShuffle(used map[string]struct{}) (word, scrambled string, err error) {
	word, err = e.pickWord(used)
	if err != nil {
		return "", "", err
	}
	scrambled, err = e.shuffle(word)
	if err != nil {
		return "", "", err
	}
	return word, scrambled, nil
}

// pickWord draws with replacement up to MaxAttempts times. Late in a long game
// most draws hit used words, so it then draws once from the unused ones; both
// steps are uniform over the unused words.
func (e *Engine) pickWord(used map[string]struct{}) (string, error) {
	for range e.cfg.MaxAttempts {
		w := e.words[e.rng.IntN(len(e.words))]
		if _, ok := used[w]; !ok {
			return w, nil
		}
	}
	unused := make([]string, 0, len(e.words)-len(used))
	for _, w := range e.words {
		if _, ok := used[w]; !ok {
			unused = append(unused, w)
		}
	}
	if len(unused) == 0 {
		return "", fmt.Errorf("%w (%d/%d used)", ErrWordPickExhausted, len(used), len(e.words))
	}
	return unused[e.rng.IntN(len(unused))], nil
}

// shuffle permutes the characters of word until the result differs from it.
// If every draw comes back unchanged, two different letters are swapped.
func (e *Engine) shuffle(word string) (string, error) {
	rs := []rune(word)
	for range e.cfg.MaxAttempts {
		e.rng.Shuffle(len(rs), func(i, j int) { rs[i], rs[j] = rs[j], rs[i] })
		if s := string(rs); s != word {
			return s, nil
		}
	}
	// rs reads as word here.
	for i := 1; i < len(rs); i++ {
		if rs[i] != rs[0] {
			rs[0], rs[i] = rs[i], rs[0]
			return string(rs), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrShuffleExhausted, word)
}

func (e *Engine) commitWord(w string) {
	e.usedWords[w] = struct{}{}
	e.currentWord = w
}

// transition runs fn under the lock and, if it succeeded, notifies observers
// with the state it produced. Each transition takes a sequence number under mu
// and waits for its predecessor's observers to finish before calling its own.
func (e *Engine) transition(fn func() error) error {
	e.mu.Lock()
	if err := fn(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.published++
	seq := e.published
	st := e.state
	obs := make([]observer, len(e.observers))
	copy(obs, e.observers)
	e.mu.Unlock()

	e.notifyMu.Lock()
	for e.delivered != seq-1 {
		e.notifyCond.Wait()
	}
	e.notifyMu.Unlock()

	defer func() {
		e.notifyMu.Lock()
		e.delivered = seq
		e.notifyCond.Broadcast()
		e.notifyMu.Unlock()
	}()
	for _, o := range obs {
		o.fn(st)
	}
	return nil
}

// newRand seeds a ChaCha8 source from crypto/rand.
func newRand() *rand.Rand {
	var seed [32]byte
	_, _ = crand.Read(seed[:])
	return rand.New(rand.NewChaCha8(seed))
}
