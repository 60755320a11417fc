// internal/words/words.go
//
// Provides the word source for the game engine.
//
// Responsibilities:
//   - Read word lists from a file, the sqlite word bank, or the embedded default.
//   - Normalize them: lowercase, a–z only, de-duplicated, source order kept.
//   - Report where the list came from so startup can log it.
//
// Load precedence:
//   1. Bank, when configured and not empty.
//   2. File, when a path is configured.
//   3. Embedded default list (assets/words.txt).
//
// Scramblability and list size are checked by game.NewEngine, which owns those
// rules; this package only cleans data.

package words

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/robalobadob/unscramble/assets"
)

// ErrEmpty is returned when a source yields no usable words.
var ErrEmpty = errors.New("words: list is empty")

// Origin names where a loaded list came from.
type Origin string

const (
	OriginBank     Origin = "bank"
	OriginFile     Origin = "file"
	OriginEmbedded Origin = "embedded"
)

// Source configures Load. Zero value means embedded only.
type Source struct {
	Bank *Bank  // optional sqlite word bank
	File string // optional path, one word per line
}

var (
	embeddedOnce sync.Once
	embedded     []string
	embeddedErr  error
)

// Embedded returns the normalized default list compiled into the binary.
func Embedded() ([]string, error) {
	embeddedOnce.Do(func() {
		raw, err := assets.WordList()
		if err != nil {
			embeddedErr = err
			return
		}
		embedded = Normalize(raw)
		if len(embedded) == 0 {
			embeddedErr = ErrEmpty
		}
	})
	return embedded, embeddedErr
}

// ReadFile loads one word per line from path and normalizes the result.
func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	raw, err := assets.ReadLines(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	list := Normalize(raw)
	if len(list) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	return list, nil
}

// Load resolves src to a word list following the precedence described above.
func Load(ctx context.Context, src Source) ([]string, Origin, error) {
	if src.Bank != nil {
		list, err := src.Bank.List(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("word bank: %w", err)
		}
		if len(list) > 0 {
			return list, OriginBank, nil
		}
	}
	if src.File != "" {
		list, err := ReadFile(src.File)
		if err != nil {
			return nil, "", err
		}
		return list, OriginFile, nil
	}
	list, err := Embedded()
	if err != nil {
		return nil, "", err
	}
	return list, OriginEmbedded, nil
}

// Normalize lowercases and trims each entry, drops anything that is not purely
// a–z, and removes duplicates while keeping first-seen order.
func Normalize(list []string) []string {
	out := make([]string, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, w := range list {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || !isAlpha(w) {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// isAlpha reports whether s is all lowercase ASCII letters.
func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
