package words

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/unscramble/internal/database"
	"github.com/robalobadob/unscramble/internal/game"
)

func TestNormalize(t *testing.T) {
	in := []string{"  Apple ", "apple", "", "x-ray", "Banana", "café", "cherry1", "dog"}
	assert.Equal(t, []string{"apple", "banana", "dog"}, Normalize(in))
	assert.Empty(t, Normalize(nil))
}

func TestEmbedded(t *testing.T) {
	list, err := Embedded()
	require.NoError(t, err)
	assert.Greater(t, len(list), game.DefaultMaxRounds)
	assert.NotContains(t, list, "x-ray")
	assert.Equal(t, list, Normalize(list))

	// The default list must be usable with the default config as-is.
	_, err = game.NewEngine(list, game.DefaultConfig())
	assert.NoError(t, err)
}

func writeWordFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadFile(t *testing.T) {
	path := writeWordFile(t, "# comment\nOne\n\ntwo\nthree3\ntwo\n")
	list, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, list)

	t.Run("only junk", func(t *testing.T) {
		_, err := ReadFile(writeWordFile(t, "# nothing\n123\n"))
		assert.ErrorIs(t, err, ErrEmpty)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := ReadFile(filepath.Join(t.TempDir(), "nope.txt"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func newBank(t *testing.T) *Bank {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))
	return NewBank(db)
}

func TestBank(t *testing.T) {
	ctx := context.Background()
	b := newBank(t)

	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	added, err := b.Import(ctx, []string{"Lemon", "melon", "lemon", "not a word"})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = b.Import(ctx, []string{"melon", "grape"})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	list, err := b.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"lemon", "melon", "grape"}, list)

	n, err = b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("embedded by default", func(t *testing.T) {
		list, origin, err := Load(ctx, Source{})
		require.NoError(t, err)
		assert.Equal(t, OriginEmbedded, origin)
		assert.NotEmpty(t, list)
	})

	t.Run("file", func(t *testing.T) {
		list, origin, err := Load(ctx, Source{File: writeWordFile(t, "pear\nplum\n")})
		require.NoError(t, err)
		assert.Equal(t, OriginFile, origin)
		assert.Equal(t, []string{"pear", "plum"}, list)
	})

	t.Run("empty bank falls through to file", func(t *testing.T) {
		list, origin, err := Load(ctx, Source{Bank: newBank(t), File: writeWordFile(t, "pear\n")})
		require.NoError(t, err)
		assert.Equal(t, OriginFile, origin)
		assert.Equal(t, []string{"pear"}, list)
	})

	t.Run("bank wins", func(t *testing.T) {
		b := newBank(t)
		_, err := b.Import(ctx, []string{"kiwi", "mango"})
		require.NoError(t, err)

		list, origin, err := Load(ctx, Source{Bank: b, File: writeWordFile(t, "pear\n")})
		require.NoError(t, err)
		assert.Equal(t, OriginBank, origin)
		assert.Equal(t, []string{"kiwi", "mango"}, list)
	})
}

func TestMigrateTwice(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.Migrate(db))
}
