package words

import (
	"context"
	"database/sql"
	"fmt"
)

// Bank is the sqlite-backed word source (table "words").
type Bank struct{ db *sql.DB }

func NewBank(db *sql.DB) *Bank { return &Bank{db: db} }

// List returns every stored word in insertion order.
func (b *Bank) List(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT word FROM words ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Import normalizes list and inserts the words that are not stored yet.
// Returns how many rows were added.
func (b *Bank) Import(ctx context.Context, list []string) (int, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO words (word) VALUES (?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	added := 0
	for _, w := range Normalize(list) {
		res, err := stmt.ExecContext(ctx, w)
		if err != nil {
			return 0, fmt.Errorf("insert %q: %w", w, err)
		}
		n, _ := res.RowsAffected()
		added += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

// Count returns the number of stored words.
func (b *Bank) Count(ctx context.Context) (int, error) {
	var n int
	err := b.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM words`).Scan(&n)
	return n, err
}
