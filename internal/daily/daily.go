// Package daily derives the per-day seed that makes "daily" sessions pick
// the same word sequence for every player on a given UTC date.
package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
	"time"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Seed returns the two PCG seed words for a date using HMAC(salt, YYYY-MM-DD).
func Seed(date time.Time, salt string) (uint64, uint64) {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(date)))
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8]), binary.BigEndian.Uint64(sum[8:16])
}

// Rand returns a random source seeded for date.
func Rand(date time.Time, salt string) *rand.Rand {
	s1, s2 := Seed(date, salt)
	return rand.New(rand.NewPCG(s1, s2))
}
