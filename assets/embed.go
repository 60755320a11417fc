// Package assets bundles files compiled into the binary: the default word
// list and the sqlite migrations for the word bank.
package assets

import (
	"bufio"
	"embed"
	"io"
	"strings"
)

//go:embed words.txt migrations/*.sql
var FS embed.FS

// WordList returns the raw lines of the embedded word list with blank lines
// and # comments removed. Further cleanup is left to the words package.
func WordList() ([]string, error) {
	f, err := FS.Open("words.txt")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadLines(f)
}

// ReadLines reads one entry per line, skipping blanks and # comments.
func ReadLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, s)
	}
	return out, sc.Err()
}
