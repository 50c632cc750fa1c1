package mode

import "fmt"

// Lexical selects how lexical search is served.
type Lexical string

// Lexical mode constants.
const (
	// Auto asks the backend once at startup whether it supports ranked search.
	Auto Lexical = "auto"
	// Ranked forces BM25-style ranking.
	Ranked Lexical = "ranked"
	// Substring forces the degraded containment matcher.
	Substring Lexical = "substring"
)

// IsValid checks if the mode is one of the supported values.
func (m Lexical) IsValid() bool {
	return m == Auto || m == Ranked || m == Substring
}

// Parse validates a lexical mode; empty means Auto.
func Parse(s string) (Lexical, error) {
	if s == "" {
		return Auto, nil
	}
	m := Lexical(s)
	if !m.IsValid() {
		return "", fmt.Errorf("invalid lexical mode: %q", s)
	}
	return m, nil
}
