package graph

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatPath renders a path as the canonical compact form "R<id1>-><id2>...".
// An empty path renders as the empty string.
func FormatPath(path []ID) string {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = "R" + strconv.Itoa(id)
	}
	return strings.Join(parts, "->")
}

// ParsePath is the inverse of FormatPath: it splits on "->", strips the
// leading "R" from each token, and parses the remainder as an integer.
// Round-trips with FormatPath for every non-empty path.
func ParsePath(s string) ([]ID, error) {
	if s == "" {
		return nil, nil
	}
	tokens := strings.Split(s, "->")
	ids := make([]ID, len(tokens))
	for i, tok := range tokens {
		tok = strings.TrimPrefix(tok, "R")
		id, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("graph: parse path token %q: %w", tokens[i], err)
		}
		ids[i] = id
	}
	return ids, nil
}
