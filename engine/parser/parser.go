// Package parser turns one input line into an Intent. It is intentionally
// dumb: first token is the verb, the rest are parameter tokens. Double
// quotes group a multi-word token. Verb vocabulary and parameter meaning
// live in the loaded definitions, not here.
package parser

import (
	"strings"

	"github.com/nathoo/worldcore/types"
)

// Parse tokenizes a command line. An empty or all-whitespace line yields a
// zero Intent (empty verb); a bare verb yields nil Params.
func Parse(line string) types.Intent {
	tokens := tokenize(line)
	if len(tokens) == 0 {
		return types.Intent{}
	}
	intent := types.Intent{Verb: strings.ToLower(tokens[0])}
	if len(tokens) > 1 {
		intent.Params = tokens[1:]
	}
	return intent
}

func tokenize(line string) []string {
	var tokens []string
	var cur strings.Builder
	inQuote := false

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			if !inQuote {
				// Closing quote ends the token even if empty content follows.
				flush()
			}
		case !inQuote && (r == ' ' || r == '\t'):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}
