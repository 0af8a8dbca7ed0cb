package query

import (
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/nathoo/worldcore/world"
)

// fuzzyThreshold is the minimum JaroWinkler similarity for a typo-tolerant
// match. High enough that "trch" finds "torch" but "key" never finds "22door".
const fuzzyThreshold = 0.88

// AmbiguityError indicates a user-typed reference matched multiple entities.
type AmbiguityError struct {
	Ref        string
	Candidates []string
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("ambiguous reference %q (%s)", e.Ref, strings.Join(e.Candidates, ", "))
}

// NotFoundError indicates a user-typed reference matched nothing.
type NotFoundError struct {
	Ref string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("nothing matches %q", e.Ref)
}

// ResolveReference binds one raw action parameter token to an instance id.
// Matching, strictest first: exact id, exact name, name-word, then a unique
// fuzzy match. Zero matches fail NotFoundError, more than one AmbiguityError.
func ResolveReference(w *world.World, token string) (string, error) {
	if _, ok := w.Get(token); ok {
		return token, nil
	}

	lower := strings.ToLower(token)
	var exact, word []string
	for _, id := range w.InstanceIDs() {
		name := displayName(w, id)
		nameLower := strings.ToLower(name)
		switch {
		case nameLower == lower:
			exact = append(exact, id)
		case matchesWord(nameLower, lower) || strings.ReplaceAll(lower, " ", "_") == strings.ToLower(id):
			word = append(word, id)
		}
	}
	if len(exact) > 0 {
		return pickOne(token, exact)
	}
	if len(word) > 0 {
		return pickOne(token, word)
	}

	// Typo tolerance: accept a sufficiently similar name only when it is
	// unambiguously the best.
	var best string
	bestScore, runnerUp := 0.0, 0.0
	for _, id := range w.InstanceIDs() {
		score := matchr.JaroWinkler(lower, strings.ToLower(displayName(w, id)), false)
		if score > bestScore {
			best, runnerUp, bestScore = id, bestScore, score
		} else if score > runnerUp {
			runnerUp = score
		}
	}
	if bestScore >= fuzzyThreshold && runnerUp < fuzzyThreshold {
		return best, nil
	}

	return "", &NotFoundError{Ref: token}
}

func pickOne(token string, matches []string) (string, error) {
	if len(matches) == 1 {
		return matches[0], nil
	}
	return "", &AmbiguityError{Ref: token, Candidates: matches}
}

func matchesWord(nameLower, query string) bool {
	for _, w := range strings.Fields(nameLower) {
		if w == query {
			return true
		}
	}
	return false
}

func displayName(w *world.World, id string) string {
	if v, ok := w.GetProp(id, "name"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return id
}
