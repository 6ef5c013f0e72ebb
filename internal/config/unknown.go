package config

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxSuggestDistance is the largest edit distance still offered as a
// "did you mean?" suggestion.
const maxSuggestDistance = 3

// knownKeys lists every valid top-level key, sorted so that ties in edit
// distance resolve the same way on every run. It is derived from the toml
// tags of Config so that adding a field cannot leave the list stale.
var knownKeys = tomlKeys(reflect.TypeFor[Config]())

func tomlKeys(t reflect.Type) []string {
	var keys []string

	for i := range t.NumField() {
		f := t.Field(i)
		if f.Anonymous {
			keys = append(keys, tomlKeys(f.Type)...)
			continue
		}

		if name, _, _ := strings.Cut(f.Tag.Get("toml"), ","); name != "" {
			keys = append(keys, name)
		}
	}

	slices.Sort(keys)

	return keys
}

// checkUnknownKeys reports every key the decoder left undecoded.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error

	seen := make(map[string]bool)

	for _, key := range md.Undecoded() {
		// Tables are reported once, by their top-level name.
		name := key[0]
		if seen[name] {
			continue
		}

		seen[name] = true
		errs = append(errs, unknownKeyError(name))
	}

	return errors.Join(errs...)
}

func unknownKeyError(name string) error {
	if suggestion := closestMatch(name, knownKeys); suggestion != "" {
		return fmt.Errorf("unknown config key %q, did you mean %q?", name, suggestion)
	}

	return fmt.Errorf("unknown config key %q", name)
}

// closestMatch returns the candidate nearest to s, or "" when none is within
// maxSuggestDistance.
func closestMatch(s string, candidates []string) string {
	best, bestDist := "", maxSuggestDistance+1

	for _, c := range candidates {
		if d := levenshtein(s, c); d < bestDist {
			best, bestDist = c, d
		}
	}

	return best
}

// levenshtein is the byte-wise edit distance between a and b, computed with
// two rolling rows.
func levenshtein(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			sub := prev[j]
			if a[i] != b[j] {
				sub++
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, sub)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
