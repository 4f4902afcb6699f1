package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownKeys lists the valid keys of each config section.
var knownKeys = map[string][]string{
	"google":   {"client_id", "client_secret", "parent_folder_id", "sheet_id", "sheet_range"},
	"workflow": {"cleanup_on_failure", "parallel_uploads", "record_orphans"},
	"network":  {"burst", "max_retries", "request_timeout", "requests_per_second", "user_agent"},
	"logging":  {"log_file", "log_format", "log_level"},
}

// knownSections is the sorted list of section names for Levenshtein matching.
var knownSections = func() []string {
	names := make([]string, 0, len(knownKeys))
	for k := range knownKeys {
		names = append(names, k)
	}

	slices.Sort(names)

	return names
}()

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error

	reported := make(map[string]bool)

	for _, key := range md.Undecoded() {
		err := buildKeyError(md, key)
		if err == nil || reported[err.Error()] {
			continue
		}

		reported[err.Error()] = true
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// buildKeyError describes one undecoded key. Keys are either a section name
// or section.key.
func buildKeyError(md *toml.MetaData, key toml.Key) error {
	if len(key) == 0 {
		return nil
	}

	section := key[0]

	keys, ok := knownKeys[section]
	if !ok {
		if len(key) > 1 || md.Type(section) == "Hash" {
			return sectionError(section)
		}

		return topLevelError(section)
	}

	if len(key) < 2 {
		return nil
	}

	field := key[1]
	if suggestion := closestMatch(field, keys); suggestion != "" {
		return fmt.Errorf("unknown config key %q in [%s]: did you mean %q?", field, section, suggestion)
	}

	return fmt.Errorf("unknown config key %q in [%s]", field, section)
}

func sectionError(section string) error {
	if suggestion := closestMatch(section, knownSections); suggestion != "" {
		return fmt.Errorf("unknown config section [%s]: did you mean [%s]?", section, suggestion)
	}

	return fmt.Errorf("unknown config section [%s]", section)
}

// topLevelError reports a bare key outside any section, pointing at the
// section that holds a key of that name when there is one.
func topLevelError(key string) error {
	for _, section := range knownSections {
		if slices.Contains(knownKeys[section], key) {
			return fmt.Errorf("unknown config key %q: did you mean to put it under [%s]?", key, section)
		}
	}

	if suggestion := closestMatch(key, knownSections); suggestion != "" {
		return fmt.Errorf("unknown config key %q: did you mean [%s]?", key, suggestion)
	}

	return fmt.Errorf("unknown config key %q", key)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// Single-row optimization avoids allocating a full matrix.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
