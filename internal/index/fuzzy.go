package index

import "strings"

// maxKeyRune closes the scan range: every key with the current search string
// as a prefix sorts at or below search+maxKeyRune.
const maxKeyRune = '\U0010FFFF'

// Fuzzy resolves a human search string against an index keyed by lower-cased
// names. Starting with the full lower-cased string it scans all keys in the
// closed range [search, search+maxKeyRune], keeping keys at most maxSuffix
// runes longer than the search string. The first (longest) search length that
// yields any match wins and its matched values are returned as a deduplicated
// union; otherwise the last rune is stripped and the scan repeats, stopping
// once fewer than minChars runes remain.
func Fuzzy[V comparable](idx *Multi[V], search string, minChars, maxSuffix int) []V {
	runes := []rune(strings.ToLower(strings.TrimSpace(search)))

	for len(runes) >= minChars && minChars > 0 {
		s := string(runes)
		hi := s + string(rune(maxKeyRune))

		var found []V
		seen := make(map[V]struct{})
		idx.Range(s, hi, func(key string, values []V) bool {
			if len([]rune(key))-len(runes) > maxSuffix {
				return true
			}
			for _, v := range values {
				if _, ok := seen[v]; !ok {
					seen[v] = struct{}{}
					found = append(found, v)
				}
			}
			return true
		})
		if len(found) > 0 {
			return found
		}

		runes = runes[:len(runes)-1]
	}

	return nil
}

// Numeric reports whether the search input consists solely of digits, in
// which case lookup should be an exact match on the primary identifier index
// rather than a fuzzy name search.
func Numeric(search string) bool {
	if search == "" {
		return false
	}
	for _, r := range search {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
