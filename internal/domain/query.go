package domain

import "strings"

// NormalizeRange rewrites the "min-max" form of a numeric range to "min,max".
// Values already in the comma form are returned unchanged.
func NormalizeRange(r string) string {
	return strings.ReplaceAll(r, "-", ",")
}

// NormalizeRanges applies NormalizeRange to every element. A nil slice stays nil.
func NormalizeRanges(ranges []string) []string {
	if ranges == nil {
		return nil
	}
	out := make([]string, len(ranges))
	for i, r := range ranges {
		out[i] = NormalizeRange(r)
	}
	return out
}

// NormalizeURL produces the comparison key for fuzzy URL matching: lower-cased,
// without scheme, without a leading "www." and without one trailing slash.
func NormalizeURL(raw string) string {
	u := strings.ToLower(strings.TrimSpace(raw))
	if rest, ok := strings.CutPrefix(u, "https://"); ok {
		u = rest
	} else if rest, ok := strings.CutPrefix(u, "http://"); ok {
		u = rest
	}
	u = strings.TrimPrefix(u, "www.")
	u = strings.TrimSuffix(u, "/")
	return u
}

// SameURL reports whether two URLs normalize to the same non-empty key.
func SameURL(a, b string) bool {
	na, nb := NormalizeURL(a), NormalizeURL(b)
	return na != "" && na == nb
}

// SplitCSV splits a comma-separated list, trimming blanks and dropping empty items.
func SplitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
