package csvimport

import (
	"strconv"
	"unicode/utf16"
)

// DedupHash fingerprints a transaction by date, amount and description.
// It is a 32-bit h*31+c hash over UTF-16 code units, reported as the hex of
// its absolute value. Collisions are possible.
func DedupHash(date string, amount float64, description string) string {
	key := date + "|" + FormatAmount(amount) + "|" + description

	var h int32
	for _, c := range utf16.Encode([]rune(key)) {
		h = h*31 + int32(c)
	}

	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 16)
}

// FormatAmount renders an amount in its shortest form, e.g. 12.5 or -45
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

// HashSet holds the fingerprints seen during one import
type HashSet map[string]struct{}

// Add records h and reports whether it was new
func (s HashSet) Add(h string) bool {
	if _, ok := s[h]; ok {
		return false
	}
	s[h] = struct{}{}
	return true
}

// Contains reports whether h was recorded
func (s HashSet) Contains(h string) bool {
	_, ok := s[h]
	return ok
}
