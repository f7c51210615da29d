// Package facility owns the facility naming table: canonical plant
// names, the two-letter codes used inside lot numbers, and the alias
// matching needed because upstream systems spell the same plant in
// several ways.
package facility

import "strings"

// UnknownCode is issued for facility names missing from the table so
// lot generation keeps working in a degraded, traceable way.
const UnknownCode = "XX"

var codes = map[string]string{
	"Kovvur Plant-1":     "K1",
	"Kovvur Plant-2":     "K2",
	"Bandapuram Plant-1": "B1",
	"Bandapuram Plant-2": "B2",
	"Vemuluru Plant-1":   "V1",
	"Pardi Plant-1":      "P1",
}

// aliases collapses historical spellings onto the canonical name.
// Keys are normalized (lower case, trimmed).
var aliases = map[string]string{
	"fdb plant-1":    "Bandapuram Plant-1",
	"fdb plant-2":    "Bandapuram Plant-2",
	"fdk plant-1":    "Kovvur Plant-1",
	"fdk plant-2":    "Kovvur Plant-2",
	"fdv plant-1":    "Vemuluru Plant-1",
	"kovvuru plant-1": "Kovvur Plant-1",
}

func normalize(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Canonical resolves a possibly-aliased facility name to its canonical
// spelling. Names outside the table come back unchanged.
func Canonical(name string) string {
	n := normalize(name)
	if canonical, ok := aliases[n]; ok {
		return canonical
	}
	for known := range codes {
		if normalize(known) == n {
			return known
		}
	}
	return strings.TrimSpace(name)
}

// Code returns the two-letter lot-number code for a facility, falling
// back to UnknownCode when the name is not in the table.
func Code(name string) string {
	if code, ok := codes[Canonical(name)]; ok {
		return code
	}
	return UnknownCode
}

// Match reports whether two facility names refer to the same plant.
// Matching is deliberately loose: alias resolution, case folding and
// bidirectional substring containment, because the same facility
// arrives spelled differently from different subsystems.
func Match(a, b string) bool {
	ca, cb := normalize(Canonical(a)), normalize(Canonical(b))
	if ca == "" || cb == "" {
		return false
	}
	if ca == cb {
		return true
	}
	return strings.Contains(ca, cb) || strings.Contains(cb, ca)
}
