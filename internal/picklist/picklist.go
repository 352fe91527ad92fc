// Package picklist models the desired country and state picklist entries and
// builds them from a pair of CSV files.
package picklist

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCSVMismatch rejects a country/state CSV pair that does not join cleanly.
var ErrCSVMismatch = errors.New("csv mismatch")

// State is one desired state picklist entry.
type State struct {
	Name       string `json:"name"`
	IsoCode    string `json:"iso_code"`
	IntVal     string `json:"int_val"`
	CountryIso string `json:"country_iso"`
}

// Country is one desired country picklist entry with the states to load
// under it, in CSV order.
type Country struct {
	Name    string  `json:"name"`
	IsoCode string  `json:"iso_code"`
	IntVal  string  `json:"int_val"`
	States  []State `json:"states"`
}

// MismatchError lists everything that prevented a CSV pair from joining.
type MismatchError struct {
	CountriesWithoutStates []string
	OrphanStates           []string
	DuplicateCountries     []string
	DuplicateStates        []string
}

func (e *MismatchError) Error() string {
	var parts []string
	if len(e.CountriesWithoutStates) > 0 {
		parts = append(parts, "countries without states: "+strings.Join(e.CountriesWithoutStates, ", "))
	}
	if len(e.OrphanStates) > 0 {
		parts = append(parts, "states with unknown country: "+strings.Join(e.OrphanStates, ", "))
	}
	if len(e.DuplicateCountries) > 0 {
		parts = append(parts, "duplicate countries: "+strings.Join(e.DuplicateCountries, ", "))
	}
	if len(e.DuplicateStates) > 0 {
		parts = append(parts, "duplicate states: "+strings.Join(e.DuplicateStates, ", "))
	}
	return fmt.Sprintf("%s: %s", ErrCSVMismatch, strings.Join(parts, "; "))
}

func (e *MismatchError) Is(target error) bool {
	return target == ErrCSVMismatch
}

func (e *MismatchError) empty() bool {
	return len(e.CountriesWithoutStates) == 0 && len(e.OrphanStates) == 0 &&
		len(e.DuplicateCountries) == 0 && len(e.DuplicateStates) == 0
}

// Join attaches every state to the country whose iso-code equals its
// CountryIso. The pair is rejected as a whole when a country ends up with no
// states, a state names no loaded country, or an iso-code repeats (country
// iso-codes globally, state iso-codes within their country).
func Join(countries []Country, states []State) ([]Country, error) {
	mismatch := &MismatchError{}

	index := make(map[string]int, len(countries))
	joined := make([]Country, 0, len(countries))
	for _, c := range countries {
		if _, dup := index[c.IsoCode]; dup {
			mismatch.DuplicateCountries = append(mismatch.DuplicateCountries, c.IsoCode)
			continue
		}
		index[c.IsoCode] = len(joined)
		c.States = nil
		joined = append(joined, c)
	}

	seen := make(map[string]map[string]bool, len(joined))
	for _, s := range states {
		i, ok := index[s.CountryIso]
		if !ok {
			mismatch.OrphanStates = append(mismatch.OrphanStates, s.CountryIso+"/"+s.IsoCode)
			continue
		}
		if seen[s.CountryIso] == nil {
			seen[s.CountryIso] = map[string]bool{}
		}
		if seen[s.CountryIso][s.IsoCode] {
			mismatch.DuplicateStates = append(mismatch.DuplicateStates, s.CountryIso+"/"+s.IsoCode)
			continue
		}
		seen[s.CountryIso][s.IsoCode] = true
		joined[i].States = append(joined[i].States, s)
	}

	for _, c := range joined {
		if len(c.States) == 0 {
			mismatch.CountriesWithoutStates = append(mismatch.CountriesWithoutStates, c.IsoCode)
		}
	}

	if !mismatch.empty() {
		return nil, mismatch
	}
	return joined, nil
}

// StateCount sums the states across countries.
func StateCount(countries []Country) int {
	n := 0
	for _, c := range countries {
		n += len(c.States)
	}
	return n
}
