package picklist

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCountries(t *testing.T) {
	in := "\ufeffName,IsoCode,IntVal\nCanada,CA,39\n\n\"Korea, Republic of\",KR,40\n"
	countries, err := ParseCountries("countries.csv", strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []Country{
		{Name: "Canada", IsoCode: "CA", IntVal: "39"},
		{Name: "Korea, Republic of", IsoCode: "KR", IntVal: "40"},
	}, countries)
}

func TestParseStatesColumnOrderFree(t *testing.T) {
	in := "CountryIso,IntVal,IsoCode,Name,Notes\nCA,1,ON,Ontario,ignored\n"
	states, err := ParseStates("states.csv", strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []State{{Name: "Ontario", IsoCode: "ON", IntVal: "1", CountryIso: "CA"}}, states)
}

func TestParseRejectsMalformedRows(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		line  int
		field string
	}{
		{"missing column", "Name,IsoCode\nCanada,CA\n", 1, "IntVal"},
		{"empty iso", "Name,IsoCode,IntVal\nCanada,,39\n", 2, "IsoCode"},
		{"short row", "Name,IsoCode,IntVal\nCanada,CA,39\nMexico,MX\n", 3, "IntVal"},
		{"non numeric", "Name,IsoCode,IntVal\nCanada,CA,abc\n", 2, "IntVal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCountries("countries.csv", strings.NewReader(tt.in))
			var rowErr *RowError
			require.True(t, errors.As(err, &rowErr), "got %v", err)
			assert.Equal(t, tt.line, rowErr.Line)
			assert.Equal(t, tt.field, rowErr.Field)
		})
	}

	_, err := ParseCountries("empty.csv", strings.NewReader(""))
	assert.Error(t, err)
}

func TestJoinCanadaOntario(t *testing.T) {
	countries := []Country{{Name: "Canada", IsoCode: "CA", IntVal: "39"}}
	states := []State{{Name: "Ontario", IsoCode: "ON", IntVal: "1", CountryIso: "CA"}}

	joined, err := Join(countries, states)
	require.NoError(t, err)
	require.Len(t, joined, 1)
	assert.Equal(t, states, joined[0].States)
	assert.Empty(t, countries[0].States, "input slice is not mutated")
}

func TestJoinCanadaParisMismatch(t *testing.T) {
	countries := []Country{{Name: "Canada", IsoCode: "CA", IntVal: "39"}}
	states := []State{{Name: "Paris", IsoCode: "PAR", IntVal: "1", CountryIso: "FR"}}

	joined, err := Join(countries, states)
	require.ErrorIs(t, err, ErrCSVMismatch)
	assert.Nil(t, joined)

	var mismatch *MismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, []string{"CA"}, mismatch.CountriesWithoutStates)
	assert.Equal(t, []string{"FR/PAR"}, mismatch.OrphanStates)
}

func TestJoinRejectsDuplicates(t *testing.T) {
	countries := []Country{
		{Name: "Canada", IsoCode: "CA", IntVal: "39"},
		{Name: "Canada again", IsoCode: "CA", IntVal: "41"},
	}
	states := []State{
		{Name: "Ontario", IsoCode: "ON", IntVal: "1", CountryIso: "CA"},
		{Name: "Ontario", IsoCode: "ON", IntVal: "2", CountryIso: "CA"},
	}
	_, err := Join(countries, states)
	var mismatch *MismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, []string{"CA"}, mismatch.DuplicateCountries)
	assert.Equal(t, []string{"CA/ON"}, mismatch.DuplicateStates)
}

func TestJoinIsCaseSensitive(t *testing.T) {
	countries := []Country{{Name: "Canada", IsoCode: "CA", IntVal: "39"}}
	states := []State{{Name: "Ontario", IsoCode: "ON", IntVal: "1", CountryIso: "ca"}}
	_, err := Join(countries, states)
	assert.ErrorIs(t, err, ErrCSVMismatch)
}

func TestJoinKeepsOrder(t *testing.T) {
	countries := []Country{
		{Name: "United States", IsoCode: "US", IntVal: "1"},
		{Name: "Canada", IsoCode: "CA", IntVal: "39"},
	}
	states := []State{
		{Name: "Ontario", IsoCode: "ON", IntVal: "1", CountryIso: "CA"},
		{Name: "Texas", IsoCode: "TX", IntVal: "2", CountryIso: "US"},
		{Name: "Quebec", IsoCode: "QC", IntVal: "3", CountryIso: "CA"},
	}
	joined, err := Join(countries, states)
	require.NoError(t, err)
	require.Len(t, joined, 2)
	assert.Equal(t, "US", joined[0].IsoCode)
	assert.Equal(t, "ON", joined[1].States[0].IsoCode)
	assert.Equal(t, "QC", joined[1].States[1].IsoCode)
	assert.Equal(t, 3, StateCount(joined))
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	countryPath := filepath.Join(dir, "countries.csv")
	statePath := filepath.Join(dir, "states.csv")
	require.NoError(t, os.WriteFile(countryPath, []byte("Name,IsoCode,IntVal\r\nCanada,CA,39\r\n"), 0o644))
	require.NoError(t, os.WriteFile(statePath, []byte("Name,IsoCode,IntVal,CountryIso\r\nOntario,ON,1,CA\r\n"), 0o644))

	joined, err := LoadFiles(countryPath, statePath)
	require.NoError(t, err)
	require.Len(t, joined, 1)
	assert.Len(t, joined[0].States, 1)

	_, err = LoadFiles(filepath.Join(dir, "missing.csv"), statePath)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
