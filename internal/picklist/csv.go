package picklist

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// RowError reports a malformed CSV row. Line is 1-based and counts the header.
type RowError struct {
	File  string
	Line  int
	Field string
	Err   error
}

func (e *RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s:%d: %s: %v", e.File, e.Line, e.Field, e.Err)
	}
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

var (
	errMissingValue = errors.New("value is required")
	errNotNumeric   = errors.New("value must be an integer")
)

var (
	countryColumns = []string{"Name", "IsoCode", "IntVal"}
	stateColumns   = []string{"Name", "IsoCode", "IntVal", "CountryIso"}
)

// ParseCountries reads a country CSV with the header Name, IsoCode, IntVal.
// Column order is free and extra columns are ignored.
func ParseCountries(name string, r io.Reader) ([]Country, error) {
	rows, err := readRows(name, r, countryColumns)
	if err != nil {
		return nil, err
	}
	countries := make([]Country, 0, len(rows))
	for _, row := range rows {
		countries = append(countries, Country{
			Name:    row.values["Name"],
			IsoCode: row.values["IsoCode"],
			IntVal:  row.values["IntVal"],
		})
	}
	return countries, nil
}

// ParseStates reads a state CSV with the header Name, IsoCode, IntVal,
// CountryIso.
func ParseStates(name string, r io.Reader) ([]State, error) {
	rows, err := readRows(name, r, stateColumns)
	if err != nil {
		return nil, err
	}
	states := make([]State, 0, len(rows))
	for _, row := range rows {
		states = append(states, State{
			Name:       row.values["Name"],
			IsoCode:    row.values["IsoCode"],
			IntVal:     row.values["IntVal"],
			CountryIso: row.values["CountryIso"],
		})
	}
	return states, nil
}

// LoadFiles parses both files and joins them.
func LoadFiles(countryPath, statePath string) ([]Country, error) {
	countries, err := parseFile(countryPath, ParseCountries)
	if err != nil {
		return nil, err
	}
	states, err := parseFile(statePath, ParseStates)
	if err != nil {
		return nil, err
	}
	return Join(countries, states)
}

func parseFile[T any](path string, parse func(string, io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return parse(path, f)
}

type row struct {
	values map[string]string
}

func readRows(name string, r io.Reader, columns []string) ([]row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &RowError{File: name, Line: 1, Err: errors.New("missing header")}
	}
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", name, err)
	}

	positions := make(map[string]int, len(columns))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		for _, col := range columns {
			if strings.EqualFold(h, col) {
				positions[col] = i
			}
		}
	}
	for _, col := range columns {
		if _, ok := positions[col]; !ok {
			return nil, &RowError{File: name, Line: 1, Field: col, Err: errors.New("column missing from header")}
		}
	}

	var rows []row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		line, _ := cr.FieldPos(0)
		if blank(record) {
			continue
		}

		values := make(map[string]string, len(columns))
		for _, col := range columns {
			pos := positions[col]
			v := ""
			if pos < len(record) {
				v = strings.TrimSpace(record[pos])
			}
			if v == "" {
				return nil, &RowError{File: name, Line: line, Field: col, Err: errMissingValue}
			}
			values[col] = v
		}
		if _, err := strconv.Atoi(values["IntVal"]); err != nil {
			return nil, &RowError{File: name, Line: line, Field: "IntVal", Err: errNotNumeric}
		}
		rows = append(rows, row{values: values})
	}
	return rows, nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
