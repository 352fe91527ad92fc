package reconcile

import (
	"context"
	"fmt"
	"strings"

	"orgsetup/internal/dom"
)

// IsoCodes returns the iso-codes listed in a country or state table, in
// table order. Only table cells carrying non-empty text are counted; the
// header repeats the column id on other tags.
func IsoCodes(ctx context.Context, table dom.Surface) ([]string, error) {
	cells, err := table.QueryAll(ctx, "[id*='isocodeCol']")
	if err != nil {
		return nil, fmt.Errorf("query iso-code cells: %w", err)
	}
	var codes []string
	for _, cell := range cells {
		tag, err := dom.ReadProperty(ctx, cell, "tagName")
		if err != nil {
			return nil, err
		}
		if tag != "TD" {
			continue
		}
		code, err := dom.FirstChildText(ctx, cell)
		if err != nil {
			return nil, err
		}
		if code != "" {
			codes = append(codes, code)
		}
	}
	return codes, nil
}

// IsoCodeExists reports whether iso is listed in table. The match is exact
// and case-sensitive.
func IsoCodeExists(ctx context.Context, table dom.Surface, iso string) (bool, error) {
	codes, err := IsoCodes(ctx, table)
	if err != nil {
		return false, err
	}
	for _, code := range codes {
		if code == iso {
			return true, nil
		}
	}
	return false, nil
}

// EditLink returns the edit action of the row whose iso-code cell is iso, or
// nil. Cells are walked in document order: the action cell of a row comes
// before its iso-code cell.
func EditLink(ctx context.Context, table dom.Surface, iso string) (dom.Element, error) {
	cells, err := table.QueryAll(ctx, "[class*='dataCell']")
	if err != nil {
		return nil, fmt.Errorf("query data cells: %w", err)
	}
	var edit dom.Element
	for _, cell := range cells {
		id, err := dom.ReadProperty(ctx, cell, "id")
		if err != nil {
			return nil, err
		}
		switch {
		case strings.Contains(id, "actionCol"):
			children, err := cell.Children(ctx)
			if err != nil {
				return nil, err
			}
			edit = nil
			if len(children) > 0 {
				edit = children[0]
			}
		case strings.Contains(id, "isocodeCol"):
			code, err := dom.FirstChildText(ctx, cell)
			if err != nil {
				return nil, err
			}
			if code == iso && edit != nil {
				return edit, nil
			}
		}
	}
	return nil, nil
}
