package dom

import (
	"context"
	"fmt"
	"strings"
)

// FindByID returns the first tag element whose id contains fragment. The
// console generates long, environment-specific ids with a stable fragment
// inside them, which is why this is a substring match. A nil element with a
// nil error means nothing matched.
func FindByID(ctx context.Context, s Surface, tag, fragment string) (Element, error) {
	els, err := s.QueryAll(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("query %s elements: %w", tag, err)
	}
	for _, el := range els {
		id, err := ReadProperty(ctx, el, "id")
		if err != nil {
			return nil, err
		}
		if id != "" && strings.Contains(id, fragment) {
			return el, nil
		}
	}
	return nil, nil
}

// FindAllByID is FindByID without the early return.
func FindAllByID(ctx context.Context, s Surface, tag, fragment string) ([]Element, error) {
	els, err := s.QueryAll(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("query %s elements: %w", tag, err)
	}
	var matched []Element
	for _, el := range els {
		id, err := ReadProperty(ctx, el, "id")
		if err != nil {
			return nil, err
		}
		if id != "" && strings.Contains(id, fragment) {
			matched = append(matched, el)
		}
	}
	return matched, nil
}

// FindLinkByText returns the first anchor whose normalized rendered text is
// exactly text.
func FindLinkByText(ctx context.Context, s Surface, text string) (Element, error) {
	links, err := s.QueryAll(ctx, "a")
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	for _, link := range links {
		linkText, err := ReadProperty(ctx, link, "innerText")
		if err != nil {
			return nil, err
		}
		if linkText == text {
			return link, nil
		}
	}
	return nil, nil
}

// FindByText returns the first tag element whose normalized textContent
// contains substr.
func FindByText(ctx context.Context, s Surface, tag, substr string) (Element, error) {
	els, err := s.QueryAll(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("query %s elements: %w", tag, err)
	}
	for _, el := range els {
		text, err := ReadProperty(ctx, el, "textContent")
		if err != nil {
			return nil, err
		}
		if strings.Contains(text, substr) {
			return el, nil
		}
	}
	return nil, nil
}

// First returns the first element matching selector, or nil.
func First(ctx context.Context, s Surface, selector string) (Element, error) {
	els, err := s.QueryAll(ctx, selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	if len(els) == 0 {
		return nil, nil
	}
	return els[0], nil
}

// ReadProperty reads a live property off el and normalizes it.
func ReadProperty(ctx context.Context, el Element, property string) (string, error) {
	raw, err := el.Property(ctx, property)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", property, err)
	}
	return Normalize(raw), nil
}

// FirstChildText returns the normalized textContent of el's first element
// child, or "" when el has no children.
func FirstChildText(ctx context.Context, el Element) (string, error) {
	children, err := el.Children(ctx)
	if err != nil {
		return "", fmt.Errorf("read children: %w", err)
	}
	if len(children) == 0 {
		return "", nil
	}
	return ReadProperty(ctx, children[0], "textContent")
}
