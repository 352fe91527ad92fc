package dom

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnexpectedFrameTopology matches any *UnexpectedFrameTopologyError.
var ErrUnexpectedFrameTopology = errors.New("unexpected frame topology")

// UnexpectedFrameTopologyError reports that the number of frames matching a
// role was not exactly one.
type UnexpectedFrameTopologyError struct {
	Role  string
	Found int
	Total int
}

func (e *UnexpectedFrameTopologyError) Error() string {
	return fmt.Sprintf("unexpected frame topology: want exactly one %s frame, found %d of %d", e.Role, e.Found, e.Total)
}

func (e *UnexpectedFrameTopologyError) Is(target error) bool {
	return target == ErrUnexpectedFrameTopology
}

// FrameRole names the frame a page is expected to render its content into.
type FrameRole struct {
	Name  string
	Match func(Frame) bool
}

// ContentFrame matches every child frame. Setup pages render their classic
// content into a single child frame.
var ContentFrame = FrameRole{
	Name:  "setup content",
	Match: func(Frame) bool { return true },
}

// NamePrefixRole matches frames whose name attribute starts with prefix.
// An empty prefix behaves like ContentFrame.
func NamePrefixRole(role, prefix string) FrameRole {
	if prefix == "" {
		return FrameRole{Name: role, Match: ContentFrame.Match}
	}
	return FrameRole{
		Name: role,
		Match: func(f Frame) bool {
			return strings.HasPrefix(f.Name, prefix)
		},
	}
}

// ResolveFrame returns the surface of the one frame of p that plays role.
// Zero or several matches yield an *UnexpectedFrameTopologyError.
func ResolveFrame(ctx context.Context, p Page, role FrameRole) (Surface, error) {
	frames, err := p.Frames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	var matched []Frame
	for _, f := range frames {
		if role.Match(f) {
			matched = append(matched, f)
		}
	}
	if len(matched) != 1 {
		return nil, &UnexpectedFrameTopologyError{Role: role.Name, Found: len(matched), Total: len(frames)}
	}
	return matched[0].Surface, nil
}
