// Package diagnostics captures screenshots of the page at named steps into a
// run-scoped directory.
package diagnostics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/rs/zerolog"

	"orgsetup/internal/dom"
)

// Sink records evidence for a step. Capture returns the path written, or ""
// when nothing was captured; failures are logged and never returned.
type Sink interface {
	Capture(ctx context.Context, page dom.Page, name string) string
}

type disabled struct{}

func (disabled) Capture(context.Context, dom.Page, string) string { return "" }

// Disabled captures nothing.
var Disabled Sink = disabled{}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// ScreenshotSink writes full-page PNGs into Dir.
type ScreenshotSink struct {
	dir string
	log zerolog.Logger

	mu    sync.Mutex
	files []string
}

func NewScreenshotSink(dir string, logger zerolog.Logger) *ScreenshotSink {
	return &ScreenshotSink{dir: dir, log: logger.With().Str("component", "diagnostics").Logger()}
}

func (s *ScreenshotSink) Capture(ctx context.Context, page dom.Page, name string) string {
	buf, err := page.Screenshot(ctx)
	if err != nil {
		s.log.Warn().Err(err).Str("step", name).Msg("screenshot failed")
		return ""
	}
	path := filepath.Join(s.dir, unsafeName.ReplaceAllString(name, "_")+".png")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("write screenshot failed")
		return ""
	}
	s.mu.Lock()
	s.files = append(s.files, path)
	s.mu.Unlock()
	return path
}

// Files lists the screenshots written so far, in capture order.
func (s *ScreenshotSink) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.files...)
}

// Dir is where screenshots are written.
func (s *ScreenshotSink) Dir() string { return s.dir }

// PrepareRunDir creates dir, or empties it of regular files when it already
// exists. Subdirectories are left alone.
func PrepareRunDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	if err != nil {
		return fmt.Errorf("read run dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("clear run dir: %w", err)
		}
	}
	return nil
}
