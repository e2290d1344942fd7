package output

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/lcalzada-xor/phishguard/internal/present"
)

const (
	ansiReset = "\033[0m"
	ansiRed   = "\033[31m"
	ansiGreen = "\033[32m"
)

// Terminal is a result panel printed to a terminal or any writer.
type Terminal struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
}

// NewTerminal returns a panel writing to w. ANSI colors are used when color
// is true.
func NewTerminal(w io.Writer, color bool) *Terminal {
	if w == nil {
		w = io.Discard
	}
	return &Terminal{out: w, color: color}
}

// Render prints view. Each view is written on its own lines.
func (t *Terminal) Render(_ context.Context, view present.View) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prefix, suffix := "", ""
	if t.color {
		switch view.Color {
		case "red":
			prefix, suffix = ansiRed, ansiReset
		case "green":
			prefix, suffix = ansiGreen, ansiReset
		}
	}

	if _, err := fmt.Fprintf(t.out, "%s%s%s\n", prefix, view.Headline, suffix); err != nil {
		return err
	}
	if view.Detail != "" {
		if _, err := fmt.Fprintf(t.out, "%s%s%s\n", prefix, view.Detail, suffix); err != nil {
			return err
		}
	}
	return nil
}
