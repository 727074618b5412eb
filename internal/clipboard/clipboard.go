// Package clipboard copies generated code to the system clipboard.
package clipboard

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/muesli/termenv"
)

// CopiedIndicatorDuration is how long front-ends show the "copied" state.
const CopiedIndicatorDuration = 2 * time.Second

// ErrEmpty is returned when there is nothing to copy.
var ErrEmpty = errors.New("clipboard: nothing to copy")

// Copier places text on a clipboard.
type Copier interface {
	Copy(text string) error
}

// SystemCopier writes to the OS clipboard, falling back to an OSC 52 escape sequence on
// the terminal when no clipboard utility is installed (e.g. over SSH).
type SystemCopier struct {
	// Terminal receives the OSC 52 sequence. Nil disables the fallback.
	Terminal io.Writer

	writeAll    func(string) error
	unsupported func() bool
}

// NewSystemCopier creates a copier with an optional terminal fallback.
func NewSystemCopier(terminal io.Writer) *SystemCopier {
	return &SystemCopier{
		Terminal:    terminal,
		writeAll:    clipboard.WriteAll,
		unsupported: func() bool { return clipboard.Unsupported },
	}
}

func (c *SystemCopier) Copy(text string) error {
	if text == "" {
		return ErrEmpty
	}
	var err error
	if !c.unsupported() {
		if err = c.writeAll(text); err == nil {
			return nil
		}
	}
	if c.Terminal == nil {
		if err == nil {
			err = errors.New("no clipboard utility found (install xclip, xsel or wl-clipboard)")
		}
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	termenv.NewOutput(c.Terminal).Copy(text)
	return nil
}

// Read returns the current clipboard text.
func Read() (string, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}
	return text, nil
}

// MemoryCopier keeps copied text in memory. Useful for tests and headless servers.
type MemoryCopier struct {
	mu     sync.Mutex
	copies []string
}

func (c *MemoryCopier) Copy(text string) error {
	if text == "" {
		return ErrEmpty
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.copies = append(c.copies, text)
	return nil
}

// Last returns the most recent copy.
func (c *MemoryCopier) Last() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.copies) == 0 {
		return "", false
	}
	return c.copies[len(c.copies)-1], true
}
