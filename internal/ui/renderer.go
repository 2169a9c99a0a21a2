package ui

import (
	"fmt"
	"io"
	"sync"

	constants "poolmon/config"
	"poolmon/internal/snapshot"
)

// clearScreen resets the terminal, dropping its scrollback
const clearScreen = "\033c"

// Renderer shows one snapshot per cycle
type Renderer interface {
	Render(frame *snapshot.DataFrame)
	Close() error
}

// New returns the renderer for mode. onQuit is called when the user asks to
// leave the full-screen view.
func New(mode string, out io.Writer, log LogStatus, onQuit func()) (Renderer, error) {
	switch mode {
	case constants.UI_MODE_TUI:
		return NewScreen(out, log, onQuit), nil
	case constants.UI_MODE_PLAIN:
		return NewPlain(out, log), nil
	case constants.UI_MODE_NONE:
		return None{}, nil
	default:
		return nil, fmt.Errorf("unknown ui mode %q", mode)
	}
}

// Plain redraws the whole terminal with uncolored text
type Plain struct {
	mu  sync.Mutex
	out io.Writer
	log LogStatus
}

// NewPlain creates a plain renderer
func NewPlain(out io.Writer, log LogStatus) *Plain {
	return &Plain{out: out, log: log}
}

func (p *Plain) Render(frame *snapshot.DataFrame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, clearScreen+FormatFrame(frame, p.log).String())
}

func (p *Plain) Close() error { return nil }

// None discards every frame
type None struct{}

func (None) Render(*snapshot.DataFrame) {}

func (None) Close() error { return nil }
