// Package tui provides the interactive terminal prompts used by the
// configuration commands:
//   - Arrow-key menu selection (numbered fallback off a terminal)
//   - Text, yes/no and hidden prompts
//   - Status lines ([OK], [WARN], [ERROR])
package tui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// =============================================================================
// COLORS
// =============================================================================

const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorDim    = "\033[2m"
	ColorGreen  = "\033[0;32m"
	ColorBlue   = "\033[0;34m"
	ColorCyan   = "\033[0;36m"
	ColorYellow = "\033[1;33m"
	ColorRed    = "\033[0;31m"
)

// ErrCancelled is returned when the user backs out of a prompt.
var ErrCancelled = errors.New("cancelled")

// Prompter reads answers from in and writes prompts to out. Raw-mode menus
// and hidden input are used only when in is a terminal.
type Prompter struct {
	in    *bufio.Reader
	out   io.Writer
	fd    int
	isTTY bool
}

// New returns a Prompter over arbitrary streams. Used by tests and pipes.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, fd: -1}
}

// Stdio returns a Prompter on the process terminal.
func Stdio() *Prompter {
	fd := int(os.Stdin.Fd())
	return &Prompter{
		in:    bufio.NewReader(os.Stdin),
		out:   os.Stdout,
		fd:    fd,
		isTTY: term.IsTerminal(fd),
	}
}

// =============================================================================
// STATUS LINES
// =============================================================================

// Header prints a styled section header.
func (p *Prompter) Header(title string) {
	fmt.Fprintf(p.out, "\n%s%s%s%s\n%s%s%s\n\n", ColorBold, ColorCyan, title, ColorReset,
		ColorDim, strings.Repeat("─", 50), ColorReset)
}

// Success prints msg with a green [OK] prefix.
func (p *Prompter) Success(msg string) { fmt.Fprintf(p.out, "%s[OK]%s %s\n", ColorGreen, ColorReset, msg) }

// Info prints msg with a blue [INFO] prefix.
func (p *Prompter) Info(msg string) { fmt.Fprintf(p.out, "%s[INFO]%s %s\n", ColorBlue, ColorReset, msg) }

// Warn prints msg with a yellow [WARN] prefix.
func (p *Prompter) Warn(msg string) { fmt.Fprintf(p.out, "%s[WARN]%s %s\n", ColorYellow, ColorReset, msg) }

// Error prints msg with a red [ERROR] prefix.
func (p *Prompter) Error(msg string) { fmt.Fprintf(p.out, "%s[ERROR]%s %s\n", ColorRed, ColorReset, msg) }

// =============================================================================
// MENU SELECTION
// =============================================================================

// MenuItem is one selectable entry.
type MenuItem struct {
	Label       string
	Description string
}

// Select shows items and returns the chosen index, starting on initial.
func (p *Prompter) Select(prompt string, items []MenuItem, initial int) (int, error) {
	if len(items) == 0 {
		return -1, fmt.Errorf("no items to select")
	}
	if initial < 0 || initial >= len(items) {
		initial = 0
	}
	if p.isTTY {
		if idx, err := p.selectRaw(prompt, items, initial); !errors.Is(err, errNoRawMode) {
			return idx, err
		}
	}
	return p.selectNumbered(prompt, items, initial)
}

var errNoRawMode = errors.New("raw mode unavailable")

func (p *Prompter) selectRaw(prompt string, items []MenuItem, selected int) (int, error) {
	oldState, err := term.MakeRaw(p.fd)
	if err != nil {
		return -1, errNoRawMode
	}
	defer term.Restore(p.fd, oldState)

	totalLines := 3 + len(items) + 2 // prompt + blank + items + blank + help
	fmt.Fprint(p.out, "\033[?25l")
	defer fmt.Fprint(p.out, "\033[?25h")

	first := true
	render := func() {
		if !first {
			fmt.Fprintf(p.out, "\033[%dA", totalLines)
		}
		first = false
		fmt.Fprintf(p.out, "\033[2K\r\n%s%s%s%s\r\n\r\n", ColorBold, ColorCyan, prompt, ColorReset)
		for i, item := range items {
			fmt.Fprint(p.out, "\033[2K\r")
			if i == selected {
				fmt.Fprintf(p.out, "  %s❯%s %s%s%s", ColorGreen, ColorReset, ColorBold, item.Label, ColorReset)
			} else {
				fmt.Fprintf(p.out, "    %s", item.Label)
			}
			if item.Description != "" {
				fmt.Fprintf(p.out, " %s- %s%s", ColorDim, item.Description, ColorReset)
			}
			fmt.Fprint(p.out, "\r\n")
		}
		fmt.Fprintf(p.out, "\033[2K\r\n  %s[↑/↓] Navigate  [Enter] Select  [q/Esc] Cancel%s\r\n", ColorDim, ColorReset)
	}
	erase := func() {
		fmt.Fprintf(p.out, "\033[%dA", totalLines)
		for i := 0; i < totalLines; i++ {
			fmt.Fprint(p.out, "\033[2K\r\n")
		}
		fmt.Fprintf(p.out, "\033[%dA", totalLines)
	}

	render()
	for {
		b, err := p.in.ReadByte()
		if err != nil {
			return -1, err
		}
		switch b {
		case 27: // Escape or arrow sequence
			if next, _ := p.in.ReadByte(); next == '[' {
				switch arrow, _ := p.in.ReadByte(); arrow {
				case 'A':
					selected = max(selected-1, 0)
				case 'B':
					selected = min(selected+1, len(items)-1)
				}
				render()
				continue
			}
			erase()
			return -1, ErrCancelled
		case 'q', 3: // q or Ctrl-C
			erase()
			return -1, ErrCancelled
		case 'k':
			selected = max(selected-1, 0)
			render()
		case 'j':
			selected = min(selected+1, len(items)-1)
			render()
		case 13, 10:
			erase()
			return selected, nil
		}
	}
}

// selectNumbered is the fallback for non-interactive input. An empty answer
// keeps initial.
func (p *Prompter) selectNumbered(prompt string, items []MenuItem, initial int) (int, error) {
	fmt.Fprintf(p.out, "\n%s%s%s%s\n\n", ColorBold, ColorCyan, prompt, ColorReset)
	for i, item := range items {
		fmt.Fprintf(p.out, "  %s[%d]%s %s", ColorGreen, i+1, ColorReset, item.Label)
		if item.Description != "" {
			fmt.Fprintf(p.out, " %s- %s%s", ColorDim, item.Description, ColorReset)
		}
		fmt.Fprintln(p.out)
	}
	fmt.Fprintf(p.out, "  %s[0]%s Cancel\n\n", ColorYellow, ColorReset)

	for {
		fmt.Fprintf(p.out, "Enter number [%d]: ", initial+1)
		input, err := p.readLine()
		if input == "" && err != nil {
			return -1, ErrCancelled
		}
		switch input {
		case "":
			return initial, nil
		case "0", "q":
			return -1, ErrCancelled
		}
		if num, convErr := strconv.Atoi(input); convErr == nil && num >= 1 && num <= len(items) {
			return num - 1, nil
		}
		fmt.Fprintf(p.out, "Invalid choice. Enter 1-%d or 0 to cancel.\n", len(items))
	}
}

// =============================================================================
// PROMPTS
// =============================================================================

// String prompts for text. An empty answer keeps def. When required, the
// prompt repeats until a value is present.
func (p *Prompter) String(label, def string, required bool) (string, error) {
	for {
		if def != "" {
			fmt.Fprintf(p.out, "%s %s[%s]%s: ", label, ColorDim, def, ColorReset)
		} else {
			fmt.Fprintf(p.out, "%s: ", label)
		}
		input, err := p.readLine()
		if input == "" {
			input = def
		}
		if input != "" || !required {
			return input, nil
		}
		if err != nil {
			return "", ErrCancelled
		}
		fmt.Fprintf(p.out, "%s%s is required%s\n", ColorYellow, label, ColorReset)
	}
}

// YesNo prompts for a yes/no answer. Returns def on an empty answer.
func (p *Prompter) YesNo(label string, def bool) bool {
	suffix := " [y/N]: "
	if def {
		suffix = " [Y/n]: "
	}
	fmt.Fprint(p.out, label+suffix)
	input, _ := p.readLine()
	switch strings.ToLower(input) {
	case "":
		return def
	case "y", "yes":
		return true
	}
	return false
}

// Secret prompts for hidden input on a terminal, plain input otherwise.
func (p *Prompter) Secret(label string) string {
	fmt.Fprint(p.out, label+": ")
	if p.isTTY {
		b, err := term.ReadPassword(p.fd)
		fmt.Fprintln(p.out)
		if err == nil {
			return strings.TrimSpace(string(b))
		}
	}
	input, _ := p.readLine()
	return input
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	return strings.TrimSpace(line), err
}
