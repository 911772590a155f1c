// Package ui holds the phoneverify CLI look: colors, symbols, the startup
// spinner and error formatting. Output degrades to plain text off a TTY.
package ui

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// BrandEmoji prefixes the banner and version output.
const BrandEmoji = "\U0001F4F1" // 📱

// ANSI 4-bit colors; lipgloss degrades them on limited terminals.
var (
	ColorCyan   = lipgloss.Color("6")
	ColorGreen  = lipgloss.Color("2")
	ColorYellow = lipgloss.Color("3")
	ColorRed    = lipgloss.Color("1")
)

var (
	StyleBold    = lipgloss.NewStyle().Bold(true)
	StyleHint    = lipgloss.NewStyle().Faint(true)
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleError   = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBoldRed = lipgloss.NewStyle().Bold(true).Foreground(ColorRed)
)

const (
	SymbolCheck   = "✓"
	SymbolCross   = "✗"
	SymbolWarning = "⚠"
	SymbolArrow   = "→"
)

var (
	forcedRenderer     *lipgloss.Renderer
	forcedRendererOnce sync.Once
)

// ForcedRenderer always emits ANSI codes. Callers use it after deciding
// on color themselves, e.g. from a color bool parameter.
func ForcedRenderer() *lipgloss.Renderer {
	forcedRendererOnce.Do(func() {
		forcedRenderer = lipgloss.NewRenderer(os.Stderr)
		forcedRenderer.SetColorProfile(termenv.ANSI)
	})
	return forcedRenderer
}

// ColorEnabled reports whether stderr is a color-capable terminal.
// NO_COLOR (https://no-color.org/) disables color regardless of value.
func ColorEnabled() bool {
	return ColorEnabledFd(os.Stderr.Fd())
}

// ColorEnabledFd is ColorEnabled for an arbitrary file descriptor.
func ColorEnabledFd(fd uintptr) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Paint renders text with style through the forced renderer when color is
// true, and returns it untouched otherwise.
func Paint(text string, color bool, style func(lipgloss.Style) lipgloss.Style) string {
	if !color {
		return text
	}
	return style(ForcedRenderer().NewStyle()).Render(text)
}

// FormatError renders an error line followed by optional suggestions.
func FormatError(msg string, suggestions ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", StyleBoldRed.Render("Error:"), msg)
	if len(suggestions) == 0 {
		return b.String()
	}
	b.WriteString("\n" + StyleHint.Render("  Try:") + "\n")
	for _, s := range suggestions {
		fmt.Fprintf(&b, "    %s %s\n", StyleHint.Render(SymbolArrow), s)
	}
	return b.String()
}
