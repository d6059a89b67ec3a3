package main

import (
	"fmt"
	"os"

	"github.com/kalambet/prospekt/internal/prospectlist"
)

const (
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	colorGray    = "\033[90m"
	colorBold    = "\033[1m"
)

// badgeColors maps badge color names to the closest terminal color.
var badgeColors = map[string]string{
	"gray":   colorGray,
	"blue":   colorBlue,
	"purple": colorMagenta,
	"indigo": colorMagenta,
	"yellow": colorYellow,
	"green":  colorGreen,
	"red":    colorRed,
	"orange": colorYellow,
}

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func badge(b prospectlist.Badge) string {
	c, ok := badgeColors[b.Color]
	if !ok {
		return b.Label
	}
	return colorize(c, b.Label)
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}
