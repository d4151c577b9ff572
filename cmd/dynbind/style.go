package main

import (
	"os"

	"github.com/mattn/go-isatty"
)

// Style colors output when it goes to a terminal.
type Style struct {
	color bool
}

// NewStyle enables color for f if it is a terminal, unless disabled by
// the flag or the NO_COLOR convention (https://no-color.org/).
func NewStyle(f *os.File, noColor bool) Style {
	if noColor {
		return Style{}
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return Style{}
	}
	if os.Getenv("TERM") == "dumb" {
		return Style{}
	}
	fd := f.Fd()
	return Style{color: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)}
}

func (s Style) wrap(code, text string) string {
	if !s.color {
		return text
	}
	return "\x1b[" + code + "m" + text + "\x1b[0m"
}

func (s Style) Ok(text string) string   { return s.wrap("32", text) }
func (s Style) Fail(text string) string { return s.wrap("31", text) }
func (s Style) Warn(text string) string { return s.wrap("33", text) }
func (s Style) Dim(text string) string  { return s.wrap("2", text) }
func (s Style) Bold(text string) string { return s.wrap("1", text) }
