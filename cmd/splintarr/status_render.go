package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-isatty"

	"splintarr/internal/searchmeta"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 18
	statusIndent     = "  "
)

type style struct {
	label string
	color string
}

var statusStyles = map[statusKind]style{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

var grabStyles = map[searchmeta.GrabState]style{
	searchmeta.GrabConfirmed: {"grabbed", ansiGreen},
	searchmeta.GrabMissed:    {"no grab", ansiYellow},
	searchmeta.GrabUnknown:   {"unknown", ansiRed},
}

func paint(text, color string, colorize bool) string {
	if !colorize || color == "" {
		return text
	}
	return color + text + ansiReset
}

// renderStatusLine prints "  Label:   [KIND] message" with the label column
// padded so consecutive lines align.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	st, ok := statusStyles[kind]
	if !ok {
		st = statusStyles[statusInfo]
	}
	badge := "[" + st.label + "]"
	if message != "" {
		badge += " " + message
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", badge)
	return paint(line, st.color, colorize)
}

// grabLabel renders a grab state for tables. Unset entries show a dash.
func grabLabel(state searchmeta.GrabState, colorize bool) string {
	st, ok := grabStyles[state]
	if !ok {
		return "-"
	}
	return paint(st.label, st.color, colorize)
}

func renderSectionHeader(title string, colorize bool) []string {
	title = strings.TrimSpace(title)
	underline := strings.Repeat("=", utf8.RuneCountInString(title))
	return []string{paint(title, ansiBlue, colorize), paint(underline, ansiBlue, colorize)}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
