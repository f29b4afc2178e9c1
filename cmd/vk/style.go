package main

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var isTerminal = func(fd uintptr) bool {
	return isatty.IsTerminal(fd)
}

// plain is a zero style used when stdout is not a terminal.
var plain = lipgloss.NewStyle()

func stdoutIsTTY() bool {
	return isTerminal(os.Stdout.Fd())
}

func toolStyle() lipgloss.Style {
	if !stdoutIsTTY() {
		return plain
	}
	return lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "30", Dark: "51"})
}

func errorStyle() lipgloss.Style {
	if !stdoutIsTTY() {
		return plain
	}
	return lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "124", Dark: "203"})
}

func labelStyle() lipgloss.Style {
	if !stdoutIsTTY() {
		return plain
	}
	return lipgloss.NewStyle().Bold(true)
}

func dimStyle() lipgloss.Style {
	if !stdoutIsTTY() {
		return plain
	}
	return lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "242", Dark: "240"})
}
