// Package ui renders consolectl output.
package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
)

// Styles holds the lipgloss styles shared by commands.
var Styles = struct {
	Bold   lipgloss.Style
	Muted  lipgloss.Style
	Header lipgloss.Style
	Error  lipgloss.Style
}{
	Bold:   lipgloss.NewStyle().Bold(true),
	Muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	Header: lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).Padding(0, 1),
	Error:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
}

// PrintSuccess prints a success message
func PrintSuccess(w io.Writer, format string, args ...interface{}) {
	successColor.Fprintf(w, "✓ %s\n", fmt.Sprintf(format, args...))
}

// PrintError prints an error message
func PrintError(w io.Writer, format string, args ...interface{}) {
	errorColor.Fprintf(w, "✗ %s\n", fmt.Sprintf(format, args...))
}

// PrintWarning prints a warning message
func PrintWarning(w io.Writer, format string, args ...interface{}) {
	warningColor.Fprintf(w, "⚠ %s\n", fmt.Sprintf(format, args...))
}

// PrintInfo prints an info message
func PrintInfo(w io.Writer, format string, args ...interface{}) {
	infoColor.Fprintf(w, "ℹ %s\n", fmt.Sprintf(format, args...))
}
