// Package ui provides terminal rendering helpers for the praxis CLI.
package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	labelStyle   = lipgloss.NewStyle().Bold(true)
)

// RenderAccent renders emphasized text.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderSuccess renders text indicating a successful outcome.
func RenderSuccess(s string) string { return successStyle.Render(s) }

// RenderWarn renders text indicating a degraded but non-fatal state.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderError renders text indicating a failure.
func RenderError(s string) string { return errorStyle.Render(s) }

// RenderMuted renders secondary detail text.
func RenderMuted(s string) string { return mutedStyle.Render(s) }

// RenderLabel renders a field label.
func RenderLabel(s string) string { return labelStyle.Render(s) }
