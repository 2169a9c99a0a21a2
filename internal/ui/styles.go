package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme colors
var (
	PrimaryColor = lipgloss.Color("#5B9BD5")
	AccentColor  = lipgloss.Color("#00D4AA")

	SuccessColor = lipgloss.Color("#2ECC71")
	WarningColor = lipgloss.Color("#F1C40F")
	ErrorColor   = lipgloss.Color("#E74C3C")
	InfoColor    = lipgloss.Color("#5B9BD5")

	TextColor    = lipgloss.Color("#FFFFFF")
	SubtextColor = lipgloss.Color("#B0B0B0")
	MutedColor   = lipgloss.Color("#6C6C6C")
	DimColor     = lipgloss.Color("#4A4A4A")
)

// Base styles
var (
	BoldStyle = lipgloss.NewStyle().Bold(true)

	PrimaryStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(InfoColor).
			Bold(true)

	WhiteStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	// Gray text for values
	GrayStyle = lipgloss.NewStyle().
			Foreground(SubtextColor)

	MutedStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	DimStyle = lipgloss.NewStyle().
			Foreground(DimColor)
)

// Component styles
var (
	BannerStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	SectionTitleStyle = lipgloss.NewStyle().
				Foreground(TextColor).
				Bold(true)

	BorderStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	BulletStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)

	KeyStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	ValueStyle = lipgloss.NewStyle().
			Foreground(SubtextColor)

	SeparatorStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	// Totals row of the live screen
	TotalStyle = lipgloss.NewStyle().
			Foreground(AccentColor).
			Bold(true)
)

// Status icons
const (
	IconSuccess = "✓"
	IconWarning = "⚠"
	IconError   = "✗"
	IconInfo    = "ℹ"
	IconBullet  = "•"
)

// Box drawing characters
const (
	BoxTopLeft     = "┌"
	BoxTopRight    = "┐"
	BoxBottomLeft  = "└"
	BoxBottomRight = "┘"
	BoxHorizontal  = "─"
)

// DefaultWidth is the default terminal width for formatting
const DefaultWidth = 60

// ScreenWidth is the width of the live frame view
const ScreenWidth = 100

// RenderBanner returns the styled title line
func RenderBanner() string {
	return BannerStyle.Render("poolmon") + " " + MutedStyle.Render("worker pool monitor")
}

// RenderSectionStart returns a styled section header of the given width
func RenderSectionStart(title string, width int) string {
	dashCount := width - len(title) - 4 // "┌─ " + title + " ─"
	if dashCount < 0 {
		dashCount = 0
	}

	prefix := BorderStyle.Render(BoxTopLeft + BoxHorizontal + " ")
	suffix := BorderStyle.Render(" " + BoxHorizontal + strings.Repeat(BoxHorizontal, dashCount) + BoxTopRight)
	return prefix + SectionTitleStyle.Render(title) + suffix
}

// RenderSectionEnd returns a styled section footer of the given width
func RenderSectionEnd(width int) string {
	return BorderStyle.Render(BoxBottomLeft + strings.Repeat(BoxHorizontal, width) + BoxBottomRight)
}

// RenderStatus returns a styled status message
func RenderStatus(status, message string) string {
	var icon string
	var style lipgloss.Style

	switch status {
	case "success":
		icon, style = IconSuccess, SuccessStyle
	case "warning":
		icon, style = IconWarning, WarningStyle
	case "error":
		icon, style = IconError, ErrorStyle
	default:
		icon, style = IconInfo, InfoStyle
	}

	return "  " + style.Render(icon) + " " + WhiteStyle.Render(message)
}

// RenderKeyValue returns a styled key-value pair
func RenderKeyValue(key, value string) string {
	return "  " + BulletStyle.Render(IconBullet) + " " +
		KeyStyle.Render(key) + " " +
		SeparatorStyle.Render(":") + " " +
		ValueStyle.Render(value)
}

// PrintHeader prints the application title
func PrintHeader() {
	fmt.Println(RenderBanner())
}

// PrintSection prints a section header
func PrintSection(title string) {
	fmt.Println(RenderSectionStart(title, DefaultWidth))
}

// PrintSectionEnd prints a section footer
func PrintSectionEnd() {
	fmt.Println(RenderSectionEnd(DefaultWidth))
}

// PrintStatus prints a status message
func PrintStatus(status, message string) {
	fmt.Println(RenderStatus(status, message))
}

// PrintKeyValue prints a key-value pair
func PrintKeyValue(key, value string) {
	fmt.Println(RenderKeyValue(key, value))
}
