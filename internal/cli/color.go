package cli

import "github.com/charmbracelet/lipgloss"

// Cargo/rustc color scheme in ANSI 256 colors.
var (
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleWarning = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	styleNote    = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	styleHelp    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)

	styleCode     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleLineNum  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	stylePipe     = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	stylePointer  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleFilePath = lipgloss.NewStyle().Bold(true)

	styleHeader = lipgloss.NewStyle().Bold(true)
	styleDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func render(style lipgloss.Style, s string) string {
	if !Colors() {
		return s
	}
	return style.Render(s)
}

// Error returns text styled as an error label.
func Error(s string) string { return render(styleError, s) }

// Warning returns text styled as a warning label.
func Warning(s string) string { return render(styleWarning, s) }

// Note returns text styled as a note label.
func Note(s string) string { return render(styleNote, s) }

// Help returns text styled as a help label.
func Help(s string) string { return render(styleHelp, s) }

// Success returns text styled as a success message.
func Success(s string) string { return render(styleSuccess, s) }

// Code returns text styled as an error code.
func Code(s string) string { return render(styleCode, s) }

// LineNum returns text styled as a line number.
func LineNum(s string) string { return render(styleLineNum, s) }

// Pipe returns a gutter character styled for source display.
func Pipe() string { return render(stylePipe, "|") }

// Arrow returns the location arrow of a diagnostic.
func Arrow() string { return render(stylePipe, "-->") }

// Pointer returns text styled as a pointer (^^^^).
func Pointer(s string) string { return render(stylePointer, s) }

// FilePath returns text styled as a file path.
func FilePath(s string) string { return render(styleFilePath, s) }

// Header returns text styled as a table header.
func Header(s string) string { return render(styleHeader, s) }

// Dim returns text styled as dim/muted.
func Dim(s string) string { return render(styleDim, s) }
