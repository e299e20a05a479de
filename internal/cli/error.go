package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
)

// shownKeys are context keys rendered by their own part of a diagnostic.
var shownKeys = map[string]bool{
	"file": true, "line": true, "column": true,
	"source": true, "span_start": true, "span_end": true,
	"notes": true, "helps": true, "label": true, "issues": true,
}

// FormatError formats an error for CLI display in Cargo/rustc style.
//
//	error[E1003]: cannot resolve "titel"
//	  --> blueprint/repo.yaml:7:12
//	   |
//	 7 |     name: "titel"
//	   |            ^
//	   |
//	   = model: Repo
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	var ae *alerr.Error
	if !errors.As(err, &ae) {
		return Error("error") + ": " + err.Error() + "\n"
	}

	var b strings.Builder
	ctx := ae.GetContext()

	b.WriteString(Error("error"))
	b.WriteString("[")
	b.WriteString(Code(string(ae.GetCode())))
	b.WriteString("]: ")
	b.WriteString(ae.GetMessage())
	b.WriteString("\n")

	file, line, col, hasLoc := ae.Location()
	if hasLoc {
		b.WriteString("  ")
		b.WriteString(Arrow())
		b.WriteString(" ")
		b.WriteString(FilePath(formatLocation(file, line, col)))
		b.WriteString("\n")
	}

	gutter := "   "
	source, hasSource := ctx["source"].(string)
	if !hasSource && hasLoc && line > 0 {
		source, hasSource = SourceLine(file, line)
	}
	if hasSource && line > 0 {
		gutter = strings.Repeat(" ", len(fmt.Sprint(line))+1)
		b.WriteString(formatSourceContext(line, col, source, ctx))
	}

	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		if !shownKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s= %s: %v\n", gutter, Dim(k), ctx[k])
	}

	for _, issue := range alerr.Issues(err) {
		fmt.Fprintf(&b, "%s= %s [%s] %s\n", gutter, FilePath(issue.Key()), issue.Code, issue.Message)
	}

	for _, note := range ae.Notes() {
		b.WriteString(Note("note"))
		b.WriteString(": ")
		b.WriteString(note)
		b.WriteString("\n")
	}
	for _, help := range ae.Helps() {
		b.WriteString(Help("help"))
		b.WriteString(": ")
		b.WriteString(help)
		b.WriteString("\n")
	}

	if cause := ae.GetCause(); cause != nil && len(alerr.Issues(err)) == 0 {
		b.WriteString(Note("cause"))
		b.WriteString(": ")
		b.WriteString(cleanCause(cause.Error()))
		b.WriteString("\n")
	}
	return b.String()
}

// FormatSuccess formats a success message.
func FormatSuccess(msg string) string {
	return Success("success") + ": " + msg + "\n"
}

// FormatWarning formats a warning message.
func FormatWarning(msg string) string {
	return Warning("warning") + ": " + msg + "\n"
}

func formatLocation(file string, line, col int) string {
	switch {
	case line > 0 && col > 0:
		return fmt.Sprintf("%s:%d:%d", file, line, col)
	case line > 0:
		return fmt.Sprintf("%s:%d", file, line)
	}
	return file
}

// cleanCause strips a goja stack suffix from a wrapped hook error.
func cleanCause(msg string) string {
	if idx := strings.Index(msg, " at github.com"); idx != -1 {
		msg = strings.TrimSpace(msg[:idx])
	}
	return msg
}

// formatSourceContext renders one source line with its gutter and a pointer
// under the span or column.
func formatSourceContext(line, col int, source string, ctx map[string]any) string {
	var b strings.Builder

	lineStr := fmt.Sprint(line)
	padding := strings.Repeat(" ", len(lineStr))

	b.WriteString(padding + " " + Pipe() + "\n")
	b.WriteString(LineNum(lineStr) + " " + Pipe() + " " + source + "\n")

	start, _ := ctx["span_start"].(int)
	end, _ := ctx["span_end"].(int)
	if start == 0 {
		start = col
	}
	if start > 0 {
		if end < start {
			end = start
		}
		b.WriteString(padding + " " + Pipe() + " ")
		b.WriteString(strings.Repeat(" ", start-1))
		b.WriteString(Pointer(strings.Repeat("^", end-start+1)))
		if label, _ := ctx["label"].(string); label != "" {
			b.WriteString(" " + label)
		}
		b.WriteString("\n")
	}
	b.WriteString(padding + " " + Pipe() + "\n")
	return b.String()
}
