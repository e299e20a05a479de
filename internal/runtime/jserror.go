package runtime

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/dop251/goja"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
)

// hookText is where a hook's source can be read back for diagnostics: a file
// for source hooks, the wrapped code for inline ones.
type hookText struct {
	file string
	code string
}

// line returns the 1-indexed line n, or "" when it cannot be read.
func (h hookText) line(n int) string {
	if n <= 0 {
		return ""
	}
	var r io.Reader
	switch {
	case h.file != "":
		f, err := os.Open(h.file)
		if err != nil {
			return ""
		}
		defer f.Close()
		r = f
	case h.code != "":
		r = strings.NewReader(h.code)
	default:
		return ""
	}
	scanner := bufio.NewScanner(r)
	for i := 1; scanner.Scan(); i++ {
		if i == n {
			return scanner.Text()
		}
	}
	return ""
}

// jsPosition is the message and source position of a goja error.
type jsPosition struct {
	message string
	line    int
	column  int
}

// syntaxPosition matches goja's "Line X:Y" in syntax error messages.
var syntaxPosition = regexp.MustCompile(`Line (\d+):(\d+)`)

// locate extracts the message and position of err. Exceptions point at the
// first JavaScript frame, skipping native Go callbacks.
func locate(err error) jsPosition {
	pos := jsPosition{message: err.Error()}
	switch e := err.(type) {
	case *goja.CompilerSyntaxError:
		if e.File != nil {
			p := e.File.Position(e.Offset)
			pos.line, pos.column = p.Line, p.Column
		}
	case *goja.Exception:
		pos.message = e.Value().String()
		for _, frame := range e.Stack() {
			if p := frame.Position(); p.Line > 0 {
				pos.line, pos.column = p.Line, p.Column
				return pos
			}
		}
		if m := syntaxPosition.FindStringSubmatch(pos.message); m != nil {
			pos.line, _ = strconv.Atoi(m[1])
			pos.column, _ = strconv.Atoi(m[2])
		}
	case *goja.InterruptedError:
		pos.message = "execution interrupted: " + e.String()
	}
	return pos
}

// hookError wraps a goja error with its location, the offending source line
// and a hint for common sandbox mistakes.
func hookError(err error, message string, text hookText) *alerr.Error {
	pos := locate(err)
	e := alerr.Wrap(alerr.ErrJSExecution, err, message).With("cause", pos.message)

	e.WithLocation(text.file, pos.line, pos.column)
	if src := text.line(pos.line); src != "" {
		e.WithSource(src)
		if pos.column > 0 {
			e.WithSpan(pos.column, spanEnd(src, pos.column))
		}
	}
	addHint(e, pos.message)
	return e
}

// spanEnd returns the last column (1-indexed, inclusive) to highlight from
// col: the matching close of an opening bracket, otherwise the end of the
// token.
func spanEnd(source string, col int) int {
	start := col - 1
	if start < 0 || start >= len(source) {
		return col
	}

	opening := strings.IndexByte("([{", source[start]) >= 0
	depth := 0
	if opening {
		depth = 1
	}
	for i := start + 1; i < len(source); i++ {
		switch c := source[i]; c {
		case '"', '\'', '`':
			i = closingQuote(source, i)
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 {
				return i
			}
			depth--
			if opening && depth == 0 {
				return i + 1
			}
		case ' ', '\t', ',', ';':
			if depth == 0 {
				return i
			}
		}
	}
	return len(source)
}

// closingQuote returns the index of the quote closing the string opened at i.
func closingQuote(source string, i int) int {
	quote := source[i]
	for i++; i < len(source) && source[i] != quote; i++ {
		if source[i] == '\\' {
			i++
		}
	}
	return i
}

// sandboxHints name globals hooks cannot use, in match order.
var sandboxHints = []struct{ global, help string }{
	{"require", "export hook functions with `module.exports`; modules cannot be imported"},
	{"process", "pass configuration to hooks through their args"},
	{"fetch", "hooks run synchronously and cannot perform network calls"},
	{"eval", "build values directly instead of evaluating strings"},
}

// addHint attaches a note and help for well-known failure messages.
func addHint(e *alerr.Error, message string) {
	msg := strings.ToLower(message)
	for _, h := range sandboxHints {
		if strings.Contains(msg, h.global) {
			e.WithNote("hooks run in a sandbox without " + h.global).WithHelp(h.help)
			return
		}
	}

	switch {
	case strings.Contains(msg, "is not a function"):
		e.WithNote("attempted to call something that is not a function").
			WithHelp("check the method name and ensure it exists on the object")
	case strings.Contains(msg, "is not defined"), strings.Contains(msg, "undefined"):
		e.WithNote("a variable or function was not found in scope")
		if strings.Contains(msg, "args") {
			e.WithHelp("hook arguments are read as `args.<name>`")
		}
	case strings.Contains(msg, "syntaxerror"), strings.Contains(msg, "unexpected token"):
		e.WithNote("check for missing brackets, quotes, or commas")
	case strings.Contains(msg, "cannot assign"), strings.Contains(msg, "read only"):
		e.WithNote("builtin prototypes are frozen inside hooks")
	}
}
