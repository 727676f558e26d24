// Package printer writes coloured command-line output.
package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
)

// Colour stays on when piped; NO_COLOR turns it off.
func init() {
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	okStyle    = color.New(color.FgGreen)
	warnStyle  = color.New(color.FgYellow)
	titleStyle = color.New(color.FgRed, color.Bold)

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

const (
	okMark   = "✓"
	warnMark = "⚠️"
)

// SetOutput redirects normal and error output. Nil leaves a stream unchanged.
func SetOutput(out, errOut io.Writer) {
	if out != nil {
		stdout = out
	}
	if errOut != nil {
		stderr = errOut
	}
}

// marked prefixes msg with mark unless the caller already did.
func marked(mark, sep, msg string) string {
	if strings.HasPrefix(msg, mark) {
		return msg
	}
	return mark + sep + msg
}

// Success reports a completed mutation on stdout.
func Success(format string, a ...any) {
	okStyle.Fprint(stdout, marked(okMark, " ", fmt.Sprintf(format, a...)))
}

func Info(format string, a ...any) {
	fmt.Fprintf(stdout, format, a...)
}

// Warning goes to stderr so it never mixes with rendered trees.
func Warning(format string, a ...any) {
	warnStyle.Fprint(stderr, marked(warnMark, "  ", fmt.Sprintf(format, a...)))
}

// Error is ErrorWithContext without context lines.
func Error(title string, explanation string, suggestions []string) error {
	return ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext writes a failure block to stderr: the title, an optional
// explanation, sorted "key: value" lines and the suggested fixes. The
// returned error carries only the title; commands run with SilenceErrors so
// the block is not printed twice.
func ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	titleStyle.Fprintf(stderr, "%s\n\n", title)
	if explanation != "" {
		fmt.Fprintln(stderr, explanation)
	}
	writeContext(stderr, context)
	writeSuggestions(stderr, suggestions)
	return fmt.Errorf("%s", title)
}

func writeContext(w io.Writer, context map[string]string) {
	if len(context) == 0 {
		return
	}
	keys := make([]string, 0, len(context))
	for key := range context {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fmt.Fprintln(w)
	for _, key := range keys {
		fmt.Fprintf(w, "  %s: %s\n", key, context[key])
	}
}

// A lone suggestion is printed as-is; several become a numbered list.
func writeSuggestions(w io.Writer, suggestions []string) {
	switch len(suggestions) {
	case 0:
		return
	case 1:
		fmt.Fprintf(w, "\n%s\n", suggestions[0])
	default:
		fmt.Fprint(w, "\nEither:\n")
		for i, suggestion := range suggestions {
			fmt.Fprintf(w, "  %d. %s\n", i+1, suggestion)
		}
	}
}
