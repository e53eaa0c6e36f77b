package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/orm/crud"
)

// ErrorLevel represents the severity of a message
type ErrorLevel int

const (
	ErrorLevelError ErrorLevel = iota
	ErrorLevelWarning
	ErrorLevelInfo
)

// ErrorOptions configures the error message formatting
type ErrorOptions struct {
	Level       ErrorLevel
	Context     string
	Problem     string
	Suggestions []string
	Hints       []string
	NoColor     bool
}

// FormatError renders a message with its context, suggestions and hints.
//
// Example output:
//
//	❌ INVALID PATH: no entity set "Thngs"
//
//	   Did you mean: Things?
//
//	   → List entity sets: sensorthings explain --help
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	var header, body *color.Color
	var symbol string
	switch opts.Level {
	case ErrorLevelWarning:
		header, body, symbol = color.New(color.FgYellow, color.Bold), color.New(color.FgYellow), "⚠️"
	case ErrorLevelInfo:
		header, body, symbol = color.New(color.FgCyan, color.Bold), color.New(color.FgCyan), "ℹ️"
	default:
		header, body, symbol = color.New(color.FgRed, color.Bold), color.New(color.FgRed), "❌"
	}
	hint := color.New(color.FgCyan)
	if opts.NoColor {
		header.DisableColor()
		body.DisableColor()
		hint.DisableColor()
	}

	if opts.Context != "" {
		header.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(opts.Context), opts.Problem)
	} else {
		header.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}

	if len(opts.Suggestions) > 0 {
		b.WriteString("\n")
		body.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	if len(opts.Hints) > 0 {
		b.WriteString("\n")
		for _, h := range opts.Hints {
			hint.Fprintf(&b, "   → %s\n", h)
		}
	}
	return b.String()
}

// WriteError writes a formatted error message to the writer
func WriteError(w io.Writer, opts ErrorOptions) {
	fmt.Fprint(w, FormatError(opts))
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message to the writer
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// Context names the class of an error for the message header. Errors the
// request caused get their class; anything else is a server error.
func Context(err error) string {
	switch {
	case errors.Is(err, model.ErrNoSuchEntity):
		return "no such entity"
	case errors.Is(err, model.ErrIncompleteEntity):
		return "incomplete entity"
	case errors.Is(err, model.ErrInvalidPath):
		return "invalid path"
	case errors.Is(err, model.ErrInvalidQuery):
		return "invalid query"
	case errors.Is(err, model.ErrInvalidPatch):
		return "invalid patch"
	case errors.Is(err, model.ErrInvalidEntity):
		return "invalid entity"
	case errors.Is(err, model.ErrIDNotAllowed):
		return "id not allowed"
	case errors.Is(err, crud.ErrUniqueViolation):
		return "conflict"
	case crud.IsClientError(err):
		return "rejected"
	}
	return "server error"
}

// DescribeError formats err for the terminal. When the path names an
// unknown entity set, the closest entity set names are suggested.
func DescribeError(err error, reg *model.Registry, rawPath string, noColor bool) string {
	opts := ErrorOptions{
		Context: Context(err),
		Problem: err.Error(),
		NoColor: noColor,
	}
	if reg != nil && errors.Is(err, model.ErrInvalidPath) {
		first := strings.Trim(rawPath, "/")
		if i := strings.IndexAny(first, "/("); i >= 0 {
			first = first[:i]
		}
		if reg.EntityType(first) == nil {
			opts.Suggestions = Suggest(first, EntitySetNames(reg), 3)
		}
	}
	if opts.Context == "server error" {
		opts.Hints = []string{"Rerun with --log-level=debug for details"}
	}
	return FormatError(opts)
}

// EntitySetNames lists the collection names of a registry
func EntitySetNames(reg *model.Registry) []string {
	var names []string
	for _, et := range reg.EntityTypes() {
		names = append(names, et.Plural)
	}
	return names
}
