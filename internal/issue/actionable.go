// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

type (
	// ActionableError is a command failure carrying what extpack was doing,
	// the file or archive entry involved, and hints for the user.
	//
	//	issue.NewErrorContext().
	//		WithOperation("rewrite sample-ext").
	//		WithResource("lib/sample-ext.jar!/META-INF/MANIFEST.MF").
	//		WithSuggestion("Rebuild the extension jar").
	//		Wrap(err).
	//		BuildError()
	ActionableError struct {
		// Operation is a verb phrase, e.g. "load configuration".
		Operation string
		// Resource is a path or archive entry path. Optional.
		Resource    string
		Suggestions []string
		Cause       error
	}

	// ErrorContext builds an ActionableError.
	ErrorContext struct {
		operation   string
		resource    string
		suggestions []string
		cause       error
	}
)

// NewErrorContext returns an empty builder.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// Error returns the one-line form: failed to <operation>: <resource>: <cause>.
func (e *ActionableError) Error() string {
	var msg strings.Builder
	msg.WriteString("failed to ")
	msg.WriteString(e.Operation)
	if e.Resource != "" {
		msg.WriteString(": ")
		msg.WriteString(e.Resource)
	}
	if e.Cause != nil {
		msg.WriteString(": ")
		msg.WriteString(e.Cause.Error())
	}
	return msg.String()
}

func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Format renders the error followed by its suggestions, one per line. In
// verbose mode the cause chain is appended; joined errors and rewrite
// failures are walked branch by branch, indented by depth.
func (e *ActionableError) Format(verbose bool) string {
	var msg strings.Builder
	msg.WriteString(e.Error())

	if len(e.Suggestions) > 0 {
		msg.WriteString("\n")
		for _, s := range e.Suggestions {
			msg.WriteString("\n  • ")
			msg.WriteString(s)
		}
	}

	if verbose && e.Cause != nil {
		msg.WriteString("\n\nError chain:")
		writeChain(&msg, e.Cause, 1)
	}
	return msg.String()
}

func writeChain(msg *strings.Builder, err error, depth int) {
	for err != nil {
		fmt.Fprintf(msg, "\n%s%d. %s", strings.Repeat("  ", depth), depth, err.Error())
		if multi, ok := err.(interface{ Unwrap() []error }); ok {
			for _, branch := range multi.Unwrap() {
				writeChain(msg, branch, depth+1)
			}
			return
		}
		err = errors.Unwrap(err)
		depth++
	}
}

func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.operation = op
	return c
}

func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.resource = res
	return c
}

// WithSuggestion appends a hint; call it once per line of advice.
func (c *ErrorContext) WithSuggestion(sug string) *ErrorContext {
	c.suggestions = append(c.suggestions, sug)
	return c
}

func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.cause = err
	return c
}

// Build returns nil when no operation was set.
func (c *ErrorContext) Build() *ActionableError {
	if c.operation == "" {
		return nil
	}
	return &ActionableError{
		Operation:   c.operation,
		Resource:    c.resource,
		Suggestions: slices.Clone(c.suggestions),
		Cause:       c.cause,
	}
}

// BuildError is Build typed as error, so a missing operation yields a true
// nil interface rather than a typed nil.
func (c *ErrorContext) BuildError() error {
	if ae := c.Build(); ae != nil {
		return ae
	}
	return nil
}
