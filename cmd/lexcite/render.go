package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/PabloGalante/lexcite/internal/domain"
)

var (
	assistantLabel = color.New(color.FgMagenta, color.Bold).SprintFunc()
	userLabel      = color.New(color.FgBlue, color.Bold).SprintFunc()
	citeLabel      = color.New(color.FgYellow).SprintFunc()
	dim            = color.New(color.Faint).SprintFunc()
)

func printMessage(w io.Writer, m domain.Message) {
	label := userLabel("You")
	if m.Role == domain.RoleAssistant {
		label = assistantLabel("Lexcite")
	}
	fmt.Fprintf(w, "%s: %s\n", label, m.Text)

	for i, c := range m.Citations {
		fmt.Fprintf(w, "  %s %q\n", citeLabel(fmt.Sprintf("[%d]", i+1)), c.QuotedText)
		fmt.Fprintf(w, "      %s\n", dim(citationSource(c)))
	}
}

func citationSource(c domain.Citation) string {
	parts := make([]string, 0, 3)
	if c.ParagraphLabel != "" {
		parts = append(parts, c.ParagraphLabel)
	}
	parts = append(parts, c.SourceID)
	if c.PageNumber != nil {
		parts = append(parts, fmt.Sprintf("p. %d", *c.PageNumber))
	}
	return strings.Join(parts, " • ")
}

func printViewer(w io.Writer, c *domain.Citation) {
	if c == nil {
		fmt.Fprintln(w, dim("viewer closed"))
		return
	}
	fmt.Fprintf(w, "%s %s\n", citeLabel("opening"), c.SourceLocator)
	if c.ParagraphLabel != "" {
		fmt.Fprintf(w, "  at %s\n", c.ParagraphLabel)
	}
}
