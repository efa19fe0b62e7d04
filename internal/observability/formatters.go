// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/digifynow/autofill-agent/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 10
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintSchema outputs the normalized field schema of a template.
func (p *Printer) PrintSchema(kind types.TemplateKind, fields []types.FieldDefinition) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Kind:    %s\n", kind))
	sb.WriteString(fmt.Sprintf("Fields:  %d\n", len(fields)))
	if len(fields) > 0 {
		sb.WriteString("\n")
	}

	count := min(len(fields), maxItemsToShow)
	for i := 0; i < count; i++ {
		f := fields[i]
		sb.WriteString(fmt.Sprintf("• %s (%s)", f.FieldID, f.DataType))
		if f.Label != "" && f.Label != f.FieldID {
			sb.WriteString(fmt.Sprintf("  %q", f.Label))
		}
		sb.WriteString("\n")
		if f.ValidationRule != "" {
			sb.WriteString(fmt.Sprintf("    rule: %s\n", f.ValidationRule))
		}
	}
	if len(fields) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more\n", len(fields)-maxItemsToShow))
	}

	p.printBox("TEMPLATE SCHEMA", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintCandidates outputs the proposed mappings grouped by source.
func (p *Printer) PrintCandidates(candidates []types.MappingCandidate) {
	if len(candidates) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total candidates: %d\n\n", len(candidates)))

	count := min(len(candidates), maxItemsToShow)
	for i := 0; i < count; i++ {
		c := candidates[i]
		key := c.CustomerDataKey
		if key == "" {
			key = "(no match)"
		}
		sb.WriteString(fmt.Sprintf("%s -> %s\n", c.FieldID, key))
		sb.WriteString(fmt.Sprintf("    %.2f via %s", c.Confidence, c.Source))
		if c.Transform != "" {
			sb.WriteString(fmt.Sprintf(", transform %s", c.Transform))
		}
		sb.WriteString("\n")
	}
	if len(candidates) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more\n", len(candidates)-maxItemsToShow))
	}

	p.printBox("MAPPING CANDIDATES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintReport outputs the mapping report of a finished run: state, strategy,
// per-field resolutions and the missing-field summary.
func (p *Printer) PrintReport(report *types.MappingReport) {
	if report == nil {
		return
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Run:       %s\n", report.RunID))
	sb.WriteString(fmt.Sprintf("State:     %s\n", report.State))
	if report.Strategy != "" {
		sb.WriteString(fmt.Sprintf("Strategy:  %s\n", report.Strategy))
	}
	if report.FailureKind != "" {
		sb.WriteString(fmt.Sprintf("Failure:   %s\n", report.FailureKind))
		if report.FailureDetail != "" {
			sb.WriteString(fmt.Sprintf("           %s\n", report.FailureDetail))
		}
	}
	if report.GeneratedFileRef != "" {
		sb.WriteString(fmt.Sprintf("Document:  %s\n", report.GeneratedFileRef))
	}

	if len(report.Resolved) > 0 {
		sb.WriteString("\n")
		count := min(len(report.Resolved), maxItemsToShow)
		for i := 0; i < count; i++ {
			r := report.Resolved[i]
			if r.Missing {
				sb.WriteString(fmt.Sprintf("• %s: MISSING\n", r.FieldID))
				continue
			}
			sb.WriteString(fmt.Sprintf("• %s = %q\n", r.FieldID, r.Value))
			sb.WriteString(fmt.Sprintf("    from %s (%.2f, %s)\n", r.CustomerDataKey, r.Confidence, r.Source))
		}
		if len(report.Resolved) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("... and %d more\n", len(report.Resolved)-maxItemsToShow))
		}
	}

	if len(report.MissingFields) > 0 {
		sb.WriteString(fmt.Sprintf("\nNeeds manual entry (%d): %s\n",
			len(report.MissingFields), strings.Join(report.MissingFields, ", ")))
	}

	p.printBox("MAPPING REPORT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintCustomerData outputs the flattened customer snapshot keys. Values are
// withheld; this is diagnostics output.
func (p *Printer) PrintCustomerData(data types.CustomerDataMap) {
	keys := data.Keys()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Keys: %d\n\n", len(keys)))

	count := min(len(keys), maxItemsToShow)
	for i := 0; i < count; i++ {
		v, _ := data.Lookup(keys[i])
		marker := " "
		if v.Present {
			marker = "*"
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", marker, keys[i]))
	}
	if len(keys) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more\n", len(keys)-maxItemsToShow))
	}
	sb.WriteString("\n* = value provided")

	p.printBox("CUSTOMER DATA", sb.String())
}
