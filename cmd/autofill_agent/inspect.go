package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/digifynow/autofill-agent/internal/flatten"
	"github.com/digifynow/autofill-agent/internal/observability"
	"github.com/digifynow/autofill-agent/internal/schema"
	"github.com/digifynow/autofill-agent/internal/types"
)

var inspectCommand = &cobra.Command{
	Use:   "inspect",
	Short: "Show the field schema of a template or the flattened keys of a customer record",
	Long: `Discovers and prints the fillable fields of a template, or the flat
customer data keys a record produces, without running a fill.`,
	RunE: runInspectCmd,
}

var (
	inspectTemplate string
	inspectCustomer string
	inspectKind     string
)

func init() {
	inspectCommand.Flags().StringVarP(&inspectTemplate, "template", "t", "", "Path to the template file to inspect")
	inspectCommand.Flags().StringVarP(&inspectCustomer, "customer", "c", "", "Path to the customer record JSON to inspect")
	inspectCommand.Flags().StringVar(&inspectKind, "kind", "", "Template kind: docx_tags or pdf_acroform (default: detected)")
	rootCmd.AddCommand(inspectCommand)
}

func runInspectCmd(_ *cobra.Command, _ []string) error {
	if inspectTemplate == "" && inspectCustomer == "" {
		return fmt.Errorf("provide --template or --customer")
	}

	printer := observability.NewPrinter(os.Stdout)

	if inspectTemplate != "" {
		raw, err := os.ReadFile(inspectTemplate)
		if err != nil {
			return fmt.Errorf("failed to read template: %w", err)
		}

		kind := types.TemplateKind(inspectKind)
		if kind == "" {
			kind = detectKind(raw)
		}

		fields, err := schema.Normalize(raw, kind, nil)
		if err != nil {
			return err
		}
		printer.PrintSchema(kind, fields)
	}

	if inspectCustomer != "" {
		record, err := loadCustomerRecord(inspectCustomer)
		if err != nil {
			return err
		}
		printer.PrintCustomerData(flatten.Flatten(record))
	}

	return nil
}
