package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/digifynow/autofill-agent/internal/config"
	"github.com/digifynow/autofill-agent/internal/engine"
	"github.com/digifynow/autofill-agent/internal/llm"
	"github.com/digifynow/autofill-agent/internal/mapping"
	"github.com/digifynow/autofill-agent/internal/observability"
	"github.com/digifynow/autofill-agent/internal/types"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Fill one template from one customer record",
	Long: `Runs a single autofill pass in-process: schema normalization -> customer
data flattening -> mapping (inference plus fallback) -> resolution -> rendering.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values.`,
	RunE: runAutofillCmd,
}

var (
	runConfigPath       string
	runTemplate         string
	runCustomer         string
	runOutput           string
	runKind             string
	runDateLayout       string
	runAPIKey           string
	runInferenceTimeout int
	runIncludeValues    bool
	runManual           []string
	runVerbose          bool
)

func init() {
	// Config file flag (processed first)
	runCommand.Flags().StringVar(&runConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	runCommand.Flags().StringVarP(&runTemplate, "template", "t", "", "Path to the template file (DOCX, PDF or tagged text)")
	runCommand.Flags().StringVarP(&runCustomer, "customer", "c", "", "Path to the customer record JSON file")
	runCommand.Flags().StringVarP(&runOutput, "output", "o", "", "Path to write the filled document to")
	runCommand.Flags().StringVar(&runKind, "kind", "", "Template kind: docx_tags or pdf_acroform (default: detected)")
	runCommand.Flags().StringVar(&runDateLayout, "date-layout", "", "Go date layout for rendered date values (default ISO)")
	runCommand.Flags().IntVar(&runInferenceTimeout, "inference-timeout", 0, "Inference call budget in seconds (0 uses the default)")
	runCommand.Flags().BoolVar(&runIncludeValues, "include-values", false, "Send customer values (not just keys) to the inference backend")
	runCommand.Flags().StringArrayVar(&runManual, "manual", nil, "Manual mapping override field_id=customer.data.key (repeatable)")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print detailed debug information")

	// API key can be passed as a flag, or read from env var GEMINI_API_KEY
	runCommand.Flags().StringVar(&runAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")

	rootCmd.AddCommand(runCommand)
}

func runAutofillCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	var cfg config.Config
	if runConfigPath != "" {
		loadedCfg, err := config.LoadConfig(runConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loadedCfg
		if runVerbose {
			_, _ = fmt.Fprintf(os.Stdout, "Loaded config from: %s\n", runConfigPath)
		}
	}

	// CLI overrides take priority; only apply flags that were set
	if cmd.Flags().Changed("template") {
		cfg.Template = runTemplate
	}
	if cmd.Flags().Changed("customer") {
		cfg.Customer = runCustomer
	}
	if cmd.Flags().Changed("output") {
		cfg.Output = runOutput
	}
	if cmd.Flags().Changed("kind") {
		cfg.Kind = runKind
	}
	if cmd.Flags().Changed("date-layout") {
		cfg.DateLayout = runDateLayout
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = runAPIKey
	}
	if cmd.Flags().Changed("inference-timeout") {
		cfg.InferenceTimeoutSeconds = runInferenceTimeout
	}
	if cmd.Flags().Changed("include-values") {
		cfg.IncludeValues = runIncludeValues
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = runVerbose
	}

	if cfg.Template == "" {
		return fmt.Errorf("--template is required (via flag or config)")
	}
	if cfg.Customer == "" {
		return fmt.Errorf("--customer is required (via flag or config)")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	templateBytes, err := os.ReadFile(cfg.Template)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}

	kind := types.TemplateKind(cfg.Kind)
	if kind == "" {
		kind = detectKind(templateBytes)
	}

	customer, err := loadCustomerRecord(cfg.Customer)
	if err != nil {
		return err
	}

	manual, err := parseManualMappings(runManual)
	if err != nil {
		return err
	}

	// Inference is optional: without a key the run maps fallback-only
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	var inference mapping.Strategy
	if cfg.APIKey != "" {
		client, err := llm.NewClient(ctx, llm.DefaultConfig(), cfg.APIKey)
		if err != nil {
			return fmt.Errorf("failed to create inference client: %w", err)
		}
		defer func() { _ = client.Close() }()
		inference = mapping.NewInferenceStrategy(client, mapping.InferenceOptions{
			Timeout:       time.Duration(cfg.InferenceTimeoutSeconds) * time.Second,
			IncludeValues: cfg.IncludeValues,
		})
	}

	source := &localSource{
		template: &engine.FillTarget{
			Bytes:      templateBytes,
			Kind:       kind,
			DateLayout: cfg.DateLayout,
		},
		customer: customer,
	}
	files := &localFiles{blobs: make(map[string][]byte)}

	coordinator := engine.NewCoordinator(source, source, &localReports{}, files, engine.Options{
		Inference: inference,
	})

	templateID := uuid.New()
	report, err := coordinator.Run(ctx, engine.RunSpec{
		BrokerID:       uuid.New(),
		TemplateID:     &templateID,
		CustomerID:     uuid.New(),
		ManualMappings: manual,
	})
	if err != nil {
		return err
	}

	if cfg.Verbose {
		observability.NewPrinter(os.Stdout).PrintReport(report)
	}

	if report.State != types.RunCompleted {
		return fmt.Errorf("run %s: %s", report.State, report.FailureDetail)
	}

	generated, err := files.Get(ctx, report.GeneratedFileRef)
	if err != nil {
		return fmt.Errorf("failed to read generated document: %w", err)
	}

	output := cfg.Output
	if output == "" {
		ext := path.Ext(report.GeneratedFileRef)
		output = strings.TrimSuffix(cfg.Template, path.Ext(cfg.Template)) + ".filled" + ext
	}
	if err := os.WriteFile(output, generated, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Wrote %s\n", output)
	if len(report.MissingFields) > 0 {
		fmt.Fprintf(os.Stdout, "%d fields need manual entry: %s\n",
			len(report.MissingFields), strings.Join(report.MissingFields, ", "))
	}
	return nil
}

// detectKind sniffs the template format from its leading bytes.
func detectKind(raw []byte) types.TemplateKind {
	if bytes.HasPrefix(raw, []byte("%PDF")) {
		return types.KindAcroForm
	}
	return types.KindTaggedDoc
}

func loadCustomerRecord(path string) (*types.CustomerRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read customer record: %w", err)
	}
	var record types.CustomerRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to parse customer record: %w", err)
	}
	return &record, nil
}

func parseManualMappings(pairs []string) ([]engine.ManualMapping, error) {
	var manual []engine.ManualMapping
	for _, pair := range pairs {
		fieldID, key, ok := strings.Cut(pair, "=")
		if !ok || fieldID == "" || key == "" {
			return nil, fmt.Errorf("invalid --manual value %q, expected field_id=customer.data.key", pair)
		}
		manual = append(manual, engine.ManualMapping{FieldID: fieldID, CustomerDataKey: key})
	}
	return manual, nil
}

// localSource serves the one template and customer of a CLI run.
type localSource struct {
	template *engine.FillTarget
	customer *types.CustomerRecord
}

func (s *localSource) TemplateTarget(_ context.Context, _ uuid.UUID) (*engine.FillTarget, error) {
	return s.template, nil
}

func (s *localSource) BasisDocumentTarget(_ context.Context, _ uuid.UUID) (*engine.FillTarget, error) {
	return s.template, nil
}

func (s *localSource) Customer(_ context.Context, _ uuid.UUID) (*types.CustomerRecord, error) {
	return s.customer, nil
}

// localReports keeps the run's report in memory; CLI runs have no database.
type localReports struct {
	report *types.MappingReport
}

func (r *localReports) CreateReport(_ context.Context, report *types.MappingReport) error {
	cp := *report
	r.report = &cp
	return nil
}

func (r *localReports) UpdateRunState(_ context.Context, _ uuid.UUID, state types.RunState) error {
	if r.report != nil {
		r.report.State = state
	}
	return nil
}

func (r *localReports) FinalizeReport(_ context.Context, report *types.MappingReport) error {
	cp := *report
	r.report = &cp
	return nil
}

func (r *localReports) Report(_ context.Context, _ uuid.UUID) (*types.MappingReport, error) {
	return r.report, nil
}

// localFiles captures the generated bytes so they can be written to --output.
type localFiles struct {
	blobs map[string][]byte
}

func (f *localFiles) Put(_ context.Context, name string, data []byte) (string, error) {
	f.blobs[name] = data
	return name, nil
}

func (f *localFiles) Get(_ context.Context, ref string) ([]byte, error) {
	data, ok := f.blobs[ref]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", ref)
	}
	return data, nil
}
