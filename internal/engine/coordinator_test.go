package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digifynow/autofill-agent/internal/mapping"
	"github.com/digifynow/autofill-agent/internal/types"
)

type fakeTemplates struct {
	target *FillTarget
}

func (f *fakeTemplates) TemplateTarget(_ context.Context, _ uuid.UUID) (*FillTarget, error) {
	if f.target == nil {
		return nil, errors.New("template not found")
	}
	return f.target, nil
}

func (f *fakeTemplates) BasisDocumentTarget(ctx context.Context, id uuid.UUID) (*FillTarget, error) {
	return f.TemplateTarget(ctx, id)
}

type fakeCustomers struct {
	record *types.CustomerRecord
	gate   chan struct{}
}

func (f *fakeCustomers) Customer(ctx context.Context, _ uuid.UUID) (*types.CustomerRecord, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.record == nil {
		return nil, errors.New("customer not found")
	}
	return f.record, nil
}

type memReports struct {
	mu      sync.Mutex
	reports map[uuid.UUID]types.MappingReport
}

func newMemReports() *memReports {
	return &memReports{reports: make(map[uuid.UUID]types.MappingReport)}
}

func (s *memReports) CreateReport(_ context.Context, report *types.MappingReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.RunID] = *report
	return nil
}

func (s *memReports) UpdateRunState(_ context.Context, runID uuid.UUID, state types.RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[runID]
	if !ok {
		return fmt.Errorf("run %s not found", runID)
	}
	r.State = state
	s.reports[runID] = r
	return nil
}

func (s *memReports) FinalizeReport(_ context.Context, report *types.MappingReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.RunID] = *report
	return nil
}

func (s *memReports) Report(_ context.Context, runID uuid.UUID) (*types.MappingReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[runID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

type memFiles struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemFiles() *memFiles {
	return &memFiles{files: make(map[string][]byte)}
}

func (s *memFiles) Put(_ context.Context, name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = data
	return name, nil
}

func (s *memFiles) Get(_ context.Context, ref string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[ref]
	if !ok {
		return nil, fmt.Errorf("file %s not found", ref)
	}
	return data, nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	completed []uuid.UUID
}

func (n *fakeNotifier) RunCompleted(_ context.Context, report *types.MappingReport) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, report.RunID)
}

// failingStrategy simulates an unreachable inference backend.
type failingStrategy struct{}

func (failingStrategy) Name() string { return types.StrategyInference }

func (failingStrategy) Propose(context.Context, []types.FieldDefinition, types.CustomerDataMap) ([]types.MappingCandidate, error) {
	return nil, &mapping.InferenceUnavailableError{Cause: errors.New("backend timeout")}
}

// cannedStrategy returns a fixed candidate list.
type cannedStrategy struct {
	candidates []types.MappingCandidate
}

func (cannedStrategy) Name() string { return types.StrategyInference }

func (s cannedStrategy) Propose(context.Context, []types.FieldDefinition, types.CustomerDataMap) ([]types.MappingCandidate, error) {
	return s.candidates, nil
}

type testEnv struct {
	coordinator *Coordinator
	templates   *fakeTemplates
	customers   *fakeCustomers
	reports     *memReports
	files       *memFiles
	notifier    *fakeNotifier
}

func newTestEnv(opts Options) *testEnv {
	env := &testEnv{
		templates: &fakeTemplates{target: &FillTarget{
			Bytes: []byte("Name: {{ last_name }}\nGeboren: {{ birth_date }}\n"),
			Kind:  types.KindTaggedDoc,
		}},
		customers: &fakeCustomers{record: testCustomer()},
		reports:   newMemReports(),
		files:     newMemFiles(),
		notifier:  &fakeNotifier{},
	}
	if opts.Notifier == nil {
		opts.Notifier = env.notifier
	}
	env.coordinator = NewCoordinator(env.templates, env.customers, env.reports, env.files, opts)
	return env
}

func testCustomer() *types.CustomerRecord {
	return &types.CustomerRecord{
		ID:       uuid.New(),
		BrokerID: uuid.New(),
		Personal: types.PersonalSection{
			FirstName:   "Anna",
			LastName:    "Meier",
			Phone:       "+49 40 123456",
			DateOfBirth: "1985-04-02",
		},
	}
}

func templateSpec(templateID uuid.UUID) RunSpec {
	return RunSpec{
		BrokerID:   uuid.New(),
		TemplateID: &templateID,
		CustomerID: uuid.New(),
	}
}

func TestRun_FullMatchFallbackOnly(t *testing.T) {
	env := newTestEnv(Options{})

	report, err := env.coordinator.Run(context.Background(), templateSpec(uuid.New()))
	require.NoError(t, err)

	assert.Equal(t, types.RunCompleted, report.State)
	assert.Equal(t, types.StrategyFallback, report.Strategy)
	assert.Empty(t, report.MissingFields)
	require.NotNil(t, report.FinalizedAt)

	out, err := env.files.Get(context.Background(), report.GeneratedFileRef)
	require.NoError(t, err)
	assert.Contains(t, string(out), "Meier")
	assert.Contains(t, string(out), "1985-04-02")

	stored, err := env.reports.Report(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, types.RunCompleted, stored.State)
	assert.Len(t, env.notifier.completed, 1)
}

func TestRun_PartialDataLeavesFieldBlank(t *testing.T) {
	env := newTestEnv(Options{})
	env.customers.record.Personal.DateOfBirth = ""

	report, err := env.coordinator.Run(context.Background(), templateSpec(uuid.New()))
	require.NoError(t, err)

	assert.Equal(t, types.RunCompleted, report.State)
	assert.Equal(t, []string{"birth_date"}, report.MissingFields)

	out, err := env.files.Get(context.Background(), report.GeneratedFileRef)
	require.NoError(t, err)
	assert.Contains(t, string(out), "Meier")
	assert.Contains(t, string(out), "Geboren: \n")
}

func TestRun_InferenceFailureDegradesToFallback(t *testing.T) {
	env := newTestEnv(Options{Inference: failingStrategy{}})

	report, err := env.coordinator.Run(context.Background(), templateSpec(uuid.New()))
	require.NoError(t, err)

	assert.Equal(t, types.RunCompleted, report.State)
	assert.Equal(t, types.StrategyFallback, report.Strategy)
	assert.Empty(t, report.MissingFields)
}

func TestRun_InferenceCandidatesWin(t *testing.T) {
	env := newTestEnv(Options{Inference: cannedStrategy{candidates: []types.MappingCandidate{
		{FieldID: "last_name", CustomerDataKey: "personal.first_name", Confidence: 1, Source: types.SourceInference},
	}}})

	report, err := env.coordinator.Run(context.Background(), templateSpec(uuid.New()))
	require.NoError(t, err)

	assert.Equal(t, types.StrategyInference, report.Strategy)
	out, err := env.files.Get(context.Background(), report.GeneratedFileRef)
	require.NoError(t, err)
	assert.Contains(t, string(out), "Name: Anna")
}

func TestRun_SchemaErrorFailsRun(t *testing.T) {
	env := newTestEnv(Options{})
	env.templates.target.Bytes = []byte("no placeholders here")

	report, err := env.coordinator.Run(context.Background(), templateSpec(uuid.New()))
	require.NoError(t, err)

	assert.Equal(t, types.RunFailed, report.State)
	assert.Equal(t, FailureSchema, report.FailureKind)
	assert.Empty(t, report.GeneratedFileRef)
}

func TestRun_GuardReleasedAfterFailure(t *testing.T) {
	env := newTestEnv(Options{})
	env.templates.target.Bytes = []byte("no placeholders here")

	spec := templateSpec(uuid.New())
	report, err := env.coordinator.Run(context.Background(), spec)
	require.NoError(t, err)
	require.Equal(t, types.RunFailed, report.State)

	// The pair must be free again after a terminal run.
	_, err = env.coordinator.Run(context.Background(), spec)
	require.NoError(t, err)
}

func TestStartRun_ConcurrencyGuard(t *testing.T) {
	env := newTestEnv(Options{})
	env.customers.gate = make(chan struct{})

	spec := templateSpec(uuid.New())
	pending, err := env.coordinator.StartRun(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, types.RunPending, pending.State)

	_, err = env.coordinator.Run(context.Background(), spec)
	var inProgress *RunInProgressError
	require.ErrorAs(t, err, &inProgress)
	assert.Equal(t, spec.CustomerID, inProgress.CustomerID)

	close(env.customers.gate)
	assert.Eventually(t, func() bool {
		r, err := env.reports.Report(context.Background(), pending.RunID)
		return err == nil && r.State.Terminal()
	}, 2*time.Second, 10*time.Millisecond)

	// A different customer with the same template was never blocked by the
	// guard; with the gate open the run completes normally.
	other := spec
	otherID := uuid.New()
	other.CustomerID = otherID
	_, err = env.coordinator.Run(context.Background(), other)
	require.NoError(t, err)
}

func TestCancel_BeforeRendering(t *testing.T) {
	env := newTestEnv(Options{})
	env.customers.gate = make(chan struct{})

	pending, err := env.coordinator.StartRun(context.Background(), templateSpec(uuid.New()))
	require.NoError(t, err)

	require.NoError(t, env.coordinator.Cancel(pending.RunID))
	close(env.customers.gate)

	assert.Eventually(t, func() bool {
		r, err := env.reports.Report(context.Background(), pending.RunID)
		return err == nil && r.State == types.RunCancelled
	}, 2*time.Second, 10*time.Millisecond)

	r, err := env.reports.Report(context.Background(), pending.RunID)
	require.NoError(t, err)
	assert.Empty(t, r.GeneratedFileRef)
}

func TestCancel_UnknownRun(t *testing.T) {
	env := newTestEnv(Options{})

	err := env.coordinator.Cancel(uuid.New())
	var notFound *RunNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestRun_CorrectionLayersManualOverride(t *testing.T) {
	env := newTestEnv(Options{})
	env.templates.target.Bytes = []byte("Name: {{ last_name }}\nKundennummer: {{ kundennummer }}\n")

	spec := templateSpec(uuid.New())
	first, err := env.coordinator.Run(context.Background(), spec)
	require.NoError(t, err)
	require.Equal(t, types.RunCompleted, first.State)
	require.Contains(t, first.MissingFields, "kundennummer")

	correction := spec
	correction.CorrectionOf = &first.RunID
	correction.ManualMappings = []ManualMapping{
		{FieldID: "kundennummer", CustomerDataKey: "personal.phone"},
	}
	second, err := env.coordinator.Run(context.Background(), correction)
	require.NoError(t, err)

	assert.Equal(t, types.RunCompleted, second.State)
	assert.NotContains(t, second.MissingFields, "kundennummer")
	resolved := second.Resolved
	var kn types.ResolvedMapping
	for _, r := range resolved {
		if r.FieldID == "kundennummer" {
			kn = r
		}
	}
	assert.Equal(t, types.SourceManual, kn.Source)
	assert.Equal(t, "personal.phone", kn.CustomerDataKey)

	// The original report is untouched.
	original, err := env.reports.Report(context.Background(), first.RunID)
	require.NoError(t, err)
	assert.Contains(t, original.MissingFields, "kundennummer")
}

func TestRun_CorrectionOfNonCompletedRejected(t *testing.T) {
	env := newTestEnv(Options{})
	env.templates.target.Bytes = []byte("no placeholders here")

	spec := templateSpec(uuid.New())
	failed, err := env.coordinator.Run(context.Background(), spec)
	require.NoError(t, err)
	require.Equal(t, types.RunFailed, failed.State)

	correction := spec
	correction.CorrectionOf = &failed.RunID
	_, err = env.coordinator.Run(context.Background(), correction)
	assert.ErrorContains(t, err, "only completed runs can be corrected")
}

func TestRun_CorrectionOfUnknownRun(t *testing.T) {
	env := newTestEnv(Options{})

	spec := templateSpec(uuid.New())
	unknown := uuid.New()
	spec.CorrectionOf = &unknown

	_, err := env.coordinator.Run(context.Background(), spec)
	var notFound *RunNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, unknown, notFound.RunID)
}

func TestRun_SpecValidation(t *testing.T) {
	env := newTestEnv(Options{})
	templateID := uuid.New()
	basisID := uuid.New()

	tests := []struct {
		name string
		spec RunSpec
	}{
		{"neither basis set", RunSpec{CustomerID: uuid.New()}},
		{"both bases set", RunSpec{TemplateID: &templateID, BasisDocumentID: &basisID, CustomerID: uuid.New()}},
		{"missing customer", RunSpec{TemplateID: &templateID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.coordinator.Run(context.Background(), tt.spec)
			assert.Error(t, err)
		})
	}
}

func TestManualCandidates_CarriesPriorManualResolutions(t *testing.T) {
	prior := &types.MappingReport{
		Resolved: []types.ResolvedMapping{
			{FieldID: "iban", CustomerDataKey: "finance.iban", Source: types.SourceManual},
			{FieldID: "last_name", CustomerDataKey: "personal.last_name", Source: types.SourceFallback},
			{FieldID: "city", Missing: true, Source: types.SourceManual},
		},
	}
	job := &runJob{
		spec: RunSpec{ManualMappings: []ManualMapping{
			{FieldID: "iban", CustomerDataKey: "finance.iban_alt"},
		}},
		prior: prior,
	}

	out := manualCandidates(job, nil, "")
	require.Len(t, out, 1)
	assert.Equal(t, "finance.iban_alt", out[0].CustomerDataKey)
	assert.Equal(t, types.SourceManual, out[0].Source)
}
