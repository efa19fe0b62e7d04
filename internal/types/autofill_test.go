//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldDefinition_JSONMarshaling(t *testing.T) {
	field := FieldDefinition{
		FieldID:        "last_name",
		Label:          "Nachname",
		DataType:       DataTypeText,
		ExampleValue:   "Meier",
		ValidationRule: "^[A-Za-z-]+$",
	}

	jsonBytes, err := json.MarshalIndent(field, "", "  ")
	require.NoError(t, err)
	assert.Contains(t, string(jsonBytes), `"field_id": "last_name"`)
	assert.Contains(t, string(jsonBytes), `"label": "Nachname"`)
	assert.Contains(t, string(jsonBytes), `"data_type": "text"`)
}

func TestCustomerDataMap_Keys_Sorted(t *testing.T) {
	m := CustomerDataMap{
		"personal.last_name":  {Key: "personal.last_name", Value: "Meier", Present: true},
		"address.city":        {Key: "address.city", Value: "Berlin", Present: true},
		"personal.first_name": {Key: "personal.first_name", Value: "Anna", Present: true},
	}

	assert.Equal(t, []string{"address.city", "personal.first_name", "personal.last_name"}, m.Keys())
}

func TestCustomerDataMap_Lookup(t *testing.T) {
	m := CustomerDataMap{
		"personal.phone": {Key: "personal.phone", Present: false},
	}

	v, ok := m.Lookup("personal.phone")
	assert.True(t, ok)
	assert.False(t, v.Present)

	_, ok = m.Lookup("personal.fax")
	assert.False(t, ok)
}

func TestRunState_Terminal(t *testing.T) {
	tests := []struct {
		state    RunState
		terminal bool
	}{
		{RunPending, false},
		{RunResolving, false},
		{RunRendering, false},
		{RunCompleted, true},
		{RunFailed, true},
		{RunCancelled, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.terminal, tt.state.Terminal(), "state %s", tt.state)
	}
}

func TestMissingList(t *testing.T) {
	resolved := []ResolvedMapping{
		{FieldID: "last_name", Value: "Meier"},
		{FieldID: "dob", Missing: true},
		{FieldID: "city", Value: "Berlin"},
		{FieldID: "income", Missing: true},
	}

	assert.Equal(t, []string{"dob", "income"}, MissingList(resolved))
}

func TestMissingList_Empty(t *testing.T) {
	assert.Nil(t, MissingList([]ResolvedMapping{{FieldID: "a", Value: "x"}}))
	assert.Nil(t, MissingList(nil))
}

func TestMappingReport_JSONRoundTrip(t *testing.T) {
	runID := uuid.New()
	templateID := uuid.New()
	report := MappingReport{
		RunID:      runID,
		CustomerID: uuid.New(),
		TemplateID: &templateID,
		State:      RunCompleted,
		Strategy:   StrategyFallback,
		Resolved: []ResolvedMapping{
			{FieldID: "last_name", CustomerDataKey: "personal.last_name", Value: "Meier", Confidence: 0.92, Source: SourceFallback},
			{FieldID: "dob", Missing: true},
		},
		MissingFields:    []string{"dob"},
		GeneratedFileRef: "generated/run.docx",
	}

	jsonBytes, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded MappingReport
	require.NoError(t, json.Unmarshal(jsonBytes, &decoded))
	assert.Equal(t, runID, decoded.RunID)
	assert.Equal(t, RunCompleted, decoded.State)
	assert.Len(t, decoded.Resolved, 2)
	assert.True(t, decoded.Resolved[1].Missing)
	assert.Equal(t, []string{"dob"}, decoded.MissingFields)
}
