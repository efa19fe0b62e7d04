package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
	"type": "object",
	"required": ["mappings"],
	"properties": {
		"mappings": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["field_id", "confidence"],
				"properties": {
					"field_id": {"type": "string"},
					"customer_data_key": {"type": ["string", "null"]},
					"confidence": {"type": "number"}
				}
			}
		}
	}
}`

func TestValidateJSONString_Valid(t *testing.T) {
	doc := `{"mappings": [{"field_id": "last_name", "customer_data_key": "personal.last_name", "confidence": 0.9}]}`
	assert.NoError(t, ValidateJSONString(testSchema, doc))
}

func TestValidateJSONString_NullKeyAllowed(t *testing.T) {
	doc := `{"mappings": [{"field_id": "dob", "customer_data_key": null, "confidence": 0.1}]}`
	assert.NoError(t, ValidateJSONString(testSchema, doc))
}

func TestValidateJSONString_MissingRequired(t *testing.T) {
	doc := `{"mappings": [{"customer_data_key": "personal.last_name"}]}`

	err := ValidateJSONString(testSchema, doc)
	require.Error(t, err)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.NotEmpty(t, validationErr.Errors)
}

func TestValidateJSONString_WrongType(t *testing.T) {
	doc := `{"mappings": "not an array"}`

	var validationErr *ValidationError
	require.ErrorAs(t, ValidateJSONString(testSchema, doc), &validationErr)
}

func TestValidateJSONString_MalformedDocument(t *testing.T) {
	err := ValidateJSONString(testSchema, `{"mappings": [`)
	require.Error(t, err)

	var loadErr *SchemaLoadError
	assert.ErrorAs(t, err, &loadErr)
}
