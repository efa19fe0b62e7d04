package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyTransform_Passthrough(t *testing.T) {
	out, err := ApplyTransform("", "Meier")
	require.NoError(t, err)
	assert.Equal(t, "Meier", out)
}

func TestApplyTransform_DateNormalization(t *testing.T) {
	tests := []struct {
		name      string
		transform string
		input     string
		want      string
	}{
		{"ISO to ISO", "date:2006-01-02", "1985-04-02", "1985-04-02"},
		{"German to ISO", "date:2006-01-02", "02.04.1985", "1985-04-02"},
		{"short German to ISO", "date:2006-01-02", "2.4.1985", "1985-04-02"},
		{"slash to ISO", "date:2006-01-02", "02/04/1985", "1985-04-02"},
		{"ISO to German template layout", "date:02.01.2006", "1985-04-02", "02.04.1985"},
		{"RFC3339 prefix", "date:2006-01-02", "1985-04-02T00:00:00Z", "1985-04-02"},
		{"surrounding whitespace", "date:2006-01-02", " 1985-04-02 ", "1985-04-02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ApplyTransform(tt.transform, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestApplyTransform_UnparsableDate(t *testing.T) {
	_, err := ApplyTransform("date:2006-01-02", "irgendwann im April")
	assert.Error(t, err)
}

func TestApplyTransform_UnknownDirective(t *testing.T) {
	_, err := ApplyTransform("currency:EUR", "2500")
	assert.Error(t, err)
}

func TestDateTransform_DefaultLayout(t *testing.T) {
	assert.Equal(t, "date:2006-01-02", DateTransform(""))
	assert.Equal(t, "date:02.01.2006", DateTransform("02.01.2006"))
}
