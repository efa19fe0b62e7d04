package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIdent(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"LastName", "lastname"},
		{"last_name", "lastname"},
		{"personal.last_name", "personallastname"},
		{"netIncomeMonthly", "netincomemonthly"},
		{"XMLParser", "xmlparser"},
		{"Straße/Hausnummer", "strassehausnummer"},
		{"Geburtsdatum", "geburtsdatum"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeIdent(tt.input), "input %q", tt.input)
	}
}

func TestNormalizeTokens(t *testing.T) {
	assert.Equal(t, []string{"personal", "last", "name"}, NormalizeTokens("personal.last_name"))
	assert.Equal(t, []string{"net", "income", "monthly"}, NormalizeTokens("netIncomeMonthly"))
	assert.Equal(t, []string{"http", "response"}, NormalizeTokens("HTTPResponse"))
	assert.Nil(t, NormalizeTokens(""))
}

func TestStripDiacritics(t *testing.T) {
	assert.Equal(t, "strasse", stripDiacritics("straße"))
	assert.Equal(t, "uber", stripDiacritics("über"))
	assert.Equal(t, "resume", stripDiacritics("résumé"))
}
