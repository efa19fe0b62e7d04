// Package flatten turns a structured customer record into the flat
// key -> value snapshot the mapping pipeline consumes.
//
// Flattening is a pure function of the record shape: the key set is
// identical for every customer, independent of which values are filled in.
// Absent values are kept with Present=false so the resolver can tell
// "unknown key" apart from "known key, no value".
package flatten

import (
	"strconv"
	"strings"

	"github.com/digifynow/autofill-agent/internal/types"
)

// Section names used as key prefixes and provenance markers.
const (
	SectionPersonal   = "personal"
	SectionAddress    = "address"
	SectionEmployment = "employment"
	SectionFinance    = "finance"
)

// Flatten converts a customer record into its CustomerDataMap.
func Flatten(record *types.CustomerRecord) types.CustomerDataMap {
	m := make(types.CustomerDataMap)

	addString(m, SectionPersonal, "first_name", record.Personal.FirstName)
	addString(m, SectionPersonal, "last_name", record.Personal.LastName)
	addString(m, SectionPersonal, "email", record.Personal.Email)
	addString(m, SectionPersonal, "phone", record.Personal.Phone)
	addString(m, SectionPersonal, "date_of_birth", record.Personal.DateOfBirth)

	addString(m, SectionAddress, "street", record.Address.Street)
	addString(m, SectionAddress, "postal_code", record.Address.PostalCode)
	addString(m, SectionAddress, "city", record.Address.City)

	addString(m, SectionEmployment, "status", record.Employment.Status)
	addString(m, SectionEmployment, "employer", record.Employment.Employer)
	addString(m, SectionEmployment, "employed_since", record.Employment.EmployedSince)

	addNumber(m, SectionFinance, "net_income_monthly", record.Finance.NetIncomeMonthly)
	addNumber(m, SectionFinance, "monthly_expenses", record.Finance.MonthlyExpenses)

	return m
}

func addString(m types.CustomerDataMap, section, name, value string) {
	key := section + "." + name
	trimmed := strings.TrimSpace(value)
	m[key] = types.DataValue{
		Key:     key,
		Value:   trimmed,
		Present: trimmed != "",
		Section: section,
	}
}

// addNumber formats a numeric value with a stable canonical form:
// no exponent, trailing zeros trimmed ("2500", "2500.5").
func addNumber(m types.CustomerDataMap, section, name string, value *float64) {
	key := section + "." + name
	dv := types.DataValue{Key: key, Section: section}
	if value != nil {
		dv.Value = strconv.FormatFloat(*value, 'f', -1, 64)
		dv.Present = true
	}
	m[key] = dv
}
