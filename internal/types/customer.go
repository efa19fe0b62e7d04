package types

import "github.com/google/uuid"

// CustomerRecord is the structured customer record a broker maintains:
// the base profile plus the self-assessment sections the customer filled in.
// Empty strings and nil numbers mean "not provided yet".
type CustomerRecord struct {
	ID         uuid.UUID         `json:"id"`
	BrokerID   uuid.UUID         `json:"broker_id"`
	Personal   PersonalSection   `json:"personal"`
	Address    AddressSection    `json:"address"`
	Employment EmploymentSection `json:"employment"`
	Finance    FinanceSection    `json:"finance"`
}

// PersonalSection holds base identity data.
type PersonalSection struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
}

// AddressSection holds the current home address.
type AddressSection struct {
	Street     string `json:"street,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	City       string `json:"city,omitempty"`
}

// EmploymentSection holds the employment self-assessment.
type EmploymentSection struct {
	Status        string `json:"status,omitempty"`
	Employer      string `json:"employer,omitempty"`
	EmployedSince string `json:"employed_since,omitempty"`
}

// FinanceSection holds the financial self-assessment.
type FinanceSection struct {
	NetIncomeMonthly *float64 `json:"net_income_monthly,omitempty"`
	MonthlyExpenses  *float64 `json:"monthly_expenses,omitempty"`
}
