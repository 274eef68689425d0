package models

// BankAccount is a settlement target communicated to customers for
// bank-transfer payment.
type BankAccount struct {
	ID         uint64
	SystemName string
	Holder     string
	BankName   string
	IBAN       string
	BIC        string
	// AnyName renders the tenant display name instead of the literal holder
	AnyName       bool
	Active        bool
	DailyCapCents *int64
}
