package models

// Tenant is a storefront brand sharing the core with its own routing,
// settlement account and locale.
type Tenant struct {
	ID                   uint64
	Name                 string
	Domain               string
	Locale               string
	Currency             string
	DefaultBankAccountID *uint64
	AutoInvoice          bool
	IsRoot               bool

	// delivery pricing rule: flat fee below the free-delivery quantity
	FreeDeliveryMinQty int64
	DeliveryFeeCents   int64
}

// TenantContext is the routing context resolved from an origin domain.
// It is passed explicitly into core calls, never read from ambient state.
type TenantContext struct {
	ShopID               uint64
	ShopName             string
	DefaultBankAccountID *uint64
	Locale               string
	Currency             string
	AutoInvoice          bool
	FreeDeliveryMinQty   int64
	DeliveryFeeCents     int64
}
