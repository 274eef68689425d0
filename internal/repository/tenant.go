package repository

import (
	"context"
	"errors"

	"github.com/halver/shopcore/internal/models"
	"github.com/halver/shopcore/internal/repository/postgres"
	"github.com/jackc/pgx/v5"
)

const (
	tenantColumns = `id, name, domain, locale, currency, default_bank_account_id,
						auto_invoice, is_root, free_delivery_min_qty, delivery_fee_cents`

	selectTenantsQuery    = `SELECT ` + tenantColumns + ` FROM tenants`
	selectTenantByIDQuery = `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
)

// TenantRepository provides read access to tenant configuration
type TenantRepository struct {
	db *postgres.DB
}

// NewTenantRepository creates new TenantRepository instance
func NewTenantRepository(db *postgres.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	t := models.Tenant{}
	err := row.Scan(&t.ID, &t.Name, &t.Domain, &t.Locale, &t.Currency, &t.DefaultBankAccountID,
		&t.AutoInvoice, &t.IsRoot, &t.FreeDeliveryMinQty, &t.DeliveryFeeCents)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTenants returns all tenant rows
func (tr *TenantRepository) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	rows, err := tr.db.Query(ctx, selectTenantsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tenants := []models.Tenant{}

	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tenants, nil
}

// GetTenantByID returns tenant by id
func (tr *TenantRepository) GetTenantByID(ctx context.Context, id uint64) (*models.Tenant, error) {
	t, err := scanTenant(tr.db.QueryRow(ctx, selectTenantByIDQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}
	return t, nil
}
