package repository

import (
	"context"
	"errors"

	"github.com/halver/shopcore/internal/models"
	"github.com/halver/shopcore/internal/repository/postgres"
	"github.com/jackc/pgx/v5"
)

const (
	bankAccountColumns = `id, system_name, holder, bank_name, iban, bic, any_name, active, daily_cap_cents`

	selectBankAccountByIDQuery   = `SELECT ` + bankAccountColumns + ` FROM bank_accounts WHERE id = $1`
	selectBankAccountByNameQuery = `SELECT ` + bankAccountColumns + ` FROM bank_accounts WHERE system_name = $1`
)

// BankAccountRepository provides read access to settlement accounts
type BankAccountRepository struct {
	db *postgres.DB
}

// NewBankAccountRepository creates new BankAccountRepository instance
func NewBankAccountRepository(db *postgres.DB) *BankAccountRepository {
	return &BankAccountRepository{db: db}
}

func scanBankAccount(row pgx.Row) (*models.BankAccount, error) {
	acct := models.BankAccount{}
	err := row.Scan(&acct.ID, &acct.SystemName, &acct.Holder, &acct.BankName, &acct.IBAN,
		&acct.BIC, &acct.AnyName, &acct.Active, &acct.DailyCapCents)
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// GetBankAccountByID returns account by id
func (br *BankAccountRepository) GetBankAccountByID(ctx context.Context, id uint64) (*models.BankAccount, error) {
	acct, err := scanBankAccount(br.db.QueryRow(ctx, selectBankAccountByIDQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}
	return acct, nil
}

// GetBankAccountByName returns account by its stable system name
func (br *BankAccountRepository) GetBankAccountByName(ctx context.Context, name string) (*models.BankAccount, error) {
	acct, err := scanBankAccount(br.db.QueryRow(ctx, selectBankAccountByNameQuery, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}
	return acct, nil
}
