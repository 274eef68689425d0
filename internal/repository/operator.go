package repository

import (
	"context"
	"errors"

	"github.com/halver/shopcore/internal/models"
	"github.com/halver/shopcore/internal/repository/postgres"
	"github.com/jackc/pgx/v5"
)

const (
	selectOperatorByLoginQuery = `
						SELECT id, login, password_hash, created_at FROM operators
						WHERE login = $1
`
)

// OperatorRepository provides access to back-office operator accounts
type OperatorRepository struct {
	db *postgres.DB
}

// NewOperatorRepository creates new OperatorRepository instance
func NewOperatorRepository(db *postgres.DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

// GetOperatorByLogin returns operator by login
func (or *OperatorRepository) GetOperatorByLogin(ctx context.Context, login string) (*models.Operator, error) {
	op := models.Operator{}
	err := or.db.QueryRow(ctx, selectOperatorByLoginQuery, login).
		Scan(&op.ID, &op.Login, &op.PasswordHash, &op.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return &op, nil
}
