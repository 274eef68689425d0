package service

import (
	"context"
	"errors"

	"github.com/halver/shopcore/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// OperatorRepository is interface for operator accounts
type OperatorRepository interface {
	// GetOperatorByLogin returns operator by login
	GetOperatorByLogin(ctx context.Context, login string) (*models.Operator, error)
}

// AuthService authenticates back-office operators
type AuthService struct {
	repo  OperatorRepository
	token TokenService
}

// NewAuthService creates new AuthService instance
func NewAuthService(repo OperatorRepository, token TokenService) *AuthService {
	return &AuthService{
		repo:  repo,
		token: token,
	}
}

// Login verifies credentials and returns a signed token
func (as *AuthService) Login(ctx context.Context, login, password string) (string, error) {
	op, err := as.repo.GetOperatorByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, models.ErrDataNotFound) {
			return "", models.ErrInvalidCredentials
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return "", models.ErrInvalidCredentials
	}

	return as.token.CreateToken(op)
}
