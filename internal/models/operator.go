package models

import "time"

// Operator is a back-office user allowed to mutate order status
type Operator struct {
	ID           uint64
	Login        string
	PasswordHash string
	CreatedAt    time.Time
}

// TokenPayload is the verified content of an operator auth token
type TokenPayload struct {
	OperatorID uint64
	Login      string
}
