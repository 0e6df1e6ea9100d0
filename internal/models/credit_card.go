package models

import (
	"time"

	"github.com/google/uuid"
)

// CreditCard is the card a user keeps on file for buying credits. Only the
// last four digits and a SHA-256 hash of the number are stored.
type CreditCard struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	HolderName string    `json:"holder_name"`
	Last4      string    `json:"last4"`
	NumberHash string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
