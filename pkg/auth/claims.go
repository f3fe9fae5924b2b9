package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	CustomerID uuid.UUID
	Role       string
}

// AccessTokenClaims is the identity-provider token: the subject is the customer id.
type AccessTokenClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// CustomerID parses the subject as a customer id.
func (c *AccessTokenClaims) CustomerID() (uuid.UUID, error) {
	if c == nil || c.Subject == "" {
		return uuid.Nil, fmt.Errorf("token subject is required")
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("token subject is not a customer id: %w", err)
	}
	return id, nil
}
