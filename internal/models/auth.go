package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the payload of an access token. Subject (sub) carries the
// identity id; Email is a copy of the identity's e-mail at issuance.
type TokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
