package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the claims carried by access tokens
type TokenClaims struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}

// SigninResponse is returned by a successful signin
type SigninResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}
