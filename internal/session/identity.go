package session

import (
	"github.com/golang-jwt/jwt/v5"

	"taskctl/internal/service"
)

// tokenClaims are the identity claims a server may put in its access token.
type tokenClaims struct {
	jwt.RegisteredClaims
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

// IdentityFromToken reads the user identity from a JWT access token without
// verifying its signature; the server remains the authority. Returns nil for
// opaque tokens or tokens without a subject or email.
func IdentityFromToken(token string) *service.User {
	var claims tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil
	}
	if claims.Subject == "" && claims.Email == "" {
		return nil
	}

	email := claims.Email
	if email == "" && looksLikeEmail(claims.Subject) {
		email = claims.Subject
	}
	return &service.User{
		ID:       claims.Subject,
		Email:    email,
		FullName: claims.FullName,
	}
}

func looksLikeEmail(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '@' {
			return i > 0 && i < len(s)-1
		}
	}
	return false
}
