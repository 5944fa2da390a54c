// Package identity abstracts credential verification behind the
// external identity provider contract.
package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Provider verifies a handshake credential and resolves the owning
// user. A verification failure refuses the connection.
type Provider interface {
	Verify(credential string) (string, error)
}

// JWTProvider validates HMAC-signed tokens carrying a user_id claim.
type JWTProvider struct {
	secret []byte
}

func NewJWTProvider(secret string) *JWTProvider {
	return &JWTProvider{secret: []byte(secret)}
}

func (p *JWTProvider) Verify(credential string) (string, error) {
	// Clients may pass the header form in the query parameter.
	credential = strings.TrimPrefix(credential, "Bearer ")
	if credential == "" {
		return "", fmt.Errorf("%w: empty credential", ErrTokenInvalid)
	}

	token, err := jwt.Parse(credential, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return "", ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("%w: unexpected claims shape", ErrTokenInvalid)
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("%w: missing user_id claim", ErrTokenInvalid)
	}
	return userID, nil
}
