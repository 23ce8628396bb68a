package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 72 * time.Hour

// Issuer signs and checks HS256 bearer tokens. The identity provider issues
// tokens with the same secret; GenerateToken exists for tooling and tests.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

func NewIssuer(secret string) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &Issuer{secret: []byte(secret), now: time.Now}, nil
}

// GenerateToken creates a token whose subject is userID.
func (i *Issuer) GenerateToken(userID string) (string, error) {
	now := i.now()
	// 1. "sub" carries the user id, "exp" and "iat" bound its lifetime.
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}

	// 2. Sign with HS256.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// ValidateToken parses tokenString and returns its subject.
func (i *Issuer) ValidateToken(tokenString string) (string, error) {
	// 1. Parse, refusing anything but HMAC signatures.
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}

	// 2. The subject is the user id.
	if !token.Valid || claims.Subject == "" {
		return "", errors.New("invalid subject claim")
	}
	return claims.Subject, nil
}
