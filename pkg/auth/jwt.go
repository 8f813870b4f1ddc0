// pkg/auth/jwt.go
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrExpiredToken      = errors.New("token has expired")
	ErrInvalidClaims     = errors.New("invalid token claims")
	ErrInvalidSigningKey = errors.New("invalid signing key")
)

// TokenManager issues and verifies signed bearer tokens
type TokenManager struct {
	secret   []byte
	duration time.Duration
	issuer   string
	now      func() time.Time
}

// NewTokenManager creates a new token manager
func NewTokenManager(secret string, duration time.Duration, issuer string) *TokenManager {
	if issuer == "" {
		issuer = "taskboard"
	}
	return &TokenManager{
		secret:   []byte(secret),
		duration: duration,
		issuer:   issuer,
		now:      time.Now,
	}
}

// Claims represents the JWT claims carried by a token. The subject is the username.
type Claims struct {
	jwt.RegisteredClaims
}

// Username returns the subject of the token
func (c *Claims) Username() string {
	return c.Subject
}

// Issue generates a signed token for the given subject
func (tm *TokenManager) Issue(subject string) (string, error) {
	if len(tm.secret) == 0 {
		return "", ErrInvalidSigningKey
	}
	if subject == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidClaims)
	}

	now := tm.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    tm.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.duration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return tokenString, nil
}

// Parse verifies a token and returns its claims
func (tm *TokenManager) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithTimeFunc(tm.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidClaims)
	}

	return claims, nil
}

// Validate reports whether the token carries a valid signature and has not expired.
// It never returns an error; any parse failure is false.
func (tm *TokenManager) Validate(tokenString string) bool {
	_, err := tm.Parse(tokenString)
	return err == nil
}

// SubjectOf extracts the subject of a verified token
func (tm *TokenManager) SubjectOf(tokenString string) (string, error) {
	claims, err := tm.Parse(tokenString)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims.Subject, nil
}

// ExtractTokenFromHeader extracts the token from the Authorization header
func ExtractTokenFromHeader(authHeader string) (string, error) {
	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return "", errors.New("invalid authorization header format")
	}
	token := authHeader[7:]
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}
