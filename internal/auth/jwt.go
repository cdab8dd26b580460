package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mmynk/splitbaba/internal/models"
)

// tokenIssuer is stamped on every session token and required on validation.
const tokenIssuer = "splitbaba"

var (
	ErrMissingToken = errors.New("authorization token required")
	ErrInvalidToken = errors.New("invalid session token")
	// ErrTokenExpired wraps ErrInvalidToken so callers that only care about
	// validity keep working.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)
)

// Claims is the payload of a session token. The user ID is the subject.
type Claims struct {
	Email       string `json:"email"`
	DisplayName string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the user the token was issued to.
func (c *Claims) UserID() string {
	return c.Subject
}

// JWTManager signs and checks session tokens with one HMAC secret.
type JWTManager struct {
	key    []byte
	ttl    time.Duration
	parser *jwt.Parser
}

// NewJWTManager creates a manager whose tokens stay valid for ttl.
func NewJWTManager(secretKey string, ttl time.Duration) *JWTManager {
	return &JWTManager{
		key: []byte(secretKey),
		ttl: ttl,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(tokenIssuer),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}
}

// Generate issues a session token for user.
func (m *JWTManager) Generate(user *models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email:       user.Email,
		DisplayName: user.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

// Validate checks the signature, issuer and lifetime of token and returns its
// claims. Expired tokens fail with ErrTokenExpired, every other rejection
// with ErrInvalidToken.
func (m *JWTManager) Validate(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	_, err := m.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.key, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	case claims.Subject == "":
		return nil, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return claims, nil
}
