package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenManager issues and validates the HS256 session tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager builds a manager from the configured secret and TTL.
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("JWT secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl}, nil
}

// Claims represents the session token claims
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Generate creates a signed token for a user
func (m *TokenManager) Generate(userID, email string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate parses a token string and returns its claims
func (m *TokenManager) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// Identify resolves the authenticated user ID from a request, or "" when
// the request is anonymous or its token does not verify. Identity is
// optional on the admission path; enforcement belongs to RequireAuth.
func (m *TokenManager) Identify(r *http.Request) string {
	tokenString, err := ExtractToken(r.Header.Get("Authorization"))
	if err != nil {
		return ""
	}
	claims, err := m.Validate(tokenString)
	if err != nil {
		return ""
	}
	return claims.UserID
}

// ExtractToken extracts the token from an Authorization header
func ExtractToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("missing authorization header")
	}

	// Support both "Bearer <token>" and a bare token.
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
		return parts[1], nil
	}
	if len(parts) == 1 {
		return parts[0], nil
	}

	return "", errors.New("invalid authorization header format")
}
