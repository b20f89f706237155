// Package auth issues and validates the JWTs that guard administrative
// endpoints such as persona reload.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token claims fixed for this service.
const (
	Issuer    = "provider-search"
	Audience  = "provider-search-admin"
	RoleAdmin = "admin"
)

// DefaultAdminTokenExpiry is the lifetime of tokens issued without an explicit ttl.
const DefaultAdminTokenExpiry = time.Hour

// Default leeway for token validation.
const DefaultLeeway = 30 * time.Second

var (
	// ErrInvalidToken is returned when token validation fails.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")

	// ErrEmptySubject is returned when a token is requested without a subject.
	ErrEmptySubject = errors.New("subject cannot be empty")

	// ErrInsufficientRole is returned for a valid token that lacks the admin role.
	ErrInsufficientRole = errors.New("insufficient role")
)

// Claims are the JWT claims carried by admin tokens.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// JWTService handles JWT token operations.
// Supports dual-key rotation: tokens are signed with currentSecret,
// but can be validated with either currentSecret or previousSecret.
type JWTService struct {
	currentSecret  []byte
	previousSecret []byte
	leeway         time.Duration
}

// NewJWTService creates a JWTService signing and validating with secret.
func NewJWTService(secret string) *JWTService {
	return NewJWTServiceWithRotation(secret, "")
}

// NewJWTServiceWithRotation creates a JWTService with dual-key support for zero-downtime rotation.
// Set previousSecret to empty string if no rotation is in progress.
func NewJWTServiceWithRotation(currentSecret, previousSecret string) *JWTService {
	svc := &JWTService{
		currentSecret: []byte(currentSecret),
		leeway:        DefaultLeeway,
	}
	if previousSecret != "" {
		svc.previousSecret = []byte(previousSecret)
	}
	return svc
}

// WithLeeway returns a copy of the service using the given clock skew leeway.
func (s *JWTService) WithLeeway(leeway time.Duration) *JWTService {
	cp := *s
	cp.leeway = leeway
	return &cp
}

// GenerateToken signs a token for subject with the given role.
// A ttl <= 0 uses DefaultAdminTokenExpiry.
func (s *JWTService) GenerateToken(subject, role string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", ErrEmptySubject
	}
	if ttl <= 0 {
		ttl = DefaultAdminTokenExpiry
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.currentSecret)
}

// GenerateAdminToken signs an admin-role token for subject.
func (s *JWTService) GenerateAdminToken(subject string, ttl time.Duration) (string, error) {
	return s.GenerateToken(subject, RoleAdmin, ttl)
}

// ValidateToken parses and validates a token, returning its claims.
// The current secret is tried first, then the previous one when set.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	var lastErr error
	for _, secret := range s.secrets() {
		claims, err := s.parse(tokenString, secret)
		if err == nil {
			return claims, nil
		}
		lastErr = err
	}

	if errors.Is(lastErr, jwt.ErrTokenExpired) {
		return nil, ErrExpiredToken
	}
	return nil, ErrInvalidToken
}

// ValidateAdminToken validates the token and requires the admin role.
func (s *JWTService) ValidateAdminToken(tokenString string) (*Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Role != RoleAdmin {
		return nil, ErrInsufficientRole
	}
	return claims, nil
}

func (s *JWTService) secrets() [][]byte {
	if s.previousSecret == nil {
		return [][]byte{s.currentSecret}
	}
	return [][]byte{s.currentSecret, s.previousSecret}
}

func (s *JWTService) parse(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
