package jwtutil

import (
	"errors"
	"time"

	"scouthub/pkg/config"

	"github.com/golang-jwt/jwt/v4"
)

// Verification failures. Expired and invalid are deliberately distinct so the
// caller can produce different user-facing messages for "token expired" and
// "invalid token".
var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// UserClaims represents the JWT claims for user authentication.
// OrganizationID is optional: a token issued before the user picked an
// organization carries identity only, and the tenant is resolved elsewhere.
type UserClaims struct {
	Email          string `json:"email"`
	UserID         uint   `json:"user_id"`
	OrganizationID *uint  `json:"organization_id,omitempty"`
	Role           string `json:"role,omitempty"`    // User's role in the claimed organization
	Purpose        string `json:"purpose,omitempty"` // Non-empty for narrowly scoped tokens
	jwt.RegisteredClaims
}

// Service signs and verifies bearer tokens with a single HS256 key. It is
// constructed from configuration and holds no package-level state.
type Service struct {
	signingKey []byte
	expiration time.Duration
}

// New creates a token service from the JWT configuration.
func New(cfg *config.JWTConfig) *Service {
	return &Service{
		signingKey: []byte(cfg.SigningKey),
		expiration: time.Duration(cfg.ExpirationHours) * time.Hour,
	}
}

// Generate creates a JWT token carrying user identity only.
func (s *Service) Generate(email string, userID uint) (string, error) {
	return s.GenerateWithOrganization(email, userID, nil, "")
}

// GenerateWithOrganization creates a JWT token with user identity plus the
// organization and role the user authenticated into.
func (s *Service) GenerateWithOrganization(email string, userID uint, organizationID *uint, role string) (string, error) {
	now := time.Now()
	claims := UserClaims{
		Email:          email,
		UserID:         userID,
		OrganizationID: organizationID,
		Role:           role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.signingKey)
}

// Verify validates the token signature and expiry and returns the decoded
// claims unmodified. The error is ErrTokenExpired when the signature is good
// but the expiry has passed, ErrTokenInvalid for everything else.
func (s *Service) Verify(tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.signingKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
