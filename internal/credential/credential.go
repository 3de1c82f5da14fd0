// Package credential issues and verifies HS256 tokens for callers and for the
// core's own calls to collaborator services.
package credential

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// ServiceTokenTTL bounds the lifetime of tokens presented to collaborators
	ServiceTokenTTL = time.Minute
	// ServiceScope marks tokens the core presents to collaborators
	ServiceScope = "collaborator"
)

// TokenClaims represents JWT token claims
type TokenClaims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// TokenSource produces bearer tokens for a collaborator audience
type TokenSource interface {
	Token(audience string) (string, error)
}

// Signer signs and verifies tokens with one shared secret
type Signer struct {
	secret []byte
	issuer string
	clock  func() time.Time
}

// NewSigner creates a signer
func NewSigner(secret, issuer string) *Signer {
	return &Signer{secret: []byte(secret), issuer: issuer, clock: time.Now}
}

// Issue signs a token for subject valid for ttl
func (s *Signer) Issue(subject, audience, scope string, ttl time.Duration) (string, error) {
	now := s.clock()
	claims := &TokenClaims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses tokenString and checks signature, expiry, issuer and, when
// non-empty, audience
func (s *Signer) Verify(tokenString, audience string) (*TokenClaims, error) {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	opts := []jwt.ParserOption{
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// ServiceCredential is the core's identity towards collaborators. It is held
// by the ledger's collaborator clients and never handed to callers.
type ServiceCredential struct {
	signer  *Signer
	subject string
}

// NewServiceCredential creates a credential signing as subject
func NewServiceCredential(signer *Signer, subject string) *ServiceCredential {
	return &ServiceCredential{signer: signer, subject: subject}
}

// Token implements TokenSource
func (c *ServiceCredential) Token(audience string) (string, error) {
	return c.signer.Issue(c.subject, audience, ServiceScope, ServiceTokenTTL)
}
