package identity

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Provider issues and verifies anonymous client identities. An identity is
// one opaque uuid wrapped in a signed token; the core treats it as
// immutable for the session's lifetime.
type Provider struct {
	private *rsa.PrivateKey
	public  *rsa.PublicKey
}

func NewProvider(private *rsa.PrivateKey, public *rsa.PublicKey) *Provider {
	return &Provider{private: private, public: public}
}

// Issue mints a fresh client identity and returns the signed token carrying
// it.
func (p *Provider) Issue() (token, clientID string, err error) {
	clientID = uuid.New().String()
	claims := jwt.RegisteredClaims{
		Subject:   clientID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(30 * 24 * time.Hour)),
		ID:        uuid.New().String(),
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.private)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign identity token: %w", err)
	}
	return token, clientID, nil
}

// Verify validates a token and returns the client identity it carries.
func (p *Provider) Verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return p.public, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("invalid identity token: %w", err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("identity token missing subject")
	}
	return claims.Subject, nil
}
