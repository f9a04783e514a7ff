// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingSubject is returned for a valid token without a "sub" claim.
var ErrMissingSubject = errors.New("missing sub in jwt")

// Signer issues and verifies EdDSA tokens for internal task callbacks. The
// dispatcher signs with the same key the server verifies with, so both are
// built from one shared seed.
type Signer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// ttl is how long a token is valid (0 => no exp claim).
	ttl time.Duration
}

// NewSigner generates a fresh ed25519 key pair. Tokens it issues can only be
// verified by the same process.
func NewSigner(ttl time.Duration) (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Signer{privateKey: priv, publicKey: pub, ttl: ttl}, nil
}

// NewSignerFromSeed derives the key pair from a shared secret.
func NewSignerFromSeed(seed string, ttl time.Duration) (*Signer, error) {
	if seed == "" {
		return nil, errors.New("empty signing seed")
	}
	sum := sha256.Sum256([]byte(seed))
	priv := ed25519.NewKeyFromSeed(sum[:])
	return &Signer{
		privateKey: priv,
		publicKey:  priv.Public().(ed25519.PublicKey),
		ttl:        ttl,
	}, nil
}

// CreateJWT creates a signed JWT token with "sub" = subject and, when a ttl is
// set, exp = now + ttl.
func (s *Signer) CreateJWT(subject string) (string, error) {
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": time.Now().Unix(),
	}
	if s.ttl > 0 {
		claims["exp"] = time.Now().Add(s.ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(s.privateKey)
}

// AuthenticateJWT verifies a JWT string, returns the "sub" field if valid, else an error.
func (s *Signer) AuthenticateJWT(tokenString string) (string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.publicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid jwt claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", ErrMissingSubject
	}
	return sub, nil
}
