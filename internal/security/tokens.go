// Package security verifies identity-provider session tokens and hashes them
// for storage. The provider is authoritative only for "is this caller who they
// claim to be"; whether the session is still permitted lives in the session store.
package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned when a token is malformed, expired, or signed
// by the wrong key/issuer/audience.
var ErrInvalidToken = errors.New("invalid token")

// SessionClaims holds the claims carried by a provider session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	OrgID string `json:"org_id"`
}

// Identity is the verified content of a provider session token.
type Identity struct {
	UserID    string
	OrgID     string
	ExpiresAt time.Time
}

// TokenVerifier validates provider session tokens (RS256 or ES256 against the
// provider's public key). Issue is available only when a private key is
// configured; the server itself never issues tokens.
type TokenVerifier struct {
	publicKey  crypto.PublicKey
	privateKey crypto.Signer // nil in normal server operation
	issuer     string
	audience   string
}

// NewTokenVerifier returns a TokenVerifier for the given public key, issuer, and audience.
func NewTokenVerifier(publicKey crypto.PublicKey, issuer, audience string) *TokenVerifier {
	return &TokenVerifier{publicKey: publicKey, issuer: issuer, audience: audience}
}

// NewTokenIssuer returns a TokenVerifier that can also mint tokens with the
// given private key. Used by cmd/seed and tests.
func NewTokenIssuer(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string) *TokenVerifier {
	return &TokenVerifier{publicKey: publicKey, privateKey: privateKey, issuer: issuer, audience: audience}
}

// Verify parses and validates a provider session token (signature, exp, iss, aud).
func (v *TokenVerifier) Verify(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
			return v.publicKey, nil
		}
		return nil, ErrInvalidToken
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != v.issuer {
		return nil, ErrInvalidToken
	}
	audOK := false
	for _, a := range claims.Audience {
		if a == v.audience {
			audOK = true
			break
		}
	}
	if !audOK {
		return nil, ErrInvalidToken
	}
	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return &Identity{UserID: claims.Subject, OrgID: claims.OrgID, ExpiresAt: exp}, nil
}

// Issue mints a provider session token for userID in orgID with the given TTL.
// Returns ErrInvalidToken if no private key is configured.
func (v *TokenVerifier) Issue(userID, orgID string, ttl time.Duration) (string, error) {
	if v.privateKey == nil {
		return "", ErrInvalidToken
	}
	var method jwt.SigningMethod
	switch v.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidToken
	}
	now := time.Now().UTC()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			// Distinct jti per mint: two logins in the same second must still
			// produce distinct tokens and therefore distinct session rows.
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    v.issuer,
			Audience:  jwt.ClaimStrings{v.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		OrgID: orgID,
	}
	return jwt.NewWithClaims(method, claims).SignedString(v.privateKey)
}
