package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 30 * 24 * time.Hour

	tokenTypeAccess = "access"
	refreshBytes    = 32
)

// ErrInvalidToken covers malformed, expired and wrongly signed tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the access token payload. Subject is the user id.
type Claims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// Issuer signs access tokens with HS256 and mints refresh tokens.
type Issuer struct {
	secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer creates an Issuer. Zero TTLs take the defaults.
func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &Issuer{secret: []byte(secret), AccessTTL: accessTTL, RefreshTTL: refreshTTL, now: time.Now}
}

// AccessToken signs a token for userID and returns it with its expiry.
func (i *Issuer) AccessToken(userID uuid.UUID) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.AccessTTL)
	claims := Claims{
		Type: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, exp, nil
}

// ParseAccessToken verifies raw and returns the user id it was issued for.
func (i *Issuer) ParseAccessToken(raw string) (uuid.UUID, error) {
	var claims Claims
	keyFunc := func(*jwt.Token) (any, error) { return i.secret, nil }
	_, err := jwt.ParseWithClaims(raw, &claims, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Type != tokenTypeAccess {
		return uuid.Nil, fmt.Errorf("%w: wrong token type %q", ErrInvalidToken, claims.Type)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return id, nil
}

// RefreshToken is a freshly minted opaque token. Raw goes to the client once;
// only Hash is stored.
type RefreshToken struct {
	Raw       string
	Hash      string
	ExpiresAt time.Time
}

// NewRefreshToken mints a random refresh token.
func (i *Issuer) NewRefreshToken() (RefreshToken, error) {
	buf := make([]byte, refreshBytes)
	if _, err := rand.Read(buf); err != nil {
		return RefreshToken{}, fmt.Errorf("refresh token entropy: %w", err)
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)
	return RefreshToken{Raw: raw, Hash: HashToken(raw), ExpiresAt: i.now().Add(i.RefreshTTL)}, nil
}

// HashToken is the stored form of a refresh token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
