// Package auth decides per-user, per-feature access from signed session tokens.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/eslsoft/tafsirnet/internal/entity"
)

// Claims are issued by the payment provider once a session is paid for.
type Claims struct {
	Features []entity.Feature `json:"features"`
	jwt.RegisteredClaims
}

// Grant is the verified identity behind a request.
type Grant struct {
	UserID   string
	Features []entity.Feature
	Expires  time.Time
}

// Allows reports whether the grant covers feature.
func (g *Grant) Allows(feature entity.Feature) bool {
	return g != nil && slices.Contains(g.Features, feature)
}

// Gate verifies HS256 session tokens.
type Gate struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewGate(secret, issuer string) (*Gate, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	return &Gate{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Issue signs a token for userID. Used by tooling and tests; production
// tokens come from the payment provider.
func (g *Gate) Issue(userID string, features []entity.Feature, ttl time.Duration) (string, error) {
	now := g.now()
	claims := Claims{
		Features: features,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    g.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
}

// Verify parses and validates a token string.
func (g *Gate) Verify(token string) (*Grant, error) {
	token = stripBearer(token)
	if token == "" {
		return nil, entity.ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(g.now),
		jwt.WithExpirationRequired(),
	}
	if g.issuer != "" {
		opts = append(opts, jwt.WithIssuer(g.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return g.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", entity.ErrInvalidToken)
	}
	grant := &Grant{UserID: claims.Subject, Features: claims.Features}
	if claims.ExpiresAt != nil {
		grant.Expires = claims.ExpiresAt.Time
	}
	return grant, nil
}

// Authorize verifies token and checks it covers feature.
func (g *Gate) Authorize(token string, feature entity.Feature) (*Grant, error) {
	grant, err := g.Verify(token)
	if err != nil {
		return nil, err
	}
	if !grant.Allows(feature) {
		return nil, fmt.Errorf("%w: %s not included for %s", entity.ErrAccessDenied, feature, grant.UserID)
	}
	return grant, nil
}

const _bearerPrefix = "bearer "

// stripBearer removes an Authorization scheme prefix, matched case-insensitively.
func stripBearer(token string) string {
	token = strings.TrimSpace(token)
	if len(token) >= len(_bearerPrefix) && strings.EqualFold(token[:len(_bearerPrefix)], _bearerPrefix) {
		token = token[len(_bearerPrefix):]
	}
	return strings.TrimSpace(token)
}
