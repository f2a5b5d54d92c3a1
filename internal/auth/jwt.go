package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"coursework-api/internal/cache"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrRevokedToken = errors.New("token has been revoked")
)

// Claims represents the JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Options configure a TokenIssuer
type Options struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
	// Clock defaults to time.Now
	Clock func() time.Time
}

// TokenIssuer signs and validates HS256 tokens and remembers revoked ones
// until they would have expired anyway.
type TokenIssuer struct {
	opts    Options
	revoked cache.Cache[string, struct{}]
}

// NewTokenIssuer creates an issuer
func NewTokenIssuer(opts Options) *TokenIssuer {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return &TokenIssuer{
		opts: opts,
		revoked: cache.NewSimpleCache[string, struct{}](cache.Options{
			ConcurrencySafe: true,
			Clock:           opts.Clock,
		}),
	}
}

// GenerateToken generates a JWT token for the given user
func (i *TokenIssuer) GenerateToken(userID, username string) (string, error) {
	now := i.opts.Clock()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.opts.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    i.opts.Issuer,
			Audience:  jwt.ClaimStrings{i.opts.Audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(i.opts.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken validates a JWT token and returns the claims
func (i *TokenIssuer) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return i.opts.Secret, nil
	},
		jwt.WithTimeFunc(i.opts.Clock),
		jwt.WithIssuer(i.opts.Issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if !slices.Contains(claims.Audience, i.opts.Audience) {
		return nil, fmt.Errorf("%w: invalid token audience", ErrInvalidToken)
	}
	if claims.ID != "" && i.revoked.Has(claims.ID) {
		return nil, ErrRevokedToken
	}
	return claims, nil
}

// Revoke rejects the token from now until it expires
func (i *TokenIssuer) Revoke(claims *Claims) {
	if claims == nil || claims.ID == "" {
		return
	}
	ttl := i.opts.TTL
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(i.opts.Clock())
	}
	if ttl <= 0 {
		return
	}
	i.revoked.Set(claims.ID, struct{}{}, ttl)
	i.revoked.PurgeExpired()
}
