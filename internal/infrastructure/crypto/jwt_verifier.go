// Package crypto verifies bearer tokens to identify the principal behind a request.
package crypto

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"

	"github.com/turtacn/throttle/internal/config"
	"github.com/turtacn/throttle/pkg/constants"
	"github.com/turtacn/throttle/pkg/errors"
	"github.com/turtacn/throttle/pkg/logger"
)

// PrincipalVerifier validates HMAC-signed JWTs and remembers the subject of
// recently verified tokens.
type PrincipalVerifier struct {
	secret []byte
	issuer string
	ttl    time.Duration
	cache  *cache.Cache
	now    func() time.Time
	log    logger.Logger
}

// NewPrincipalVerifier creates a verifier. It returns nil when no secret is
// configured, meaning every request stays anonymous.
func NewPrincipalVerifier(cfg *config.JWTConfig, log logger.Logger) *PrincipalVerifier {
	if cfg.Secret == "" {
		return nil
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = constants.DefaultPrincipalCacheTTL
	}
	return &PrincipalVerifier{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		cache:  cache.New(ttl, 2*ttl),
		now:    time.Now,
		log:    log.WithComponent("principal_verifier"),
	}
}

// Verify returns the subject of token.
func (v *PrincipalVerifier) Verify(ctx context.Context, token string) (string, error) {
	cacheKey := fingerprint(token)
	if principal, ok := v.cache.Get(cacheKey); ok {
		return principal.(string), nil
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		v.log.Debug(ctx, "Bearer token rejected", logger.String("reason", err.Error()))
		return "", errors.ErrUnauthorized.WithCause(err)
	}
	if claims.Subject == "" {
		return "", errors.ErrUnauthorized.WithMessage("token has no %s claim", constants.ClaimKeySubject)
	}

	ttl := v.ttl
	if remaining := claims.ExpiresAt.Sub(v.now()); remaining < ttl {
		ttl = remaining
	}
	if ttl > 0 {
		v.cache.Set(cacheKey, claims.Subject, ttl)
	}
	return claims.Subject, nil
}

// Sign issues a token for subject valid for ttl. It is used by the admin CLI and tests.
func (v *PrincipalVerifier) Sign(subject string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// CachedTokens returns the number of remembered tokens.
func (v *PrincipalVerifier) CachedTokens() int {
	return v.cache.ItemCount()
}

func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
