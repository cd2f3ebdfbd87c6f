package shelf

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenService issues and validates signed bearer tokens
type TokenService interface {
	Issue(identity Identity, roles []string) (string, error)
	SignClaims(claims *JWTClaims) (string, error)
	Validate(tokenString string) (AuthClaims, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey        []byte
	expirationMinutes int
	issuer            string
	audience          jwt.ClaimStrings
	logger            Logger
}

// NewTokenService creates a new TokenService instance. An empty signing key
// or a non-positive expiration is a configuration error; callers are
// expected to treat it as fatal at startup.
func NewTokenService(signingKey []byte, expirationMinutes int, issuer string, audience jwt.ClaimStrings, logger Logger) (TokenService, error) {
	if len(signingKey) == 0 {
		return nil, errors.New("token signing secret must not be empty", errors.CategoryBadInput).
			WithTextCode("MISSING_SIGNING_SECRET")
	}

	if expirationMinutes <= 0 {
		return nil, errors.New("token expiration must be a positive number of minutes", errors.CategoryBadInput).
			WithTextCode("INVALID_TOKEN_EXPIRATION")
	}

	if logger == nil {
		logger = defLogger{}
	}

	return &TokenServiceImpl{
		signingKey:        signingKey,
		expirationMinutes: expirationMinutes,
		issuer:            issuer,
		audience:          audience,
		logger:            logger,
	}, nil
}

// NewTokenServiceFromConfig builds a TokenService from a Config implementation.
func NewTokenServiceFromConfig(cfg Config, logger Logger) (TokenService, error) {
	return NewTokenService(
		[]byte(cfg.GetSigningSecret()),
		cfg.GetTokenExpirationMinutes(),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		logger,
	)
}

// Issue creates a signed JWT asserting the identity and its roles. The claim
// set is deterministic except for the fresh random token id.
func (ts *TokenServiceImpl) Issue(identity Identity, roles []string) (string, error) {
	now := time.Now()

	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ts.expirationMinutes) * time.Minute)),
		},
		UID:       identity.ID(),
		UserEmail: identity.Email(),
		Name:      identity.Username(),
		RoleList:  append([]string(nil), roles...),
	}

	ensureTokenID(&claims.RegisteredClaims)

	return ts.SignClaims(claims)
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode or validate claims")
	return nil, ErrTokenMalformed
}
