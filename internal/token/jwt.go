package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dtroode/authkeeper-server/internal/model"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

// AccessClaims is the claim set of an access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	RTID      string `json:"rtid"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
	TokenType string `json:"typ"`
}

// RefreshClaims is the claim set of a refresh token. The identity is the
// registered jti claim.
type RefreshClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"typ"`
}

// Config holds codec secrets and lifetimes.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	// Now defaults to time.Now.
	Now func() time.Time
}

// JWT implements TokenManager with two independent HMAC keys.
type JWT struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

var _ model.TokenManager = (*JWT)(nil)

// NewJWT validates cfg and creates the codec. Missing or shared secrets
// and non-positive lifetimes are configuration errors.
func NewJWT(cfg Config) (*JWT, error) {
	switch {
	case cfg.AccessSecret == "" || cfg.RefreshSecret == "":
		return nil, fmt.Errorf("%w: token signing secrets must be set", model.ErrConfiguration)
	case cfg.AccessSecret == cfg.RefreshSecret:
		return nil, fmt.Errorf("%w: access and refresh secrets must differ", model.ErrConfiguration)
	case cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0:
		return nil, fmt.Errorf("%w: token lifetimes must be positive", model.ErrConfiguration)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &JWT{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		now:           now,
	}, nil
}

func (j *JWT) AccessTTL() time.Duration  { return j.accessTTL }
func (j *JWT) RefreshTTL() time.Duration { return j.refreshTTL }

// IssueAccessToken signs a short-lived access token bound to params.RTID.
func (j *JWT) IssueAccessToken(params model.AccessTokenParams) (string, error) {
	now := j.now().Truncate(time.Second)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   params.UserID.String(),
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.accessTTL)),
		},
		Role:      string(params.Role),
		RTID:      params.RTID,
		Username:  params.Username,
		Email:     params.Email,
		Avatar:    params.Avatar,
		TokenType: typeAccess,
	})

	tokenString, err := token.SignedString(j.accessSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// IssueRefreshToken mints a fresh identity and signs a long-lived refresh token.
func (j *JWT) IssueRefreshToken(userID uuid.UUID) (model.IssuedRefreshToken, error) {
	now := j.now().Truncate(time.Second)
	expiresAt := now.Add(j.refreshTTL)
	jti := uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID.String(),
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenType: typeRefresh,
	})

	tokenString, err := token.SignedString(j.refreshSecret)
	if err != nil {
		return model.IssuedRefreshToken{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return model.IssuedRefreshToken{
		Token:     tokenString,
		JTI:       jti,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

// ParseAccessToken verifies signature, issuer, type and expiry.
func (j *JWT) ParseAccessToken(tokenString string) (model.AccessPayload, error) {
	return j.parseAccess(tokenString, j.validatingParser())
}

// DecodeAccessToken verifies signature, issuer and type but accepts expired tokens.
func (j *JWT) DecodeAccessToken(tokenString string) (model.AccessPayload, error) {
	return j.parseAccess(tokenString, j.decodingParser())
}

// ParseRefreshToken verifies signature, issuer, type and expiry.
func (j *JWT) ParseRefreshToken(tokenString string) (model.RefreshPayload, error) {
	return j.parseRefresh(tokenString, j.validatingParser())
}

// DecodeRefreshToken verifies signature, issuer and type but accepts expired tokens.
func (j *JWT) DecodeRefreshToken(tokenString string) (model.RefreshPayload, error) {
	return j.parseRefresh(tokenString, j.decodingParser())
}

func (j *JWT) parseAccess(tokenString string, parser *jwt.Parser) (model.AccessPayload, error) {
	claims := &AccessClaims{}
	if err := j.parse(parser, tokenString, claims, j.accessSecret); err != nil {
		return model.AccessPayload{}, fmt.Errorf("failed to parse access token: %w", err)
	}
	if err := j.checkClaims(claims.TokenType, typeAccess, claims.Issuer); err != nil {
		return model.AccessPayload{}, fmt.Errorf("failed to parse access token: %w", err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.AccessPayload{}, fmt.Errorf("failed to parse access token subject: %w: %w", model.ErrTokenInvalid, err)
	}
	if claims.RTID == "" {
		return model.AccessPayload{}, fmt.Errorf("access token has no rtid: %w", model.ErrTokenInvalid)
	}

	return model.AccessPayload{
		UserID:    userID,
		Role:      model.Role(claims.Role),
		RTID:      claims.RTID,
		Username:  claims.Username,
		Email:     claims.Email,
		Avatar:    claims.Avatar,
		Issuer:    claims.Issuer,
		IssuedAt:  numericTime(claims.IssuedAt),
		ExpiresAt: numericTime(claims.ExpiresAt),
	}, nil
}

func (j *JWT) parseRefresh(tokenString string, parser *jwt.Parser) (model.RefreshPayload, error) {
	claims := &RefreshClaims{}
	if err := j.parse(parser, tokenString, claims, j.refreshSecret); err != nil {
		return model.RefreshPayload{}, fmt.Errorf("failed to parse refresh token: %w", err)
	}
	if err := j.checkClaims(claims.TokenType, typeRefresh, claims.Issuer); err != nil {
		return model.RefreshPayload{}, fmt.Errorf("failed to parse refresh token: %w", err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.RefreshPayload{}, fmt.Errorf("failed to parse refresh token subject: %w: %w", model.ErrTokenInvalid, err)
	}
	if claims.ID == "" {
		return model.RefreshPayload{}, fmt.Errorf("refresh token has no jti: %w", model.ErrTokenInvalid)
	}

	return model.RefreshPayload{
		UserID:    userID,
		JTI:       claims.ID,
		Issuer:    claims.Issuer,
		IssuedAt:  numericTime(claims.IssuedAt),
		ExpiresAt: numericTime(claims.ExpiresAt),
	}, nil
}

func (j *JWT) validatingParser() *jwt.Parser {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
		jwt.WithExpirationRequired(),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}
	return jwt.NewParser(opts...)
}

func (j *JWT) decodingParser() *jwt.Parser {
	return jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
}

func (j *JWT) parse(parser *jwt.Parser, tokenString string, claims jwt.Claims, secret []byte) error {
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("%w: %w: %w", model.ErrTokenInvalid, model.ErrTokenExpired, err)
		}
		return fmt.Errorf("%w: %w", model.ErrTokenInvalid, err)
	}
	if !token.Valid {
		return model.ErrTokenInvalid
	}
	return nil
}

// checkClaims covers what the decoding parser skips: issuer, and the type
// marker that keeps access and refresh tokens from standing in for each other.
func (j *JWT) checkClaims(got, want, issuer string) error {
	if got != want {
		return fmt.Errorf("%w: token type mismatch: %s", model.ErrTokenInvalid, got)
	}
	if j.issuer != "" && issuer != j.issuer {
		return fmt.Errorf("%w: unexpected issuer %q", model.ErrTokenInvalid, issuer)
	}
	return nil
}

func numericTime(d *jwt.NumericDate) time.Time {
	if d == nil {
		return time.Time{}
	}
	return d.Time
}
