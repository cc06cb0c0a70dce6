package crypto

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tokengate/tokengate-go/internal/model"
)

const (
	// Audience is the fixed aud claim of every issued token.
	Audience = "authenticated"
	// RoleAuthenticated is the fixed role claim of every issued token.
	RoleAuthenticated = "authenticated"
	// DefaultTokenLifetime is the exp - iat distance of issued tokens.
	DefaultTokenLifetime = 24 * time.Hour
)

var (
	ErrEmptySecret       = errors.New("token secret must not be empty")
	ErrEmptySubject      = errors.New("user id is required to issue a token")
	ErrMalformedToken    = errors.New("malformed token")
	ErrSignatureMismatch = errors.New("token signature mismatch")
	ErrMalformedPayload  = errors.New("malformed token payload")
	ErrExpired           = errors.New("token expired")
)

// Claims is the token payload. The field order is the wire order, and aud is
// a plain string rather than the array form jwt.RegisteredClaims produces.
type Claims struct {
	Subject     string           `json:"sub"`
	Audience    string           `json:"aud"`
	ExpiresAt   *jwt.NumericDate `json:"exp"`
	IssuedAt    *jwt.NumericDate `json:"iat"`
	Email       string           `json:"email"`
	Phone       string           `json:"phone"`
	Name        string           `json:"name"`
	Avatar      string           `json:"avatar"`
	Role        string           `json:"role"`
	IsAnonymous bool             `json:"is_anonymous"`
}

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) { return c.ExpiresAt, nil }
func (c Claims) GetIssuedAt() (*jwt.NumericDate, error)       { return c.IssuedAt, nil }
func (c Claims) GetNotBefore() (*jwt.NumericDate, error)      { return nil, nil }
func (c Claims) GetIssuer() (string, error)                   { return "", nil }
func (c Claims) GetSubject() (string, error)                  { return c.Subject, nil }

func (c Claims) GetAudience() (jwt.ClaimStrings, error) {
	if c.Audience == "" {
		return nil, nil
	}
	return jwt.ClaimStrings{c.Audience}, nil
}

// UserInfo rebuilds the identity carried by the claims.
func (c Claims) UserInfo() model.UserInfo {
	return model.UserInfo{
		ID:     c.Subject,
		Email:  c.Email,
		Phone:  c.Phone,
		Name:   c.Name,
		Avatar: c.Avatar,
	}
}

// TokenService issues and verifies HS256 identity tokens with a single shared
// secret. It holds no mutable state and is safe for concurrent use.
type TokenService struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
	parser   *jwt.Parser
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		s.now = now
	}
}

// WithLifetime overrides DefaultTokenLifetime.
func WithLifetime(d time.Duration) TokenOption {
	return func(s *TokenService) {
		s.lifetime = d
	}
}

// NewTokenService creates a TokenService signing with secret.
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	s := &TokenService{
		secret:   []byte(secret),
		lifetime: DefaultTokenLifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	// A one second leeway turns the library's "now < exp" into "now <= exp"
	// at whole-second resolution, so a token is expired only once now > exp.
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(time.Second),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)

	return s, nil
}

// Lifetime reports how long issued tokens stay valid.
func (s *TokenService) Lifetime() time.Duration {
	return s.lifetime
}

// Issue creates a signed token for user. Two calls for the same user at
// different seconds never produce the same token.
func (s *TokenService) Issue(user model.UserInfo) (string, error) {
	if user.ID == "" {
		return "", ErrEmptySubject
	}

	now := s.now().Truncate(time.Second)
	claims := Claims{
		Subject:     user.ID,
		Audience:    Audience,
		ExpiresAt:   jwt.NewNumericDate(now.Add(s.lifetime)),
		IssuedAt:    jwt.NewNumericDate(now),
		Email:       user.Email,
		Phone:       user.Phone,
		Name:        user.Name,
		Avatar:      user.Avatar,
		Role:        RoleAuthenticated,
		IsAnonymous: false,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks token and returns the identity it carries. The returned
// error is always one of ErrMalformedToken, ErrSignatureMismatch,
// ErrMalformedPayload or ErrExpired and never includes token material.
func (s *TokenService) Verify(token string) (model.UserInfo, error) {
	claims, err := s.Parse(token)
	if err != nil {
		return model.UserInfo{}, err
	}
	return claims.UserInfo(), nil
}

// Parse is Verify returning the full claim set.
func (s *TokenService) Parse(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrMalformedToken
	}

	// Signature first, so tampered input is reported as such before any of
	// its content is decoded. HMAC comparison inside Verify is constant time.
	sig, err := s.parser.DecodeSegment(parts[2])
	if err != nil {
		return nil, ErrSignatureMismatch
	}
	if err := jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], sig, s.secret); err != nil {
		return nil, ErrSignatureMismatch
	}

	claims := &Claims{}
	if _, err := s.parser.ParseWithClaims(token, claims, s.key); err != nil {
		return nil, mapParseError(err)
	}
	if claims.Subject == "" {
		return nil, ErrMalformedPayload
	}

	return claims, nil
}

func (s *TokenService) key(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, ErrSignatureMismatch
	}
	return s.secret, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrSignatureMismatch
	default:
		return ErrMalformedPayload
	}
}
